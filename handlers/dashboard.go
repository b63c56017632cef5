package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/resolvedesk/resolvedesk/services"
)

type DashboardHandler struct {
	dashboardService *services.DashboardService
}

func NewDashboardHandler(dashboardService *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// GetStats handles GET /admin/dashboard/stats (admin)
func (h *DashboardHandler) GetStats(c *gin.Context) {
	stats, err := h.dashboardService.GetStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch dashboard stats", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetTrends handles GET /admin/dashboard/trends?range=7d|30d|90d (admin)
func (h *DashboardHandler) GetTrends(c *gin.Context) {
	timeRange := c.DefaultQuery("range", "30d")

	trends, err := h.dashboardService.GetTrends(timeRange)
	if err != nil {
		if timeRange != "7d" && timeRange != "30d" && timeRange != "90d" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid time range, expected 7d, 30d or 90d"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch trends", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, trends)
}
