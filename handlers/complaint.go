package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/resolvedesk/resolvedesk/db"
	"github.com/resolvedesk/resolvedesk/services"
)

type ComplaintHandler struct {
	complaintService *services.ComplaintService
}

func NewComplaintHandler(complaintService *services.ComplaintService) *ComplaintHandler {
	return &ComplaintHandler{complaintService: complaintService}
}

// CreateComplaint handles POST /complaints
func (h *ComplaintHandler) CreateComplaint(c *gin.Context) {
	var req db.CreateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	complaint, err := h.complaintService.CreateComplaint(currentUserID(c), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create complaint", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, complaint)
}

// ListComplaints handles GET /complaints. Users see their own rows,
// admins everything.
func (h *ComplaintHandler) ListComplaints(c *gin.Context) {
	filters := map[string]interface{}{}
	if status := c.Query("status"); status != "" {
		filters["status"] = status
	}
	if category := c.Query("category"); category != "" {
		filters["category"] = category
	}
	if priority := c.Query("priority"); priority != "" {
		filters["priority"] = priority
	}
	if search := c.Query("search"); search != "" {
		filters["search"] = search
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		filters["limit"] = limit
		if offset, err := strconv.Atoi(c.Query("offset")); err == nil && offset > 0 {
			filters["offset"] = offset
		}
	}

	complaints, err := h.complaintService.ListComplaints(currentUserID(c), isAdmin(c), filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch complaints", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"complaints": complaints, "total": len(complaints)})
}

// GetComplaint handles GET /complaints/:id
func (h *ComplaintHandler) GetComplaint(c *gin.Context) {
	complaint, err := h.complaintService.GetComplaint(c.Param("id"), currentUserID(c), isAdmin(c))
	if err != nil {
		if err.Error() == "complaint not found" {
			c.JSON(http.StatusNotFound, gin.H{"error": "Complaint not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch complaint", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, complaint)
}

// UpdateComplaint handles PUT /complaints/:id
func (h *ComplaintHandler) UpdateComplaint(c *gin.Context) {
	var req db.UpdateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	complaint, err := h.complaintService.UpdateComplaint(c.Param("id"), currentUserID(c), isAdmin(c), req)
	if err != nil {
		switch err.Error() {
		case "complaint not found":
			c.JSON(http.StatusNotFound, gin.H{"error": "Complaint not found"})
		case "complaint can no longer be edited":
			c.JSON(http.StatusConflict, gin.H{"error": "Complaint can no longer be edited"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update complaint", "details": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, complaint)
}

// UpdateComplaintStatus handles PATCH /complaints/:id/status (admin)
func (h *ComplaintHandler) UpdateComplaintStatus(c *gin.Context) {
	var req db.UpdateComplaintStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	if !db.ValidComplaintStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status: " + req.Status})
		return
	}

	complaint, err := h.complaintService.UpdateComplaintStatus(c.Param("id"), req.Status)
	if err != nil {
		if err.Error() == "complaint not found" {
			c.JSON(http.StatusNotFound, gin.H{"error": "Complaint not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update status", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, complaint)
}

// DeleteComplaint handles DELETE /complaints/:id
func (h *ComplaintHandler) DeleteComplaint(c *gin.Context) {
	err := h.complaintService.DeleteComplaint(c.Param("id"), currentUserID(c), isAdmin(c))
	if err != nil {
		switch err.Error() {
		case "complaint not found":
			c.JSON(http.StatusNotFound, gin.H{"error": "Complaint not found"})
		case "only pending complaints can be deleted":
			c.JSON(http.StatusConflict, gin.H{"error": "Only pending complaints can be deleted"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete complaint", "details": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Complaint deleted"})
}
