package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/resolvedesk/resolvedesk/db"
	"github.com/resolvedesk/resolvedesk/services"
)

type FeedbackHandler struct {
	feedbackService *services.FeedbackService
}

func NewFeedbackHandler(feedbackService *services.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService}
}

// CheckEligibility handles GET /complaints/:id/feedback/eligibility
func (h *FeedbackHandler) CheckEligibility(c *gin.Context) {
	eligibility, err := h.feedbackService.CheckEligibility(c.Param("id"), currentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check eligibility", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, eligibility)
}

// SubmitFeedback handles POST /complaints/:id/feedback
func (h *FeedbackHandler) SubmitFeedback(c *gin.Context) {
	var req db.SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	feedback, err := h.feedbackService.SubmitFeedback(c.Param("id"), currentUserID(c), req)
	if err != nil {
		if strings.HasPrefix(err.Error(), "not eligible for feedback") {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit feedback", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, feedback)
}

// GetFeedback handles GET /complaints/:id/feedback
func (h *FeedbackHandler) GetFeedback(c *gin.Context) {
	feedback, err := h.feedbackService.GetFeedbackForComplaint(c.Param("id"))
	if err != nil {
		if err.Error() == "feedback not found" {
			c.JSON(http.StatusNotFound, gin.H{"error": "Feedback not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch feedback", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, feedback)
}

// ListFeedback handles GET /admin/feedback (admin)
func (h *FeedbackHandler) ListFeedback(c *gin.Context) {
	feedbacks, err := h.feedbackService.ListFeedback()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch feedback", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"feedback": feedbacks, "total": len(feedbacks)})
}
