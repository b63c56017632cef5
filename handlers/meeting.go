package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/resolvedesk/resolvedesk/db"
	"github.com/resolvedesk/resolvedesk/services"
)

type MeetingHandler struct {
	meetingService *services.MeetingService
}

func NewMeetingHandler(meetingService *services.MeetingService) *MeetingHandler {
	return &MeetingHandler{meetingService: meetingService}
}

// ScheduleMeeting handles POST /meetings (admin)
func (h *MeetingHandler) ScheduleMeeting(c *gin.Context) {
	var req db.ScheduleMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	meeting, err := h.meetingService.ScheduleMeeting(currentUserID(c), req)
	if err != nil {
		switch err.Error() {
		case "invited user not found":
			c.JSON(http.StatusNotFound, gin.H{"error": "Invited user not found"})
		case "schedule time must be in the future":
			c.JSON(http.StatusBadRequest, gin.H{"error": "Schedule time must be in the future"})
		case "complaint does not belong to invited user":
			c.JSON(http.StatusBadRequest, gin.H{"error": "Complaint does not belong to invited user"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to schedule meeting", "details": err.Error()})
		}
		return
	}
	c.JSON(http.StatusCreated, meeting)
}

// ListMeetings handles GET /meetings. Users only ever see meetings they
// are invited to; the predicate lives in the query.
func (h *MeetingHandler) ListMeetings(c *gin.Context) {
	meetings, err := h.meetingService.ListMeetings(currentUserID(c), isAdmin(c), c.Query("status"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch meetings", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"meetings": meetings, "total": len(meetings)})
}

// GetMeeting handles GET /meetings/:id
func (h *MeetingHandler) GetMeeting(c *gin.Context) {
	meeting, err := h.meetingService.GetMeeting(c.Param("id"), currentUserID(c), isAdmin(c))
	if err != nil {
		if err.Error() == "meeting not found" {
			c.JSON(http.StatusNotFound, gin.H{"error": "Meeting not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch meeting", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, meeting)
}

// UpdateMeetingStatus handles PATCH /meetings/:id/status (admin)
func (h *MeetingHandler) UpdateMeetingStatus(c *gin.Context) {
	var req db.UpdateMeetingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	meeting, err := h.meetingService.UpdateMeetingStatus(c.Param("id"), req.Status)
	if err != nil {
		switch err.Error() {
		case "meeting not found":
			c.JSON(http.StatusNotFound, gin.H{"error": "Meeting not found"})
		case "invalid meeting status: " + req.Status:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status: " + req.Status})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update meeting", "details": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, meeting)
}

// DeleteMeeting handles DELETE /meetings/:id (admin)
func (h *MeetingHandler) DeleteMeeting(c *gin.Context) {
	if err := h.meetingService.DeleteMeeting(c.Param("id")); err != nil {
		if err.Error() == "meeting not found" {
			c.JSON(http.StatusNotFound, gin.H{"error": "Meeting not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete meeting", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Meeting cancelled"})
}
