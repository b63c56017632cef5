package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/resolvedesk/resolvedesk/db"
	"github.com/resolvedesk/resolvedesk/services"
)

type TicketHandler struct {
	ticketService *services.TicketService
}

func NewTicketHandler(ticketService *services.TicketService) *TicketHandler {
	return &TicketHandler{ticketService: ticketService}
}

// ListTickets handles GET /tickets (admin)
func (h *TicketHandler) ListTickets(c *gin.Context) {
	filters := map[string]interface{}{}
	if status := c.Query("status"); status != "" {
		filters["status"] = status
	}
	if assignedTo := c.Query("assigned_to"); assignedTo != "" {
		filters["assigned_to"] = assignedTo
	}
	if complaintID := c.Query("complaint_id"); complaintID != "" {
		filters["complaint_id"] = complaintID
	}

	tickets, err := h.ticketService.ListTickets(filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tickets", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets, "total": len(tickets)})
}

// GetTicket handles GET /tickets/:id (admin)
func (h *TicketHandler) GetTicket(c *gin.Context) {
	ticket, err := h.ticketService.GetTicket(c.Param("id"))
	if err != nil {
		if err.Error() == "ticket not found" {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch ticket", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// UpdateTicketStatus handles PATCH /tickets/:id/status (admin)
func (h *TicketHandler) UpdateTicketStatus(c *gin.Context) {
	var req db.UpdateTicketStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	if !db.ValidTicketStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status: " + req.Status})
		return
	}

	ticket, err := h.ticketService.UpdateTicketStatus(c.Param("id"), req)
	if err != nil {
		if err.Error() == "ticket not found" {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update ticket", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// EnsureTickets handles POST /tickets/ensure (admin). Backfills tickets
// for complaints that lost theirs.
func (h *TicketHandler) EnsureTickets(c *gin.Context) {
	created, err := h.ticketService.EnsureTicketsForAllComplaints()
	if err != nil {
		// Partial progress still counts; report both.
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Some tickets could not be created",
			"details": err.Error(),
			"created": created,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": created})
}
