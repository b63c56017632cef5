package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/resolvedesk/resolvedesk/db"
	"github.com/resolvedesk/resolvedesk/realtime"
	"github.com/resolvedesk/resolvedesk/services"
)

// RealtimeHandler upgrades authenticated connections and registers them
// with the hub. Browsers cannot set headers on websocket upgrades, so the
// token is accepted via the token query parameter as well.
type RealtimeHandler struct {
	hub         *realtime.Hub
	jwtService  *services.JWTService
	userService *services.UserService
}

func NewRealtimeHandler(hub *realtime.Hub, jwtService *services.JWTService, userService *services.UserService) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, jwtService: jwtService, userService: userService}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Serve handles GET /ws?token=...&channels=tickets-complaints-realtime,meetings-integration
func (h *RealtimeHandler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			if t, err := h.jwtService.ExtractTokenFromHeader(authHeader); err == nil {
				token = t
			}
		}
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token is required"})
		return
	}

	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token: " + err.Error()})
		return
	}
	user, err := h.userService.GetUser(claims.UserID)
	if err != nil || !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unknown or disabled user"})
		return
	}

	var channels []string
	if raw := c.Query("channels"); raw != "" {
		for _, ch := range strings.Split(raw, ",") {
			if ch = strings.TrimSpace(ch); ch != "" {
				channels = append(channels, ch)
			}
		}
	} else {
		channels = defaultChannels(user)
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed for user %s: %v", user.ID, err)
		return
	}

	client := realtime.NewClient(h.hub, conn, user.ID, user.Role == db.RoleAdmin, channels)
	h.hub.RegisterCh <- client
	client.Run()
}

func defaultChannels(user *db.User) []string {
	channels := []string{
		db.ChannelTicketsComplaints,
		db.ChannelMeetings,
		services.UserNotificationChannel(user.ID),
	}
	if user.Role == db.RoleAdmin {
		channels = append(channels, services.AdminNotificationChannel)
	}
	return channels
}
