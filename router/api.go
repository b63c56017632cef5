package router

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/resolvedesk/resolvedesk/handlers"
	"github.com/resolvedesk/resolvedesk/internal/config"
	"github.com/resolvedesk/resolvedesk/realtime"
	"github.com/resolvedesk/resolvedesk/services"
)

func NewGinRouter(pg *sql.DB, rdb *redis.Client) *gin.Engine {
	r := gin.Default()

	// Add CORS middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Initialize services
	changeFeed := services.NewChangeFeedService(rdb)
	pushService, err := services.NewPushService(pg)
	if err != nil {
		log.Printf("Warning: Failed to initialize push service: %v", err)
	}
	functionsClient := services.NewFunctionsClient()
	jwtService := services.NewJWTService(config.App.JWTSecret, time.Duration(config.App.TokenTTLMin)*time.Minute)
	userService := services.NewUserService(pg)
	authService := services.NewAuthService(pg, jwtService, functionsClient)
	notificationService := services.NewNotificationService(pg, changeFeed, pushService)
	ticketService := services.NewTicketService(pg, changeFeed)
	complaintService := services.NewComplaintService(pg, ticketService, notificationService, changeFeed)
	meetingService := services.NewMeetingService(pg, userService, notificationService, changeFeed)
	feedbackService := services.NewFeedbackService(pg, ticketService, notificationService, changeFeed)
	dashboardService := services.NewDashboardService(pg)

	// Realtime hub: redis change feed in, websocket clients out
	hub := realtime.NewHub()
	go hub.Run()
	if rdb != nil {
		realtime.NewSubscriber(rdb, hub).Start(context.Background())
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, userService)
	complaintHandler := handlers.NewComplaintHandler(complaintService)
	ticketHandler := handlers.NewTicketHandler(ticketService)
	meetingHandler := handlers.NewMeetingHandler(meetingService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	feedbackHandler := handlers.NewFeedbackHandler(feedbackService)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService)
	chatHandler := handlers.NewChatHandler(functionsClient)
	realtimeHandler := handlers.NewRealtimeHandler(hub, jwtService, userService)

	// Initialize middleware
	authMiddleware := handlers.NewAuthMiddleware(jwtService, userService)

	// PUBLIC ENDPOINTS (no authentication required)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
	}

	// Websocket endpoint authenticates via token query param
	r.GET("/ws", realtimeHandler.Serve)

	// PROTECTED ENDPOINTS
	protected := r.Group("/")
	protected.Use(authMiddleware.RequireAuth())
	{
		// PROFILE
		protected.GET("/users/me", authHandler.GetProfile)
		protected.PUT("/users/me", authHandler.UpdateProfile)

		// COMPLAINT MANAGEMENT
		complaintRoutes := protected.Group("/complaints")
		{
			complaintRoutes.POST("", complaintHandler.CreateComplaint)
			complaintRoutes.GET("", complaintHandler.ListComplaints)
			complaintRoutes.GET("/:id", complaintHandler.GetComplaint)
			complaintRoutes.PUT("/:id", complaintHandler.UpdateComplaint)
			complaintRoutes.DELETE("/:id", complaintHandler.DeleteComplaint)
			complaintRoutes.PATCH("/:id/status", authMiddleware.RequireAdmin(), complaintHandler.UpdateComplaintStatus)

			// Feedback closing loop
			complaintRoutes.GET("/:id/feedback/eligibility", feedbackHandler.CheckEligibility)
			complaintRoutes.POST("/:id/feedback", feedbackHandler.SubmitFeedback)
			complaintRoutes.GET("/:id/feedback", feedbackHandler.GetFeedback)
		}

		// NOTIFICATIONS
		notificationRoutes := protected.Group("/notifications")
		{
			notificationRoutes.GET("", notificationHandler.ListNotifications)
			notificationRoutes.GET("/stats", notificationHandler.GetStats)
			notificationRoutes.PATCH("/:id/read", notificationHandler.MarkAsRead)
			notificationRoutes.POST("/read-all", notificationHandler.MarkAllAsRead)
		}

		// MEETINGS (listing is visibility-scoped in the service)
		meetingRoutes := protected.Group("/meetings")
		{
			meetingRoutes.GET("", meetingHandler.ListMeetings)
			meetingRoutes.GET("/:id", meetingHandler.GetMeeting)
			meetingRoutes.POST("", authMiddleware.RequireAdmin(), meetingHandler.ScheduleMeeting)
			meetingRoutes.PATCH("/:id/status", authMiddleware.RequireAdmin(), meetingHandler.UpdateMeetingStatus)
			meetingRoutes.DELETE("/:id", authMiddleware.RequireAdmin(), meetingHandler.DeleteMeeting)
		}

		// SUPPORT CHAT
		protected.POST("/chat", chatHandler.Chat)

		// ADMIN ENDPOINTS
		admin := protected.Group("/admin")
		admin.Use(authMiddleware.RequireAdmin())
		{
			admin.GET("/users", authHandler.ListUsers)

			ticketRoutes := admin.Group("/tickets")
			{
				ticketRoutes.GET("", ticketHandler.ListTickets)
				ticketRoutes.GET("/:id", ticketHandler.GetTicket)
				ticketRoutes.PATCH("/:id/status", ticketHandler.UpdateTicketStatus)
				ticketRoutes.POST("/ensure", ticketHandler.EnsureTickets)
			}

			adminNotificationRoutes := admin.Group("/notifications")
			{
				adminNotificationRoutes.GET("", notificationHandler.ListAdminNotifications)
				adminNotificationRoutes.GET("/stats", notificationHandler.GetAdminStats)
				adminNotificationRoutes.PATCH("/:id/read", notificationHandler.MarkAdminAsRead)
			}

			admin.GET("/feedback", feedbackHandler.ListFeedback)

			dashboardRoutes := admin.Group("/dashboard")
			{
				dashboardRoutes.GET("/stats", dashboardHandler.GetStats)
				dashboardRoutes.GET("/trends", dashboardHandler.GetTrends)
			}
		}
	}

	return r
}
