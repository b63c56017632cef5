package db

import "time"

// ===========================
// USER MODELS
// ===========================

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"` // user, admin
	FCMToken  string    `json:"fcm_token,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Never serialized; populated only for auth checks
	PasswordHash string `json:"-"`
}

// User role constants
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type UpdateProfileRequest struct {
	Name     *string `json:"name,omitempty"`
	FCMToken *string `json:"fcm_token,omitempty"`
}

// ===========================
// COMPLAINT MODELS
// ===========================

// Complaint status constants. Transitions are driven by admins except the
// final Closed flip, which the feedback loop performs.
const (
	ComplaintStatusPending    = "Pending"
	ComplaintStatusAccepted   = "Accepted"
	ComplaintStatusInProgress = "In Progress"
	ComplaintStatusResolved   = "Resolved"
	ComplaintStatusClosed     = "Closed"
)

// Complaint priority constants
const (
	ComplaintPriorityLow    = "low"
	ComplaintPriorityMedium = "medium"
	ComplaintPriorityHigh   = "high"
	ComplaintPriorityUrgent = "urgent"
)

type Complaint struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	Priority      string    `json:"priority"`
	Status        string    `json:"status"`
	UserID        string    `json:"user_id"`
	AttachmentURL string    `json:"attachment_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Populated via JOINs for API responses
	UserName  string `json:"user_name,omitempty"`
	UserEmail string `json:"user_email,omitempty"`
}

type CreateComplaintRequest struct {
	Title         string `json:"title" binding:"required"`
	Description   string `json:"description" binding:"required"`
	Category      string `json:"category" binding:"required"`
	Priority      string `json:"priority"`
	AttachmentURL string `json:"attachment_url"`
}

type UpdateComplaintRequest struct {
	Title         *string `json:"title,omitempty"`
	Description   *string `json:"description,omitempty"`
	Category      *string `json:"category,omitempty"`
	Priority      *string `json:"priority,omitempty"`
	AttachmentURL *string `json:"attachment_url,omitempty"`
}

type UpdateComplaintStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ValidComplaintStatus reports whether s is one of the closed set of
// complaint statuses.
func ValidComplaintStatus(s string) bool {
	switch s {
	case ComplaintStatusPending, ComplaintStatusAccepted, ComplaintStatusInProgress,
		ComplaintStatusResolved, ComplaintStatusClosed:
		return true
	}
	return false
}

// ValidComplaintPriority reports whether p is a known priority.
func ValidComplaintPriority(p string) bool {
	switch p {
	case ComplaintPriorityLow, ComplaintPriorityMedium, ComplaintPriorityHigh, ComplaintPriorityUrgent:
		return true
	}
	return false
}

// ===========================
// TICKET MODELS
// ===========================

// Ticket status constants
const (
	TicketStatusOpen       = "open"
	TicketStatusAssigned   = "assigned"
	TicketStatusInProgress = "in_progress"
	TicketStatusResolved   = "resolved"
	TicketStatusClosed     = "closed"
)

type Ticket struct {
	ID              string     `json:"id"`
	TicketNumber    string     `json:"ticket_number"`
	ComplaintID     string     `json:"complaint_id"`
	Status          string     `json:"status"`
	AssignedTo      string     `json:"assigned_to,omitempty"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// Populated via JOINs for API responses
	ComplaintTitle  string `json:"complaint_title,omitempty"`
	ComplaintStatus string `json:"complaint_status,omitempty"`
	AssignedToName  string `json:"assigned_to_name,omitempty"`
}

type UpdateTicketStatusRequest struct {
	Status          string `json:"status" binding:"required"`
	AssignedTo      string `json:"assigned_to"`
	ResolutionNotes string `json:"resolution_notes"`
}

// ValidTicketStatus reports whether s is a known ticket status.
func ValidTicketStatus(s string) bool {
	switch s {
	case TicketStatusOpen, TicketStatusAssigned, TicketStatusInProgress,
		TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// ===========================
// MEETING MODELS
// ===========================

// Meeting status constants
const (
	MeetingStatusScheduled = "scheduled"
	MeetingStatusCompleted = "completed"
	MeetingStatusCancelled = "cancelled"
)

type Meeting struct {
	ID            string    `json:"id"`
	ComplaintID   string    `json:"complaint_id,omitempty"`
	AdminID       string    `json:"admin_id"`
	InvitedUserID string    `json:"invited_user_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	ScheduleTime  time.Time `json:"schedule_time"`
	MeetLink      string    `json:"meet_link"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Populated via JOINs for API responses
	InvitedUserName string `json:"invited_user_name,omitempty"`
	AdminName       string `json:"admin_name,omitempty"`
	ComplaintTitle  string `json:"complaint_title,omitempty"`
}

type ScheduleMeetingRequest struct {
	InvitedUserID string    `json:"invited_user_id" binding:"required"`
	ComplaintID   string    `json:"complaint_id"`
	Title         string    `json:"title" binding:"required"`
	Description   string    `json:"description"`
	ScheduleTime  time.Time `json:"schedule_time" binding:"required"`
	MeetLink      string    `json:"meet_link" binding:"required"`
}

type UpdateMeetingStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ===========================
// NOTIFICATION MODELS
// ===========================

// NotificationType is the closed set of event kinds a notification row may
// carry. Free-form type strings are rejected at insert.
type NotificationType string

const (
	// User-facing notification types
	NotificationComplaintSubmitted NotificationType = "complaint_submitted"
	NotificationStatusUpdated      NotificationType = "status_updated"
	NotificationMeetingScheduled   NotificationType = "meeting_scheduled"
	NotificationMeetingCancelled   NotificationType = "meeting_cancelled"

	// Admin-facing notification types
	NotificationComplaintCreated NotificationType = "complaint_created"
	NotificationFeedbackReceived NotificationType = "feedback_received"
)

// ValidNotificationType reports whether t belongs to the closed enum.
func ValidNotificationType(t NotificationType) bool {
	switch t {
	case NotificationComplaintSubmitted, NotificationStatusUpdated,
		NotificationMeetingScheduled, NotificationMeetingCancelled,
		NotificationComplaintCreated, NotificationFeedbackReceived:
		return true
	}
	return false
}

type Notification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	Type      NotificationType       `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Read      bool                   `json:"read"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// AdminNotification is the admin-wide surface; it has no recipient column
// because every admin sees the same feed.
type AdminNotification struct {
	ID        string                 `json:"id"`
	Type      NotificationType       `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Read      bool                   `json:"read"`
	CreatedAt time.Time              `json:"created_at"`
}

type NotificationStats struct {
	Total  int `json:"total"`
	Unread int `json:"unread"`
}

// ===========================
// FEEDBACK MODELS
// ===========================

type Feedback struct {
	ID          string    `json:"id"`
	ComplaintID string    `json:"complaint_id"`
	UserID      string    `json:"user_id"`
	Rating      int       `json:"rating"`
	Comments    string    `json:"comments"`
	CreatedAt   time.Time `json:"created_at"`

	// Populated via JOINs for API responses
	UserName       string `json:"user_name,omitempty"`
	ComplaintTitle string `json:"complaint_title,omitempty"`
}

type SubmitFeedbackRequest struct {
	Rating   int    `json:"rating" binding:"required,min=1,max=5"`
	Comments string `json:"comments"`
}

// FeedbackEligibility is the structured answer to "may this user submit
// feedback for this complaint". Reason is set only when Eligible is false.
type FeedbackEligibility struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

// ===========================
// CHANGE FEED MODELS
// ===========================

// Change event types mirror the row-level operations of the store.
const (
	ChangeEventInsert = "INSERT"
	ChangeEventUpdate = "UPDATE"
	ChangeEventDelete = "DELETE"
)

// Realtime channel names subscribed per component.
const (
	ChannelTicketsComplaints = "tickets-complaints-realtime"
	ChannelMeetings          = "meetings-integration"
)

// ChangeEvent is a row-level change pushed to subscribed clients. Row holds
// the post-image of the row (pre-image for DELETE), serialized as JSON.
type ChangeEvent struct {
	EventType string                 `json:"event_type"` // INSERT, UPDATE, DELETE
	Table     string                 `json:"table"`
	Row       map[string]interface{} `json:"row"`
	UserID    string                 `json:"user_id,omitempty"` // set for per-user scoped events
	At        time.Time              `json:"at"`
}

// ===========================
// DASHBOARD MODELS
// ===========================

type DashboardStats struct {
	TotalComplaints    int            `json:"total_complaints"`
	ComplaintsByStatus map[string]int `json:"complaints_by_status"`
	TotalTickets       int            `json:"total_tickets"`
	TicketsByStatus    map[string]int `json:"tickets_by_status"`
	ScheduledMeetings  int            `json:"scheduled_meetings"`
	AverageRating      float64        `json:"average_rating"`
	FeedbackCount      int            `json:"feedback_count"`
}

type TrendDataPoint struct {
	Date     string `json:"date"`
	Total    int    `json:"total"`
	Pending  int    `json:"pending"`
	Resolved int    `json:"resolved"`
	Closed   int    `json:"closed"`
}

type TrendsResponse struct {
	DailyCounts     []TrendDataPoint `json:"daily_counts"`
	ByCategory      map[string]int   `json:"by_category"`
	ByPriority      map[string]int   `json:"by_priority"`
	TimeRange       string           `json:"time_range"`
	TotalComplaints int              `json:"total_complaints"`
}
