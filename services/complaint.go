package services

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/resolvedesk/resolvedesk/db"
)

// ComplaintService is the entry point of the complaint lifecycle. Creating
// a complaint and its tracking ticket happens in one transaction so no
// complaint is ever visible without a ticket; notification fan-out runs
// after commit and is best-effort.
type ComplaintService struct {
	PG            *sql.DB
	Tickets       *TicketService
	Notifications *NotificationService
	ChangeFeed    *ChangeFeedService
}

func NewComplaintService(pg *sql.DB, tickets *TicketService, notifications *NotificationService, changeFeed *ChangeFeedService) *ComplaintService {
	return &ComplaintService{PG: pg, Tickets: tickets, Notifications: notifications, ChangeFeed: changeFeed}
}

// CreateComplaint inserts the complaint and its ticket atomically, then
// fans out the submission notifications.
func (s *ComplaintService) CreateComplaint(userID string, req db.CreateComplaintRequest) (*db.Complaint, error) {
	priority := req.Priority
	if priority == "" {
		priority = db.ComplaintPriorityMedium
	}
	if !db.ValidComplaintPriority(priority) {
		return nil, fmt.Errorf("invalid priority: %s", priority)
	}

	tx, err := s.PG.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	c := &db.Complaint{
		ID:            uuid.New().String(),
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		Priority:      priority,
		Status:        db.ComplaintStatusPending,
		UserID:        userID,
		AttachmentURL: req.AttachmentURL,
	}

	err = tx.QueryRow(`
		INSERT INTO complaints (id, title, description, category, priority, status, user_id, attachment_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING created_at, updated_at
	`, c.ID, c.Title, c.Description, c.Category, c.Priority, c.Status, c.UserID,
		nullIfEmptyStr(c.AttachmentURL)).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create complaint: %w", err)
	}

	ticket, err := s.Tickets.CreateTicketTx(tx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticket for complaint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit complaint: %w", err)
	}

	if s.ChangeFeed != nil {
		s.ChangeFeed.PublishRowChange(db.ChannelTicketsComplaints, "complaints", db.ChangeEventInsert, c, userID)
		s.ChangeFeed.PublishRowChange(db.ChannelTicketsComplaints, "tickets", db.ChangeEventInsert, ticket, userID)
	}

	go s.notifyComplaintCreated(c, ticket)

	return c, nil
}

func (s *ComplaintService) notifyComplaintCreated(c *db.Complaint, ticket *db.Ticket) {
	if s.Notifications == nil {
		return
	}

	_, err := s.Notifications.CreateUserNotification(
		c.UserID,
		db.NotificationComplaintSubmitted,
		"Complaint submitted",
		fmt.Sprintf("Your complaint %q was received and ticket %s was opened for it.", c.Title, ticket.TicketNumber),
		map[string]interface{}{
			"complaint_id":  c.ID,
			"ticket_id":     ticket.ID,
			"ticket_number": ticket.TicketNumber,
		},
	)
	if err != nil {
		log.Printf("WARNING: Failed to notify user %s of complaint %s: %v", c.UserID, c.ID, err)
	}

	_, err = s.Notifications.CreateAdminNotification(
		db.NotificationComplaintCreated,
		"New complaint",
		fmt.Sprintf("New %s priority complaint: %s", c.Priority, c.Title),
		map[string]interface{}{
			"complaint_id":  c.ID,
			"ticket_number": ticket.TicketNumber,
			"category":      c.Category,
			"priority":      c.Priority,
		},
	)
	if err != nil {
		log.Printf("WARNING: Failed to create admin notification for complaint %s: %v", c.ID, err)
	}
}

// GetComplaint returns one complaint. Non-admin callers may only read
// their own complaints; the check is enforced in the query predicate.
func (s *ComplaintService) GetComplaint(id, requesterID string, isAdmin bool) (*db.Complaint, error) {
	query := `
		SELECT c.id, c.title, c.description, c.category, c.priority, c.status,
		       c.user_id, COALESCE(c.attachment_url, ''), c.created_at, c.updated_at,
		       u.name, u.email
		FROM complaints c
		JOIN users u ON u.id = c.user_id
		WHERE c.id = $1
	`
	args := []interface{}{id}
	if !isAdmin {
		query += " AND c.user_id = $2"
		args = append(args, requesterID)
	}

	c := &db.Complaint{}
	err := s.PG.QueryRow(query, args...).Scan(
		&c.ID, &c.Title, &c.Description, &c.Category, &c.Priority, &c.Status,
		&c.UserID, &c.AttachmentURL, &c.CreatedAt, &c.UpdatedAt,
		&c.UserName, &c.UserEmail)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("complaint not found")
		}
		return nil, fmt.Errorf("failed to get complaint: %w", err)
	}
	return c, nil
}

// ListComplaints returns complaints visible to the requester. Admins see
// everything; users see only their own rows. Supported filter keys:
// status, category, priority.
func (s *ComplaintService) ListComplaints(requesterID string, isAdmin bool, filters map[string]interface{}) ([]db.Complaint, error) {
	query := `
		SELECT c.id, c.title, c.description, c.category, c.priority, c.status,
		       c.user_id, COALESCE(c.attachment_url, ''), c.created_at, c.updated_at,
		       u.name, u.email
		FROM complaints c
		JOIN users u ON u.id = c.user_id
		WHERE 1=1
	`
	args := []interface{}{}
	argIndex := 1

	if !isAdmin {
		query += fmt.Sprintf(" AND c.user_id = $%d", argIndex)
		args = append(args, requesterID)
		argIndex++
	}
	if status, ok := filters["status"]; ok {
		query += fmt.Sprintf(" AND c.status = $%d", argIndex)
		args = append(args, status)
		argIndex++
	}
	if category, ok := filters["category"]; ok {
		query += fmt.Sprintf(" AND c.category = $%d", argIndex)
		args = append(args, category)
		argIndex++
	}
	if priority, ok := filters["priority"]; ok {
		query += fmt.Sprintf(" AND c.priority = $%d", argIndex)
		args = append(args, priority)
		argIndex++
	}
	if search, ok := filters["search"].(string); ok && search != "" {
		query += fmt.Sprintf(" AND (c.title ILIKE $%d OR c.description ILIKE $%d)", argIndex, argIndex+1)
		searchPattern := "%" + search + "%"
		args = append(args, searchPattern, searchPattern)
		argIndex += 2
	}
	query += " ORDER BY c.created_at DESC"
	if limit, ok := filters["limit"].(int); ok && limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, limit)
		argIndex++
		if offset, ok := filters["offset"].(int); ok && offset > 0 {
			query += fmt.Sprintf(" OFFSET $%d", argIndex)
			args = append(args, offset)
			argIndex++
		}
	}

	rows, err := s.PG.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list complaints: %w", err)
	}
	defer rows.Close()

	complaints := []db.Complaint{}
	for rows.Next() {
		var c db.Complaint
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.Category, &c.Priority, &c.Status,
			&c.UserID, &c.AttachmentURL, &c.CreatedAt, &c.UpdatedAt,
			&c.UserName, &c.UserEmail); err != nil {
			return nil, fmt.Errorf("failed to scan complaint: %w", err)
		}
		complaints = append(complaints, c)
	}
	return complaints, rows.Err()
}

// UpdateComplaint lets the owner edit content fields while the complaint
// is still Pending or Accepted. Admins may edit at any stage.
func (s *ComplaintService) UpdateComplaint(id, requesterID string, isAdmin bool, req db.UpdateComplaintRequest) (*db.Complaint, error) {
	existing, err := s.GetComplaint(id, requesterID, isAdmin)
	if err != nil {
		return nil, err
	}

	if !isAdmin {
		if existing.Status != db.ComplaintStatusPending && existing.Status != db.ComplaintStatusAccepted {
			return nil, fmt.Errorf("complaint can no longer be edited")
		}
	}

	if req.Title != nil {
		existing.Title = *req.Title
	}
	if req.Description != nil {
		existing.Description = *req.Description
	}
	if req.Category != nil {
		existing.Category = *req.Category
	}
	if req.Priority != nil {
		if !db.ValidComplaintPriority(*req.Priority) {
			return nil, fmt.Errorf("invalid priority: %s", *req.Priority)
		}
		existing.Priority = *req.Priority
	}
	if req.AttachmentURL != nil {
		existing.AttachmentURL = *req.AttachmentURL
	}

	err = s.PG.QueryRow(`
		UPDATE complaints
		SET title = $1, description = $2, category = $3, priority = $4,
		    attachment_url = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at
	`, existing.Title, existing.Description, existing.Category, existing.Priority,
		nullIfEmptyStr(existing.AttachmentURL), id).Scan(&existing.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update complaint: %w", err)
	}

	if s.ChangeFeed != nil {
		s.ChangeFeed.PublishRowChange(db.ChannelTicketsComplaints, "complaints", db.ChangeEventUpdate, existing, existing.UserID)
	}
	return existing, nil
}

// UpdateComplaintStatus moves the complaint through its lifecycle and
// notifies the owner. Ticket status is deliberately left alone: the ticket
// tracks internal work and only the feedback loop closes both together.
func (s *ComplaintService) UpdateComplaintStatus(id string, status string) (*db.Complaint, error) {
	if !db.ValidComplaintStatus(status) {
		return nil, fmt.Errorf("invalid complaint status: %s", status)
	}

	result, err := s.PG.Exec(`
		UPDATE complaints SET status = $1, updated_at = NOW() WHERE id = $2
	`, status, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update complaint status: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return nil, fmt.Errorf("complaint not found")
	}

	c, err := s.GetComplaint(id, "", true)
	if err != nil {
		return nil, err
	}

	if s.ChangeFeed != nil {
		s.ChangeFeed.PublishRowChange(db.ChannelTicketsComplaints, "complaints", db.ChangeEventUpdate, c, c.UserID)
	}

	if s.Notifications != nil {
		go func() {
			_, err := s.Notifications.CreateUserNotification(
				c.UserID,
				db.NotificationStatusUpdated,
				"Complaint status updated",
				fmt.Sprintf("Your complaint %q is now %s.", c.Title, c.Status),
				map[string]interface{}{
					"complaint_id": c.ID,
					"status":       c.Status,
				},
			)
			if err != nil {
				log.Printf("WARNING: Failed to notify user %s of status change on %s: %v", c.UserID, c.ID, err)
			}
		}()
	}

	return c, nil
}

// DeleteComplaint removes a complaint. Owners may delete only while the
// complaint is still Pending; admins may delete at any stage. The ticket
// row goes with it via the foreign key cascade.
func (s *ComplaintService) DeleteComplaint(id, requesterID string, isAdmin bool) error {
	existing, err := s.GetComplaint(id, requesterID, isAdmin)
	if err != nil {
		return err
	}

	if !isAdmin && existing.Status != db.ComplaintStatusPending {
		return fmt.Errorf("only pending complaints can be deleted")
	}

	result, err := s.PG.Exec("DELETE FROM complaints WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete complaint: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("complaint not found")
	}

	if s.ChangeFeed != nil {
		s.ChangeFeed.PublishRowChange(db.ChannelTicketsComplaints, "complaints", db.ChangeEventDelete, existing, existing.UserID)
	}
	return nil
}
