package services

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/resolvedesk/resolvedesk/db"
)

// FeedbackService runs the closing loop: once a complaint is resolved its
// owner may rate the handling once, and the submission closes both the
// complaint and its ticket in the same transaction.
type FeedbackService struct {
	PG            *sql.DB
	Tickets       *TicketService
	Notifications *NotificationService
	ChangeFeed    *ChangeFeedService
}

func NewFeedbackService(pg *sql.DB, tickets *TicketService, notifications *NotificationService, changeFeed *ChangeFeedService) *FeedbackService {
	return &FeedbackService{PG: pg, Tickets: tickets, Notifications: notifications, ChangeFeed: changeFeed}
}

// CheckEligibility answers whether userID may submit feedback for the
// complaint, with a structured reason when the answer is no.
func (s *FeedbackService) CheckEligibility(complaintID, userID string) (*db.FeedbackEligibility, error) {
	var ownerID, status string
	err := s.PG.QueryRow(
		"SELECT user_id, status FROM complaints WHERE id = $1", complaintID,
	).Scan(&ownerID, &status)
	if err != nil {
		if err == sql.ErrNoRows {
			return &db.FeedbackEligibility{Eligible: false, Reason: "complaint not found"}, nil
		}
		return nil, fmt.Errorf("failed to check complaint: %w", err)
	}

	if ownerID != userID {
		return &db.FeedbackEligibility{Eligible: false, Reason: "only the complaint owner can submit feedback"}, nil
	}
	if status != db.ComplaintStatusResolved && status != db.ComplaintStatusClosed {
		return &db.FeedbackEligibility{Eligible: false, Reason: fmt.Sprintf("complaint must be resolved before feedback, current status is %s", status)}, nil
	}

	var exists bool
	err = s.PG.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM feedback WHERE complaint_id = $1 AND user_id = $2)",
		complaintID, userID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing feedback: %w", err)
	}
	if exists {
		return &db.FeedbackEligibility{Eligible: false, Reason: "feedback already submitted for this complaint"}, nil
	}

	return &db.FeedbackEligibility{Eligible: true}, nil
}

// SubmitFeedback records the rating and closes the complaint and its
// ticket atomically. The admin notification fires after commit.
func (s *FeedbackService) SubmitFeedback(complaintID, userID string, req db.SubmitFeedbackRequest) (*db.Feedback, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, fmt.Errorf("rating must be between 1 and 5")
	}

	eligibility, err := s.CheckEligibility(complaintID, userID)
	if err != nil {
		return nil, err
	}
	if !eligibility.Eligible {
		return nil, fmt.Errorf("not eligible for feedback: %s", eligibility.Reason)
	}

	tx, err := s.PG.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	f := &db.Feedback{
		ID:          uuid.New().String(),
		ComplaintID: complaintID,
		UserID:      userID,
		Rating:      req.Rating,
		Comments:    req.Comments,
	}

	err = tx.QueryRow(`
		INSERT INTO feedback (id, complaint_id, user_id, rating, comments, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`, f.ID, f.ComplaintID, f.UserID, f.Rating, f.Comments).Scan(&f.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create feedback: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE complaints SET status = $1, updated_at = NOW() WHERE id = $2
	`, db.ComplaintStatusClosed, complaintID)
	if err != nil {
		return nil, fmt.Errorf("failed to close complaint: %w", err)
	}

	resolutionNote := fmt.Sprintf("Closed via user feedback (rating %d/5)", f.Rating)
	if err := s.Tickets.CloseTicketForComplaintTx(tx, complaintID, resolutionNote); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit feedback: %w", err)
	}

	if s.ChangeFeed != nil {
		s.ChangeFeed.PublishRowChange(db.ChannelTicketsComplaints, "feedback", db.ChangeEventInsert, f, userID)
	}

	if s.Notifications != nil {
		go func() {
			_, err := s.Notifications.CreateAdminNotification(
				db.NotificationFeedbackReceived,
				"Feedback received",
				fmt.Sprintf("A complaint was closed with a %d/5 rating.", f.Rating),
				map[string]interface{}{
					"complaint_id": complaintID,
					"feedback_id":  f.ID,
					"rating":       f.Rating,
				},
			)
			if err != nil {
				log.Printf("WARNING: Failed to create admin notification for feedback %s: %v", f.ID, err)
			}
		}()
	}

	return f, nil
}

// GetFeedbackForComplaint returns the feedback row for a complaint, if
// any.
func (s *FeedbackService) GetFeedbackForComplaint(complaintID string) (*db.Feedback, error) {
	f := &db.Feedback{}
	err := s.PG.QueryRow(`
		SELECT f.id, f.complaint_id, f.user_id, f.rating, COALESCE(f.comments, ''), f.created_at,
		       u.name, c.title
		FROM feedback f
		JOIN users u ON u.id = f.user_id
		JOIN complaints c ON c.id = f.complaint_id
		WHERE f.complaint_id = $1
	`, complaintID).Scan(&f.ID, &f.ComplaintID, &f.UserID, &f.Rating, &f.Comments, &f.CreatedAt,
		&f.UserName, &f.ComplaintTitle)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("feedback not found")
		}
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	return f, nil
}

// ListFeedback returns all feedback rows, newest first. Admin surface.
func (s *FeedbackService) ListFeedback() ([]db.Feedback, error) {
	rows, err := s.PG.Query(`
		SELECT f.id, f.complaint_id, f.user_id, f.rating, COALESCE(f.comments, ''), f.created_at,
		       u.name, c.title
		FROM feedback f
		JOIN users u ON u.id = f.user_id
		JOIN complaints c ON c.id = f.complaint_id
		ORDER BY f.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	feedbacks := []db.Feedback{}
	for rows.Next() {
		var f db.Feedback
		if err := rows.Scan(&f.ID, &f.ComplaintID, &f.UserID, &f.Rating, &f.Comments, &f.CreatedAt,
			&f.UserName, &f.ComplaintTitle); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		feedbacks = append(feedbacks, f)
	}
	return feedbacks, rows.Err()
}
