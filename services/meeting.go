package services

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/resolvedesk/resolvedesk/db"
)

// MeetingService schedules resolution meetings between an admin and a
// complainant. Visibility is enforced server-side: listing queries carry
// the invited-user predicate so a user can never see meetings they were
// not invited to.
type MeetingService struct {
	PG            *sql.DB
	Users         *UserService
	Notifications *NotificationService
	ChangeFeed    *ChangeFeedService
}

func NewMeetingService(pg *sql.DB, users *UserService, notifications *NotificationService, changeFeed *ChangeFeedService) *MeetingService {
	return &MeetingService{PG: pg, Users: users, Notifications: notifications, ChangeFeed: changeFeed}
}

// ScheduleMeeting runs the full scheduling flow: the invited user must
// exist; a referenced complaint must belong to the invited user (a missing
// complaint is logged and the reference dropped, since the complaint may
// have been deleted between picking and submitting); the scheduling
// account is promoted to admin if it is not one already; then the meeting
// row is inserted and the invitation notification fanned out.
func (s *MeetingService) ScheduleMeeting(adminID string, req db.ScheduleMeetingRequest) (*db.Meeting, error) {
	if req.ScheduleTime.Before(time.Now()) {
		return nil, fmt.Errorf("schedule time must be in the future")
	}

	invited, err := s.Users.GetUser(req.InvitedUserID)
	if err != nil {
		return nil, fmt.Errorf("invited user not found")
	}

	complaintID := req.ComplaintID
	if complaintID != "" {
		var ownerID string
		err := s.PG.QueryRow("SELECT user_id FROM complaints WHERE id = $1", complaintID).Scan(&ownerID)
		if err == sql.ErrNoRows {
			log.Printf("WARNING: Meeting references missing complaint %s, scheduling without it", complaintID)
			complaintID = ""
		} else if err != nil {
			return nil, fmt.Errorf("failed to check complaint: %w", err)
		} else if ownerID != req.InvitedUserID {
			return nil, fmt.Errorf("complaint does not belong to invited user")
		}
	}

	tx, err := s.PG.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.Users.EnsureAdminRole(tx, adminID); err != nil {
		return nil, fmt.Errorf("failed to ensure admin role: %w", err)
	}

	m := &db.Meeting{
		ID:            uuid.New().String(),
		ComplaintID:   complaintID,
		AdminID:       adminID,
		InvitedUserID: req.InvitedUserID,
		Title:         req.Title,
		Description:   req.Description,
		ScheduleTime:  req.ScheduleTime,
		MeetLink:      req.MeetLink,
		Status:        db.MeetingStatusScheduled,
	}

	err = tx.QueryRow(`
		INSERT INTO meetings (id, complaint_id, admin_id, invited_user_id, title, description, schedule_time, meet_link, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING created_at, updated_at
	`, m.ID, nullIfEmptyStr(m.ComplaintID), m.AdminID, m.InvitedUserID,
		m.Title, m.Description, m.ScheduleTime, m.MeetLink, m.Status).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create meeting: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit meeting: %w", err)
	}

	m.InvitedUserName = invited.Name

	if s.ChangeFeed != nil {
		s.ChangeFeed.PublishRowChange(db.ChannelMeetings, "meetings", db.ChangeEventInsert, m, m.InvitedUserID)
	}

	if s.Notifications != nil {
		go func() {
			_, err := s.Notifications.CreateUserNotification(
				m.InvitedUserID,
				db.NotificationMeetingScheduled,
				"Meeting scheduled",
				fmt.Sprintf("A meeting %q has been scheduled with you.", m.Title),
				map[string]interface{}{
					"meeting_id":    m.ID,
					"meet_link":     m.MeetLink,
					"schedule_time": m.ScheduleTime.Format(time.RFC3339),
				},
			)
			if err != nil {
				log.Printf("WARNING: Failed to notify user %s of meeting %s: %v", m.InvitedUserID, m.ID, err)
			}
		}()
	}

	return m, nil
}

// GetMeeting returns one meeting visible to the requester.
func (s *MeetingService) GetMeeting(id, requesterID string, isAdmin bool) (*db.Meeting, error) {
	query := meetingSelect + " WHERE m.id = $1"
	args := []interface{}{id}
	if !isAdmin {
		query += " AND m.invited_user_id = $2"
		args = append(args, requesterID)
	}

	row := s.PG.QueryRow(query, args...)
	m, err := scanMeeting(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("meeting not found")
		}
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}
	return m, nil
}

// ListMeetings returns meetings visible to the requester, soonest first.
// Admins see all meetings; users only those they are invited to.
func (s *MeetingService) ListMeetings(requesterID string, isAdmin bool, status string) ([]db.Meeting, error) {
	query := meetingSelect + " WHERE 1=1"
	args := []interface{}{}
	argIndex := 1

	if !isAdmin {
		query += fmt.Sprintf(" AND m.invited_user_id = $%d", argIndex)
		args = append(args, requesterID)
		argIndex++
	}
	if status != "" {
		query += fmt.Sprintf(" AND m.status = $%d", argIndex)
		args = append(args, status)
		argIndex++
	}
	query += " ORDER BY m.schedule_time ASC"

	rows, err := s.PG.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	defer rows.Close()

	meetings := []db.Meeting{}
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		meetings = append(meetings, *m)
	}
	return meetings, rows.Err()
}

// UpdateMeetingStatus marks a meeting completed or cancelled. Moving a
// meeting back to scheduled is not supported; reschedule by creating a new
// meeting.
func (s *MeetingService) UpdateMeetingStatus(id, status string) (*db.Meeting, error) {
	switch status {
	case db.MeetingStatusCompleted, db.MeetingStatusCancelled:
	default:
		return nil, fmt.Errorf("invalid meeting status: %s", status)
	}

	result, err := s.PG.Exec(`
		UPDATE meetings SET status = $1, updated_at = NOW() WHERE id = $2
	`, status, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update meeting status: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return nil, fmt.Errorf("meeting not found")
	}

	m, err := s.GetMeeting(id, "", true)
	if err != nil {
		return nil, err
	}
	if s.ChangeFeed != nil {
		s.ChangeFeed.PublishRowChange(db.ChannelMeetings, "meetings", db.ChangeEventUpdate, m, m.InvitedUserID)
	}
	return m, nil
}

// DeleteMeeting removes a meeting and notifies the invited user of the
// cancellation. The row is read first so the notification survives the
// delete.
func (s *MeetingService) DeleteMeeting(id string) error {
	m, err := s.GetMeeting(id, "", true)
	if err != nil {
		return err
	}

	result, err := s.PG.Exec("DELETE FROM meetings WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete meeting: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("meeting not found")
	}

	if s.ChangeFeed != nil {
		s.ChangeFeed.PublishRowChange(db.ChannelMeetings, "meetings", db.ChangeEventDelete, m, m.InvitedUserID)
	}

	if s.Notifications != nil {
		go func() {
			_, err := s.Notifications.CreateUserNotification(
				m.InvitedUserID,
				db.NotificationMeetingCancelled,
				"Meeting cancelled",
				fmt.Sprintf("The meeting %q has been cancelled.", m.Title),
				map[string]interface{}{
					"meeting_id": m.ID,
				},
			)
			if err != nil {
				log.Printf("WARNING: Failed to notify user %s of cancelled meeting %s: %v", m.InvitedUserID, m.ID, err)
			}
		}()
	}

	return nil
}

const meetingSelect = `
	SELECT m.id, m.complaint_id, m.admin_id, m.invited_user_id,
	       m.title, COALESCE(m.description, ''), m.schedule_time, m.meet_link, m.status,
	       m.created_at, m.updated_at,
	       iu.name, au.name, COALESCE(c.title, '')
	FROM meetings m
	JOIN users iu ON iu.id = m.invited_user_id
	JOIN users au ON au.id = m.admin_id
	LEFT JOIN complaints c ON c.id = m.complaint_id
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMeeting(row rowScanner) (*db.Meeting, error) {
	m := &db.Meeting{}
	var complaintID sql.NullString
	err := row.Scan(&m.ID, &complaintID, &m.AdminID, &m.InvitedUserID,
		&m.Title, &m.Description, &m.ScheduleTime, &m.MeetLink, &m.Status,
		&m.CreatedAt, &m.UpdatedAt,
		&m.InvitedUserName, &m.AdminName, &m.ComplaintTitle)
	if err != nil {
		return nil, err
	}
	m.ComplaintID = complaintID.String
	return m, nil
}
