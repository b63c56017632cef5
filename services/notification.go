package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/resolvedesk/resolvedesk/db"
)

// NotificationService owns the two notification surfaces: per-user rows and
// the shared admin feed. Creation validates the type against the closed
// enum; an unknown type is a programming error and is rejected before it
// reaches the database.
type NotificationService struct {
	PG         *sql.DB
	ChangeFeed *ChangeFeedService
	Push       *PushService
}

func NewNotificationService(pg *sql.DB, changeFeed *ChangeFeedService, push *PushService) *NotificationService {
	return &NotificationService{PG: pg, ChangeFeed: changeFeed, Push: push}
}

// CreateUserNotification inserts a notification for one user and fans it
// out to the realtime channel and push, best-effort.
func (s *NotificationService) CreateUserNotification(userID string, notifType db.NotificationType, title, message string, metadata map[string]interface{}) (*db.Notification, error) {
	if !db.ValidNotificationType(notifType) {
		return nil, fmt.Errorf("invalid notification type: %s", notifType)
	}

	metadataJSON, err := marshalMetadata(metadata)
	if err != nil {
		return nil, err
	}

	n := &db.Notification{
		ID:       uuid.New().String(),
		UserID:   userID,
		Type:     notifType,
		Title:    title,
		Message:  message,
		Metadata: metadata,
	}

	err = s.PG.QueryRow(`
		INSERT INTO notifications (id, user_id, type, title, message, metadata, read, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, NOW(), NOW())
		RETURNING created_at, updated_at
	`, n.ID, n.UserID, n.Type, n.Title, n.Message, metadataJSON).Scan(&n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	if s.ChangeFeed != nil {
		s.ChangeFeed.PublishRowChange(UserNotificationChannel(userID), "notifications", db.ChangeEventInsert, n, userID)
	}
	if s.Push != nil {
		go func() {
			if err := s.Push.SendToUser(userID, title, message, stringifyMetadata(metadata)); err != nil {
				log.Printf("WARNING: Push for notification %s failed: %v", n.ID, err)
			}
		}()
	}

	return n, nil
}

// CreateAdminNotification inserts a row on the shared admin feed and fans
// it out to admin devices.
func (s *NotificationService) CreateAdminNotification(notifType db.NotificationType, title, message string, metadata map[string]interface{}) (*db.AdminNotification, error) {
	if !db.ValidNotificationType(notifType) {
		return nil, fmt.Errorf("invalid notification type: %s", notifType)
	}

	metadataJSON, err := marshalMetadata(metadata)
	if err != nil {
		return nil, err
	}

	n := &db.AdminNotification{
		ID:       uuid.New().String(),
		Type:     notifType,
		Title:    title,
		Message:  message,
		Metadata: metadata,
	}

	err = s.PG.QueryRow(`
		INSERT INTO admin_notifications (id, type, title, message, metadata, read, created_at)
		VALUES ($1, $2, $3, $4, $5, false, NOW())
		RETURNING created_at
	`, n.ID, n.Type, n.Title, n.Message, metadataJSON).Scan(&n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create admin notification: %w", err)
	}

	if s.ChangeFeed != nil {
		s.ChangeFeed.PublishRowChange(AdminNotificationChannel, "admin_notifications", db.ChangeEventInsert, n, "")
	}
	if s.Push != nil {
		go func() {
			if err := s.Push.SendToAdmins(title, message, stringifyMetadata(metadata)); err != nil {
				log.Printf("WARNING: Admin push for notification %s failed: %v", n.ID, err)
			}
		}()
	}

	return n, nil
}

// ListUserNotifications returns a user's notifications, newest first.
func (s *NotificationService) ListUserNotifications(userID string, unreadOnly bool, limit int) ([]db.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, user_id, type, title, message, COALESCE(metadata, '{}'), read, created_at, updated_at
		FROM notifications
		WHERE user_id = $1
	`
	if unreadOnly {
		query += " AND read = false"
	}
	query += " ORDER BY created_at DESC LIMIT $2"

	rows, err := s.PG.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []db.Notification{}
	for rows.Next() {
		var n db.Notification
		var metadataRaw []byte
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &metadataRaw, &n.Read, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &n.Metadata); err != nil {
				log.Printf("WARNING: Bad metadata on notification %s: %v", n.ID, err)
			}
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// ListAdminNotifications returns the shared admin feed, newest first.
func (s *NotificationService) ListAdminNotifications(unreadOnly bool, limit int) ([]db.AdminNotification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, type, title, message, COALESCE(metadata, '{}'), read, created_at
		FROM admin_notifications
	`
	if unreadOnly {
		query += " WHERE read = false"
	}
	query += " ORDER BY created_at DESC LIMIT $1"

	rows, err := s.PG.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list admin notifications: %w", err)
	}
	defer rows.Close()

	notifications := []db.AdminNotification{}
	for rows.Next() {
		var n db.AdminNotification
		var metadataRaw []byte
		if err := rows.Scan(&n.ID, &n.Type, &n.Title, &n.Message, &metadataRaw, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan admin notification: %w", err)
		}
		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &n.Metadata); err != nil {
				log.Printf("WARNING: Bad metadata on admin notification %s: %v", n.ID, err)
			}
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkAsRead marks one of the user's notifications read. Marking someone
// else's notification is reported as not found.
func (s *NotificationService) MarkAsRead(notificationID, userID string) error {
	result, err := s.PG.Exec(`
		UPDATE notifications SET read = true, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("notification not found")
	}
	return nil
}

// MarkAllAsRead marks every unread notification of the user read and
// returns how many rows changed.
func (s *NotificationService) MarkAllAsRead(userID string) (int64, error) {
	result, err := s.PG.Exec(`
		UPDATE notifications SET read = true, updated_at = NOW()
		WHERE user_id = $1 AND read = false
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications as read: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	return rowsAffected, nil
}

// MarkAdminAsRead marks one admin-feed row read.
func (s *NotificationService) MarkAdminAsRead(notificationID string) error {
	result, err := s.PG.Exec(`
		UPDATE admin_notifications SET read = true WHERE id = $1
	`, notificationID)
	if err != nil {
		return fmt.Errorf("failed to mark admin notification as read: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("notification not found")
	}
	return nil
}

// GetStats returns total and unread counts for the user's notification
// badge.
func (s *NotificationService) GetStats(userID string) (*db.NotificationStats, error) {
	stats := &db.NotificationStats{}
	err := s.PG.QueryRow(`
		SELECT COUNT(*), COUNT(*) FILTER (WHERE read = false)
		FROM notifications
		WHERE user_id = $1
	`, userID).Scan(&stats.Total, &stats.Unread)
	if err != nil {
		return nil, fmt.Errorf("failed to get notification stats: %w", err)
	}
	return stats, nil
}

// GetAdminStats returns counts for the shared admin feed.
func (s *NotificationService) GetAdminStats() (*db.NotificationStats, error) {
	stats := &db.NotificationStats{}
	err := s.PG.QueryRow(`
		SELECT COUNT(*), COUNT(*) FILTER (WHERE read = false)
		FROM admin_notifications
	`).Scan(&stats.Total, &stats.Unread)
	if err != nil {
		return nil, fmt.Errorf("failed to get admin notification stats: %w", err)
	}
	return stats, nil
}

func marshalMetadata(metadata map[string]interface{}) ([]byte, error) {
	if metadata == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return b, nil
}

func stringifyMetadata(metadata map[string]interface{}) map[string]string {
	data := make(map[string]string, len(metadata))
	for k, v := range metadata {
		data[k] = fmt.Sprintf("%v", v)
	}
	return data
}
