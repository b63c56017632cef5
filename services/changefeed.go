package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/resolvedesk/resolvedesk/db"
)

// ChangeFeedService publishes row-level change events to redis pub/sub
// channels. The websocket hub and the ticket synchronizer worker subscribe
// to these channels; publishing is always best-effort and never blocks or
// fails the primary write.
type ChangeFeedService struct {
	Redis *redis.Client
}

func NewChangeFeedService(rdb *redis.Client) *ChangeFeedService {
	return &ChangeFeedService{Redis: rdb}
}

// Publish sends a change event on the named channel.
func (s *ChangeFeedService) Publish(channel string, event db.ChangeEvent) error {
	if s.Redis == nil {
		return nil
	}

	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	if err := s.Redis.Publish(context.Background(), channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change event to %s: %w", channel, err)
	}
	return nil
}

// PublishAsync publishes without blocking the caller. Failures are logged
// and swallowed.
func (s *ChangeFeedService) PublishAsync(channel string, event db.ChangeEvent) {
	if s.Redis == nil {
		return
	}
	go func() {
		if err := s.Publish(channel, event); err != nil {
			log.Printf("WARNING: Async change feed publish failed: %v", err)
		}
	}()
}

// PublishRowChange is a convenience wrapper that builds the event from a row
// snapshot. The row is serialized through JSON so subscribers see the same
// shape the REST API returns.
func (s *ChangeFeedService) PublishRowChange(channel, table, eventType string, row interface{}, userID string) {
	if s.Redis == nil {
		return
	}

	snapshot := map[string]interface{}{}
	if row != nil {
		b, err := json.Marshal(row)
		if err != nil {
			log.Printf("WARNING: Failed to snapshot %s row for change feed: %v", table, err)
			return
		}
		if err := json.Unmarshal(b, &snapshot); err != nil {
			log.Printf("WARNING: Failed to decode %s row snapshot: %v", table, err)
			return
		}
	}

	s.PublishAsync(channel, db.ChangeEvent{
		EventType: eventType,
		Table:     table,
		Row:       snapshot,
		UserID:    userID,
	})
}

// UserNotificationChannel returns the per-user notification channel name.
func UserNotificationChannel(userID string) string {
	return fmt.Sprintf("user-notifications-%s", userID)
}

// AdminNotificationChannel is the shared channel all admin dashboards watch.
const AdminNotificationChannel = "admin-notifications"
