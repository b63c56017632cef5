package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/resolvedesk/resolvedesk/db"
	"github.com/resolvedesk/resolvedesk/internal/config"
)

// PushService delivers mobile push notifications through Firebase Cloud
// Messaging. The client is optional: when credentials are missing the
// service initializes without one and every send becomes a logged no-op,
// so the API keeps working in environments without Firebase.
type PushService struct {
	PG     *sql.DB
	client *messaging.Client
}

func NewPushService(pg *sql.DB) (*PushService, error) {
	service := &PushService{PG: pg}

	credsFile := config.App.FirebaseCredentialsFile
	if credsFile == "" {
		log.Println("Push service: Firebase credentials not configured, push disabled")
		return service, nil
	}

	opt := option.WithCredentialsFile(credsFile)
	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		log.Printf("Push service: Firebase app not initialized: %v", err)
		return service, nil
	}

	client, err := app.Messaging(context.Background())
	if err != nil {
		log.Printf("Push service: Firebase messaging client not initialized: %v", err)
		return service, nil
	}

	service.client = client
	log.Println("Push service: Firebase messaging initialized")
	return service, nil
}

// SendToUser pushes a notification to a single user's registered device.
// Users without an FCM token are skipped silently.
func (s *PushService) SendToUser(userID, title, body string, data map[string]string) error {
	if s.client == nil {
		return nil
	}

	var fcmToken, userName string
	err := s.PG.QueryRow(
		"SELECT fcm_token, name FROM users WHERE id = $1 AND fcm_token IS NOT NULL AND fcm_token != ''",
		userID,
	).Scan(&fcmToken, &userName)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Printf("No FCM token found for user %s", userID)
			return nil
		}
		return fmt.Errorf("error fetching user FCM token: %w", err)
	}

	message := &messaging.Message{
		Token: fcmToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Icon:         "ic_notification",
				Sound:        "default",
				ChannelID:    "high_importance_channel",
				Priority:     messaging.PriorityHigh,
				DefaultSound: true,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: title,
						Body:  body,
					},
					Badge: intPtr(1),
					Sound: "default",
				},
			},
		},
	}

	response, err := s.client.Send(context.Background(), message)
	if err != nil {
		log.Printf("Error sending push to user %s: %v", userName, err)
		return err
	}

	log.Printf("Sent push notification to %s: %s", userName, response)
	return nil
}

// SendToAdmins pushes a notification to every active admin with a
// registered device.
func (s *PushService) SendToAdmins(title, body string, data map[string]string) error {
	if s.client == nil {
		return nil
	}

	rows, err := s.PG.Query(`
		SELECT id, name, fcm_token
		FROM users
		WHERE role = $1
		AND is_active = true
		AND fcm_token IS NOT NULL
		AND fcm_token != ''
	`, db.RoleAdmin)
	if err != nil {
		return fmt.Errorf("error fetching admin users: %w", err)
	}
	defer rows.Close()

	var tokens []string
	var userNames []string
	for rows.Next() {
		var userID, userName, fcmToken string
		if err := rows.Scan(&userID, &userName, &fcmToken); err != nil {
			continue
		}
		tokens = append(tokens, fcmToken)
		userNames = append(userNames, userName)
	}

	if len(tokens) == 0 {
		log.Println("No admin users with FCM tokens found")
		return nil
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Icon:         "ic_notification",
				Sound:        "default",
				ChannelID:    "high_importance_channel",
				Priority:     messaging.PriorityHigh,
				DefaultSound: true,
			},
		},
	}

	response, err := s.client.SendEachForMulticast(context.Background(), message)
	if err != nil {
		log.Printf("Error sending multicast push: %v", err)
		return err
	}

	log.Printf("Sent push notifications to %d admins (Success: %d, Failed: %d)",
		len(userNames), response.SuccessCount, response.FailureCount)

	for i, resp := range response.Responses {
		if !resp.Success {
			log.Printf("Failed to send to %s: %v", userNames[i], resp.Error)
		}
	}
	return nil
}

// UpdateUserFCMToken stores the device token reported by a mobile client.
func (s *PushService) UpdateUserFCMToken(userID, fcmToken string) error {
	_, err := s.PG.Exec(
		"UPDATE users SET fcm_token = $1, updated_at = NOW() WHERE id = $2",
		fcmToken, userID,
	)
	if err != nil {
		return fmt.Errorf("error updating FCM token: %w", err)
	}
	log.Printf("Updated FCM token for user %s", userID)
	return nil
}

func intPtr(i int) *int {
	return &i
}
