package realtime

import (
	"context"
	"encoding/json"
	"log"

	"github.com/go-redis/redis/v8"
	"github.com/resolvedesk/resolvedesk/db"
)

// Subscriber bridges the redis change feed into the hub. Every API
// instance runs one; this is what makes events published on one instance
// reach websocket clients connected to another.
type Subscriber struct {
	Redis *redis.Client
	Hub   *Hub
}

func NewSubscriber(rdb *redis.Client, hub *Hub) *Subscriber {
	return &Subscriber{Redis: rdb, Hub: hub}
}

// Start launches the listener goroutine. It runs until ctx is cancelled.
func (s *Subscriber) Start(ctx context.Context) {
	go func() {
		pubsub := s.Redis.PSubscribe(ctx,
			db.ChannelTicketsComplaints,
			db.ChannelMeetings,
			"admin-notifications",
			"user-notifications-*",
		)
		defer pubsub.Close()

		ch := pubsub.Channel()
		log.Println("Realtime subscriber listening on change feed channels")

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event db.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Printf("WARNING: Bad change feed payload on %s: %v", msg.Channel, err)
					continue
				}
				s.Hub.BroadcastCh <- Broadcast{Channel: msg.Channel, Event: event}
			}
		}
	}()
}
