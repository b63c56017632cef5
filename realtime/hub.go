package realtime

import (
	"log"

	"github.com/resolvedesk/resolvedesk/db"
)

// Broadcast is a change event routed to one logical channel.
type Broadcast struct {
	Channel string
	Event   db.ChangeEvent
}

// Hub fans change events out to connected websocket clients. All client
// bookkeeping happens on the Run goroutine; handlers and the redis
// subscriber talk to it only through channels.
//
// Visibility is enforced here, not on the client: admins receive every
// event on the channels they subscribed to, regular users only events
// scoped to their own user id.
type Hub struct {
	clients map[*Client]bool

	RegisterCh   chan *Client
	UnregisterCh chan *Client
	BroadcastCh  chan Broadcast
}

func NewHub() *Hub {
	return &Hub{
		clients:      make(map[*Client]bool),
		RegisterCh:   make(chan *Client),
		UnregisterCh: make(chan *Client),
		BroadcastCh:  make(chan Broadcast, 64),
	}
}

// Run owns the client set. Call it once, on its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.RegisterCh:
			h.clients[client] = true
			log.Printf("Realtime client connected: user=%s admin=%v", client.UserID, client.IsAdmin)

		case client := <-h.UnregisterCh:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				log.Printf("Realtime client disconnected: user=%s", client.UserID)
			}

		case broadcast := <-h.BroadcastCh:
			h.deliver(broadcast)
		}
	}
}

func (h *Hub) deliver(b Broadcast) {
	for client := range h.clients {
		if !client.wantsChannel(b.Channel) {
			continue
		}
		if !h.visibleTo(client, b) {
			continue
		}
		select {
		case client.Send <- b:
		default:
			// Slow client: drop it rather than stall the hub.
			delete(h.clients, client)
			close(client.Send)
			log.Printf("Realtime client evicted (slow consumer): user=%s", client.UserID)
		}
	}
}

func (h *Hub) visibleTo(client *Client, b Broadcast) bool {
	if client.IsAdmin {
		return true
	}
	return b.Event.UserID != "" && b.Event.UserID == client.UserID
}
