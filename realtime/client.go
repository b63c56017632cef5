package realtime

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Client is one websocket connection registered with the hub.
type Client struct {
	UserID  string
	IsAdmin bool

	// Channels the client subscribed to at connect time. Empty means all.
	Channels map[string]bool

	Conn *websocket.Conn
	Hub  *Hub
	Send chan Broadcast
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string, isAdmin bool, channels []string) *Client {
	channelSet := make(map[string]bool, len(channels))
	for _, ch := range channels {
		channelSet[ch] = true
	}
	return &Client{
		UserID:   userID,
		IsAdmin:  isAdmin,
		Channels: channelSet,
		Conn:     conn,
		Hub:      hub,
		Send:     make(chan Broadcast, 16),
	}
}

func (c *Client) wantsChannel(channel string) bool {
	if len(c.Channels) == 0 {
		return true
	}
	return c.Channels[channel]
}

// Run starts the read and write pumps.
func (c *Client) Run() {
	go c.writePump()
	go c.readPump()
}

// wireEvent is the frame shape written to the websocket.
type wireEvent struct {
	Channel   string                 `json:"channel"`
	EventType string                 `json:"event_type"`
	Table     string                 `json:"table"`
	Row       map[string]interface{} `json:"row"`
	At        time.Time              `json:"at"`
}

// readPump drains the connection so pings and close frames are processed.
// Clients are read-only consumers; inbound frames are discarded.
func (c *Client) readPump() {
	defer func() {
		c.Hub.UnregisterCh <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Realtime read error for user %s: %v", c.UserID, err)
			}
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case broadcast, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			frame := wireEvent{
				Channel:   broadcast.Channel,
				EventType: broadcast.Event.EventType,
				Table:     broadcast.Event.Table,
				Row:       broadcast.Event.Row,
				At:        broadcast.Event.At,
			}
			data, err := json.Marshal(frame)
			if err != nil {
				log.Printf("Realtime encode error for user %s: %v", c.UserID, err)
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
