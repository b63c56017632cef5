package realtime

import (
	"testing"

	"github.com/resolvedesk/resolvedesk/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(userID string, isAdmin bool, channels ...string) *Client {
	return NewClient(nil, nil, userID, isAdmin, channels)
}

func broadcastFor(channel, userID string) Broadcast {
	return Broadcast{
		Channel: channel,
		Event: db.ChangeEvent{
			EventType: db.ChangeEventInsert,
			Table:     "tickets",
			Row:       map[string]interface{}{"id": "t-1"},
			UserID:    userID,
		},
	}
}

func TestDeliver_AdminSeesAllEvents(t *testing.T) {
	hub := NewHub()
	admin := testClient("admin-1", true)
	hub.clients[admin] = true

	hub.deliver(broadcastFor(db.ChannelTicketsComplaints, "user-9"))

	require.Len(t, admin.Send, 1)
	got := <-admin.Send
	assert.Equal(t, "user-9", got.Event.UserID)
}

func TestDeliver_UserSeesOnlyOwnEvents(t *testing.T) {
	hub := NewHub()
	owner := testClient("user-1", false)
	other := testClient("user-2", false)
	hub.clients[owner] = true
	hub.clients[other] = true

	hub.deliver(broadcastFor(db.ChannelTicketsComplaints, "user-1"))

	assert.Len(t, owner.Send, 1)
	assert.Len(t, other.Send, 0)
}

func TestDeliver_UnscopedEventHiddenFromUsers(t *testing.T) {
	hub := NewHub()
	user := testClient("user-1", false)
	admin := testClient("admin-1", true)
	hub.clients[user] = true
	hub.clients[admin] = true

	hub.deliver(broadcastFor("admin-notifications", ""))

	assert.Len(t, user.Send, 0)
	assert.Len(t, admin.Send, 1)
}

func TestDeliver_ChannelSubscriptionFilters(t *testing.T) {
	hub := NewHub()
	ticketsOnly := testClient("admin-1", true, db.ChannelTicketsComplaints)
	everything := testClient("admin-2", true)
	hub.clients[ticketsOnly] = true
	hub.clients[everything] = true

	hub.deliver(broadcastFor(db.ChannelMeetings, "user-1"))

	assert.Len(t, ticketsOnly.Send, 0)
	assert.Len(t, everything.Send, 1)
}

func TestDeliver_EvictsSlowClient(t *testing.T) {
	hub := NewHub()
	slow := testClient("admin-1", true)
	hub.clients[slow] = true

	for i := 0; i < cap(slow.Send); i++ {
		slow.Send <- broadcastFor(db.ChannelTicketsComplaints, "")
	}

	hub.deliver(broadcastFor(db.ChannelTicketsComplaints, ""))

	assert.NotContains(t, hub.clients, slow)
	// Channel is closed after the buffered events drain.
	for i := 0; i < cap(slow.Send); i++ {
		<-slow.Send
	}
	_, open := <-slow.Send
	assert.False(t, open)
}

func TestWantsChannel_EmptySetMeansAll(t *testing.T) {
	client := testClient("user-1", false)
	assert.True(t, client.wantsChannel(db.ChannelTicketsComplaints))
	assert.True(t, client.wantsChannel(db.ChannelMeetings))

	scoped := testClient("user-1", false, db.ChannelMeetings)
	assert.True(t, scoped.wantsChannel(db.ChannelMeetings))
	assert.False(t, scoped.wantsChannel(db.ChannelTicketsComplaints))
}
