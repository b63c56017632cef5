package workers

import (
	"testing"
	"time"

	"github.com/resolvedesk/resolvedesk/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ticketEvent(eventType, id string, fields map[string]interface{}) db.ChangeEvent {
	row := map[string]interface{}{"id": id}
	for k, v := range fields {
		row[k] = v
	}
	return db.ChangeEvent{
		EventType: eventType,
		Table:     "tickets",
		Row:       row,
	}
}

func TestApplyEvent_InsertThenUpdate(t *testing.T) {
	worker := NewTicketSyncWorker(nil, nil, nil)

	worker.ApplyEvent(ticketEvent(db.ChangeEventInsert, "t-1", map[string]interface{}{
		"ticket_number": "TKT-20260831-0001",
		"complaint_id":  "c-1",
		"status":        db.TicketStatusOpen,
	}))

	ticket, ok := worker.Get("t-1")
	require.True(t, ok)
	assert.Equal(t, "TKT-20260831-0001", ticket.TicketNumber)
	assert.Equal(t, db.TicketStatusOpen, ticket.Status)

	worker.ApplyEvent(ticketEvent(db.ChangeEventUpdate, "t-1", map[string]interface{}{
		"ticket_number": "TKT-20260831-0001",
		"complaint_id":  "c-1",
		"status":        db.TicketStatusResolved,
		"resolved_at":   "2026-08-31T10:00:00Z",
	}))

	ticket, ok = worker.Get("t-1")
	require.True(t, ok)
	assert.Equal(t, db.TicketStatusResolved, ticket.Status)
	require.NotNil(t, ticket.ResolvedAt)
	assert.Equal(t, time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC), ticket.ResolvedAt.UTC())
}

func TestApplyEvent_Delete(t *testing.T) {
	worker := NewTicketSyncWorker(nil, nil, nil)

	worker.ApplyEvent(ticketEvent(db.ChangeEventInsert, "t-1", map[string]interface{}{
		"status": db.TicketStatusOpen,
	}))
	worker.ApplyEvent(ticketEvent(db.ChangeEventDelete, "t-1", nil))

	_, ok := worker.Get("t-1")
	assert.False(t, ok)
}

func TestApplyEvent_IgnoresOtherTables(t *testing.T) {
	worker := NewTicketSyncWorker(nil, nil, nil)

	worker.ApplyEvent(db.ChangeEvent{
		EventType: db.ChangeEventInsert,
		Table:     "complaints",
		Row:       map[string]interface{}{"id": "c-1"},
	})

	assert.Empty(t, worker.Snapshot())
}

func TestApplyEvent_MissingIDSkipped(t *testing.T) {
	worker := NewTicketSyncWorker(nil, nil, nil)

	worker.ApplyEvent(db.ChangeEvent{
		EventType: db.ChangeEventInsert,
		Table:     "tickets",
		Row:       map[string]interface{}{"status": db.TicketStatusOpen},
	})

	assert.Empty(t, worker.Snapshot())
}

func TestApplyEvent_UnknownEventTypeLeavesCache(t *testing.T) {
	worker := NewTicketSyncWorker(nil, nil, nil)

	worker.ApplyEvent(ticketEvent(db.ChangeEventInsert, "t-1", map[string]interface{}{
		"status": db.TicketStatusOpen,
	}))
	worker.ApplyEvent(ticketEvent("TRUNCATE", "t-1", nil))

	ticket, ok := worker.Get("t-1")
	require.True(t, ok)
	assert.Equal(t, db.TicketStatusOpen, ticket.Status)
}

func TestTicketFromRow_BadResolvedAtIgnored(t *testing.T) {
	ticket := ticketFromRow(map[string]interface{}{
		"id":          "t-1",
		"resolved_at": "yesterday",
	})
	assert.Equal(t, "t-1", ticket.ID)
	assert.Nil(t, ticket.ResolvedAt)
}

func TestSnapshot_IsACopy(t *testing.T) {
	worker := NewTicketSyncWorker(nil, nil, nil)
	worker.ApplyEvent(ticketEvent(db.ChangeEventInsert, "t-1", map[string]interface{}{
		"status": db.TicketStatusOpen,
	}))

	snap := worker.Snapshot()
	delete(snap, "t-1")

	_, ok := worker.Get("t-1")
	assert.True(t, ok)
}
