package workers

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/resolvedesk/resolvedesk/db"
	"github.com/resolvedesk/resolvedesk/services"
)

// TicketSyncWorker keeps an in-memory view of tickets in sync with the
// database. It applies change feed events incrementally as they arrive and
// runs a periodic full reconcile to repair anything a missed event left
// behind; the reconcile pass also backfills tickets for complaints that
// lost theirs.
type TicketSyncWorker struct {
	PG      *sql.DB
	Redis   *redis.Client
	Tickets *services.TicketService

	mu    sync.RWMutex
	cache map[string]db.Ticket // ticket id -> last known row

	reconcileInterval time.Duration
}

func NewTicketSyncWorker(pg *sql.DB, rdb *redis.Client, tickets *services.TicketService) *TicketSyncWorker {
	return &TicketSyncWorker{
		PG:                pg,
		Redis:             rdb,
		Tickets:           tickets,
		cache:             make(map[string]db.Ticket),
		reconcileInterval: 5 * time.Minute,
	}
}

// Start runs the worker until ctx is cancelled. The change feed listener
// and the reconcile ticker run on their own goroutines.
func (w *TicketSyncWorker) Start(ctx context.Context) {
	log.Println("Ticket sync worker started")

	// Prime the cache before consuming events.
	if err := w.Reconcile(); err != nil {
		log.Printf("Ticket sync: initial reconcile failed: %v", err)
	}

	go w.listenChangeFeed(ctx)
	go w.reconcileLoop(ctx)
}

func (w *TicketSyncWorker) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(w.reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Reconcile(); err != nil {
				log.Printf("Ticket sync: reconcile failed: %v", err)
			}
		}
	}
}

func (w *TicketSyncWorker) listenChangeFeed(ctx context.Context) {
	if w.Redis == nil {
		log.Println("Ticket sync: redis not configured, running on reconcile only")
		return
	}

	pubsub := w.Redis.Subscribe(ctx, db.ChannelTicketsComplaints)
	defer pubsub.Close()

	ch := pubsub.Channel()
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
				log.Printf("Ticket sync: bad change event payload: %v", err)
				continue
			}
			w.ApplyEvent(event)
		}
	}
}

// ApplyEvent merges one change event into the in-memory view. Events for
// tables other than tickets are ignored here; complaint deletes arrive as
// ticket deletes through the cascade and a later reconcile.
func (w *TicketSyncWorker) ApplyEvent(event db.ChangeEvent) {
	if event.Table != "tickets" {
		return
	}

	id, _ := event.Row["id"].(string)
	if id == "" {
		log.Printf("Ticket sync: %s event without ticket id, skipping", event.EventType)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch event.EventType {
	case db.ChangeEventInsert, db.ChangeEventUpdate:
		ticket := ticketFromRow(event.Row)
		w.cache[id] = ticket
	case db.ChangeEventDelete:
		delete(w.cache, id)
	default:
		log.Printf("Ticket sync: unknown event type %q for ticket %s", event.EventType, id)
	}
}

func ticketFromRow(row map[string]interface{}) db.Ticket {
	t := db.Ticket{}
	if v, ok := row["id"].(string); ok {
		t.ID = v
	}
	if v, ok := row["ticket_number"].(string); ok {
		t.TicketNumber = v
	}
	if v, ok := row["complaint_id"].(string); ok {
		t.ComplaintID = v
	}
	if v, ok := row["status"].(string); ok {
		t.Status = v
	}
	if v, ok := row["assigned_to"].(string); ok {
		t.AssignedTo = v
	}
	if v, ok := row["resolution_notes"].(string); ok {
		t.ResolutionNotes = v
	}
	if v, ok := row["resolved_at"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			t.ResolvedAt = &ts
		}
	}
	return t
}

// Reconcile replaces the in-memory view with the database truth and
// backfills missing tickets. Safe to call concurrently with ApplyEvent.
func (w *TicketSyncWorker) Reconcile() error {
	if created, err := w.Tickets.EnsureTicketsForAllComplaints(); err != nil {
		// Partial backfill is fine, the next pass retries the rest.
		log.Printf("Ticket sync: backfill created %d tickets with errors: %v", created, err)
	}

	tickets, err := w.Tickets.ListTickets(nil)
	if err != nil {
		return err
	}

	fresh := make(map[string]db.Ticket, len(tickets))
	for _, t := range tickets {
		fresh[t.ID] = t
	}

	w.mu.Lock()
	stale := len(w.cache) - len(fresh)
	w.cache = fresh
	w.mu.Unlock()

	if stale > 0 {
		log.Printf("Ticket sync: reconcile dropped %d stale entries", stale)
	}
	log.Printf("Ticket sync: reconciled %d tickets", len(fresh))
	return nil
}

// Snapshot returns a copy of the current in-memory view.
func (w *TicketSyncWorker) Snapshot() map[string]db.Ticket {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make(map[string]db.Ticket, len(w.cache))
	for id, t := range w.cache {
		out[id] = t
	}
	return out
}

// Get returns one ticket from the in-memory view.
func (w *TicketSyncWorker) Get(id string) (db.Ticket, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	t, ok := w.cache[id]
	return t, ok
}
