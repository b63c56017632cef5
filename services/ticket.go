package services

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/resolvedesk/resolvedesk/db"
)

// TicketService manages the internal work items that track complaints.
// Every complaint owns exactly one ticket; tickets are created inside the
// complaint transaction on the happy path, and EnsureTicketsForAllComplaints
// backfills any holes left by historical data or failed runs.
type TicketService struct {
	PG         *sql.DB
	ChangeFeed *ChangeFeedService
}

func NewTicketService(pg *sql.DB, changeFeed *ChangeFeedService) *TicketService {
	return &TicketService{PG: pg, ChangeFeed: changeFeed}
}

const ticketNumberRetries = 5

// CreateTicketTx inserts a ticket for the complaint inside the caller's
// transaction. Ticket numbers are TKT-YYYYMMDD-NNNN with a per-day
// sequence; the unique constraint on ticket_number is the arbiter under
// concurrency. Each attempt runs under a savepoint so a unique violation
// aborts only the attempt, not the caller's transaction, and the next
// attempt can recompute the number.
func (s *TicketService) CreateTicketTx(tx *sql.Tx, complaintID string) (*db.Ticket, error) {
	var lastErr error
	for attempt := 0; attempt < ticketNumberRetries; attempt++ {
		if _, err := tx.Exec("SAVEPOINT ticket_number"); err != nil {
			return nil, fmt.Errorf("failed to set savepoint: %w", err)
		}

		number, err := s.nextTicketNumberTx(tx)
		if err != nil {
			return nil, err
		}

		t := &db.Ticket{
			ID:           uuid.New().String(),
			TicketNumber: number,
			ComplaintID:  complaintID,
			Status:       db.TicketStatusOpen,
		}

		err = tx.QueryRow(`
			INSERT INTO tickets (id, ticket_number, complaint_id, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())
			RETURNING created_at, updated_at
		`, t.ID, t.TicketNumber, t.ComplaintID, t.Status).Scan(&t.CreatedAt, &t.UpdatedAt)
		if err == nil {
			if _, err := tx.Exec("RELEASE SAVEPOINT ticket_number"); err != nil {
				return nil, fmt.Errorf("failed to release savepoint: %w", err)
			}
			return t, nil
		}

		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			// Clear the aborted subtransaction so the caller's tx stays
			// usable.
			if _, rbErr := tx.Exec("ROLLBACK TO SAVEPOINT ticket_number"); rbErr != nil {
				return nil, fmt.Errorf("failed to roll back to savepoint: %w", rbErr)
			}
			if pqErr.Constraint == "tickets_complaint_id_key" {
				return nil, fmt.Errorf("ticket already exists for complaint")
			}
			// Lost the race on the ticket number, retry with a new one.
			lastErr = err
			continue
		}
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}
	return nil, fmt.Errorf("failed to allocate ticket number after %d attempts: %w", ticketNumberRetries, lastErr)
}

func (s *TicketService) nextTicketNumberTx(tx *sql.Tx) (string, error) {
	datePart := time.Now().UTC().Format("20060102")
	prefix := fmt.Sprintf("TKT-%s-", datePart)

	var maxSeq sql.NullInt64
	err := tx.QueryRow(`
		SELECT MAX(CAST(RIGHT(ticket_number, 4) AS INTEGER))
		FROM tickets
		WHERE ticket_number LIKE $1 || '%'
	`, prefix).Scan(&maxSeq)
	if err != nil {
		return "", fmt.Errorf("failed to compute next ticket number: %w", err)
	}

	next := int64(1)
	if maxSeq.Valid {
		next = maxSeq.Int64 + 1
	}
	return fmt.Sprintf("%s%04d", prefix, next), nil
}

// EnsureTicketsForAllComplaints creates tickets for complaints that lack
// one. Each missing ticket is handled in its own transaction so a single
// failure does not block the rest; the count of created tickets is
// returned along with the first error seen, if any.
func (s *TicketService) EnsureTicketsForAllComplaints() (int, error) {
	rows, err := s.PG.Query(`
		SELECT c.id, c.user_id
		FROM complaints c
		LEFT JOIN tickets t ON t.complaint_id = c.id
		WHERE t.id IS NULL
		ORDER BY c.created_at
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to find complaints without tickets: %w", err)
	}
	defer rows.Close()

	type orphan struct {
		complaintID string
		ownerID     string
	}
	var missing []orphan
	for rows.Next() {
		var o orphan
		if err := rows.Scan(&o.complaintID, &o.ownerID); err != nil {
			return 0, fmt.Errorf("failed to scan complaint id: %w", err)
		}
		missing = append(missing, o)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	created := 0
	var firstErr error
	for _, o := range missing {
		ticket, err := s.createTicketForComplaint(o.complaintID)
		if err != nil {
			log.Printf("WARNING: Failed to backfill ticket for complaint %s: %v", o.complaintID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		created++
		if s.ChangeFeed != nil {
			s.ChangeFeed.PublishRowChange(db.ChannelTicketsComplaints, "tickets", db.ChangeEventInsert, ticket, o.ownerID)
		}
	}

	if created > 0 {
		log.Printf("Backfilled %d tickets for complaints without one", created)
	}
	return created, firstErr
}

func (s *TicketService) createTicketForComplaint(complaintID string) (*db.Ticket, error) {
	tx, err := s.PG.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ticket, err := s.CreateTicketTx(tx, complaintID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit ticket: %w", err)
	}
	return ticket, nil
}

// GetTicket returns one ticket with its complaint context joined in.
func (s *TicketService) GetTicket(id string) (*db.Ticket, error) {
	t := &db.Ticket{}
	var assignedTo, resolutionNotes, assignedToName sql.NullString
	var resolvedAt sql.NullTime

	err := s.PG.QueryRow(`
		SELECT t.id, t.ticket_number, t.complaint_id, t.status,
		       t.assigned_to, t.resolution_notes, t.resolved_at,
		       t.created_at, t.updated_at,
		       c.title, c.status, u.name
		FROM tickets t
		JOIN complaints c ON c.id = t.complaint_id
		LEFT JOIN users u ON u.id = t.assigned_to
		WHERE t.id = $1
	`, id).Scan(&t.ID, &t.TicketNumber, &t.ComplaintID, &t.Status,
		&assignedTo, &resolutionNotes, &resolvedAt,
		&t.CreatedAt, &t.UpdatedAt,
		&t.ComplaintTitle, &t.ComplaintStatus, &assignedToName)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("ticket not found")
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	t.AssignedTo = assignedTo.String
	t.ResolutionNotes = resolutionNotes.String
	t.AssignedToName = assignedToName.String
	if resolvedAt.Valid {
		t.ResolvedAt = &resolvedAt.Time
	}
	return t, nil
}

// GetTicketByComplaint returns the ticket tracking a complaint.
func (s *TicketService) GetTicketByComplaint(complaintID string) (*db.Ticket, error) {
	var id string
	err := s.PG.QueryRow("SELECT id FROM tickets WHERE complaint_id = $1", complaintID).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("ticket not found")
		}
		return nil, fmt.Errorf("failed to look up ticket: %w", err)
	}
	return s.GetTicket(id)
}

// ListTickets returns tickets with optional filters. Supported filter keys:
// status, assigned_to, complaint_id.
func (s *TicketService) ListTickets(filters map[string]interface{}) ([]db.Ticket, error) {
	query := `
		SELECT t.id, t.ticket_number, t.complaint_id, t.status,
		       t.assigned_to, t.resolution_notes, t.resolved_at,
		       t.created_at, t.updated_at,
		       c.title, c.status, COALESCE(u.name, '')
		FROM tickets t
		JOIN complaints c ON c.id = t.complaint_id
		LEFT JOIN users u ON u.id = t.assigned_to
		WHERE 1=1
	`
	args := []interface{}{}
	argIndex := 1

	if status, ok := filters["status"]; ok {
		query += fmt.Sprintf(" AND t.status = $%d", argIndex)
		args = append(args, status)
		argIndex++
	}
	if assignedTo, ok := filters["assigned_to"]; ok {
		query += fmt.Sprintf(" AND t.assigned_to = $%d", argIndex)
		args = append(args, assignedTo)
		argIndex++
	}
	if complaintID, ok := filters["complaint_id"]; ok {
		query += fmt.Sprintf(" AND t.complaint_id = $%d", argIndex)
		args = append(args, complaintID)
		argIndex++
	}
	query += " ORDER BY t.created_at DESC"

	rows, err := s.PG.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	tickets := []db.Ticket{}
	for rows.Next() {
		var t db.Ticket
		var assignedTo, resolutionNotes sql.NullString
		var resolvedAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.TicketNumber, &t.ComplaintID, &t.Status,
			&assignedTo, &resolutionNotes, &resolvedAt,
			&t.CreatedAt, &t.UpdatedAt,
			&t.ComplaintTitle, &t.ComplaintStatus, &t.AssignedToName); err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		t.AssignedTo = assignedTo.String
		t.ResolutionNotes = resolutionNotes.String
		if resolvedAt.Valid {
			t.ResolvedAt = &resolvedAt.Time
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// UpdateTicketStatus moves a ticket through its lifecycle. Entering
// resolved or closed stamps resolved_at exactly once; reopening clears it.
func (s *TicketService) UpdateTicketStatus(id string, req db.UpdateTicketStatusRequest) (*db.Ticket, error) {
	if !db.ValidTicketStatus(req.Status) {
		return nil, fmt.Errorf("invalid ticket status: %s", req.Status)
	}

	result, err := s.PG.Exec(`
		UPDATE tickets
		SET status = $1,
		    assigned_to = COALESCE($2, assigned_to),
		    resolution_notes = COALESCE($3, resolution_notes),
		    resolved_at = CASE
		        WHEN $1 IN ('resolved', 'closed') AND resolved_at IS NULL THEN NOW()
		        WHEN $1 NOT IN ('resolved', 'closed') THEN NULL
		        ELSE resolved_at
		    END,
		    updated_at = NOW()
		WHERE id = $4
	`, req.Status, nullIfEmptyStr(req.AssignedTo), nullIfEmptyStr(req.ResolutionNotes), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update ticket: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return nil, fmt.Errorf("ticket not found")
	}

	ticket, err := s.GetTicket(id)
	if err != nil {
		return nil, err
	}

	if s.ChangeFeed != nil {
		var ownerID string
		if err := s.PG.QueryRow("SELECT user_id FROM complaints WHERE id = $1", ticket.ComplaintID).Scan(&ownerID); err != nil {
			log.Printf("WARNING: Failed to resolve complaint owner for ticket %s: %v", id, err)
		}
		s.ChangeFeed.PublishRowChange(db.ChannelTicketsComplaints, "tickets", db.ChangeEventUpdate, ticket, ownerID)
	}
	return ticket, nil
}

// CloseTicketForComplaintTx closes the complaint's ticket inside the
// caller's transaction, recording the resolution note. Used by the
// feedback loop.
func (s *TicketService) CloseTicketForComplaintTx(tx *sql.Tx, complaintID, resolutionNote string) error {
	result, err := tx.Exec(`
		UPDATE tickets
		SET status = $1,
		    resolution_notes = $2,
		    resolved_at = COALESCE(resolved_at, NOW()),
		    updated_at = NOW()
		WHERE complaint_id = $3
	`, db.TicketStatusClosed, resolutionNote, complaintID)
	if err != nil {
		return fmt.Errorf("failed to close ticket: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("ticket not found")
	}
	return nil
}
