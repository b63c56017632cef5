package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/resolvedesk/resolvedesk/db"
)

// DashboardService aggregates the admin dashboard numbers. Everything here
// is read-only.
type DashboardService struct {
	PG *sql.DB
}

func NewDashboardService(pg *sql.DB) *DashboardService {
	return &DashboardService{PG: pg}
}

// GetStats returns the headline counters for the admin dashboard.
func (s *DashboardService) GetStats() (*db.DashboardStats, error) {
	stats := &db.DashboardStats{
		ComplaintsByStatus: map[string]int{},
		TicketsByStatus:    map[string]int{},
	}

	rows, err := s.PG.Query("SELECT status, COUNT(*) FROM complaints GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count complaints: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan complaint counts: %w", err)
		}
		stats.ComplaintsByStatus[status] = count
		stats.TotalComplaints += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ticketRows, err := s.PG.Query("SELECT status, COUNT(*) FROM tickets GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count tickets: %w", err)
	}
	defer ticketRows.Close()
	for ticketRows.Next() {
		var status string
		var count int
		if err := ticketRows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan ticket counts: %w", err)
		}
		stats.TicketsByStatus[status] = count
		stats.TotalTickets += count
	}
	if err := ticketRows.Err(); err != nil {
		return nil, err
	}

	err = s.PG.QueryRow(
		"SELECT COUNT(*) FROM meetings WHERE status = $1", db.MeetingStatusScheduled,
	).Scan(&stats.ScheduledMeetings)
	if err != nil {
		return nil, fmt.Errorf("failed to count meetings: %w", err)
	}

	err = s.PG.QueryRow(
		"SELECT COALESCE(AVG(rating), 0), COUNT(*) FROM feedback",
	).Scan(&stats.AverageRating, &stats.FeedbackCount)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate feedback: %w", err)
	}

	return stats, nil
}

// GetTrends returns daily complaint counts plus category and priority
// breakdowns over the requested window. Accepted ranges are 7d, 30d and
// 90d.
func (s *DashboardService) GetTrends(timeRange string) (*db.TrendsResponse, error) {
	var days int
	switch timeRange {
	case "7d":
		days = 7
	case "30d":
		days = 30
	case "90d":
		days = 90
	default:
		return nil, fmt.Errorf("invalid time range: %s (expected 7d, 30d or 90d)", timeRange)
	}

	since := time.Now().UTC().AddDate(0, 0, -days)

	resp := &db.TrendsResponse{
		DailyCounts: []db.TrendDataPoint{},
		ByCategory:  map[string]int{},
		ByPriority:  map[string]int{},
		TimeRange:   timeRange,
	}

	rows, err := s.PG.Query(`
		SELECT DATE(created_at) AS day,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE status = $1),
		       COUNT(*) FILTER (WHERE status = $2),
		       COUNT(*) FILTER (WHERE status = $3)
		FROM complaints
		WHERE created_at >= $4
		GROUP BY day
		ORDER BY day
	`, db.ComplaintStatusPending, db.ComplaintStatusResolved, db.ComplaintStatusClosed, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query complaint trends: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var day time.Time
		var point db.TrendDataPoint
		if err := rows.Scan(&day, &point.Total, &point.Pending, &point.Resolved, &point.Closed); err != nil {
			return nil, fmt.Errorf("failed to scan trend point: %w", err)
		}
		point.Date = day.Format("2006-01-02")
		resp.DailyCounts = append(resp.DailyCounts, point)
		resp.TotalComplaints += point.Total
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	catRows, err := s.PG.Query(`
		SELECT category, COUNT(*) FROM complaints WHERE created_at >= $1 GROUP BY category
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query category breakdown: %w", err)
	}
	defer catRows.Close()
	for catRows.Next() {
		var category string
		var count int
		if err := catRows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan category breakdown: %w", err)
		}
		resp.ByCategory[category] = count
	}
	if err := catRows.Err(); err != nil {
		return nil, err
	}

	priRows, err := s.PG.Query(`
		SELECT priority, COUNT(*) FROM complaints WHERE created_at >= $1 GROUP BY priority
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query priority breakdown: %w", err)
	}
	defer priRows.Close()
	for priRows.Next() {
		var priority string
		var count int
		if err := priRows.Scan(&priority, &count); err != nil {
			return nil, fmt.Errorf("failed to scan priority breakdown: %w", err)
		}
		resp.ByPriority[priority] = count
	}
	if err := priRows.Err(); err != nil {
		return nil, err
	}

	return resp, nil
}
