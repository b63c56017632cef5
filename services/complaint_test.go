package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/resolvedesk/resolvedesk/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newComplaintService(t *testing.T) (*ComplaintService, sqlmock.Sqlmock) {
	conn, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	tickets := NewTicketService(conn, nil)
	return NewComplaintService(conn, tickets, nil, nil), mockDB
}

func TestCreateComplaint_CreatesTicketInSameTransaction(t *testing.T) {
	service, mockDB := newComplaintService(t)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("INSERT INTO complaints").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(time.Now(), time.Now()))
	mockDB.ExpectExec("^SAVEPOINT").WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectQuery("SELECT MAX").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
	mockDB.ExpectQuery("INSERT INTO tickets").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(time.Now(), time.Now()))
	mockDB.ExpectExec("RELEASE SAVEPOINT").WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectCommit()

	complaint, err := service.CreateComplaint("user-1", db.CreateComplaintRequest{
		Title:       "Broken AC",
		Description: "The AC on floor 3 stopped working",
		Category:    "facilities",
	})
	require.NoError(t, err)
	assert.Equal(t, db.ComplaintStatusPending, complaint.Status)
	assert.Equal(t, db.ComplaintPriorityMedium, complaint.Priority)
	assert.Equal(t, "user-1", complaint.UserID)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestCreateComplaint_SurvivesTicketNumberCollision(t *testing.T) {
	service, mockDB := newComplaintService(t)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("INSERT INTO complaints").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(time.Now(), time.Now()))
	// A concurrent submission wins the ticket number; the savepoint
	// rollback lets the whole submission retry and commit.
	mockDB.ExpectExec("^SAVEPOINT").WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectQuery("SELECT MAX").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(3))
	mockDB.ExpectQuery("INSERT INTO tickets").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "tickets_ticket_number_key"})
	mockDB.ExpectExec("ROLLBACK TO SAVEPOINT").WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectExec("^SAVEPOINT").WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectQuery("SELECT MAX").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(4))
	mockDB.ExpectQuery("INSERT INTO tickets").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(time.Now(), time.Now()))
	mockDB.ExpectExec("RELEASE SAVEPOINT").WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectCommit()

	complaint, err := service.CreateComplaint("user-1", db.CreateComplaintRequest{
		Title:       "VPN down",
		Description: "Cannot connect since this morning",
		Category:    "it",
	})
	require.NoError(t, err)
	assert.Equal(t, db.ComplaintStatusPending, complaint.Status)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestCreateComplaint_RollsBackWhenTicketFails(t *testing.T) {
	service, mockDB := newComplaintService(t)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("INSERT INTO complaints").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(time.Now(), time.Now()))
	mockDB.ExpectExec("^SAVEPOINT").WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectQuery("SELECT MAX").
		WillReturnError(assert.AnError)
	mockDB.ExpectRollback()

	_, err := service.CreateComplaint("user-1", db.CreateComplaintRequest{
		Title:       "Broken AC",
		Description: "desc",
		Category:    "facilities",
	})
	require.Error(t, err)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestCreateComplaint_InvalidPriority(t *testing.T) {
	service, _ := newComplaintService(t)

	_, err := service.CreateComplaint("user-1", db.CreateComplaintRequest{
		Title:       "x",
		Description: "y",
		Category:    "z",
		Priority:    "critical",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid priority")
}

func TestListComplaints_NonAdminScopedToOwner(t *testing.T) {
	service, mockDB := newComplaintService(t)

	mockDB.ExpectQuery("FROM complaints c").
		WithArgs("user-1").
		WillReturnRows(complaintRows().
			AddRow("c-1", "Title", "Desc", "it", "medium", db.ComplaintStatusPending,
				"user-1", "", time.Now(), time.Now(), "Alice", "alice@example.com"))

	complaints, err := service.ListComplaints("user-1", false, nil)
	require.NoError(t, err)
	require.Len(t, complaints, 1)
	assert.Equal(t, "user-1", complaints[0].UserID)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestListComplaints_AdminSeesAllWithFilters(t *testing.T) {
	service, mockDB := newComplaintService(t)

	mockDB.ExpectQuery("FROM complaints c").
		WithArgs(db.ComplaintStatusResolved).
		WillReturnRows(complaintRows().
			AddRow("c-1", "A", "d", "it", "high", db.ComplaintStatusResolved,
				"user-1", "", time.Now(), time.Now(), "Alice", "alice@example.com").
			AddRow("c-2", "B", "d", "hr", "low", db.ComplaintStatusResolved,
				"user-2", "", time.Now(), time.Now(), "Bob", "bob@example.com"))

	complaints, err := service.ListComplaints("admin-1", true, map[string]interface{}{
		"status": db.ComplaintStatusResolved,
	})
	require.NoError(t, err)
	assert.Len(t, complaints, 2)
}

func TestListComplaints_SearchAndLimit(t *testing.T) {
	service, mockDB := newComplaintService(t)

	mockDB.ExpectQuery("FROM complaints c").
		WithArgs("%printer%", "%printer%", 10).
		WillReturnRows(complaintRows())

	_, err := service.ListComplaints("admin-1", true, map[string]interface{}{
		"search": "printer",
		"limit":  10,
	})
	require.NoError(t, err)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestGetComplaint_NonAdminCannotReadOthers(t *testing.T) {
	service, mockDB := newComplaintService(t)

	// Predicate excludes the row, so the query returns nothing.
	mockDB.ExpectQuery("FROM complaints c").
		WithArgs("c-1", "user-2").
		WillReturnRows(complaintRows())

	_, err := service.GetComplaint("c-1", "user-2", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "complaint not found")
}

func TestUpdateComplaint_LockedAfterAccepted(t *testing.T) {
	service, mockDB := newComplaintService(t)

	mockDB.ExpectQuery("FROM complaints c").
		WillReturnRows(complaintRows().
			AddRow("c-1", "Title", "Desc", "it", "medium", db.ComplaintStatusInProgress,
				"user-1", "", time.Now(), time.Now(), "Alice", "alice@example.com"))

	newTitle := "Edited"
	_, err := service.UpdateComplaint("c-1", "user-1", false, db.UpdateComplaintRequest{Title: &newTitle})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no longer be edited")
}

func TestUpdateComplaintStatus_InvalidStatus(t *testing.T) {
	service, _ := newComplaintService(t)

	_, err := service.UpdateComplaintStatus("c-1", "Done")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid complaint status")
}

func TestDeleteComplaint_OwnerOnlyWhilePending(t *testing.T) {
	service, mockDB := newComplaintService(t)

	mockDB.ExpectQuery("FROM complaints c").
		WillReturnRows(complaintRows().
			AddRow("c-1", "Title", "Desc", "it", "medium", db.ComplaintStatusAccepted,
				"user-1", "", time.Now(), time.Now(), "Alice", "alice@example.com"))

	err := service.DeleteComplaint("c-1", "user-1", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only pending complaints")
}

func complaintRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "description", "category", "priority", "status",
		"user_id", "attachment_url", "created_at", "updated_at",
		"name", "email",
	})
}
