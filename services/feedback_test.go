package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/resolvedesk/resolvedesk/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFeedbackService(t *testing.T) (*FeedbackService, sqlmock.Sqlmock) {
	conn, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	tickets := NewTicketService(conn, nil)
	return NewFeedbackService(conn, tickets, nil, nil), mockDB
}

func TestCheckEligibility_NotOwner(t *testing.T) {
	service, mockDB := newFeedbackService(t)

	mockDB.ExpectQuery("SELECT user_id, status FROM complaints").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "status"}).
			AddRow("someone-else", db.ComplaintStatusResolved))

	eligibility, err := service.CheckEligibility("complaint-1", "user-1")
	require.NoError(t, err)
	assert.False(t, eligibility.Eligible)
	assert.Contains(t, eligibility.Reason, "owner")
}

func TestCheckEligibility_NotResolved(t *testing.T) {
	service, mockDB := newFeedbackService(t)

	mockDB.ExpectQuery("SELECT user_id, status FROM complaints").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "status"}).
			AddRow("user-1", db.ComplaintStatusInProgress))

	eligibility, err := service.CheckEligibility("complaint-1", "user-1")
	require.NoError(t, err)
	assert.False(t, eligibility.Eligible)
	assert.Contains(t, eligibility.Reason, "resolved")
}

func TestCheckEligibility_AlreadySubmitted(t *testing.T) {
	service, mockDB := newFeedbackService(t)

	mockDB.ExpectQuery("SELECT user_id, status FROM complaints").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "status"}).
			AddRow("user-1", db.ComplaintStatusResolved))
	mockDB.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	eligibility, err := service.CheckEligibility("complaint-1", "user-1")
	require.NoError(t, err)
	assert.False(t, eligibility.Eligible)
	assert.Contains(t, eligibility.Reason, "already submitted")
}

func TestCheckEligibility_ComplaintMissing(t *testing.T) {
	service, mockDB := newFeedbackService(t)

	mockDB.ExpectQuery("SELECT user_id, status FROM complaints").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "status"}))

	eligibility, err := service.CheckEligibility("gone", "user-1")
	require.NoError(t, err)
	assert.False(t, eligibility.Eligible)
	assert.Equal(t, "complaint not found", eligibility.Reason)
}

func TestCheckEligibility_Eligible(t *testing.T) {
	service, mockDB := newFeedbackService(t)

	mockDB.ExpectQuery("SELECT user_id, status FROM complaints").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "status"}).
			AddRow("user-1", db.ComplaintStatusResolved))
	mockDB.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	eligibility, err := service.CheckEligibility("complaint-1", "user-1")
	require.NoError(t, err)
	assert.True(t, eligibility.Eligible)
	assert.Empty(t, eligibility.Reason)
}

func TestSubmitFeedback_ClosesComplaintAndTicketAtomically(t *testing.T) {
	service, mockDB := newFeedbackService(t)

	// Eligibility pass
	mockDB.ExpectQuery("SELECT user_id, status FROM complaints").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "status"}).
			AddRow("user-1", db.ComplaintStatusResolved))
	mockDB.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	// Single transaction: feedback insert, complaint close, ticket close.
	mockDB.ExpectBegin()
	mockDB.ExpectQuery("INSERT INTO feedback").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mockDB.ExpectExec("UPDATE complaints SET status").
		WithArgs(db.ComplaintStatusClosed, "complaint-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectExec("UPDATE tickets").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	feedback, err := service.SubmitFeedback("complaint-1", "user-1", db.SubmitFeedbackRequest{
		Rating:   4,
		Comments: "Handled quickly",
	})
	require.NoError(t, err)
	assert.Equal(t, 4, feedback.Rating)
	assert.Equal(t, "complaint-1", feedback.ComplaintID)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestSubmitFeedback_RollsBackWhenTicketMissing(t *testing.T) {
	service, mockDB := newFeedbackService(t)

	mockDB.ExpectQuery("SELECT user_id, status FROM complaints").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "status"}).
			AddRow("user-1", db.ComplaintStatusResolved))
	mockDB.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("INSERT INTO feedback").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mockDB.ExpectExec("UPDATE complaints SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectExec("UPDATE tickets").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectRollback()

	_, err := service.SubmitFeedback("complaint-1", "user-1", db.SubmitFeedbackRequest{Rating: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ticket not found")
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestSubmitFeedback_InvalidRating(t *testing.T) {
	service, _ := newFeedbackService(t)

	_, err := service.SubmitFeedback("complaint-1", "user-1", db.SubmitFeedbackRequest{Rating: 6})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "between 1 and 5")
}

func TestSubmitFeedback_NotEligible(t *testing.T) {
	service, mockDB := newFeedbackService(t)

	mockDB.ExpectQuery("SELECT user_id, status FROM complaints").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "status"}).
			AddRow("user-1", db.ComplaintStatusPending))

	_, err := service.SubmitFeedback("complaint-1", "user-1", db.SubmitFeedbackRequest{Rating: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not eligible")
}
