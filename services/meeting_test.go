package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/resolvedesk/resolvedesk/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMeetingService(t *testing.T) (*MeetingService, sqlmock.Sqlmock) {
	conn, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewMeetingService(conn, NewUserService(conn), nil, nil), mockDB
}

func userRow(id, name, role string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "email", "role", "fcm_token", "is_active", "created_at", "updated_at",
	}).AddRow(id, name, name+"@example.com", role, nil, true, time.Now(), time.Now())
}

func TestScheduleMeeting_RejectsPastTime(t *testing.T) {
	service, _ := newMeetingService(t)

	_, err := service.ScheduleMeeting("admin-1", db.ScheduleMeetingRequest{
		InvitedUserID: "user-1",
		Title:         "Review",
		ScheduleTime:  time.Now().Add(-time.Hour),
		MeetLink:      "https://meet.example.com/abc",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule time must be in the future")
}

func TestScheduleMeeting_InvitedUserMissing(t *testing.T) {
	service, mockDB := newMeetingService(t)

	mockDB.ExpectQuery("FROM users").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "email", "role", "fcm_token", "is_active", "created_at", "updated_at",
		}))

	_, err := service.ScheduleMeeting("admin-1", db.ScheduleMeetingRequest{
		InvitedUserID: "ghost",
		Title:         "Review",
		ScheduleTime:  time.Now().Add(time.Hour),
		MeetLink:      "https://meet.example.com/abc",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invited user not found")
}

func TestScheduleMeeting_ComplaintOwnerMismatch(t *testing.T) {
	service, mockDB := newMeetingService(t)

	mockDB.ExpectQuery("FROM users").
		WithArgs("user-1").
		WillReturnRows(userRow("user-1", "Alice", db.RoleUser))
	mockDB.ExpectQuery("SELECT user_id FROM complaints").
		WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("user-2"))

	_, err := service.ScheduleMeeting("admin-1", db.ScheduleMeetingRequest{
		ComplaintID:   "c-1",
		InvitedUserID: "user-1",
		Title:         "Review",
		ScheduleTime:  time.Now().Add(time.Hour),
		MeetLink:      "https://meet.example.com/abc",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "complaint does not belong to invited user")
}

func TestScheduleMeeting_MissingComplaintDropped(t *testing.T) {
	service, mockDB := newMeetingService(t)

	mockDB.ExpectQuery("FROM users").
		WithArgs("user-1").
		WillReturnRows(userRow("user-1", "Alice", db.RoleUser))
	mockDB.ExpectQuery("SELECT user_id FROM complaints").
		WithArgs("c-gone").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mockDB.ExpectBegin()
	mockDB.ExpectExec("UPDATE users SET role").
		WithArgs("admin-1", db.RoleAdmin).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectQuery("INSERT INTO meetings").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(time.Now(), time.Now()))
	mockDB.ExpectCommit()

	meeting, err := service.ScheduleMeeting("admin-1", db.ScheduleMeetingRequest{
		ComplaintID:   "c-gone",
		InvitedUserID: "user-1",
		Title:         "Review",
		ScheduleTime:  time.Now().Add(time.Hour),
		MeetLink:      "https://meet.example.com/abc",
	})
	require.NoError(t, err)
	assert.Empty(t, meeting.ComplaintID)
	assert.Equal(t, db.MeetingStatusScheduled, meeting.Status)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestScheduleMeeting_PromotesSchedulerToAdmin(t *testing.T) {
	service, mockDB := newMeetingService(t)

	mockDB.ExpectQuery("FROM users").
		WithArgs("user-1").
		WillReturnRows(userRow("user-1", "Alice", db.RoleUser))
	mockDB.ExpectBegin()
	mockDB.ExpectExec("UPDATE users SET role").
		WithArgs("admin-1", db.RoleAdmin).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery("INSERT INTO meetings").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(time.Now(), time.Now()))
	mockDB.ExpectCommit()

	meeting, err := service.ScheduleMeeting("admin-1", db.ScheduleMeetingRequest{
		InvitedUserID: "user-1",
		Title:         "Kickoff",
		ScheduleTime:  time.Now().Add(2 * time.Hour),
		MeetLink:      "https://meet.example.com/xyz",
	})
	require.NoError(t, err)
	assert.Equal(t, "admin-1", meeting.AdminID)
	assert.Equal(t, "Alice", meeting.InvitedUserName)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestListMeetings_NonAdminScopedToInvitee(t *testing.T) {
	service, mockDB := newMeetingService(t)

	mockDB.ExpectQuery("FROM meetings m").
		WithArgs("user-1").
		WillReturnRows(meetingRows().
			AddRow("m-1", nil, "admin-1", "user-1", "Review", "", time.Now().Add(time.Hour),
				"https://meet.example.com/abc", db.MeetingStatusScheduled,
				time.Now(), time.Now(), "Alice", "Admin", ""))

	meetings, err := service.ListMeetings("user-1", false, "")
	require.NoError(t, err)
	require.Len(t, meetings, 1)
	assert.Equal(t, "user-1", meetings[0].InvitedUserID)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestGetMeeting_NonAdminCannotReadOthers(t *testing.T) {
	service, mockDB := newMeetingService(t)

	mockDB.ExpectQuery("FROM meetings m").
		WithArgs("m-1", "user-2").
		WillReturnRows(meetingRows())

	_, err := service.GetMeeting("m-1", "user-2", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "meeting not found")
}

func TestUpdateMeetingStatus_Invalid(t *testing.T) {
	service, _ := newMeetingService(t)

	_, err := service.UpdateMeetingStatus("m-1", "postponed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid meeting status")

	// A meeting cannot be moved back to scheduled.
	_, err = service.UpdateMeetingStatus("m-1", db.MeetingStatusScheduled)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid meeting status")
}

func meetingRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "complaint_id", "admin_id", "invited_user_id",
		"title", "description", "schedule_time", "meet_link", "status",
		"created_at", "updated_at", "iu_name", "au_name", "complaint_title",
	})
}
