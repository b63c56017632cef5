package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/resolvedesk/resolvedesk/db"
	"github.com/resolvedesk/resolvedesk/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupComplaintRouter(t *testing.T, userID string, admin bool) (*gin.Engine, sqlmock.Sqlmock) {
	gin.SetMode(gin.TestMode)

	conn, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	tickets := services.NewTicketService(conn, nil)
	complaints := services.NewComplaintService(conn, tickets, nil, nil)
	handler := NewComplaintHandler(complaints)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("is_admin", admin)
	})
	r.POST("/complaints", handler.CreateComplaint)
	r.GET("/complaints", handler.ListComplaints)
	r.GET("/complaints/:id", handler.GetComplaint)
	r.PATCH("/complaints/:id/status", handler.UpdateComplaintStatus)
	r.DELETE("/complaints/:id", handler.DeleteComplaint)

	return r, mockDB
}

func TestCreateComplaint_Created(t *testing.T) {
	r, mockDB := setupComplaintRouter(t, "user-1", false)

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

	body := `{"title":"Broken AC","description":"Floor 3 AC is down","category":"facilities"}`
	req := httptest.NewRequest(http.MethodPost, "/complaints", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), db.ComplaintStatusPending)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestCreateComplaint_MissingFields(t *testing.T) {
	r, _ := setupComplaintRouter(t, "user-1", false)

	req := httptest.NewRequest(http.MethodPost, "/complaints", strings.NewReader(`{"title":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetComplaint_NotFound(t *testing.T) {
	r, mockDB := setupComplaintRouter(t, "user-1", false)

	mockDB.ExpectQuery("FROM complaints c").
		WithArgs("c-404", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "title", "description", "category", "priority", "status",
			"user_id", "attachment_url", "created_at", "updated_at", "name", "email",
		}))

	req := httptest.NewRequest(http.MethodGet, "/complaints/c-404", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Complaint not found")
}

func TestUpdateComplaintStatus_InvalidStatusRejected(t *testing.T) {
	r, _ := setupComplaintRouter(t, "admin-1", true)

	body := `{"status":"Done"}`
	req := httptest.NewRequest(http.MethodPatch, "/complaints/c-1/status", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid status")
}

func TestDeleteComplaint_NonPendingConflict(t *testing.T) {
	r, mockDB := setupComplaintRouter(t, "user-1", false)

	mockDB.ExpectQuery("FROM complaints c").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "title", "description", "category", "priority", "status",
			"user_id", "attachment_url", "created_at", "updated_at", "name", "email",
		}).AddRow("c-1", "t", "d", "it", "medium", db.ComplaintStatusResolved,
			"user-1", "", time.Now(), time.Now(), "Alice", "alice@example.com"))

	req := httptest.NewRequest(http.MethodDelete, "/complaints/c-1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListComplaints_FiltersForwarded(t *testing.T) {
	r, mockDB := setupComplaintRouter(t, "admin-1", true)

	mockDB.ExpectQuery("FROM complaints c").
		WithArgs(db.ComplaintStatusPending, "it").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "title", "description", "category", "priority", "status",
			"user_id", "attachment_url", "created_at", "updated_at", "name", "email",
		}))

	req := httptest.NewRequest(http.MethodGet, "/complaints?status=Pending&category=it", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":0`)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}
