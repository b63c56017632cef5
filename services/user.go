package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/resolvedesk/resolvedesk/db"
)

type UserService struct {
	PG *sql.DB
}

func NewUserService(pg *sql.DB) *UserService {
	return &UserService{PG: pg}
}

// GetUser returns a single user profile by ID.
func (s *UserService) GetUser(id string) (*db.User, error) {
	var user db.User
	var fcmToken sql.NullString

	err := s.PG.QueryRow(`
		SELECT id, name, email, role, fcm_token, is_active, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id).Scan(&user.ID, &user.Name, &user.Email, &user.Role,
		&fcmToken, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if fcmToken.Valid {
		user.FCMToken = fcmToken.String
	}
	return &user, nil
}

// ListUsers returns all active users, optionally filtered by role.
func (s *UserService) ListUsers(role string) ([]db.User, error) {
	query := `
		SELECT id, name, email, role, is_active, created_at, updated_at
		FROM users
		WHERE is_active = true
	`
	args := []interface{}{}
	if role != "" {
		query += " AND role = $1"
		args = append(args, role)
	}
	query += " ORDER BY name ASC"

	rows, err := s.PG.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []db.User
	for rows.Next() {
		var user db.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.Role,
			&user.IsActive, &user.CreatedAt, &user.UpdatedAt); err != nil {
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

// UpdateProfile updates the caller's mutable profile fields.
func (s *UserService) UpdateProfile(id string, req db.UpdateProfileRequest) (*db.User, error) {
	user, err := s.GetUser(id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.FCMToken != nil {
		user.FCMToken = *req.FCMToken
	}
	user.UpdatedAt = time.Now()

	_, err = s.PG.Exec(`
		UPDATE users SET name = $2, fcm_token = $3, updated_at = $4 WHERE id = $1
	`, id, user.Name, nullIfEmptyStr(user.FCMToken), user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return user, nil
}

// IsAdmin reports whether the user holds the admin role.
func (s *UserService) IsAdmin(id string) (bool, error) {
	var role string
	err := s.PG.QueryRow(`SELECT role FROM users WHERE id = $1`, id).Scan(&role)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, fmt.Errorf("user not found")
		}
		return false, fmt.Errorf("failed to check role: %w", err)
	}
	return role == db.RoleAdmin, nil
}

// EnsureAdminRole promotes the user to admin if not already. Permissive
// upsert used by the meeting scheduler before inserting on behalf of an
// admin actor.
func (s *UserService) EnsureAdminRole(tx *sql.Tx, id string) error {
	_, err := tx.Exec(`
		UPDATE users SET role = $2, updated_at = NOW()
		WHERE id = $1 AND role != $2
	`, id, db.RoleAdmin)
	if err != nil {
		return fmt.Errorf("failed to ensure admin role: %w", err)
	}
	return nil
}

// nullIfEmptyStr returns nil if string is empty, otherwise returns the string
func nullIfEmptyStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
