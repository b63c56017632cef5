package services

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/resolvedesk/resolvedesk/db"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	PG         *sql.DB
	JWTService *JWTService
	Functions  *FunctionsClient
}

func NewAuthService(pg *sql.DB, jwtService *JWTService, functions *FunctionsClient) *AuthService {
	return &AuthService{
		PG:         pg,
		JWTService: jwtService,
		Functions:  functions,
	}
}

// HashPassword creates a bcrypt hash of the password
func (s *AuthService) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// Register creates a new account with the default user role and fires a
// best-effort verification email through the functions gateway.
func (s *AuthService) Register(req db.RegisterRequest) (*db.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var exists bool
	if err := s.PG.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check existing account: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("email already registered")
	}

	hash, err := s.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &db.User{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Email:     email,
		Role:      db.RoleUser,
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	_, err = s.PG.Exec(`
		INSERT INTO users (id, name, email, password_hash, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.Name, user.Email, hash, user.Role, user.IsActive, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	// Verification email is a side effect; registration must not fail on it.
	if s.Functions != nil {
		go func() {
			if err := s.Functions.SendVerificationEmail(user.Email, user.Name, user.ID); err != nil {
				log.Printf("WARNING: Failed to send verification email to %s: %v", user.Email, err)
			}
		}()
	}

	return user, nil
}

// Login verifies credentials and issues a token.
func (s *AuthService) Login(req db.LoginRequest) (*db.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user db.User
	err := s.PG.QueryRow(`
		SELECT id, name, email, password_hash, role, is_active, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&user.Role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("invalid credentials")
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	if !user.IsActive {
		return nil, fmt.Errorf("account is disabled")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	token, err := s.JWTService.IssueToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	user.PasswordHash = ""
	return &db.LoginResponse{User: user, Token: token}, nil
}
