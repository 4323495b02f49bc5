package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"prepquiz/internal/db"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidUser        = errors.New("invalid user input")
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type Service struct {
	conn       *db.Conn
	sessionTTL time.Duration
	bcryptCost int
	now        func() time.Time
}

type ServiceConfig struct {
	SessionTTL time.Duration
	BcryptCost int
	Now        func() time.Time
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

type CreateUserInput struct {
	Username string
	Password string
	FullName string
	Role     string
}

func NewService(conn *db.Conn, cfg ServiceConfig) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		conn:       conn,
		sessionTTL: cfg.SessionTTL,
		bcryptCost: cfg.BcryptCost,
		now:        cfg.Now,
	}
}

func (s *Service) AuthenticatePassword(ctx context.Context, username, password string) (*User, error) {
	username = normalizeUsername(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	row := s.conn.QueryRowContext(ctx, s.conn.Dialect.Rebind(`
		SELECT id, username, full_name, role, is_active, password_hash
		FROM users
		WHERE username = ?
		LIMIT 1
	`), username)

	var u User
	var passwordHash string
	if err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.Role, &u.IsActive, &passwordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	if !u.IsActive {
		return nil, ErrForbidden
	}
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &u, nil
}

func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	username := normalizeUsername(in.Username)
	fullName := strings.TrimSpace(in.FullName)
	role := strings.ToLower(strings.TrimSpace(in.Role))
	if role == "" {
		role = RoleMember
	}
	if username == "" || fullName == "" || len(in.Password) < 8 || !isValidRole(role) {
		return nil, ErrInvalidUser
	}

	var existing int
	if err := s.conn.QueryRowContext(ctx, s.conn.Dialect.Rebind(`
		SELECT COUNT(*) FROM users WHERE username = ?
	`), username).Scan(&existing); err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if existing > 0 {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := User{Username: username, FullName: fullName, Role: role, IsActive: true}
	err = s.conn.QueryRowContext(ctx, s.conn.Dialect.Rebind(`
		INSERT INTO users (username, password_hash, full_name, role, is_active, created_at)
		VALUES (?, ?, ?, ?, TRUE, ?)
		RETURNING id
	`), username, string(hash), fullName, role, s.now().UTC()).Scan(&u.ID)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &u, nil
}

func (s *Service) GetUser(ctx context.Context, userID int64) (*User, error) {
	var u User
	err := s.conn.QueryRowContext(ctx, s.conn.Dialect.Rebind(`
		SELECT id, username, full_name, role, is_active
		FROM users
		WHERE id = ?
	`), userID).Scan(&u.ID, &u.Username, &u.FullName, &u.Role, &u.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

func (s *Service) CreateSession(ctx context.Context, userID int64, ipAddress, userAgent string) (string, time.Time, error) {
	token := uuid.NewString()
	now := s.now().UTC()
	expiresAt := now.Add(s.sessionTTL)

	_, err := s.conn.ExecContext(ctx, s.conn.Dialect.Rebind(`
		INSERT INTO auth_sessions (
			user_id, session_token_hash, expires_at, ip_address, user_agent, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`), userID, hashToken(token), expiresAt, nullableString(ipAddress), nullableString(userAgent), now)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("insert session: %w", err)
	}
	return token, expiresAt, nil
}

func (s *Service) GetSessionUser(ctx context.Context, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrUnauthorized
	}
	row := s.conn.QueryRowContext(ctx, s.conn.Dialect.Rebind(`
		SELECT u.id, u.username, u.full_name, u.role, u.is_active
		FROM auth_sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.session_token_hash = ?
		  AND s.revoked_at IS NULL
		  AND s.expires_at > ?
		LIMIT 1
	`), hashToken(token), s.now().UTC())

	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.Role, &u.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("query session user: %w", err)
	}
	if !u.IsActive {
		return nil, ErrUnauthorized
	}
	return &u, nil
}

func (s *Service) RevokeSession(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	_, err := s.conn.ExecContext(ctx, s.conn.Dialect.Rebind(`
		UPDATE auth_sessions
		SET revoked_at = ?
		WHERE session_token_hash = ?
		  AND revoked_at IS NULL
	`), s.now().UTC(), hashToken(token))
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func isValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleMember:
		return true
	default:
		return false
	}
}

func normalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func nullableString(s string) interface{} {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
