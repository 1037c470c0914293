package storage

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/madhesh-litfest/mlf/pkg/backend"
	mlferrors "github.com/madhesh-litfest/mlf/pkg/errors"
)

// AdminTokenTTL is how long a local access token stays valid.
const AdminTokenTTL = time.Hour

// Admin is a local administrator account.
type Admin struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// CreateAdmin adds an administrator with a bcrypt password hash.
func (s *Store) CreateAdmin(ctx context.Context, email, password string) (*Admin, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, mlferrors.Validation("A valid email is required")
	}
	if len(password) < 8 {
		return nil, mlferrors.Validation("Password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	admin := &Admin{ID: uuid.NewString(), Email: email, CreatedAt: time.Now().UTC()}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO admins (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		admin.ID, admin.Email, string(hash), admin.CreatedAt,
	)
	if isUniqueViolation(err) {
		return nil, mlferrors.Validation("An admin with that email already exists").WithContext("email", email)
	}
	if err != nil {
		return nil, fmt.Errorf("insert admin: %w", err)
	}
	return admin, nil
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// SignIn checks the password and issues an access and refresh token.
func (s *Store) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	email = strings.ToLower(strings.TrimSpace(email))
	var id, hash string
	err := s.db.QueryRowContext(ctx, `SELECT id, password_hash FROM admins WHERE email = ?`, email).Scan(&id, &hash)
	if err == sql.ErrNoRows {
		return nil, mlferrors.Unauthorized("Invalid login credentials")
	}
	if err != nil {
		return nil, fmt.Errorf("load admin: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, mlferrors.Unauthorized("Invalid login credentials")
	}

	return s.issueToken(ctx, s.db, id, email)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// issueToken stores a new access and refresh token pair for an admin.
func (s *Store) issueToken(ctx context.Context, db execer, adminID, email string) (*backend.Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	refresh, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	now := time.Now().UTC()
	expires := now.Add(AdminTokenTTL)
	if _, err := db.ExecContext(ctx,
		`INSERT INTO admin_tokens (token, admin_id, refresh_token, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		token, adminID, refresh, expires, now,
	); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	return &backend.Session{
		AccessToken:  token,
		RefreshToken: refresh,
		UserID:       adminID,
		Email:        email,
		ExpiresAt:    expires,
	}, nil
}

// Refresh rotates the session's token pair. The old access and refresh
// tokens stop working; signing out revokes the refresh token too.
func (s *Store) Refresh(ctx context.Context, session *backend.Session) (*backend.Session, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	if session == nil || session.RefreshToken == "" {
		return nil, mlferrors.Unauthorized("Session expired, please sign in again")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var adminID, email string
	err = tx.QueryRowContext(ctx, `
        SELECT a.id, a.email FROM admin_tokens t
        JOIN admins a ON a.id = t.admin_id
        WHERE t.refresh_token = ?
    `, session.RefreshToken).Scan(&adminID, &email)
	if err == sql.ErrNoRows {
		return nil, mlferrors.Unauthorized("Session expired, please sign in again")
	}
	if err != nil {
		return nil, fmt.Errorf("resolve refresh token: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM admin_tokens WHERE refresh_token = ?`, session.RefreshToken); err != nil {
		return nil, fmt.Errorf("revoke token: %w", err)
	}
	fresh, err := s.issueToken(ctx, tx, adminID, email)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return fresh, nil
}

// SignOut revokes the session's access token.
func (s *Store) SignOut(ctx context.Context, session *backend.Session) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	if session == nil || session.AccessToken == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM admin_tokens WHERE token = ?`, session.AccessToken)
	return err
}

// CurrentUser resolves the session's access token to its administrator.
func (s *Store) CurrentUser(ctx context.Context, session *backend.Session) (*backend.User, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	if session == nil || session.AccessToken == "" {
		return nil, mlferrors.Unauthorized("Not signed in")
	}
	var user backend.User
	err := s.db.QueryRowContext(ctx, `
        SELECT a.id, a.email FROM admin_tokens t
        JOIN admins a ON a.id = t.admin_id
        WHERE t.token = ? AND t.expires_at > ?
    `, session.AccessToken, time.Now().UTC()).Scan(&user.ID, &user.Email)
	if err == sql.ErrNoRows {
		return nil, mlferrors.Unauthorized("Session expired, please sign in again")
	}
	if err != nil {
		return nil, fmt.Errorf("resolve token: %w", err)
	}
	return &user, nil
}

// CountAdmins returns the number of administrator accounts.
func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrStoreClosed
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM admins`).Scan(&n)
	return n, err
}
