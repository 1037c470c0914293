package storage

import (
	"database/sql"
	"strings"
	"time"

	"github.com/madhesh-litfest/mlf/pkg/backend"
)

// WebSession binds a browser cookie to a backend session. ExpiresAt ends
// the cookie; TokenExpiresAt ends the backend access token, which is
// refreshed while the cookie lives.
type WebSession struct {
	ID             string
	UserID         string
	Email          string
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt time.Time
	ExpiresAt      time.Time
	CreatedAt      time.Time
	LastSeenAt     time.Time
}

// Backend returns the backend session carried by the web session.
func (w *WebSession) Backend() *backend.Session {
	if w == nil {
		return nil
	}
	return &backend.Session{
		AccessToken:  w.AccessToken,
		RefreshToken: w.RefreshToken,
		UserID:       w.UserID,
		Email:        w.Email,
		ExpiresAt:    w.TokenExpiresAt,
	}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func (s *Store) CreateWebSession(id string, sess *backend.Session, expires time.Time) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	now := time.Now().UTC()
	_, err := s.db.Exec(`
        INSERT INTO web_sessions (id, user_id, email, access_token, refresh_token, token_expires_at, expires_at, created_at, last_seen_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, id, strings.TrimSpace(sess.UserID), strings.TrimSpace(sess.Email), sess.AccessToken, sess.RefreshToken, nullTime(sess.ExpiresAt), expires.UTC(), now, now)
	return err
}

// UpdateWebSessionTokens stores a refreshed backend session. The cookie's own
// expiry is unchanged.
func (s *Store) UpdateWebSessionTokens(id string, sess *backend.Session) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	if sess == nil {
		return nil
	}
	_, err := s.db.Exec(`
        UPDATE web_sessions SET access_token = ?, refresh_token = ?, token_expires_at = ?
        WHERE id = ?
    `, sess.AccessToken, sess.RefreshToken, nullTime(sess.ExpiresAt), id)
	return err
}

func (s *Store) TouchWebSession(id string) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	_, err := s.db.Exec(`UPDATE web_sessions SET last_seen_at = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}

// GetWebSession returns nil, nil when no session has the id.
func (s *Store) GetWebSession(id string) (*WebSession, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	row := s.db.QueryRow(`
        SELECT id, user_id, email, access_token, refresh_token, token_expires_at, expires_at, created_at, last_seen_at
        FROM web_sessions WHERE id = ?
    `, id)
	var (
		sess         WebSession
		tokenExpires sql.NullTime
	)
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.Email, &sess.AccessToken, &sess.RefreshToken, &tokenExpires, &sess.ExpiresAt, &sess.CreatedAt, &sess.LastSeenAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if tokenExpires.Valid {
		sess.TokenExpiresAt = tokenExpires.Time
	}
	return &sess, nil
}

func (s *Store) DeleteWebSession(id string) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	_, err := s.db.Exec(`DELETE FROM web_sessions WHERE id = ?`, id)
	return err
}

func (s *Store) CleanupExpiredWebSessions(now time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrStoreClosed
	}
	res, err := s.db.Exec(`DELETE FROM web_sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	rows, _ := res.RowsAffected()
	return rows, nil
}

func (s *Store) CountActiveWebSessions(now time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrStoreClosed
	}
	var count int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM web_sessions WHERE expires_at > ?`, now.UTC()).Scan(&count)
	return count, err
}
