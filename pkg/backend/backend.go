// Package backend declares the capabilities the site needs from its hosted
// store: record access, object storage and password authentication.
// Drivers live in backend/hosted (remote REST service) and storage (local
// SQLite and filesystem).
package backend

import (
	"context"
	"encoding/json"
	"io"
	"time"
)

// Row is one record as returned by a store: column name to JSON value.
type Row map[string]any

// Decode maps a row onto a typed record through its JSON tags.
func Decode[T any](row Row) (T, error) {
	var out T
	raw, err := json.Marshal(row)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(raw, &out)
	return out, err
}

// String returns the string value of a column, or "" when absent.
func (r Row) String(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Order is a single-column ordering.
type Order struct {
	Column     string
	Descending bool
}

// NewestFirst is the ordering every collection listing uses.
var NewestFirst = Order{Column: "created_at", Descending: true}

// RecordStore reads and writes collection rows.
type RecordStore interface {
	SelectAll(ctx context.Context, session *Session, collection string, order Order) ([]Row, error)
	Get(ctx context.Context, session *Session, collection, id string) (Row, error)
	Insert(ctx context.Context, session *Session, collection string, fields map[string]any) (Row, error)
	// Update returns the rows the write actually touched. An empty slice with
	// a nil error means the store silently filtered the update out.
	Update(ctx context.Context, session *Session, collection, id string, fields map[string]any) ([]Row, error)
	Delete(ctx context.Context, session *Session, collection, id string) error
}

// ObjectStore keeps uploaded files and hands out their public URLs.
type ObjectStore interface {
	Upload(ctx context.Context, session *Session, bucket, path, contentType string, body io.Reader) error
	PublicURL(bucket, path string) string
}

// Authenticator signs administrators in and re-verifies them before writes.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, session *Session) error
	// CurrentUser fetches the identity behind a session from the
	// authority, not from anything cached locally.
	CurrentUser(ctx context.Context, session *Session) (*User, error)
}

// Refresher is implemented by authenticators that can trade a session's
// refresh token for a fresh access token.
type Refresher interface {
	Refresh(ctx context.Context, session *Session) (*Session, error)
}

// Backend bundles the three capabilities of one driver.
type Backend struct {
	Records RecordStore
	Objects ObjectStore
	Auth    Authenticator
	// Name identifies the driver in logs and health output.
	Name string
}

// Session is an authenticated administrator session.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// ExpiresWithin reports whether the access token expires less than d after
// now. A session without an expiry never does.
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return s.ExpiresAt.Sub(now) < d
}

// User is the identity returned by the authenticator.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
