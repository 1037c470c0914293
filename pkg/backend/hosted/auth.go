package hosted

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/madhesh-litfest/mlf/pkg/backend"
	mlferrors "github.com/madhesh-litfest/mlf/pkg/errors"
)

// accessClaims are the claims the auth service puts in access tokens.
type accessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// decodeAccessToken reads subject, email and expiry from an access token.
// The signature is not checked: the token came straight from the auth
// service over TLS and every later use is re-verified server side.
func decodeAccessToken(token string) (*accessClaims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, &accessClaims{})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*accessClaims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	User         backend.User `json:"user"`
}

func (t tokenResponse) session(now time.Time) (*backend.Session, error) {
	if strings.TrimSpace(t.AccessToken) == "" {
		return nil, mlferrors.Unauthorized("Sign-in did not return a session")
	}
	sess := &backend.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		UserID:       t.User.ID,
		Email:        t.User.Email,
	}
	switch {
	case t.ExpiresAt > 0:
		sess.ExpiresAt = time.Unix(t.ExpiresAt, 0).UTC()
	case t.ExpiresIn > 0:
		sess.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second).UTC()
	}

	if claims, err := decodeAccessToken(t.AccessToken); err == nil {
		if sess.UserID == "" {
			sess.UserID = claims.Subject
		}
		if sess.Email == "" {
			sess.Email = claims.Email
		}
		if claims.ExpiresAt != nil {
			sess.ExpiresAt = claims.ExpiresAt.Time.UTC()
		}
	}
	return sess, nil
}

// SignIn exchanges an email and password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	body, err := json.Marshal(map[string]string{
		"email":    strings.TrimSpace(email),
		"password": password,
	})
	if err != nil {
		return nil, mlferrors.Wrap(err, mlferrors.ErrCodeInternal, "encode sign-in payload")
	}
	var tok tokenResponse
	err = c.do(ctx, call{
		op:          "sign_in",
		method:      http.MethodPost,
		path:        "/auth/v1/token",
		query:       url.Values{"grant_type": {"password"}},
		body:        bytes.NewReader(body),
		contentType: "application/json",
	}, &tok)
	if err != nil {
		// The auth API answers bad credentials with 400.
		if e, ok := mlferrors.As(err); ok && e.Code == mlferrors.ErrCodeRemoteCall {
			e.Code = mlferrors.ErrCodeUnauthorized
		}
		return nil, err
	}
	return tok.session(time.Now())
}

// Refresh trades the session's refresh token for a new access token. The
// auth service rotates refresh tokens, so the returned session replaces the
// old one entirely.
func (c *Client) Refresh(ctx context.Context, session *backend.Session) (*backend.Session, error) {
	if session == nil || strings.TrimSpace(session.RefreshToken) == "" {
		return nil, mlferrors.Unauthorized("Session expired, please sign in again")
	}
	body, err := json.Marshal(map[string]string{"refresh_token": session.RefreshToken})
	if err != nil {
		return nil, mlferrors.Wrap(err, mlferrors.ErrCodeInternal, "encode refresh payload")
	}
	var tok tokenResponse
	err = c.do(ctx, call{
		op:          "refresh",
		method:      http.MethodPost,
		path:        "/auth/v1/token",
		query:       url.Values{"grant_type": {"refresh_token"}},
		body:        bytes.NewReader(body),
		contentType: "application/json",
	}, &tok)
	if err != nil {
		// A used or revoked refresh token is answered with 400.
		if e, ok := mlferrors.As(err); ok && e.Code == mlferrors.ErrCodeRemoteCall && e.Context["status"] == http.StatusBadRequest {
			e.Code = mlferrors.ErrCodeUnauthorized
		}
		return nil, err
	}
	fresh, err := tok.session(time.Now())
	if err != nil {
		return nil, err
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = session.RefreshToken
	}
	if fresh.UserID == "" {
		fresh.UserID = session.UserID
	}
	if fresh.Email == "" {
		fresh.Email = session.Email
	}
	return fresh, nil
}

// SignOut revokes the session on the auth service.
func (c *Client) SignOut(ctx context.Context, session *backend.Session) error {
	if session == nil || session.AccessToken == "" {
		return nil
	}
	return c.do(ctx, call{
		op:      "sign_out",
		method:  http.MethodPost,
		path:    "/auth/v1/logout",
		session: session,
	}, nil)
}

// CurrentUser asks the auth service who the session belongs to. An expired
// or revoked token fails with UNAUTHORIZED.
func (c *Client) CurrentUser(ctx context.Context, session *backend.Session) (*backend.User, error) {
	if session == nil || session.AccessToken == "" {
		return nil, mlferrors.Unauthorized("Not signed in")
	}
	if session.Expired(time.Now()) {
		return nil, mlferrors.Unauthorized("Session expired, please sign in again")
	}
	var user backend.User
	err := c.do(ctx, call{
		op:      "current_user",
		method:  http.MethodGet,
		path:    "/auth/v1/user",
		session: session,
	}, &user)
	if err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, mlferrors.Unauthorized("Not signed in")
	}
	return &user, nil
}

var _ backend.Refresher = (*Client)(nil)
