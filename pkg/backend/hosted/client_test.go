package hosted

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madhesh-litfest/mlf/pkg/backend"
	mlferrors "github.com/madhesh-litfest/mlf/pkg/errors"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{URL: srv.URL + "/", AnonKey: "anon-key"})
}

func TestUnconfiguredClientFails(t *testing.T) {
	c := New(Options{})
	assert.False(t, c.Configured())
	_, err := c.SelectAll(context.Background(), nil, "speakers", backend.NewestFirst)
	require.Error(t, err)
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeConfigInvalid))
}

func TestSelectAllSendsOrderAndKeys(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/speakers", r.URL.Path)
		assert.Equal(t, "*", r.URL.Query().Get("select"))
		assert.Equal(t, "created_at.desc", r.URL.Query().Get("order"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `[{"id":"1","name":"Ravi Kumar Jha","name_np":null}]`)
	})
	rows, err := c.SelectAll(context.Background(), nil, "speakers", backend.NewestFirst)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ravi Kumar Jha", rows[0].String("name"))
	assert.Nil(t, rows[0]["name_np"])
}

func TestSessionTokenUsedForWrites(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Digital Nepal", body["name"])
		_, _ = io.WriteString(w, `[{"id":"p1","name":"Digital Nepal"}]`)
	})
	row, err := c.Insert(context.Background(), &backend.Session{AccessToken: "user-token"}, "partners", map[string]any{"name": "Digital Nepal"})
	require.NoError(t, err)
	assert.Equal(t, "p1", row.String("id"))
}

func TestUpdateReturnsZeroRowsWhenFiltered(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.abc", r.URL.Query().Get("id"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotEmpty(t, body["updated_at"])
		_, _ = io.WriteString(w, `[]`)
	})
	rows, err := c.Update(context.Background(), &backend.Session{AccessToken: "t"}, "speakers", "abc", map[string]any{"name": "x"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRemoteErrorCarriesServiceMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"message":"null value in column \"bio\" violates not-null constraint","hint":"Provide a bio"}`)
	})
	_, err := c.Insert(context.Background(), nil, "speakers", map[string]any{})
	require.Error(t, err)
	e, ok := mlferrors.As(err)
	require.True(t, ok)
	assert.Equal(t, mlferrors.ErrCodeRemoteCall, e.Code)
	assert.Contains(t, e.Display(), "violates not-null constraint")
	assert.Equal(t, []string{"Provide a bio"}, e.Remediation)
}

func TestGetMissingRow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})
	_, err := c.Get(context.Background(), nil, "speakers", "nope")
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeNotFound))
}

func TestUploadAndPublicURL(t *testing.T) {
	var gotPath, gotType, gotBody string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		_, _ = io.WriteString(w, `{"Key":"speakers_photo/speakers/a.png"}`)
	})
	err := c.Upload(context.Background(), nil, "speakers_photo", "speakers/ravi-kumar-jha-1.png", "image/png", strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, "/storage/v1/object/speakers_photo/speakers/ravi-kumar-jha-1.png", gotPath)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, "png", gotBody)
	assert.True(t, strings.HasSuffix(c.PublicURL("speakers_photo", "speakers/a.png"), "/storage/v1/object/public/speakers_photo/speakers/a.png"))
}

func signedToken(t *testing.T, sub, email string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestSignInDecodesToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signedToken(t, "user-1", "admin@madheshfest.org", exp)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": token, "refresh_token": "r"})
	})
	sess, err := c.SignIn(context.Background(), "admin@madheshfest.org", "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", sess.UserID)
	assert.Equal(t, "admin@madheshfest.org", sess.Email)
	assert.True(t, sess.ExpiresAt.Equal(exp.UTC()))
}

func TestSignInBadCredentials(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`)
	})
	_, err := c.SignIn(context.Background(), "x@y.z", "bad")
	require.Error(t, err)
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeUnauthorized))
	assert.Equal(t, "Invalid login credentials", mlferrors.UserText(err, ""))
}

func TestCurrentUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"msg":"invalid JWT"}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":"user-1","email":"admin@madheshfest.org"}`)
	})

	user, err := c.CurrentUser(context.Background(), &backend.Session{AccessToken: "good"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)

	_, err = c.CurrentUser(context.Background(), &backend.Session{AccessToken: "bad"})
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeUnauthorized))

	_, err = c.CurrentUser(context.Background(), &backend.Session{AccessToken: "good", ExpiresAt: time.Now().Add(-time.Minute)})
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeUnauthorized))

	_, err = c.CurrentUser(context.Background(), nil)
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeUnauthorized))
}

func TestRefreshRotatesTokens(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signedToken(t, "user-1", "admin@madheshfest.org", exp)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refresh-1", body["refresh_token"])
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": token, "refresh_token": "refresh-2"})
	})

	old := &backend.Session{
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		UserID:       "user-1",
		Email:        "admin@madheshfest.org",
		ExpiresAt:    time.Now().Add(30 * time.Second),
	}
	fresh, err := c.Refresh(context.Background(), old)
	require.NoError(t, err)
	assert.Equal(t, token, fresh.AccessToken)
	assert.Equal(t, "refresh-2", fresh.RefreshToken)
	assert.Equal(t, "user-1", fresh.UserID)
	assert.True(t, fresh.ExpiresAt.Equal(exp.UTC()))
	assert.False(t, fresh.ExpiresWithin(time.Now(), 5*time.Minute))
}

func TestRefreshRejectedTokenIsUnauthorized(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Invalid Refresh Token: Already Used"}`)
	})

	_, err := c.Refresh(context.Background(), &backend.Session{AccessToken: "a", RefreshToken: "used"})
	require.Error(t, err)
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeUnauthorized))
	assert.Equal(t, "Invalid Refresh Token: Already Used", mlferrors.UserText(err, ""))

	_, err = c.Refresh(context.Background(), &backend.Session{AccessToken: "a"})
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeUnauthorized))
	assert.Equal(t, 1, calls, "no refresh token means no call")
}

func TestRefreshServerFailureStaysRemote(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.Refresh(context.Background(), &backend.Session{AccessToken: "a", RefreshToken: "r"})
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeRemoteCall))
}
