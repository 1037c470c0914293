// Package hosted talks to a hosted Postgres backend through its REST
// gateway (records), storage API (objects) and auth API (password sessions).
package hosted

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/madhesh-litfest/mlf/pkg/backend"
	mlferrors "github.com/madhesh-litfest/mlf/pkg/errors"
	"github.com/madhesh-litfest/mlf/pkg/telemetry"
)

const driverName = "hosted"

// Options configures a Client.
type Options struct {
	URL        string
	AnonKey    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client implements backend.RecordStore, backend.ObjectStore and
// backend.Authenticator over HTTP.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

// New creates a client. An empty URL yields a client whose every call fails
// with a configuration error, so the site still starts without a backend.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(opts.URL), "/"),
		anonKey:    strings.TrimSpace(opts.AnonKey),
		httpClient: httpClient,
	}
}

// Backend bundles the client as all three capabilities.
func (c *Client) Backend() backend.Backend {
	return backend.Backend{Records: c, Objects: c, Auth: c, Name: driverName}
}

// Configured reports whether a backend URL was supplied.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

func errNotConfigured() error {
	return mlferrors.New(mlferrors.ErrCodeConfigInvalid, "store endpoint not configured").
		WithUserMessage("The content store is not configured").
		WithRemediation("Set MLF_STORE_URL and MLF_STORE_ANON_KEY (or SUPABASE_URL and SUPABASE_ANON_KEY) and restart")
}

// apiError is the error body shape shared by the REST, storage and auth APIs.
type apiError struct {
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Hint             string `json:"hint"`
}

func (e apiError) text() string {
	for _, s := range []string{e.Message, e.Msg, e.ErrorDescription, e.Error} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

type call struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	headers     map[string]string
	session     *backend.Session
	attrs       []attribute.KeyValue
}

// do performs one API call and decodes a 2xx JSON body into out (when out is
// non-nil). Non-2xx responses become REMOTE_CALL errors carrying the
// service's own message.
func (c *Client) do(ctx context.Context, cl call, out any) (err error) {
	if !c.Configured() {
		return errNotConfigured()
	}
	started := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "backend."+cl.op, append(cl.attrs, telemetry.AttrDriver.String(driverName))...)
	defer func() {
		telemetry.ObserveRemoteCall(driverName, cl.op, started, err)
		telemetry.EndSpan(span, err)
	}()

	endpoint := c.baseURL + cl.path
	if len(cl.query) > 0 {
		endpoint += "?" + cl.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, endpoint, cl.body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	token := c.anonKey
	if cl.session != nil && cl.session.AccessToken != "" {
		token = cl.session.AccessToken
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if cl.contentType != "" {
		req.Header.Set("Content-Type", cl.contentType)
	}
	for k, v := range cl.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return mlferrors.Wrap(err, mlferrors.ErrCodeRemoteCall, cl.op+" request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return mlferrors.Wrap(err, mlferrors.ErrCodeRemoteCall, cl.op+" read failed")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(cl.op, resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return mlferrors.Wrap(err, mlferrors.ErrCodeRemoteCall, cl.op+" returned an unreadable response")
	}
	return nil
}

func statusError(op string, status int, raw []byte) error {
	var body apiError
	_ = json.Unmarshal(raw, &body)
	msg := body.text()
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	code := mlferrors.ErrCodeRemoteCall
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		code = mlferrors.ErrCodeUnauthorized
	case http.StatusNotFound:
		code = mlferrors.ErrCodeNotFound
	}
	err := mlferrors.New(code, op+" failed").
		WithContext("status", status).
		WithUserMessage(msg)
	if body.Hint != "" {
		err = err.WithRemediation(body.Hint)
	}
	return err
}
