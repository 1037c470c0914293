package hosted

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/madhesh-litfest/mlf/pkg/backend"
	mlferrors "github.com/madhesh-litfest/mlf/pkg/errors"
	"github.com/madhesh-litfest/mlf/pkg/telemetry"
)

func orderParam(o backend.Order) string {
	if o.Column == "" {
		return ""
	}
	if o.Descending {
		return o.Column + ".desc"
	}
	return o.Column + ".asc"
}

func eq(id string) string { return "eq." + id }

// SelectAll lists every row of a collection.
func (c *Client) SelectAll(ctx context.Context, session *backend.Session, collection string, order backend.Order) ([]backend.Row, error) {
	q := url.Values{"select": {"*"}}
	if p := orderParam(order); p != "" {
		q.Set("order", p)
	}
	var rows []backend.Row
	err := c.do(ctx, call{
		op:      "select",
		method:  http.MethodGet,
		path:    "/rest/v1/" + url.PathEscape(collection),
		query:   q,
		session: session,
		attrs:   []attribute.KeyValue{telemetry.AttrCollection.String(collection)},
	}, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Get fetches a single row by id.
func (c *Client) Get(ctx context.Context, session *backend.Session, collection, id string) (backend.Row, error) {
	var rows []backend.Row
	err := c.do(ctx, call{
		op:      "get",
		method:  http.MethodGet,
		path:    "/rest/v1/" + url.PathEscape(collection),
		query:   url.Values{"select": {"*"}, "id": {eq(id)}},
		session: session,
		attrs:   []attribute.KeyValue{telemetry.AttrCollection.String(collection), telemetry.AttrRecordID.String(id)},
	}, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, mlferrors.New(mlferrors.ErrCodeNotFound, "record not found").
			WithContext("collection", collection).
			WithContext("id", id).
			WithUserMessage("Record not found")
	}
	return rows[0], nil
}

// Insert creates a row and returns it as stored.
func (c *Client) Insert(ctx context.Context, session *backend.Session, collection string, fields map[string]any) (backend.Row, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, mlferrors.Wrap(err, mlferrors.ErrCodeInternal, "encode insert payload")
	}
	var rows []backend.Row
	err = c.do(ctx, call{
		op:          "insert",
		method:      http.MethodPost,
		path:        "/rest/v1/" + url.PathEscape(collection),
		body:        bytes.NewReader(body),
		contentType: "application/json",
		headers:     map[string]string{"Prefer": "return=representation"},
		session:     session,
		attrs:       []attribute.KeyValue{telemetry.AttrCollection.String(collection)},
	}, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return backend.Row{}, nil
	}
	return rows[0], nil
}

// Update writes fields to the row with id, stamping updated_at, and returns
// the rows the gateway reports as changed. Row-level security filters
// unpermitted rows silently, which surfaces here as an empty slice.
func (c *Client) Update(ctx context.Context, session *backend.Session, collection, id string, fields map[string]any) ([]backend.Row, error) {
	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, mlferrors.Wrap(err, mlferrors.ErrCodeInternal, "encode update payload")
	}
	var rows []backend.Row
	err = c.do(ctx, call{
		op:          "update",
		method:      http.MethodPatch,
		path:        "/rest/v1/" + url.PathEscape(collection),
		query:       url.Values{"id": {eq(id)}, "select": {"*"}},
		body:        bytes.NewReader(body),
		contentType: "application/json",
		headers:     map[string]string{"Prefer": "return=representation"},
		session:     session,
		attrs:       []attribute.KeyValue{telemetry.AttrCollection.String(collection), telemetry.AttrRecordID.String(id)},
	}, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Delete removes the row with id.
func (c *Client) Delete(ctx context.Context, session *backend.Session, collection, id string) error {
	return c.do(ctx, call{
		op:      "delete",
		method:  http.MethodDelete,
		path:    "/rest/v1/" + url.PathEscape(collection),
		query:   url.Values{"id": {eq(id)}},
		session: session,
		attrs:   []attribute.KeyValue{telemetry.AttrCollection.String(collection), telemetry.AttrRecordID.String(id)},
	}, nil)
}
