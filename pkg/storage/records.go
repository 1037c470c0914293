package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/madhesh-litfest/mlf/pkg/backend"
	mlferrors "github.com/madhesh-litfest/mlf/pkg/errors"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

var columnName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// reserved columns are owned by the store and cannot be written by callers.
var reserved = map[string]bool{"id": true, "created_at": true, "updated_at": true}

func stamp(t time.Time) string { return t.UTC().Format(timeLayout) }

func decodeRecord(id, data, created, updated string) (backend.Row, error) {
	row := backend.Row{}
	if err := json.Unmarshal([]byte(data), &row); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	row["id"] = id
	row["created_at"] = created
	row["updated_at"] = updated
	return row, nil
}

func writable(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if reserved[k] {
			continue
		}
		out[k] = v
	}
	return out
}

// SelectAll returns every record of a collection. Ordering by a stored
// field uses the JSON value; created_at and updated_at use the columns.
func (s *Store) SelectAll(ctx context.Context, _ *backend.Session, collection string, order backend.Order) ([]backend.Row, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	query := `SELECT id, data, created_at, updated_at FROM records WHERE collection = ?`
	if order.Column != "" {
		if !columnName.MatchString(order.Column) {
			return nil, mlferrors.New(mlferrors.ErrCodeValidation, "invalid order column").WithContext("column", order.Column)
		}
		expr := "json_extract(data, '$." + order.Column + "')"
		if reserved[order.Column] {
			expr = order.Column
		}
		dir := "ASC"
		if order.Descending {
			dir = "DESC"
		}
		query += " ORDER BY " + expr + " " + dir + ", rowid " + dir
	}

	rows, err := s.db.QueryContext(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", collection, err)
	}
	defer rows.Close()

	out := []backend.Row{}
	for rows.Next() {
		var id, data, created, updated string
		if err := rows.Scan(&id, &data, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		row, err := decodeRecord(id, data, created, updated)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Get returns one record or a NOT_FOUND error.
func (s *Store) Get(ctx context.Context, _ *backend.Session, collection, id string) (backend.Row, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	var data, created, updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT data, created_at, updated_at FROM records WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&data, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, mlferrors.New(mlferrors.ErrCodeNotFound, "record not found").
			WithContext("collection", collection).
			WithContext("id", id).
			WithUserMessage("Record not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return decodeRecord(id, data, created, updated)
}

// Insert stores a new record with a generated id and timestamps.
func (s *Store) Insert(ctx context.Context, _ *backend.Session, collection string, fields map[string]any) (backend.Row, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	data, err := json.Marshal(writable(fields))
	if err != nil {
		return nil, fmt.Errorf("encode %s record: %w", collection, err)
	}
	id := uuid.NewString()
	ts := stamp(time.Now())
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO records (id, collection, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, collection, string(data), ts, ts,
	); err != nil {
		return nil, fmt.Errorf("insert %s: %w", collection, err)
	}
	return decodeRecord(id, string(data), ts, ts)
}

// Update merges fields into the record and returns the updated row. A
// missing id touches nothing and returns an empty slice.
func (s *Store) Update(ctx context.Context, _ *backend.Session, collection, id string, fields map[string]any) ([]backend.Row, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var data, created string
	err = tx.QueryRowContext(ctx,
		`SELECT data, created_at FROM records WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&data, &created)
	if err == sql.ErrNoRows {
		return []backend.Row{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s/%s: %w", collection, id, err)
	}

	merged := map[string]any{}
	if err := json.Unmarshal([]byte(data), &merged); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	for k, v := range writable(fields) {
		merged[k] = v
	}
	encoded, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode %s record: %w", collection, err)
	}
	ts := stamp(time.Now())
	res, err := tx.ExecContext(ctx,
		`UPDATE records SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		string(encoded), ts, collection, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return []backend.Row{}, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	row, err := decodeRecord(id, string(encoded), created, ts)
	if err != nil {
		return nil, err
	}
	return []backend.Row{row}, nil
}

// Delete removes a record. Deleting a missing id is not an error.
func (s *Store) Delete(ctx context.Context, _ *backend.Session, collection, id string) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE collection = ? AND id = ?`, collection, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// CountRecords returns how many records a collection holds.
func (s *Store) CountRecords(ctx context.Context, collection string) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrStoreClosed
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM records WHERE collection = ?`, collection).Scan(&n)
	return n, err
}
