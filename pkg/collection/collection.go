// Package collection loads a whole remote collection into typed records for
// one page render.
package collection

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/madhesh-litfest/mlf/pkg/backend"
	mlferrors "github.com/madhesh-litfest/mlf/pkg/errors"
)

// Snapshot is the observable state of an accessor.
type Snapshot[T any] struct {
	Records []T
	Loading bool
	// Err is the human-readable load failure, empty on success.
	Err string
}

// Failed reports whether the last load failed.
func (s Snapshot[T]) Failed() bool { return s.Err != "" }

// MapFunc turns a stored row into a display record.
type MapFunc[T any] func(backend.Row) (T, error)

// Accessor fetches every row of one collection, newest first.
type Accessor[T any] struct {
	store   backend.RecordStore
	name    string
	mapRow  MapFunc[T]
	session *backend.Session
	logger  *zap.Logger

	mu    sync.Mutex
	state Snapshot[T]
}

// New builds an accessor. The initial snapshot is loading with no records.
func New[T any](store backend.RecordStore, name string, mapRow MapFunc[T], logger *zap.Logger) *Accessor[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accessor[T]{
		store:  store,
		name:   name,
		mapRow: mapRow,
		logger: logger.With(zap.String("collection", name)),
		state:  Snapshot[T]{Records: []T{}, Loading: true},
	}
}

// WithSession makes the accessor read as an authenticated administrator.
func (a *Accessor[T]) WithSession(session *backend.Session) *Accessor[T] {
	a.session = session
	return a
}

// Load requests the collection ordered by created_at descending. On failure
// the snapshot holds no records and a readable error; nothing is retried.
// Rows that do not decode are logged and left out.
func (a *Accessor[T]) Load(ctx context.Context) Snapshot[T] {
	a.mu.Lock()
	a.state.Loading = true
	a.mu.Unlock()

	records, err := a.fetch(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.logger.Warn("collection load failed", zap.Error(err))
		a.state = Snapshot[T]{Records: []T{}, Err: "Failed to load " + a.name + ": " + mlferrors.UserText(err, "")}
	} else {
		a.state = Snapshot[T]{Records: records}
	}
	return a.state
}

// Refetch reloads the collection.
func (a *Accessor[T]) Refetch(ctx context.Context) Snapshot[T] {
	return a.Load(ctx)
}

// Snapshot returns the latest state without fetching.
func (a *Accessor[T]) Snapshot() Snapshot[T] {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Accessor[T]) fetch(ctx context.Context) ([]T, error) {
	if a.store == nil {
		return nil, mlferrors.New(mlferrors.ErrCodeConfigInvalid, "no record store").
			WithUserMessage("The content store is not configured")
	}
	rows, err := a.store.SelectAll(ctx, a.session, a.name, backend.NewestFirst)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		rec, err := a.mapRow(row)
		if err != nil {
			a.logger.Warn("skipping unreadable row", zap.String("id", row.String("id")), zap.Error(err))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
