package collection

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/madhesh-litfest/mlf/pkg/backend"
	"github.com/madhesh-litfest/mlf/pkg/content"
	mlferrors "github.com/madhesh-litfest/mlf/pkg/errors"
)

// stubStore answers SelectAll from memory and records the request.
type stubStore struct {
	backend.RecordStore
	rows       []backend.Row
	err        error
	collection string
	order      backend.Order
}

func (s *stubStore) SelectAll(_ context.Context, _ *backend.Session, collection string, order backend.Order) ([]backend.Row, error) {
	s.collection = collection
	s.order = order
	return s.rows, s.err
}

func TestNewStartsLoading(t *testing.T) {
	a := Speakers(&stubStore{}, zaptest.NewLogger(t))
	snap := a.Snapshot()
	assert.True(t, snap.Loading)
	assert.Empty(t, snap.Records)
	assert.False(t, snap.Failed())
}

func TestLoadMapsRowsNewestFirst(t *testing.T) {
	store := &stubStore{rows: []backend.Row{
		{"id": "2", "name": "Ravi Kumar Jha", "name_np": "रवि कुमार झा", "domain": "Bhojpuri Poetry", "country": "India", "category": "Poets", "bio": "b", "photo_url": nil, "created_at": "2026-01-02T10:00:00.000000Z"},
		{"id": "1", "name": "Dr. Tapti Devi", "name_np": nil, "domain": "Maithili Literature", "country": "Nepal", "category": "Writers & Thinkers", "bio": "b", "photo_url": "https://x/p.png"},
	}}
	a := Speakers(store, zaptest.NewLogger(t))

	snap := a.Load(context.Background())
	assert.Equal(t, content.CollectionSpeakers, store.collection)
	assert.Equal(t, backend.NewestFirst, store.order)
	assert.False(t, snap.Loading)
	require.Len(t, snap.Records, 2)

	ravi := snap.Records[0]
	assert.Equal(t, "रवि कुमार झा", ravi.NameNp)
	assert.Equal(t, content.CategoryPoets, ravi.Category)
	assert.Equal(t, "", ravi.PhotoURL)
	assert.Equal(t, 2026, ravi.CreatedAt.Year())

	assert.Equal(t, "", snap.Records[1].NameNp)
	assert.Equal(t, "https://x/p.png", snap.Records[1].PhotoURL)
	assert.Equal(t, snap, a.Snapshot())
}

func TestLoadFailureClearsRecords(t *testing.T) {
	store := &stubStore{rows: []backend.Row{{"id": "1", "name": "Digital Nepal", "category": "Tech Partner"}}}
	a := Partners(store, zaptest.NewLogger(t))
	require.Len(t, a.Load(context.Background()).Records, 1)

	store.err = mlferrors.Remote(errors.New("connection refused"), "Network error")
	snap := a.Refetch(context.Background())
	assert.Empty(t, snap.Records)
	assert.False(t, snap.Loading)
	assert.True(t, snap.Failed())
	assert.Equal(t, "Failed to load partners: Network error: connection refused", snap.Err)
}

func TestLoadSkipsUnreadableRow(t *testing.T) {
	store := &stubStore{rows: []backend.Row{
		{"id": "1", "name": 42},
		{"id": "2", "name": "Ravi Kumar Jha", "category": "Poets"},
	}}
	core, logs := observer.New(zap.WarnLevel)
	snap := Speakers(store, zap.New(core)).Load(context.Background())

	assert.False(t, snap.Failed())
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "2", snap.Records[0].ID)

	skipped := logs.FilterMessage("skipping unreadable row").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, "1", skipped[0].ContextMap()["id"])
	assert.Equal(t, "speakers", skipped[0].ContextMap()["collection"])
}

func TestLoadWithoutStore(t *testing.T) {
	snap := New[content.SpeakerCard](nil, "speakers", SpeakerCard, nil).Load(context.Background())
	assert.True(t, snap.Failed())
	assert.Contains(t, snap.Err, "not configured")
}
