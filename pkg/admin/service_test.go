package admin

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zaptest"

	"github.com/madhesh-litfest/mlf/pkg/backend"
	"github.com/madhesh-litfest/mlf/pkg/content"
	mlferrors "github.com/madhesh-litfest/mlf/pkg/errors"
	"github.com/madhesh-litfest/mlf/pkg/notify"
	"github.com/madhesh-litfest/mlf/pkg/storage"
)

// recorder is a fake driver that logs every call in order.
type recorder struct {
	calls     []string
	updated   []backend.Row
	insertErr error
	authErr   error
	user      *backend.User
}

func (r *recorder) SelectAll(_ context.Context, _ *backend.Session, collection string, _ backend.Order) ([]backend.Row, error) {
	r.calls = append(r.calls, "select "+collection)
	return nil, nil
}

func (r *recorder) Get(_ context.Context, _ *backend.Session, collection, id string) (backend.Row, error) {
	r.calls = append(r.calls, "get "+id)
	return backend.Row{"id": id, "name": "Maya Rana", "category": "Performers"}, nil
}

func (r *recorder) Insert(_ context.Context, _ *backend.Session, collection string, fields map[string]any) (backend.Row, error) {
	r.calls = append(r.calls, "insert "+collection)
	if r.insertErr != nil {
		return nil, r.insertErr
	}
	row := backend.Row{"id": "new-1"}
	for k, v := range fields {
		row[k] = v
	}
	return row, nil
}

func (r *recorder) Update(_ context.Context, _ *backend.Session, collection, id string, fields map[string]any) ([]backend.Row, error) {
	r.calls = append(r.calls, "update "+id)
	return r.updated, nil
}

func (r *recorder) Delete(_ context.Context, _ *backend.Session, collection, id string) error {
	r.calls = append(r.calls, "delete "+id)
	return nil
}

func (r *recorder) SignIn(context.Context, string, string) (*backend.Session, error) {
	return nil, errors.New("unused")
}

func (r *recorder) SignOut(context.Context, *backend.Session) error { return nil }

func (r *recorder) CurrentUser(_ context.Context, _ *backend.Session) (*backend.User, error) {
	r.calls = append(r.calls, "current_user")
	if r.authErr != nil {
		return nil, r.authErr
	}
	return r.user, nil
}

func (r *recorder) backend() backend.Backend {
	return backend.Backend{Records: r, Auth: r, Name: "fake"}
}

type notifierFunc func(context.Context, *notify.Event) error

func (f notifierFunc) Notify(ctx context.Context, e *notify.Event) error { return f(ctx, e) }

var session = &backend.Session{AccessToken: "tok", Email: "admin@mlf.np"}

func validSpeaker() content.SpeakerInput {
	return content.SpeakerInput{
		Name:     "Ravi Kumar Jha",
		Domain:   "Bhojpuri Poetry",
		Country:  "India",
		Category: string(content.CategoryPoets),
		Bio:      "Poet.",
	}
}

func TestSaveVerifiesIdentityBeforeWrite(t *testing.T) {
	fake := &recorder{user: &backend.User{ID: "u1", Email: "admin@mlf.np"}}
	var events []*notify.Event
	svc := Speakers(fake.backend(),
		WithLogger(zaptest.NewLogger(t)),
		WithNotifier(notifierFunc(func(_ context.Context, e *notify.Event) error {
			events = append(events, e)
			return nil
		})),
	)

	rec, err := svc.Save(context.Background(), session, "", validSpeaker())
	require.NoError(t, err)
	assert.Equal(t, []string{"current_user", "insert speakers"}, fake.calls)
	assert.Equal(t, "new-1", rec.ID)
	assert.Equal(t, content.CategoryPoets, rec.Category)

	require.Len(t, events, 1)
	assert.Equal(t, notify.OpCreated, events[0].Op)
	assert.Equal(t, "new-1", events[0].RecordID)
	assert.Equal(t, "admin@mlf.np", events[0].Actor)
}

func TestSaveValidationStopsEarly(t *testing.T) {
	fake := &recorder{user: &backend.User{ID: "u1"}}
	svc := Speakers(fake.backend())

	in := validSpeaker()
	in.Bio = "  "
	_, err := svc.Save(context.Background(), session, "", in)
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeValidation))
	assert.Equal(t, "Bio is required", mlferrors.UserText(err, ""))
	assert.Empty(t, fake.calls)
}

func TestSaveUnauthenticated(t *testing.T) {
	fake := &recorder{authErr: errors.New("jwt expired")}
	svc := Partners(fake.backend())
	in := content.PartnerInput{Name: "Digital Nepal", Category: string(content.PartnerTech)}

	_, err := svc.Save(context.Background(), session, "", in)
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeUnauthorized))
	assert.Equal(t, []string{"current_user"}, fake.calls)

	_, err = svc.Save(context.Background(), nil, "", in)
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeUnauthorized))
}

func TestSaveZeroRowsUpdate(t *testing.T) {
	fake := &recorder{user: &backend.User{ID: "u1"}, updated: []backend.Row{}}
	notified := false
	svc := Speakers(fake.backend(), WithNotifier(notifierFunc(func(context.Context, *notify.Event) error {
		notified = true
		return nil
	})))

	_, err := svc.Save(context.Background(), session, "sp-1", validSpeaker())
	require.Error(t, err)
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeNoRowsAffected))
	assert.Equal(t, mlferrors.NoRowsAffectedMessage, mlferrors.UserText(err, ""))
	assert.Contains(t, mlferrors.UserText(err, ""), "row-level security")
	assert.Equal(t, []string{"current_user", "update sp-1"}, fake.calls)
	assert.False(t, notified)
}

func TestSaveUpdateReturnsRow(t *testing.T) {
	fake := &recorder{
		user:    &backend.User{ID: "u1"},
		updated: []backend.Row{{"id": "p-1", "name": "Nepal Academy", "category": "Supported By"}},
	}
	svc := Partners(fake.backend())
	rec, err := svc.Save(context.Background(), session, "p-1", content.PartnerInput{Name: "Nepal Academy", Category: "Supported By"})
	require.NoError(t, err)
	assert.Equal(t, content.PartnerSupportedBy, rec.Category)
}

func TestSaveRemoteFailureKeepsMessage(t *testing.T) {
	fake := &recorder{user: &backend.User{ID: "u1"}, insertErr: errors.New("duplicate key value")}
	svc := Speakers(fake.backend())
	_, err := svc.Save(context.Background(), session, "", validSpeaker())
	assert.Equal(t, "Failed to save speaker: duplicate key value", mlferrors.UserText(err, ""))
}

func TestNotifierFailureDoesNotFailSave(t *testing.T) {
	fake := &recorder{user: &backend.User{ID: "u1"}}
	svc := Speakers(fake.backend(), WithNotifier(notifierFunc(func(context.Context, *notify.Event) error {
		return errors.New("nats down")
	})))
	_, err := svc.Save(context.Background(), session, "", validSpeaker())
	assert.NoError(t, err)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	fake := &recorder{user: &backend.User{ID: "u1"}}
	svc := Partners(fake.backend())

	err := svc.Delete(context.Background(), session, "p-1", false)
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeConfirmationRequired))
	assert.Equal(t, "Are you sure you want to delete this partner?", mlferrors.UserText(err, ""))
	assert.Empty(t, fake.calls)

	require.NoError(t, svc.Delete(context.Background(), session, "p-1", true))
	assert.Equal(t, []string{"current_user", "delete p-1"}, fake.calls)
}

func TestGetMapsRow(t *testing.T) {
	fake := &recorder{}
	rec, err := Speakers(fake.backend()).Get(context.Background(), session, "sp-9")
	require.NoError(t, err)
	assert.Equal(t, "Maya Rana", rec.Name)
	assert.Equal(t, content.CategoryPerformers, rec.Category)
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := storage.New(filepath.Join(t.TempDir(), "admin.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.CreateAdmin(ctx, "admin@mlf.np", "correct horse")
	require.NoError(t, err)
	sess, err := store.SignIn(ctx, "admin@mlf.np", "correct horse")
	require.NoError(t, err)

	svc := Speakers(store.Backend(nil), WithLogger(zaptest.NewLogger(t)))
	created, err := svc.Save(ctx, sess, "", validSpeaker())
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	in := validSpeaker()
	in.Country = "Nepal"
	updated, err := svc.Save(ctx, sess, created.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Nepal", updated.Country)

	_, err = svc.Save(ctx, sess, "missing-id", in)
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeNoRowsAffected))

	snap := svc.List(ctx, sess)
	require.False(t, snap.Failed())
	require.Len(t, snap.Records, 1)

	require.NoError(t, svc.Delete(ctx, sess, created.ID, true))
	assert.Empty(t, svc.List(ctx, sess).Records)

	require.NoError(t, store.SignOut(ctx, sess))
	_, err = svc.Save(ctx, sess, "", validSpeaker())
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeUnauthorized))
}

func TestExportSpeakers(t *testing.T) {
	created := time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)
	records := []content.SpeakerCard{
		{ID: "1", Name: "Ravi Kumar Jha", Domain: "Bhojpuri Poetry", Country: "India", Category: content.CategoryPoets, CreatedAt: created},
		{ID: "2", Name: "Maya Rana", NameNp: "माया राना", Domain: "Dance", Country: "Nepal", Category: content.CategoryPerformers},
	}

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, "Speakers", SpeakerColumns(), records))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Speakers")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Photo", "Name", "Name (Nepali)", "Domain", "Country", "Category", "Added"}, rows[0])
	assert.Equal(t, "Ravi Kumar Jha", rows[1][1])
	assert.Equal(t, "2026-01-02 09:30", rows[1][6])
	assert.Equal(t, "माया राना", rows[2][2])
}

func TestColumnsRenderEscapes(t *testing.T) {
	cols := PartnerColumns()
	p := content.PartnerCard{Name: `<b>x</b>`, Category: content.PartnerTech, WebsiteURL: `https://x.np/?a=1&b="2"`}
	for _, c := range cols {
		switch c.Key {
		case "category":
			assert.Equal(t, `<span class="badge badge-royal-blue">Tech Partner</span>`, string(c.Cell(p)))
		case "name":
			assert.Equal(t, "&lt;b&gt;x&lt;/b&gt;", string(c.Cell(p)))
		case "website_url":
			assert.NotContains(t, string(c.Cell(p)), `"2"`)
		case "logo_url":
			assert.Contains(t, string(c.Cell(p)), "thumb-empty")
		}
	}
}
