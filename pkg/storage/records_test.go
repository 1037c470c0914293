package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madhesh-litfest/mlf/pkg/backend"
	mlferrors "github.com/madhesh-litfest/mlf/pkg/errors"
)

func TestInsertSelectNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"Tapti", "Ravi", "Sunita"} {
		_, err := store.Insert(ctx, nil, "speakers", map[string]any{"name": name})
		require.NoError(t, err)
	}
	_, err := store.Insert(ctx, nil, "partners", map[string]any{"name": "Nepal Academy"})
	require.NoError(t, err)

	rows, err := store.SelectAll(ctx, nil, "speakers", backend.NewestFirst)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Sunita", "Ravi", "Tapti"}, []string{rows[0].String("name"), rows[1].String("name"), rows[2].String("name")})

	rows, err = store.SelectAll(ctx, nil, "speakers", backend.Order{Column: "name"})
	require.NoError(t, err)
	assert.Equal(t, "Ravi", rows[0].String("name"))

	n, err := store.CountRecords(ctx, "partners")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSelectAllEmptyCollection(t *testing.T) {
	store := newTestStore(t)
	rows, err := store.SelectAll(context.Background(), nil, "speakers", backend.NewestFirst)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestSelectAllRejectsBadOrderColumn(t *testing.T) {
	store := newTestStore(t)
	_, err := store.SelectAll(context.Background(), nil, "speakers", backend.Order{Column: "name'); DROP TABLE records;--"})
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeValidation))
}

func TestInsertIgnoresReservedColumns(t *testing.T) {
	store := newTestStore(t)
	row, err := store.Insert(context.Background(), nil, "speakers", map[string]any{"id": "forced", "name": "Maya"})
	require.NoError(t, err)
	assert.NotEqual(t, "forced", row.String("id"))
	assert.NotEmpty(t, row.String("created_at"))
}

func TestUpdateMergesAndStamps(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	row, err := store.Insert(ctx, nil, "speakers", map[string]any{"name": "Kumar Singh", "bio": "Young poet", "photo_url": "a.png"})
	require.NoError(t, err)
	id := row.String("id")

	rows, err := store.Update(ctx, nil, "speakers", id, map[string]any{"bio": "Poet", "photo_url": nil})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Kumar Singh", rows[0].String("name"))
	assert.Equal(t, "Poet", rows[0].String("bio"))
	assert.Nil(t, rows[0]["photo_url"])
	assert.Equal(t, row.String("created_at"), rows[0].String("created_at"))
	assert.GreaterOrEqual(t, rows[0].String("updated_at"), row.String("updated_at"))

	got, err := store.Get(ctx, nil, "speakers", id)
	require.NoError(t, err)
	assert.Equal(t, "Poet", got.String("bio"))
}

func TestUpdateMissingRowTouchesNothing(t *testing.T) {
	store := newTestStore(t)
	rows, err := store.Update(context.Background(), nil, "speakers", "missing", map[string]any{"name": "x"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDeleteAndGetMissing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	row, err := store.Insert(ctx, nil, "partners", map[string]any{"name": "Digital Nepal"})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, nil, "partners", row.String("id")))
	_, err = store.Get(ctx, nil, "partners", row.String("id"))
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeNotFound))
	assert.NoError(t, store.Delete(ctx, nil, "partners", row.String("id")))
}

func TestAdminSignInLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	admin, err := store.CreateAdmin(ctx, " Admin@MadheshFest.org ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "admin@madheshfest.org", admin.Email)

	_, err = store.CreateAdmin(ctx, "admin@madheshfest.org", "another password")
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeValidation))

	_, err = store.SignIn(ctx, "admin@madheshfest.org", "wrong")
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeUnauthorized))
	_, err = store.SignIn(ctx, "nobody@madheshfest.org", "correct horse")
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeUnauthorized))

	sess, err := store.SignIn(ctx, "ADMIN@madheshfest.org", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, sess.UserID)
	assert.Len(t, sess.AccessToken, 64)

	user, err := store.CurrentUser(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, user.ID)

	require.NoError(t, store.SignOut(ctx, sess))
	_, err = store.CurrentUser(ctx, sess)
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeUnauthorized))

	n, err := store.CountAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCreateAdminValidation(t *testing.T) {
	store := newTestStore(t)
	_, err := store.CreateAdmin(context.Background(), "not-an-email", "long enough")
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeValidation))
	_, err = store.CreateAdmin(context.Background(), "a@b.c", "short")
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeValidation))
}

func TestObjectsUploadServeAndNoOverwrite(t *testing.T) {
	root := filepath.Join(t.TempDir(), "media")
	objects, err := NewObjects(root, "")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, objects.Upload(ctx, nil, "speakers_photo", "speakers/maya-rana-1.png", "image/png", strings.NewReader("img")))
	raw, err := os.ReadFile(filepath.Join(root, "speakers_photo", "speakers", "maya-rana-1.png"))
	require.NoError(t, err)
	assert.Equal(t, "img", string(raw))

	err = objects.Upload(ctx, nil, "speakers_photo", "speakers/maya-rana-1.png", "image/png", strings.NewReader("again"))
	require.Error(t, err)

	publicURL := objects.PublicURL("speakers_photo", "speakers/maya-rana-1.png")
	assert.Equal(t, "/media/speakers_photo/speakers/maya-rana-1.png", publicURL)

	srv := httptest.NewServer(http.StripPrefix(MediaPrefix, http.FileServer(http.Dir(objects.Root()))))
	defer srv.Close()
	resp, err := http.Get(srv.URL + publicURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "img", string(body))
}

func TestObjectsRejectTraversal(t *testing.T) {
	objects, err := NewObjects(t.TempDir(), "https://mlf.example")
	require.NoError(t, err)
	err = objects.Upload(context.Background(), nil, "speakers_photo", "../../etc/passwd", "image/png", strings.NewReader("x"))
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeValidation))
	assert.Equal(t, "", objects.PublicURL("..", "x"))
	assert.Equal(t, "https://mlf.example/media/b/a%20b.png", objects.PublicURL("b", "a b.png"))
}

func TestBackendBundle(t *testing.T) {
	store := newTestStore(t)
	objects, err := NewObjects(t.TempDir(), "")
	require.NoError(t, err)
	b := store.Backend(objects)
	assert.Equal(t, DriverName, b.Name)
	assert.NotNil(t, b.Records)
	assert.NotNil(t, b.Auth)
	assert.NotNil(t, b.Objects)
}
