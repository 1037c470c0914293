package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madhesh-litfest/mlf/pkg/backend"
	mlferrors "github.com/madhesh-litfest/mlf/pkg/errors"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D}

type upload struct {
	bucket, path, contentType string
	body                      []byte
}

// memObjects records uploads instead of storing them.
type memObjects struct {
	mu      sync.Mutex
	uploads []upload
	err     error
}

func (m *memObjects) Upload(_ context.Context, _ *backend.Session, bucket, path, contentType string, body io.Reader) error {
	data, _ := io.ReadAll(body)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.uploads = append(m.uploads, upload{bucket, path, contentType, data})
	return nil
}

func (m *memObjects) PublicURL(bucket, path string) string {
	return "https://cdn.example/" + bucket + "/" + path
}

func (m *memObjects) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.uploads)
}

func fixedClock() time.Time { return time.UnixMilli(1767225600000) }

// newLocalUploader may fetch from httptest servers on loopback.
func newLocalUploader(objects backend.ObjectStore, opts ...Option) *Uploader {
	return NewUploader(objects, append([]Option{WithHTTPClient(newFetchClient(5*time.Second, nil))}, opts...)...)
}

func TestSlugAndObjectPath(t *testing.T) {
	assert.Equal(t, "ravi-kumar-jha", Slug("  Ravi   Kumar Jha "))
	assert.Equal(t, "dr.-tapti-devi", Slug("Dr. Tapti Devi"))
	assert.Equal(t, "writers-thinkers", Slug("Writers & Thinkers"))
	assert.Equal(t, "", Slug(" / "))

	assert.Equal(t, "speakers/maya-rana-1767225600000.png", ObjectPath("speakers", "Maya Rana", "png", fixedClock()))
	assert.Equal(t, "speakers/speaker-1767225600000.jpg", ObjectPath("speakers", "", "", fixedClock()))
}

func TestValidateImage(t *testing.T) {
	assert.NoError(t, ValidateImage("image/png", 1024))
	assert.NoError(t, ValidateImage("image/jpeg; charset=binary", MaxImageBytes))
	assert.NoError(t, ValidateImage("image/webp", -1))

	err := ValidateImage("application/pdf", 10)
	assert.Equal(t, MsgNotImage, mlferrors.UserText(err, ""))

	err = ValidateImage("image/png", MaxImageBytes+1)
	assert.Equal(t, MsgTooLarge, mlferrors.UserText(err, ""))
}

func TestDetectMimeType(t *testing.T) {
	assert.Equal(t, "image/jpeg", DetectMimeType("photo.JPG", nil))
	assert.Equal(t, "image/png", DetectMimeType("", pngHeader))
	assert.Equal(t, "", DetectMimeType("notes.txt", []byte("plain text data")))
}

func TestUploadOversizedFileNeverReachesStore(t *testing.T) {
	objects := &memObjects{}
	u := NewUploader(objects, WithClock(fixedClock))

	sixMB := int64(6 << 20)
	_, err := u.Upload(context.Background(), nil, "speakers", "Maya Rana", File{
		Filename:    "maya.png",
		ContentType: "image/png",
		Size:        sixMB,
		Body:        bytes.NewReader(make([]byte, sixMB)),
	})
	require.Error(t, err)
	assert.Equal(t, MsgTooLarge, mlferrors.UserText(err, ""))
	assert.Zero(t, objects.calls())
}

func TestUploadRejectsNonImage(t *testing.T) {
	objects := &memObjects{}
	u := NewUploader(objects)
	_, err := u.Upload(context.Background(), nil, "speakers", "x", File{Filename: "cv.pdf", ContentType: "application/pdf", Size: 10, Body: strings.NewReader("pdf")})
	assert.Equal(t, MsgNotImage, mlferrors.UserText(err, ""))
	assert.Zero(t, objects.calls())
}

func TestUploadUnknownSizeEnforcedWhileReading(t *testing.T) {
	objects := &memObjects{}
	u := NewUploader(objects)
	_, err := u.Upload(context.Background(), nil, "speakers", "x", File{
		Filename: "big.png", ContentType: "image/png", Size: -1,
		Body: bytes.NewReader(make([]byte, MaxImageBytes+10)),
	})
	assert.Equal(t, MsgTooLarge, mlferrors.UserText(err, ""))
	assert.Zero(t, objects.calls())
}

func TestUploadStoresUnderCollection(t *testing.T) {
	objects := &memObjects{}
	u := NewUploader(objects, WithClock(fixedClock), WithBucket("festival"))

	url, err := u.Upload(context.Background(), nil, "speakers", "Ravi Kumar Jha", File{
		Filename: "portrait.final.PNG", ContentType: "image/png", Size: int64(len(pngHeader)), Body: bytes.NewReader(pngHeader),
	})
	require.NoError(t, err)
	require.Equal(t, 1, objects.calls())
	got := objects.uploads[0]
	assert.Equal(t, "festival", got.bucket)
	assert.Equal(t, "speakers/ravi-kumar-jha-1767225600000.png", got.path)
	assert.Equal(t, "image/png", got.contentType)
	assert.Equal(t, pngHeader, got.body)
	assert.Equal(t, "https://cdn.example/festival/speakers/ravi-kumar-jha-1767225600000.png", url)
}

func TestUploadSurfacesStoreError(t *testing.T) {
	objects := &memObjects{err: mlferrors.New(mlferrors.ErrCodeRemoteCall, "upload failed").WithUserMessage("Bucket not found")}
	u := NewUploader(objects)
	_, err := u.Upload(context.Background(), nil, "partners", "Nepal Academy", File{Filename: "a.png", ContentType: "image/png", Size: 3, Body: strings.NewReader("png")})
	assert.Equal(t, "Bucket not found", mlferrors.UserText(err, ""))
}

func TestFetchAndUploadDirectImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0})
	}))
	defer srv.Close()

	objects := &memObjects{}
	u := NewUploader(objects, WithClock(fixedClock), WithHTTPClient(srv.Client()))
	url, err := u.FetchAndUpload(context.Background(), nil, "partners", "Digital Nepal", srv.URL+"/logo")
	require.NoError(t, err)
	require.Equal(t, 1, objects.calls())
	assert.Equal(t, "partners/digital-nepal-1767225600000.jpeg", objects.uploads[0].path)
	assert.Equal(t, "image/jpeg", objects.uploads[0].contentType)
	assert.Contains(t, url, "partners/digital-nepal")
}

func TestFetchAndUploadFollowsOGImage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/profile", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, `<html><head><meta property="og:image" content="/img/portrait.png"></head><body></body></html>`)
	})
	mux.HandleFunc("/img/portrait.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngHeader)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	objects := &memObjects{}
	u := newLocalUploader(objects, WithClock(fixedClock))
	_, err := u.FetchAndUpload(context.Background(), nil, "speakers", "Sunita Thakur", srv.URL+"/profile")
	require.NoError(t, err)
	require.Equal(t, 1, objects.calls())
	assert.Equal(t, pngHeader, objects.uploads[0].body)
	assert.Equal(t, "speakers/sunita-thakur-1767225600000.png", objects.uploads[0].path)
}

func TestFetchAndUploadRejectsOversizedByHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", "6291456")
		_, _ = w.Write(make([]byte, 6<<20))
	}))
	defer srv.Close()

	objects := &memObjects{}
	u := newLocalUploader(objects)
	_, err := u.FetchAndUpload(context.Background(), nil, "speakers", "x", srv.URL)
	assert.Equal(t, MsgTooLarge, mlferrors.UserText(err, ""))
	assert.Zero(t, objects.calls())
}

func TestFetchAndUploadRejectsOversizedStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		flusher := w.(http.Flusher)
		chunk := make([]byte, 1<<20)
		for i := 0; i < 6; i++ {
			if _, err := w.Write(chunk); err != nil {
				return
			}
			flusher.Flush()
		}
	}))
	defer srv.Close()

	objects := &memObjects{}
	u := newLocalUploader(objects)
	_, err := u.FetchAndUpload(context.Background(), nil, "speakers", "x", srv.URL)
	assert.Equal(t, MsgTooLarge, mlferrors.UserText(err, ""))
	assert.Zero(t, objects.calls())
}

func TestFetchAndUploadErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	u := newLocalUploader(&memObjects{})
	_, err := u.FetchAndUpload(context.Background(), nil, "speakers", "x", srv.URL+"/missing.png")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(mlferrors.UserText(err, ""), "Failed to fetch and upload image: "))

	_, err = u.FetchAndUpload(context.Background(), nil, "speakers", "x", "ftp://example.com/a.png")
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeValidation))
}

func TestFetchRefusesLoopback(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngHeader)
	}))
	defer srv.Close()

	objects := &memObjects{}
	u := NewUploader(objects)
	_, err := u.FetchAndUpload(context.Background(), nil, "speakers", "x", srv.URL+"/a.png")
	require.Error(t, err)
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeValidation))
	assert.Equal(t, MsgPrivateAddress, mlferrors.UserText(err, ""))
	assert.Zero(t, hits.Load())
	assert.Zero(t, objects.calls())
}

func TestFetchStopsAfterRedirectLimit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		http.Redirect(w, r, fmt.Sprintf("/hop/%d", n), http.StatusFound)
	}))
	defer srv.Close()

	objects := &memObjects{}
	u := newLocalUploader(objects)
	_, err := u.FetchAndUpload(context.Background(), nil, "speakers", "x", srv.URL)
	require.Error(t, err)
	assert.True(t, mlferrors.IsCode(err, mlferrors.ErrCodeRemoteCall))
	assert.Equal(t, int32(maxRedirects), hits.Load())
	assert.Zero(t, objects.calls())
}

func TestIsPublicAddr(t *testing.T) {
	cases := map[string]bool{
		"93.184.216.34":    true,
		"2606:4700::1111":  true,
		"127.0.0.1":        false,
		"10.1.2.3":         false,
		"172.16.0.9":       false,
		"192.168.1.1":      false,
		"169.254.169.254":  false,
		"100.64.0.1":       false,
		"0.0.0.0":          false,
		"224.0.0.1":        false,
		"::1":              false,
		"fe80::1":          false,
		"fd00::1":          false,
		"::ffff:127.0.0.1": false,
	}
	for raw, want := range cases {
		assert.Equal(t, want, isPublicAddr(netip.MustParseAddr(raw)), raw)
	}
}

func TestPublicOnlyChecksDialAddress(t *testing.T) {
	assert.NoError(t, publicOnly("tcp", "93.184.216.34:443", nil))
	assert.ErrorIs(t, publicOnly("tcp", "127.0.0.1:80", nil), errBlockedAddress)
	assert.ErrorIs(t, publicOnly("tcp6", "[::1]:80", nil), errBlockedAddress)
	assert.Error(t, publicOnly("tcp", "no-port", nil))
}
