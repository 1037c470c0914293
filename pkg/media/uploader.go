package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/madhesh-litfest/mlf/pkg/backend"
	mlferrors "github.com/madhesh-litfest/mlf/pkg/errors"
	"github.com/madhesh-litfest/mlf/pkg/telemetry"
)

// DefaultBucket is the public bucket speaker photos and partner logos go to.
const DefaultBucket = "speakers_photo"

// maxPageBytes bounds how much of an HTML page is read looking for og:image.
const maxPageBytes = 1 << 20

// File is an uploaded attachment as received from a multipart form.
type File struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Uploader puts images into an object store and returns their public URLs.
type Uploader struct {
	objects    backend.ObjectStore
	bucket     string
	httpClient *http.Client
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithBucket overrides DefaultBucket.
func WithBucket(bucket string) Option {
	return func(u *Uploader) {
		if strings.TrimSpace(bucket) != "" {
			u.bucket = strings.TrimSpace(bucket)
		}
	}
}

// WithHTTPClient sets the client used by FetchAndUpload. It replaces the
// default client, including its public-address check.
func WithHTTPClient(c *http.Client) Option {
	return func(u *Uploader) {
		if c != nil {
			u.httpClient = c
		}
	}
}

// WithClock replaces time.Now for object naming.
func WithClock(now func() time.Time) Option {
	return func(u *Uploader) {
		if now != nil {
			u.now = now
		}
	}
}

// WithLogger sets the uploader's logger.
func WithLogger(l *zap.Logger) Option {
	return func(u *Uploader) {
		if l != nil {
			u.logger = l
		}
	}
}

// NewUploader creates an uploader over objects.
func NewUploader(objects backend.ObjectStore, opts ...Option) *Uploader {
	u := &Uploader{
		objects:    objects,
		bucket:     DefaultBucket,
		httpClient: newFetchClient(30*time.Second, publicOnly),
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload validates an uploaded file and stores it under the collection's
// prefix, named after the record. Nothing is sent to the store when
// validation fails.
func (u *Uploader) Upload(ctx context.Context, session *backend.Session, collection, recordName string, f File) (publicURL string, err error) {
	defer func() { telemetry.ObserveUpload("file", err) }()

	contentType := f.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = DetectMimeType(f.Filename, nil)
	}
	if err := ValidateImage(contentType, f.Size); err != nil {
		return "", err
	}
	body := f.Body
	if f.Size < 0 {
		// Unknown size: enforce the ceiling while reading.
		data, err := readLimited(f.Body)
		if err != nil {
			return "", err
		}
		body = bytes.NewReader(data)
	}

	ext := extFromFilename(f.Filename)
	if ext == "" {
		ext = extFromMimeType(contentType)
	}
	return u.put(ctx, session, collection, recordName, ext, baseMimeType(contentType), body)
}

// FetchAndUpload downloads an image from rawURL and re-hosts it. When the
// URL serves an HTML page, its og:image is followed instead.
func (u *Uploader) FetchAndUpload(ctx context.Context, session *backend.Session, collection, recordName, rawURL string) (publicURL string, err error) {
	defer func() { telemetry.ObserveUpload("url", err) }()

	data, contentType, err := u.fetchImage(ctx, strings.TrimSpace(rawURL), true)
	if err != nil {
		if e, ok := mlferrors.As(err); ok && e.Code == mlferrors.ErrCodeValidation {
			return "", err
		}
		return "", mlferrors.Wrap(err, mlferrors.ErrCodeRemoteCall, "fetch image").
			WithContext("url", rawURL).
			WithUserMessage("Failed to fetch and upload image")
	}

	publicURL, err = u.put(ctx, session, collection, recordName, extFromMimeType(contentType), contentType, bytes.NewReader(data))
	if err != nil {
		return "", mlferrors.Remote(err, "Failed to fetch and upload image")
	}
	return publicURL, nil
}

func (u *Uploader) put(ctx context.Context, session *backend.Session, collection, recordName, ext, contentType string, body io.Reader) (string, error) {
	if u.objects == nil {
		return "", mlferrors.New(mlferrors.ErrCodeConfigInvalid, "no object store").
			WithUserMessage("Image storage is not configured")
	}
	path := ObjectPath(collection, recordName, ext, u.now())
	if err := u.objects.Upload(ctx, session, u.bucket, path, contentType, body); err != nil {
		u.logger.Warn("image upload failed", zap.String("path", path), zap.Error(err))
		return "", err
	}
	u.logger.Info("image uploaded", zap.String("bucket", u.bucket), zap.String("path", path))
	return u.objects.PublicURL(u.bucket, path), nil
}

func (u *Uploader) get(ctx context.Context, target string) (*http.Response, error) {
	parsed, err := url.Parse(target)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, mlferrors.Validation("Image URL must be an http(s) URL").WithContext("url", target)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "image/*,text/html;q=0.8")
	resp, err := u.httpClient.Do(req)
	if errors.Is(err, errBlockedAddress) {
		return nil, mlferrors.Validation(MsgPrivateAddress).WithContext("url", target)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}
	return resp, nil
}

func (u *Uploader) fetchImage(ctx context.Context, target string, followPage bool) ([]byte, string, error) {
	resp, err := u.get(ctx, target)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if followPage && strings.HasPrefix(baseMimeType(contentType), "text/html") {
		imageURL, err := ogImage(resp.Body, resp.Request.URL)
		if err != nil {
			return nil, "", err
		}
		return u.fetchImage(ctx, imageURL, false)
	}

	if contentType == "" {
		contentType = DetectMimeType(resp.Request.URL.Path, nil)
	}
	if contentType != "" {
		if err := ValidateImage(contentType, resp.ContentLength); err != nil {
			return nil, "", err
		}
	} else if resp.ContentLength > MaxImageBytes {
		return nil, "", mlferrors.Validation(MsgTooLarge).WithContext("size", resp.ContentLength)
	}
	data, err := readLimited(resp.Body)
	if err != nil {
		return nil, "", err
	}
	if contentType == "" {
		contentType = DetectMimeType("", data)
		if err := ValidateImage(contentType, int64(len(data))); err != nil {
			return nil, "", err
		}
	}
	return data, baseMimeType(contentType), nil
}

// readLimited reads at most MaxImageBytes, failing when there is more.
func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) > MaxImageBytes {
		return nil, mlferrors.Validation(MsgTooLarge)
	}
	return data, nil
}

// ogImage finds the page's og:image (or twitter:image) and resolves it
// against the page URL.
func ogImage(page io.Reader, base *url.URL) (string, error) {
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(page, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}
	var found string
	for _, sel := range []string{
		`meta[property="og:image"]`,
		`meta[property="og:image:url"]`,
		`meta[name="twitter:image"]`,
	} {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			found = strings.TrimSpace(v)
			break
		}
	}
	if found == "" {
		return "", mlferrors.Validation(MsgNotImage).WithContext("reason", "page has no og:image")
	}
	ref, err := url.Parse(found)
	if err != nil {
		return "", fmt.Errorf("invalid og:image URL: %w", err)
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	return ref.String(), nil
}
