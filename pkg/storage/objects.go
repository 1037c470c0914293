package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/madhesh-litfest/mlf/pkg/backend"
	mlferrors "github.com/madhesh-litfest/mlf/pkg/errors"
)

// MediaPrefix is the URL path the web server mounts Objects under.
const MediaPrefix = "/media/"

// Objects stores uploaded files below a root directory, one subdirectory per
// bucket, and serves them through the site's /media/ route.
type Objects struct {
	root    string
	baseURL string
}

// NewObjects creates the root directory if needed. baseURL is the public
// origin of the site (may be empty for same-origin relative URLs).
func NewObjects(root, baseURL string) (*Objects, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("media root cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &Objects{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root returns the directory served under MediaPrefix.
func (o *Objects) Root() string { return o.root }

func cleanObjectPath(bucket, p string) (string, error) {
	joined := path.Clean("/" + bucket + "/" + strings.TrimLeft(p, "/"))
	if bucket == "" || strings.Contains(bucket, "/") || strings.Contains(bucket, "..") ||
		!strings.HasPrefix(joined, "/"+bucket+"/") {
		return "", mlferrors.Validation("invalid object path").WithContext("path", p)
	}
	return strings.TrimPrefix(joined, "/"), nil
}

// Upload writes body to bucket/path. Existing objects are never overwritten.
func (o *Objects) Upload(ctx context.Context, _ *backend.Session, bucket, p, _ string, body io.Reader) error {
	rel, err := cleanObjectPath(bucket, p)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dest := filepath.Join(o.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return mlferrors.New(mlferrors.ErrCodeRemoteCall, "object exists").
				WithContext("path", rel).
				WithUserMessage("The resource already exists")
		}
		return fmt.Errorf("create object: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return fmt.Errorf("write object: %w", err)
	}
	return f.Close()
}

// PublicURL returns the /media/ URL of an object.
func (o *Objects) PublicURL(bucket, p string) string {
	rel, err := cleanObjectPath(bucket, p)
	if err != nil {
		return ""
	}
	u := url.URL{Path: MediaPrefix + rel}
	return o.baseURL + u.EscapedPath()
}
