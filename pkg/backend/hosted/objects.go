package hosted

import (
	"context"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/madhesh-litfest/mlf/pkg/backend"
	"github.com/madhesh-litfest/mlf/pkg/telemetry"
)

func objectPath(bucket, path string) string {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segs {
		segs[i] = escapeSegment(s)
	}
	return escapeSegment(bucket) + "/" + strings.Join(segs, "/")
}

func escapeSegment(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "%", "%25"), " ", "%20")
}

// Upload stores body at bucket/path. Existing objects are not overwritten.
func (c *Client) Upload(ctx context.Context, session *backend.Session, bucket, path, contentType string, body io.Reader) error {
	return c.do(ctx, call{
		op:          "upload",
		method:      http.MethodPost,
		path:        "/storage/v1/object/" + objectPath(bucket, path),
		body:        body,
		contentType: contentType,
		headers: map[string]string{
			"Cache-Control": "max-age=3600",
			"x-upsert":      "false",
		},
		session: session,
		attrs: []attribute.KeyValue{
			telemetry.AttrBucket.String(bucket),
			telemetry.AttrObjectPath.String(path),
		},
	}, nil)
}

// PublicURL returns the unauthenticated URL of an object in a public bucket.
func (c *Client) PublicURL(bucket, path string) string {
	return c.baseURL + "/storage/v1/object/public/" + objectPath(bucket, path)
}
