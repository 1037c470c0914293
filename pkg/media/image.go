// Package media validates image attachments and re-hosts them in the
// object store, either from an uploaded file or from a remote URL.
package media

import (
	"mime"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	mlferrors "github.com/madhesh-litfest/mlf/pkg/errors"
)

// MaxImageBytes is the largest accepted attachment.
const MaxImageBytes = 5 << 20

// Messages shown when an attachment is rejected.
const (
	MsgNotImage       = "Please select an image file"
	MsgTooLarge       = "Image size must be less than 5MB"
	MsgPrivateAddress = "Image URL must point to a public address"
)

// ValidateImage rejects non-image MIME types and sizes over MaxImageBytes.
// A negative size means unknown and is not checked.
func ValidateImage(mimeType string, size int64) error {
	if !IsImageMimeType(mimeType) {
		return mlferrors.Validation(MsgNotImage).WithContext("content_type", mimeType)
	}
	if size > MaxImageBytes {
		return mlferrors.Validation(MsgTooLarge).WithContext("size", size)
	}
	return nil
}

// IsImageMimeType reports whether a Content-Type names an image.
func IsImageMimeType(mimeType string) bool {
	return strings.HasPrefix(baseMimeType(mimeType), "image/")
}

func baseMimeType(v string) string {
	if mt, _, err := mime.ParseMediaType(v); err == nil {
		return strings.ToLower(mt)
	}
	return strings.ToLower(strings.TrimSpace(v))
}

// DetectMimeType infers an image type from the file extension, then from
// magic bytes. It returns "" when neither matches.
func DetectMimeType(path string, data []byte) string {
	if path != "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".png":
			return "image/png"
		case ".jpg", ".jpeg":
			return "image/jpeg"
		case ".gif":
			return "image/gif"
		case ".webp":
			return "image/webp"
		case ".bmp":
			return "image/bmp"
		case ".svg":
			return "image/svg+xml"
		}
	}

	if len(data) >= 12 {
		switch {
		case data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47:
			return "image/png"
		case data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
			return "image/jpeg"
		case data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46:
			return "image/gif"
		case data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
			data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50:
			return "image/webp"
		case data[0] == 0x42 && data[1] == 0x4D:
			return "image/bmp"
		}
	}
	return ""
}

// extFromFilename returns the text after the last dot of a filename.
func extFromFilename(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 && i < len(name)-1 {
		return sanitizeExt(name[i+1:])
	}
	return ""
}

// extFromMimeType returns the subtype of an image type ("image/png" -> "png").
func extFromMimeType(mimeType string) string {
	mt := baseMimeType(mimeType)
	if _, sub, ok := strings.Cut(mt, "/"); ok {
		if i := strings.IndexByte(sub, '+'); i > 0 {
			sub = sub[:i]
		}
		return sanitizeExt(sub)
	}
	return ""
}

var extChars = regexp.MustCompile(`[^a-z0-9]`)

func sanitizeExt(ext string) string {
	return extChars.ReplaceAllString(strings.ToLower(ext), "")
}

// Slug lowercases a display name and joins its words with hyphens.
// Characters that are unsafe in object paths are dropped.
func Slug(name string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsSpace(r):
			pendingDash = b.Len() > 0
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || r == '-' || r == '.' || r == '_':
			if pendingDash {
				b.WriteByte('-')
				pendingDash = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ObjectPath builds "<collection>/<slug>-<unix millis>.<ext>". An empty slug
// falls back to the singular collection name and an empty ext to "jpg".
func ObjectPath(collection, name, ext string, now time.Time) string {
	slug := Slug(name)
	if slug == "" {
		slug = strings.TrimSuffix(collection, "s")
	}
	if ext == "" {
		ext = "jpg"
	}
	return collection + "/" + slug + "-" + strconv.FormatInt(now.UnixMilli(), 10) + "." + ext
}
