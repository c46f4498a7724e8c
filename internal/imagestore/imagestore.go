package imagestore

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("image not found")
	ErrInvalidRef = errors.New("invalid image reference")
)

// Store keeps source images and resolves opaque references to bytes.
type Store interface {
	Save(ctx context.Context, name string, data []byte, contentType string) (string, error)
	Load(ctx context.Context, ref string) ([]byte, error)
}

// objectName builds a unique, path-safe key while keeping the extension.
func objectName(name string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(name, "\\", "/"))))
	if len(ext) > 8 {
		ext = ""
	}
	return uuid.NewString() + ext
}

// cleanRef rejects references that could escape the store root.
func cleanRef(ref string) (string, error) {
	ref = strings.ReplaceAll(strings.TrimSpace(ref), "\\", "/")
	if ref == "" || strings.HasPrefix(ref, "/") {
		return "", ErrInvalidRef
	}
	c := path.Clean(ref)
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", ErrInvalidRef
	}
	return c, nil
}
