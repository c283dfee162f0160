package storage

import (
	"context"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// File is an upload waiting to be stored.
type File struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// Store persists uploaded bytes and returns a locator clients can fetch.
// Remove takes a locator returned by Save; removing a missing object is not
// an error.
type Store interface {
	Save(ctx context.Context, f File) (string, error)
	Remove(ctx context.Context, locator string) error
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// objectName makes a collision-free, path-safe name for an upload.
func objectName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = unsafeChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		base = "file"
	}
	return uuid.NewString() + "_" + base
}
