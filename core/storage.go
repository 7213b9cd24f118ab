package core

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// FileStore persists uploaded files and returns their public URL.
type FileStore interface {
	Save(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	// Delete removes the file previously saved under url. Unknown urls are ignored.
	Delete(ctx context.Context, url string) error
}

// NewFileKey builds a collision-free storage key under prefix, keeping the extension of filename.
func NewFileKey(prefix, filename string) string {
	return path.Join(prefix, uuid.NewString()+strings.ToLower(path.Ext(filename)))
}
