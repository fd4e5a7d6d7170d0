// Package storage persists uploaded product images on an afero filesystem.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const productsDir = "products"

// ImageStore writes image blobs under a media root and maps them to public URLs.
type ImageStore struct {
	fs       afero.Fs
	mediaURL string
}

// NewImageStore roots the store at mediaRoot on the OS filesystem.
func NewImageStore(mediaRoot, mediaURL string) *ImageStore {
	return NewImageStoreFs(afero.NewBasePathFs(afero.NewOsFs(), mediaRoot), mediaURL)
}

// NewImageStoreFs uses fs as the media root.
func NewImageStoreFs(fs afero.Fs, mediaURL string) *ImageStore {
	if !strings.HasSuffix(mediaURL, "/") {
		mediaURL += "/"
	}
	return &ImageStore{fs: fs, mediaURL: mediaURL}
}

// Fs exposes the media root, used to serve files back.
func (s *ImageStore) Fs() afero.Fs {
	return s.fs
}

// Save writes r to products/<uuid><ext> and returns that relative path.
func (s *ImageStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.fs.MkdirAll(productsDir, 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	name := path.Join(productsDir, uuid.New().String()+strings.ToLower(filepath.Ext(filename)))
	f, err := s.fs.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(name)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(name)
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return name, nil
}

// Delete removes a stored blob. A missing file is not an error.
func (s *ImageStore) Delete(name string) error {
	if name == "" {
		return nil
	}
	if err := s.fs.Remove(name); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// URL returns the public URL of a stored blob.
func (s *ImageStore) URL(name string) string {
	if name == "" {
		return ""
	}
	return s.mediaURL + strings.TrimPrefix(name, "/")
}
