package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// StoredImage describes one write-once file held by a FileStore.
type StoredImage struct {
	ID   string
	Name string
	Path string
	URL  string
}

// FileStore persists images onto the local filesystem under a single
// directory and serves them by URL prefix. Files are written once with a
// fresh random name and never overwritten, so readers need no locking.
type FileStore struct {
	basePath  string
	urlPrefix string
}

// NewFileStore initializes a FileStore rooted at basePath whose files are
// reachable under urlPrefix (e.g. "/uploads").
func NewFileStore(basePath, urlPrefix string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{
		basePath:  basePath,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
	}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// URLPrefix returns the public prefix files are served under.
func (s *FileStore) URLPrefix() string {
	if s == nil {
		return ""
	}
	return s.urlPrefix
}

// Save persists data under a fresh random id with the given extension and
// returns the stored image. The write goes to a temp file first and is
// renamed into place so a cancelled request never leaves a readable
// half-written file behind.
func (s *FileStore) Save(ctx context.Context, data []byte, ext string) (StoredImage, error) {
	id := uuid.NewString()
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = "png"
	}
	name := id + "." + ext
	img, err := s.Write(ctx, name, data)
	if err != nil {
		return StoredImage{}, err
	}
	img.ID = id
	return img, nil
}

// Write persists data under the given file name. Names are sanitized to
// prevent directory traversal.
func (s *FileStore) Write(ctx context.Context, name string, data []byte) (StoredImage, error) {
	if s == nil {
		return StoredImage{}, errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return StoredImage{}, err
	}
	clean, err := sanitizeName(name)
	if err != nil {
		return StoredImage{}, err
	}
	fullPath := filepath.Join(s.basePath, clean)
	tmp, err := os.CreateTemp(s.basePath, ".tmp-*")
	if err != nil {
		return StoredImage{}, fmt.Errorf("storage: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return StoredImage{}, fmt.Errorf("storage: write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return StoredImage{}, fmt.Errorf("storage: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return StoredImage{}, fmt.Errorf("storage: finalize file: %w", err)
	}
	return StoredImage{Name: clean, Path: fullPath, URL: s.URL(clean)}, nil
}

// Read returns the bytes of a stored file.
func (s *FileStore) Read(name string) ([]byte, error) {
	clean, err := sanitizeName(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.basePath, clean))
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", clean, err)
	}
	return data, nil
}

// Exists reports whether a stored file with the given name is present.
func (s *FileStore) Exists(name string) bool {
	clean, err := sanitizeName(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(filepath.Join(s.basePath, clean))
	return err == nil
}

// URL maps a stored file name to its public path.
func (s *FileStore) URL(name string) string {
	return s.urlPrefix + "/" + strings.TrimLeft(name, "/")
}

// FromURL resolves a public path (or bare file name) back to a stored file
// name, reporting whether the path belongs to this store.
func (s *FileStore) FromURL(url string) (string, bool) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", false
	}
	if rest, ok := strings.CutPrefix(url, s.urlPrefix+"/"); ok {
		return rest, true
	}
	if !strings.Contains(url, "/") {
		return url, s.Exists(url)
	}
	return "", false
}

// sanitizeName normalizes a file name and prevents escaping the store root.
func sanitizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("storage: file name is required")
	}
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimLeft(name, "/")
	cleaned := filepath.Clean(name)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || strings.HasPrefix(cleaned, "../") || strings.Contains(cleaned, "/") {
		return "", fmt.Errorf("storage: invalid file name %q", name)
	}
	return cleaned, nil
}
