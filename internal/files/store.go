// Package files stores uploaded document blobs on local disk.
package files

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store keeps each uploaded blob as a single file under a base directory.
// Stored names carry a UUID prefix so two uploads of "report.pdf" never
// collide.
type Store struct {
	dir string
}

// NewStore creates the base directory if needed and returns a Store over it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save writes data under a fresh stored name derived from originalName and
// returns that name.
func (s *Store) Save(originalName string, data []byte) (string, error) {
	name := uuid.New().String() + "_" + sanitizeName(originalName)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("writing upload: %w", err)
	}
	return name, nil
}

// Read returns the blob saved under name.
func (s *Store) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("reading upload %s: %w", name, err)
	}
	return data, nil
}

// Delete removes the blob saved under name. Deleting a name that no longer
// exists is not an error.
func (s *Store) Delete(name string) error {
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting upload %s: %w", name, err)
	}
	return nil
}

// sanitizeName strips path components and replaces characters that are not
// safe in a flat filename.
func sanitizeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == ".." || base == "/" || base == "" {
		return "upload"
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
