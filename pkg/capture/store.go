package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidName is returned for names that are empty or contain a
	// path separator.
	ErrInvalidName = errors.New("capture: invalid name")

	// ErrEmpty is returned when there is nothing to store.
	ErrEmpty = errors.New("capture: empty image")
)

// ContentType is the media type of stored captures.
const ContentType = "image/png"

// Store persists captures.
type Store interface {
	// Save stores png under name and returns its location.
	Save(ctx context.Context, name string, png []byte) (string, error)
}

// NewName returns a unique capture name for t, e.g.
// "capture-20261018T101500.250Z-3f2a9c1e.png".
func NewName(t time.Time) string {
	return fmt.Sprintf("capture-%s-%s.png", t.UTC().Format("20060102T150405.000Z"), uuid.NewString()[:8])
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// DirStore stores captures as files in a directory.
type DirStore struct {
	dir string
}

var _ Store = (*DirStore)(nil)

// NewDirStore creates dir if needed and returns a store writing into it.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	return &DirStore{dir: dir}, nil
}

// Dir returns the directory captures are written to.
func (s *DirStore) Dir() string {
	return s.dir
}

// Save writes png to a temporary file and renames it into place, so a
// reader never sees a partial capture.
func (s *DirStore) Save(ctx context.Context, name string, png []byte) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	if len(png) == 0 {
		return "", ErrEmpty
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, err := os.CreateTemp(s.dir, ".capture-*")
	if err != nil {
		return "", fmt.Errorf("capture: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(png); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("capture: write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("capture: write %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("capture: %w", err)
	}
	return path, nil
}
