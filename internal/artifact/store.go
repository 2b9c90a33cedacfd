package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// ErrNotFound indicates that no image has been published yet.
var ErrNotFound = errors.New("artifact: source image not found")

const lockRetryDelay = 50 * time.Millisecond

// Info describes the stored image.
type Info struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// Store is a single image file on disk.
type Store struct {
	path string

	// mu serializes publishers in this process; lock covers other processes.
	mu   sync.Mutex
	lock *flock.Flock
}

// New returns a store for dir/name. The directory is created on Publish.
func New(dir, name string) *Store {
	path := filepath.Join(dir, name)
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the image location.
func (s *Store) Path() string { return s.path }

// Stat reports the image modification time and size.
func (s *Store) Stat() (Info, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{}, ErrNotFound
		}
		return Info{}, fmt.Errorf("artifact: stat %s: %w", s.path, err)
	}
	if info.IsDir() {
		return Info{}, fmt.Errorf("artifact: %s is a directory", s.path)
	}
	return Info{Path: s.path, ModTime: info.ModTime(), Size: info.Size()}, nil
}

// Read returns the full image bytes. The file may have been replaced since the
// last Stat.
func (s *Store) Read() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("artifact: read %s: %w", s.path, err)
	}
	return data, nil
}

// Publish atomically replaces the stored image with the contents of r.
func (s *Store) Publish(ctx context.Context, r io.Reader) (Info, error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Info{}, fmt.Errorf("artifact: create directory %q: %w", dir, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return Info{}, fmt.Errorf("artifact: acquire publish lock: %w", err)
	}
	if !locked {
		return Info{}, errors.New("artifact: publish lock not acquired")
	}
	defer func() { _ = s.lock.Unlock() }()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return Info{}, fmt.Errorf("artifact: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		cleanup()
		return Info{}, fmt.Errorf("artifact: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return Info{}, fmt.Errorf("artifact: close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		cleanup()
		return Info{}, fmt.Errorf("artifact: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		cleanup()
		return Info{}, fmt.Errorf("artifact: replace %s: %w", s.path, err)
	}
	return s.Stat()
}
