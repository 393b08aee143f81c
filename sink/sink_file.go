package sink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

// LockFileName is created inside the output directory while a File sink
// holds it.
const LockFileName = ".export.lock"

// ErrLocked is returned when another process already writes to the
// output directory.
var ErrLocked = errors.New("output directory is locked by another export")

// File writes objects as files under a directory. The first write to a key
// within the sink's lifetime truncates the file; later writes append to it.
// The directory is locked for the sink's lifetime.
type File struct {
	dir  string
	lock *flock.Flock

	mu      sync.Mutex
	written map[string]struct{}
}

// NewFile creates dir if needed and takes its lock.
func NewFile(dir string) (*File, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %q: %w", dir, err)
	}

	lock := flock.New(filepath.Join(dir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock output directory %q: %w", dir, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}

	return &File{dir: dir, lock: lock, written: make(map[string]struct{})}, nil
}

func (s *File) Appends() bool { return true }

func (s *File) Dir() string { return s.dir }

// Location returns the file path key is stored at.
func (s *File) Location(key string) string {
	return filepath.Join(s.dir, filepath.FromSlash(key))
}

func (s *File) Write(ctx context.Context, req WriteRequest) error {
	f, err := s.open(ctx, req.Key)
	if err != nil {
		return err
	}
	if _, err := f.Write(req.Data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %q: %w", req.Key, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %q: %w", req.Key, err)
	}
	return nil
}

func (s *File) WriteStream(ctx context.Context, req StreamWriteRequest) error {
	if req.Writer == nil {
		return fmt.Errorf("nil stream writer for key %q", req.Key)
	}
	f, err := s.open(ctx, req.Key)
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(f, 64*1024)
	if err := req.Writer.WriteTo(bw); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %q: %w", req.Key, err)
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush %q: %w", req.Key, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %q: %w", req.Key, err)
	}
	return nil
}

func (s *File) open(ctx context.Context, key string) (*os.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, fmt.Errorf("empty key")
	}
	if !filepath.IsLocal(filepath.FromSlash(key)) {
		return nil, fmt.Errorf("key %q escapes the output directory", key)
	}

	path := s.Location(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create directory for %q: %w", key, err)
	}

	s.mu.Lock()
	_, seen := s.written[key]
	s.written[key] = struct{}{}
	s.mu.Unlock()

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if seen {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	return f, nil
}

// Close releases the directory lock.
func (s *File) Close() error {
	if err := s.lock.Unlock(); err != nil {
		return fmt.Errorf("unlock output directory %q: %w", s.dir, err)
	}
	return nil
}
