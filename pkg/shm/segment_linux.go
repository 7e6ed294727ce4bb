//go:build linux

package shm

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// Dir is where named segments are created.
var Dir = "/dev/shm"

// Segment is a mapped shared memory segment.
type Segment struct {
	fd     int
	mem    []byte
	layout *Layout

	closeOnce sync.Once
	closeErr  error
}

// Create creates, sizes and maps a new segment called name, then removes
// the name. The segment lives as long as its descriptor or any mapping.
func Create(name string) (*Segment, error) {
	path := filepath.Join(Dir, name)
	flags := unix.O_CREAT | unix.O_EXCL | unix.O_RDWR | unix.O_CLOEXEC

	fd, err := unix.Open(path, flags, 0600)
	if errors.Is(err, unix.EEXIST) {
		// Left behind by a crash between open and unlink.
		_ = unix.Unlink(path)
		fd, err = unix.Open(path, flags, 0600)
	}
	if err != nil {
		return nil, fmt.Errorf("shm: open %s: %w", path, err)
	}

	if err := unix.Ftruncate(fd, int64(LayoutSize)); err != nil {
		_ = unix.Unlink(path)
		_ = unix.Close(fd)
		return nil, fmt.Errorf("shm: truncate %s: %w", path, err)
	}

	mem, err := unix.Mmap(fd, 0, LayoutSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Unlink(path)
		_ = unix.Close(fd)
		return nil, fmt.Errorf("shm: mmap %s: %w", path, err)
	}

	if err := unix.Unlink(path); err != nil {
		_ = unix.Munmap(mem)
		_ = unix.Close(fd)
		return nil, fmt.Errorf("shm: unlink %s: %w", path, err)
	}

	return &Segment{fd: fd, mem: mem, layout: layoutAt(mem)}, nil
}

// Open maps a segment received as a descriptor and validates its header.
// The segment takes ownership of fd.
func Open(fd int) (*Segment, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("shm: fstat: %w", err)
	}
	if st.Size < int64(LayoutSize) {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrSegmentTooSmall, st.Size, LayoutSize)
	}

	mem, err := unix.Mmap(fd, 0, LayoutSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("shm: mmap: %w", err)
	}

	s := &Segment{fd: fd, mem: mem, layout: layoutAt(mem)}
	if err := s.layout.Check(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// FD returns the segment's descriptor. It stays owned by the segment.
func (s *Segment) FD() int {
	return s.fd
}

// Layout returns the mapped layout.
func (s *Segment) Layout() *Layout {
	return s.layout
}

// Close unmaps the segment and closes its descriptor.
func (s *Segment) Close() error {
	s.closeOnce.Do(func() {
		s.layout = nil
		if err := unix.Munmap(s.mem); err != nil {
			s.closeErr = fmt.Errorf("shm: munmap: %w", err)
		}
		s.mem = nil
		if err := unix.Close(s.fd); err != nil && s.closeErr == nil {
			s.closeErr = fmt.Errorf("shm: close: %w", err)
		}
	})
	return s.closeErr
}
