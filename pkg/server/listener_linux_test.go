//go:build linux

package server

import (
	"errors"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

func TestActivationSocket(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantFD  int
		wantOK  bool
		wantErr error
	}{
		{"no environment", nil, -1, false, nil},
		{"other process", map[string]string{"LISTEN_PID": "41", "LISTEN_FDS": "1"}, -1, false, nil},
		{"bad pid", map[string]string{"LISTEN_PID": "x", "LISTEN_FDS": "1"}, -1, false, nil},
		{"no fds", map[string]string{"LISTEN_PID": "42", "LISTEN_FDS": "0"}, -1, false, nil},
		{"one fd", map[string]string{"LISTEN_PID": "42", "LISTEN_FDS": "1"}, activationFD, true, nil},
		{"two fds", map[string]string{"LISTEN_PID": "42", "LISTEN_FDS": "2"}, -1, false, ErrTooManyActivationFDs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getenv := func(k string) string { return tt.env[k] }
			fd, ok, err := activationSocket(getenv, 42)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("activationSocket() error = %v, want %v", err, tt.wantErr)
			}
			if fd != tt.wantFD || ok != tt.wantOK {
				t.Errorf("activationSocket() = %d, %v, want %d, %v", fd, ok, tt.wantFD, tt.wantOK)
			}
		})
	}
}

func TestBindSocketInUse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sock")

	fd, err := bindSocket(path)
	if err != nil {
		t.Fatalf("bindSocket() error = %v", err)
	}
	l := &listener{fd: fd, path: path, bound: true}
	defer l.close()

	if _, err := bindSocket(path); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second bindSocket() error = %v, want %v", err, ErrAlreadyRunning)
	}
}

func TestPollerReportsReadable(t *testing.T) {
	p, err := newPoller()
	if err != nil {
		t.Fatalf("newPoller() error = %v", err)
	}
	defer p.close()

	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		t.Fatalf("Pipe2() error = %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	if err := p.add(fds[0]); err != nil {
		t.Fatalf("add() error = %v", err)
	}

	events, err := p.poll()
	if err != nil || len(events) != 0 {
		t.Fatalf("poll() = %v, %v, want no events", events, err)
	}

	if _, err := unix.Write(fds[1], []byte{1}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	events, err = p.poll()
	if err != nil {
		t.Fatalf("poll() error = %v", err)
	}
	if len(events) != 1 || int(events[0].Fd) != fds[0] {
		t.Errorf("poll() = %+v, want one event for fd %d", events, fds[0])
	}
}
