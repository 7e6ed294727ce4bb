//go:build linux

package server

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

const (
	// activationFD is the first descriptor passed by socket activation.
	activationFD = 3

	// listenBacklog is the pending connection queue length.
	listenBacklog = 8
)

// listener is the listening socket, either adopted from socket activation
// or bound by the server.
type listener struct {
	fd        int
	path      string
	bound     bool
	activated bool
}

// listen adopts an activation socket when one was passed to this process,
// otherwise binds cfg.SocketPath.
func listen(cfg *ServerConfig) (*listener, error) {
	fd, ok, err := activationSocket(cfg.Getenv, cfg.Getpid())
	if err != nil {
		return nil, err
	}
	if ok {
		return &listener{fd: fd, activated: true}, nil
	}

	fd, err = bindSocket(cfg.SocketPath)
	if err != nil {
		return nil, err
	}
	return &listener{fd: fd, path: cfg.SocketPath, bound: true}, nil
}

// activationSocket reports the socket passed by a service manager. The
// environment only applies when LISTEN_PID names this process.
func activationSocket(getenv func(string) string, pid int) (int, bool, error) {
	listenPID, err := strconv.Atoi(getenv("LISTEN_PID"))
	if err != nil || listenPID != pid {
		return -1, false, nil
	}
	n, err := strconv.Atoi(getenv("LISTEN_FDS"))
	if err != nil || n <= 0 {
		return -1, false, nil
	}
	if n > 1 {
		return -1, false, fmt.Errorf("%w: LISTEN_FDS=%d", ErrTooManyActivationFDs, n)
	}
	unix.CloseOnExec(activationFD)
	return activationFD, true, nil
}

// bindSocket creates, binds and listens on a unix stream socket at path.
func bindSocket(path string) (int, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("server: socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		_ = unix.Close(fd)
		if errors.Is(err, unix.EADDRINUSE) {
			return -1, fmt.Errorf("%w: %s is in use", ErrAlreadyRunning, path)
		}
		return -1, fmt.Errorf("server: bind %s: %w", path, err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		_ = unix.Close(fd)
		_ = os.Remove(path)
		return -1, fmt.Errorf("server: listen %s: %w", path, err)
	}
	return fd, nil
}

// close closes the socket and removes the socket file if the server
// created it.
func (l *listener) close() error {
	err := unix.Close(l.fd)
	if l.bound {
		if rmErr := os.Remove(l.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = rmErr
		}
	}
	return err
}
