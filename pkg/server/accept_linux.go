//go:build linux

package server

import (
	"fmt"
	"net"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// handleListen accepts one connection. A second client is turned away
// while the first one's worker runs; a finished worker is joined and its
// slot reused.
func (s *Server) handleListen() error {
	fd, _, err := unix.Accept4(s.listener.fd, unix.SOCK_CLOEXEC)
	if err != nil {
		return fmt.Errorf("server: accept: %w", err)
	}

	cs := s.client
	if cs.running() {
		_ = unix.Close(fd)
		s.counters.connectionsRejected.Add(1)
		s.metrics.connections.WithLabelValues("rejected").Inc()
		s.logger.Warn("client already connected, rejecting connection")
		return nil
	}
	if cs.started {
		cs.join()
		cs.reset()
		s.sched.releaseLayers()
	}

	conn, err := fdConn(fd)
	if err != nil {
		s.logger.Warn("failed to wrap accepted connection", "error", err)
		return nil
	}

	id := uuid.NewString()
	s.counters.connectionsAccepted.Add(1)
	s.metrics.connections.WithLabelValues("accepted").Inc()
	s.logger.Debug("connection accepted", "client_id", id)

	cs.start(s.ctx, conn, id)
	return nil
}

// fdConn wraps an accepted descriptor. The descriptor is consumed.
func fdConn(fd int) (*net.UnixConn, error) {
	f := os.NewFile(uintptr(fd), "xripc-client")
	defer f.Close()
	c, err := net.FileConn(f)
	if err != nil {
		return nil, err
	}
	uc, ok := c.(*net.UnixConn)
	if !ok {
		_ = c.Close()
		return nil, fmt.Errorf("server: accepted %T, want unix connection", c)
	}
	return uc, nil
}
