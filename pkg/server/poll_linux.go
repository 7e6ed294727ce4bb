//go:build linux

package server

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// numPollEvents is the number of events taken per epoll_wait.
const numPollEvents = 8

// poller is a level-triggered epoll set polled without blocking.
type poller struct {
	fd     int
	events [numPollEvents]unix.EpollEvent
}

func newPoller() (*poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("server: epoll_create1: %w", err)
	}
	return &poller{fd: fd}, nil
}

// add watches fd for readability.
func (p *poller) add(fd int) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("server: epoll_ctl(%d): %w", fd, err)
	}
	return nil
}

// poll returns the ready events without waiting. The slice is reused by
// the next call.
func (p *poller) poll() ([]unix.EpollEvent, error) {
	n, err := unix.EpollWait(p.fd, p.events[:], 0)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, fmt.Errorf("server: epoll_wait: %w", err)
	}
	return p.events[:n], nil
}

func (p *poller) close() error {
	return unix.Close(p.fd)
}

// checkPoll handles everything that became ready since the last iteration:
// a readable admin fd stops the server, a readable listen socket accepts a
// connection.
func (s *Server) checkPoll() error {
	events, err := s.poller.poll()
	if err != nil {
		s.running.Store(false)
		return err
	}
	for _, ev := range events {
		switch int(ev.Fd) {
		case s.adminFD:
			s.logger.Info("admin descriptor readable, stopping")
			s.running.Store(false)
			return nil
		case s.listener.fd:
			if err := s.handleListen(); err != nil {
				s.running.Store(false)
				return err
			}
		}
	}
	return nil
}
