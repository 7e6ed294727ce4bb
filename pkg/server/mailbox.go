package server

import (
	"context"
	"sync/atomic"
	"time"
)

// Mailbox states.
const (
	mailboxEmpty uint32 = iota
	mailboxReady
	mailboxClaimed
)

// frameResult is what the scheduler did with a claimed frame.
type frameResult uint8

const (
	frameConsumed frameResult = iota + 1
	frameRejected
)

func (r frameResult) String() string {
	switch r {
	case frameConsumed:
		return "consumed"
	case frameRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// mailbox hands one frame at a time from the client worker to the
// scheduler. The worker writes the layers while the state is Empty and
// publishes them with a store of Ready; the scheduler claims with a CAS and
// reads them; releasing stores Empty and delivers the result.
type mailbox struct {
	state  atomic.Uint32
	result chan frameResult
}

func newMailbox() *mailbox {
	return &mailbox{result: make(chan frameResult, 1)}
}

// publish marks the frame written by the worker as ready.
func (m *mailbox) publish() {
	m.state.Store(mailboxReady)
}

// ready reports whether a frame is waiting to be claimed.
func (m *mailbox) ready() bool {
	return m.state.Load() == mailboxReady
}

// claim takes a ready frame. It fails if there is none or the worker
// withdrew it first.
func (m *mailbox) claim() bool {
	return m.state.CompareAndSwap(mailboxReady, mailboxClaimed)
}

// release returns a claimed frame to the worker.
func (m *mailbox) release(r frameResult) {
	m.state.Store(mailboxEmpty)
	select {
	case m.result <- r:
	default:
	}
}

// withdraw takes back a ready frame the scheduler has not claimed.
func (m *mailbox) withdraw() bool {
	return m.state.CompareAndSwap(mailboxReady, mailboxEmpty)
}

// wait blocks until the scheduler releases the frame. If it is not claimed
// within timeout, or ctx ends first, the frame is withdrawn and ok is
// false. A frame claimed just before the withdrawal is still waited for:
// the scheduler releases within the same loop iteration.
func (m *mailbox) wait(ctx context.Context, timeout time.Duration) (r frameResult, ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r = <-m.result:
		return r, true
	case <-timer.C:
	case <-ctx.Done():
	}

	if m.withdraw() {
		return 0, false
	}
	return <-m.result, true
}

// reset empties the mailbox for a new connection. Only called while no
// worker runs.
func (m *mailbox) reset() {
	m.state.Store(mailboxEmpty)
	select {
	case <-m.result:
	default:
	}
}
