//go:build linux

package shm

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Shared futex operations. The private variants only work within one
// process, so the plain ones are used.
const (
	futexWaitOp = 0
	futexWakeOp = 1
)

// Post advances the frame counter and wakes every waiter. It returns the
// new counter value.
func (f *FrameSync) Post() uint32 {
	seq := atomic.AddUint32(&f.Seq, 1)
	if atomic.LoadUint32(&f.Waiters) > 0 {
		_, _ = futexWake(&f.Seq, math.MaxInt32)
	}
	return seq
}

// Current returns the frame counter.
func (f *FrameSync) Current() uint32 {
	return atomic.LoadUint32(&f.Seq)
}

// Wait blocks until the frame counter differs from seen and returns the
// new value. A zero timeout waits forever.
func (f *FrameSync) Wait(seen uint32, timeout time.Duration) (uint32, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	atomic.AddUint32(&f.Waiters, 1)
	defer atomic.AddUint32(&f.Waiters, ^uint32(0))

	for {
		if cur := atomic.LoadUint32(&f.Seq); cur != seen {
			return cur, nil
		}
		var remaining time.Duration
		if timeout > 0 {
			remaining = time.Until(deadline)
			if remaining <= 0 {
				return seen, ErrWaitTimeout
			}
		}
		if err := futexWait(&f.Seq, seen, remaining); err != nil {
			return seen, err
		}
	}
}

// futexWait sleeps while *addr == val, for at most timeout when positive.
// Spurious wakeups are possible; callers re-check their condition.
func futexWait(addr *uint32, val uint32, timeout time.Duration) error {
	var errno unix.Errno
	if timeout > 0 {
		ts := unix.NsecToTimespec(timeout.Nanoseconds())
		_, _, errno = unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(addr)), futexWaitOp,
			uintptr(val), uintptr(unsafe.Pointer(&ts)), 0, 0)
	} else {
		_, _, errno = unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(addr)), futexWaitOp,
			uintptr(val), 0, 0, 0)
	}
	switch errno {
	case 0, unix.EAGAIN, unix.EINTR, unix.ETIMEDOUT:
		return nil
	default:
		return fmt.Errorf("shm: futex wait: %w", errno)
	}
}

// futexWake wakes up to n waiters on addr.
func futexWake(addr *uint32, n int) (int, error) {
	r1, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		futexWakeOp,
		uintptr(n),
		0,
		0,
		0,
	)
	if errno != 0 {
		return 0, fmt.Errorf("shm: futex wake: %w", errno)
	}
	return int(r1), nil
}
