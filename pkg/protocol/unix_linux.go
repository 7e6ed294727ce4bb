//go:build linux

package protocol

import (
	"errors"
	"fmt"
	"io"
	"net"

	"golang.org/x/sys/unix"
)

// maxFDs is the number of descriptors ReadFrameFDs accepts per frame.
const maxFDs = 4

// ErrShortWrite is returned when the kernel accepted only part of a frame
// sent with descriptors.
var ErrShortWrite = errors.New("protocol: short write")

// WriteFrameFDs writes f with fds attached as SCM_RIGHTS ancillary data.
// The descriptors stay open on the sender side.
func WriteFrameFDs(c *net.UnixConn, f *Frame, fds ...int) error {
	data, err := f.Encode()
	if err != nil {
		return err
	}
	if len(fds) == 0 {
		_, err = c.Write(data)
		return err
	}
	oob := unix.UnixRights(fds...)
	n, oobn, err := c.WriteMsgUnix(data, oob, nil)
	if err != nil {
		return err
	}
	if n != len(data) || oobn != len(oob) {
		return ErrShortWrite
	}
	return nil
}

// ReadFrameFDs reads a frame together with any descriptors sent with it.
// The caller owns the returned descriptors.
func ReadFrameFDs(c *net.UnixConn) (*Frame, []int, error) {
	header := make([]byte, FrameHeaderSize)
	oob := make([]byte, unix.CmsgSpace(maxFDs*4))

	n, oobn, _, _, err := c.ReadMsgUnix(header, oob)
	if err != nil {
		return nil, nil, err
	}
	if n == 0 {
		return nil, nil, io.EOF
	}

	fds, err := parseRights(oob[:oobn])
	if err != nil {
		return nil, nil, err
	}

	if n < FrameHeaderSize {
		if _, err := io.ReadFull(c, header[n:]); err != nil {
			closeAll(fds)
			return nil, nil, err
		}
	}

	f, err := readPayload(c, header)
	if err != nil {
		closeAll(fds)
		return nil, nil, err
	}
	return f, fds, nil
}

func parseRights(oob []byte) ([]int, error) {
	if len(oob) == 0 {
		return nil, nil
	}
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, fmt.Errorf("protocol: parse control message: %w", err)
	}
	var fds []int
	for i := range msgs {
		rights, err := unix.ParseUnixRights(&msgs[i])
		if err != nil {
			continue
		}
		fds = append(fds, rights...)
	}
	return fds, nil
}

func closeAll(fds []int) {
	for _, fd := range fds {
		_ = unix.Close(fd)
	}
}
