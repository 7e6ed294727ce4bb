package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frame constants.
const (
	// FrameHeaderSize is the size of the frame header in bytes.
	FrameHeaderSize = 6

	// MaxPayloadSize is the maximum payload size.
	MaxPayloadSize = DefaultMaxAllocation
)

// Command identifies the request a frame carries. Replies repeat the
// command of the request with FlagReply set.
type Command uint8

const (
	CmdHandshake         Command = 0x01 // ClientHello / ServerHello (+ shm fd)
	CmdSwapchainCreate   Command = 0x10 // SwapchainCreateInfo / SwapchainCreated
	CmdSwapchainDestroy  Command = 0x11 // SwapchainDestroy / empty
	CmdSwapchainUpload   Command = 0x12 // SwapchainUpload / empty
	CmdLayerSync         Command = 0x20 // LayerSync / empty
	CmdDeviceUpdateInput Command = 0x30 // DeviceUpdateInput / empty
	CmdPing              Command = 0x40 // Ping / Ping
	CmdClose             Command = 0x41 // empty, no reply
)

// String returns the string representation of the command.
func (c Command) String() string {
	switch c {
	case CmdHandshake:
		return "Handshake"
	case CmdSwapchainCreate:
		return "SwapchainCreate"
	case CmdSwapchainDestroy:
		return "SwapchainDestroy"
	case CmdSwapchainUpload:
		return "SwapchainUpload"
	case CmdLayerSync:
		return "LayerSync"
	case CmdDeviceUpdateInput:
		return "DeviceUpdateInput"
	case CmdPing:
		return "Ping"
	case CmdClose:
		return "Close"
	default:
		return fmt.Sprintf("Command(0x%02x)", uint8(c))
	}
}

// FrameFlags are frame flags.
type FrameFlags uint8

const (
	FlagReply FrameFlags = 0x01 // Server → client reply
	FlagError FrameFlags = 0x02 // Payload is an ErrorMessage
)

// Has returns true if the flags contain the specified flag.
func (ff FrameFlags) Has(flag FrameFlags) bool {
	return ff&flag != 0
}

// Frame errors.
var (
	ErrFrameTooLarge = errors.New("protocol: frame payload too large")
)

// Frame represents a protocol frame with header and payload.
//
// Wire format (6 bytes header + variable payload):
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Command     │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (4 bytes, little-endian)      │
//	└─────────────┴──────────────┴───────────────────────────────┘
//	│                                                             │
//	│  Payload (variable length)                                  │
//	│                                                             │
//	└─────────────────────────────────────────────────────────────┘
type Frame struct {
	Command Command
	Flags   FrameFlags
	Payload []byte
}

// Encode encodes the frame to bytes including the header.
func (f *Frame) Encode() ([]byte, error) {
	if len(f.Payload) > MaxPayloadSize {
		return nil, ErrFrameTooLarge
	}
	buf := make([]byte, FrameHeaderSize+len(f.Payload))
	buf[0] = byte(f.Command)
	buf[1] = byte(f.Flags)
	binary.LittleEndian.PutUint32(buf[2:], uint32(len(f.Payload)))
	copy(buf[FrameHeaderSize:], f.Payload)
	return buf, nil
}

// DecodeFrameHeader decodes the frame header, returning command, flags
// and payload length.
func DecodeFrameHeader(data []byte) (Command, FrameFlags, int, error) {
	if len(data) < FrameHeaderSize {
		return 0, 0, 0, io.ErrUnexpectedEOF
	}
	length := binary.LittleEndian.Uint32(data[2:])
	if length > MaxPayloadSize {
		return 0, 0, 0, ErrFrameTooLarge
	}
	return Command(data[0]), FrameFlags(data[1]), int(length), nil
}

// ReadFrame reads a complete frame from an io.Reader.
func ReadFrame(r io.Reader) (*Frame, error) {
	header := make([]byte, FrameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	return readPayload(r, header)
}

func readPayload(r io.Reader, header []byte) (*Frame, error) {
	cmd, flags, length, err := DecodeFrameHeader(header)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}

	return &Frame{
		Command: cmd,
		Flags:   flags,
		Payload: payload,
	}, nil
}

// WriteFrame writes a complete frame to an io.Writer.
func WriteFrame(w io.Writer, f *Frame) error {
	data, err := f.Encode()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// NewRequest creates a request frame.
func NewRequest(cmd Command, payload []byte) *Frame {
	return &Frame{Command: cmd, Payload: payload}
}

// NewReply creates a successful reply frame.
func NewReply(cmd Command, payload []byte) *Frame {
	return &Frame{Command: cmd, Flags: FlagReply, Payload: payload}
}

// NewErrorReply creates an error reply frame.
func NewErrorReply(cmd Command, em *ErrorMessage) *Frame {
	return &Frame{Command: cmd, Flags: FlagReply | FlagError, Payload: EncodeErrorMessage(em)}
}
