//go:build linux

package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	xerrors "github.com/vango-dev/xripc/internal/errors"
	"github.com/vango-dev/xripc/pkg/protocol"
	"github.com/vango-dev/xripc/pkg/shm"
	"github.com/vango-dev/xripc/pkg/xrt"
)

var (
	// ErrBusy is returned by Dial when the server already serves another
	// client and drops the connection.
	ErrBusy = errors.New("client: server busy")

	// ErrHandshakeRejected is returned by Dial when the server refuses the
	// handshake.
	ErrHandshakeRejected = errors.New("client: handshake rejected")

	// ErrNoSegment is returned by Dial when the handshake reply carries no
	// shared memory descriptor.
	ErrNoSegment = errors.New("client: no shared memory descriptor in handshake")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("client: closed")
)

// waitSlice bounds one futex wait so WaitFrame notices cancellation.
const waitSlice = 100 * time.Millisecond

// Client is a connection to the server plus the mapped shared memory.
type Client struct {
	conn  *net.UnixConn
	seg   *shm.Segment
	hello *protocol.ServerHello

	mu     sync.Mutex // serializes request/reply pairs
	closed bool

	frameMu   sync.Mutex
	lastFrame uint32
}

// Swapchain is a swapchain created on the server.
type Swapchain struct {
	ID         uint32
	ImageCount int
	Width      int
	Height     int
}

// Device is a device as published in shared memory.
type Device struct {
	Index          int
	Name           xrt.DeviceName
	Str            string
	TrackingOrigin int
	Inputs         []xrt.Input
	Outputs        []xrt.Output
}

// TrackingOrigin is a tracking origin as published in shared memory.
type TrackingOrigin struct {
	Name   string
	Type   xrt.TrackingType
	Offset xrt.Pose
}

// Dial connects to the server at path, performs the handshake and maps
// the shared memory segment. The context bounds connecting and the
// handshake.
func Dial(ctx context.Context, path, appName string) (*Client, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, xerrors.New("E152").Wrap(err)
	}
	conn := nc.(*net.UnixConn)

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, err := handshake(conn, appName)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	return c, nil
}

func handshake(conn *net.UnixConn, appName string) (*Client, error) {
	hello := protocol.NewClientHello(appName, uint32(os.Getpid()))
	req := protocol.NewRequest(protocol.CmdHandshake, protocol.EncodeClientHello(hello))
	if err := protocol.WriteFrame(conn, req); err != nil {
		if isDisconnect(err) {
			return nil, xerrors.New("E150").Wrap(ErrBusy)
		}
		return nil, xerrors.New("E152").Wrap(err)
	}

	f, fds, err := protocol.ReadFrameFDs(conn)
	if err != nil {
		if isDisconnect(err) {
			return nil, xerrors.New("E150").Wrap(ErrBusy)
		}
		return nil, xerrors.New("E152").Wrap(err)
	}
	closeFDs := func(from int) {
		for _, fd := range fds[from:] {
			_ = unix.Close(fd)
		}
	}

	if f.Flags.Has(protocol.FlagError) {
		closeFDs(0)
		em, err := protocol.DecodeErrorMessage(f.Payload)
		if err != nil {
			return nil, fmt.Errorf("client: handshake: %w", err)
		}
		return nil, fmt.Errorf("%w: %w", ErrHandshakeRejected, em)
	}

	sh, err := protocol.DecodeServerHello(f.Payload)
	if err != nil {
		closeFDs(0)
		return nil, fmt.Errorf("client: handshake: %w", err)
	}
	switch {
	case sh.Status == protocol.HandshakeVersionMismatch:
		closeFDs(0)
		return nil, xerrors.New("E151").Wrap(fmt.Errorf("%w: %s", ErrHandshakeRejected, sh.Status))
	case sh.Status != protocol.HandshakeOK:
		closeFDs(0)
		return nil, fmt.Errorf("%w: %s", ErrHandshakeRejected, sh.Status)
	case sh.LayoutVersion != shm.LayoutVersion:
		closeFDs(0)
		return nil, xerrors.New("E151").Wrap(fmt.Errorf("shared memory layout %d, want %d", sh.LayoutVersion, shm.LayoutVersion))
	case len(fds) == 0:
		return nil, ErrNoSegment
	}

	closeFDs(1)
	seg, err := shm.Open(fds[0])
	if err != nil {
		if errors.Is(err, shm.ErrVersionMismatch) {
			return nil, xerrors.New("E151").Wrap(err)
		}
		return nil, err
	}

	c := &Client{conn: conn, seg: seg, hello: sh}
	c.lastFrame = seg.Layout().WaitFrame.Current()
	return c, nil
}

// isDisconnect reports whether err means the server dropped the
// connection.
func isDisconnect(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, unix.ECONNRESET) || errors.Is(err, unix.EPIPE)
}

// ID returns the id the server assigned to this connection.
func (c *Client) ID() string {
	return c.hello.ClientID
}

// Layout returns the mapped shared memory. It is valid until Close.
func (c *Client) Layout() *shm.Layout {
	return c.seg.Layout()
}

// Devices returns the published devices with a copy of their current
// inputs and outputs.
func (c *Client) Devices() []Device {
	l := c.seg.Layout()
	devices := make([]Device, l.NumDevices)
	for i := range devices {
		d := &l.Devices[i]
		devices[i] = Device{
			Index:          i,
			Name:           d.Name,
			Str:            shm.String(d.Str[:]),
			TrackingOrigin: int(d.TrackingOriginIndex),
			Inputs:         append([]xrt.Input(nil), l.DeviceInputs(i)...),
			Outputs:        append([]xrt.Output(nil), l.DeviceOutputs(i)...),
		}
	}
	return devices
}

// TrackingOrigins returns the published tracking origins.
func (c *Client) TrackingOrigins() []TrackingOrigin {
	l := c.seg.Layout()
	origins := make([]TrackingOrigin, l.NumTrackingOrigins)
	for i := range origins {
		o := &l.TrackingOrigins[i]
		origins[i] = TrackingOrigin{Name: shm.String(o.Name[:]), Type: o.Type, Offset: o.Offset}
	}
	return origins
}

// HMD returns the published display geometry.
func (c *Client) HMD() xrt.HMDParts {
	return xrt.HMDParts{Views: c.seg.Layout().HMD.Views}
}

// roundTrip sends one request and returns the reply payload. An error
// reply is returned as *protocol.ErrorMessage.
func (c *Client) roundTrip(cmd protocol.Command, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	if err := protocol.WriteFrame(c.conn, protocol.NewRequest(cmd, payload)); err != nil {
		return nil, fmt.Errorf("client: %s: %w", cmd, err)
	}
	f, err := protocol.ReadFrame(c.conn)
	if err != nil {
		return nil, fmt.Errorf("client: %s: %w", cmd, err)
	}
	if f.Command != cmd {
		return nil, fmt.Errorf("client: %s answered with %s", cmd, f.Command)
	}
	if f.Flags.Has(protocol.FlagError) {
		em, err := protocol.DecodeErrorMessage(f.Payload)
		if err != nil {
			return nil, fmt.Errorf("client: %s: %w", cmd, err)
		}
		return nil, em
	}
	return f.Payload, nil
}

// CreateSwapchain creates a swapchain on the server.
func (c *Client) CreateSwapchain(info xrt.SwapchainCreateInfo) (*Swapchain, error) {
	payload, err := c.roundTrip(protocol.CmdSwapchainCreate, protocol.EncodeSwapchainCreateInfo(&info))
	if err != nil {
		return nil, err
	}
	created, err := protocol.DecodeSwapchainCreated(payload)
	if err != nil {
		return nil, err
	}
	return &Swapchain{
		ID:         created.ID,
		ImageCount: int(created.ImageCount),
		Width:      int(info.Width),
		Height:     int(info.Height),
	}, nil
}

// DestroySwapchain destroys swapchain id. Its images stay in use until the
// server's next frame.
func (c *Client) DestroySwapchain(id uint32) error {
	_, err := c.roundTrip(protocol.CmdSwapchainDestroy, protocol.EncodeSwapchainDestroy(&protocol.SwapchainDestroy{ID: id}))
	return err
}

// Upload replaces the pixels of one swapchain image with RGBA8 data.
func (c *Client) Upload(id uint32, image int, pixels []byte) error {
	_, err := c.roundTrip(protocol.CmdSwapchainUpload, protocol.EncodeSwapchainUpload(&protocol.SwapchainUpload{
		ID:         id,
		ImageIndex: uint32(image),
		Pixels:     pixels,
	}))
	return err
}

// SubmitLayers hands the layer list of one frame to the server. It
// returns once the render loop took the frame, rejected it or timed out.
func (c *Client) SubmitLayers(layers ...xrt.LayerRenderState) error {
	payload, err := protocol.EncodeLayerSync(&protocol.LayerSync{Layers: layers})
	if err != nil {
		return err
	}
	_, err = c.roundTrip(protocol.CmdLayerSync, payload)
	return err
}

// UpdateInput asks the server to refresh device's inputs and returns a
// copy of them.
func (c *Client) UpdateInput(device int) ([]xrt.Input, error) {
	_, err := c.roundTrip(protocol.CmdDeviceUpdateInput,
		protocol.EncodeDeviceUpdateInput(&protocol.DeviceUpdateInput{DeviceIndex: uint32(device)}))
	if err != nil {
		return nil, err
	}
	return append([]xrt.Input(nil), c.seg.Layout().DeviceInputs(device)...), nil
}

// WaitFrame blocks until the server draws a frame after the one last
// seen by this client, and returns the frame counter.
func (c *Client) WaitFrame(ctx context.Context) (uint32, error) {
	c.frameMu.Lock()
	defer c.frameMu.Unlock()

	fs := &c.seg.Layout().WaitFrame
	for {
		if err := ctx.Err(); err != nil {
			return c.lastFrame, err
		}
		seq, err := fs.Wait(c.lastFrame, waitSlice)
		if errors.Is(err, shm.ErrWaitTimeout) {
			continue
		}
		if err != nil {
			return c.lastFrame, err
		}
		c.lastFrame = seq
		return seq, nil
	}
}

// Ping measures one round trip to the server.
func (c *Client) Ping() (time.Duration, error) {
	start := time.Now()
	payload, err := c.roundTrip(protocol.CmdPing, protocol.EncodePing(&protocol.Ping{Timestamp: uint64(start.UnixNano())}))
	if err != nil {
		return 0, err
	}
	pong, err := protocol.DecodePing(payload)
	if err != nil {
		return 0, err
	}
	if pong.Timestamp != uint64(start.UnixNano()) {
		return 0, fmt.Errorf("client: ping echoed %d, sent %d", pong.Timestamp, start.UnixNano())
	}
	return time.Since(start), nil
}

// Close ends the session and unmaps the shared memory.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	_ = protocol.WriteFrame(c.conn, protocol.NewRequest(protocol.CmdClose, nil))
	err := c.conn.Close()
	if segErr := c.seg.Close(); err == nil {
		err = segErr
	}
	return err
}
