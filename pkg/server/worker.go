package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/xripc/pkg/protocol"
	"github.com/vango-dev/xripc/pkg/shm"
)

// errCloseRequested ends the request loop after CmdClose.
var errCloseRequested = errors.New("server: close requested")

// run serves one connection until it ends.
func (cs *ClientState) run(ctx context.Context, conn *net.UnixConn) {
	defer cs.finish(conn)

	err := cs.handshake(conn)
	if err == nil {
		err = cs.serve(ctx, conn)
	}

	switch {
	case err == nil, errors.Is(err, errCloseRequested):
		cs.logger.Info("client closed session")
	case errors.Is(err, io.EOF):
		cs.logger.Info("client disconnected")
	case errors.Is(err, net.ErrClosed), ctx.Err() != nil:
		cs.logger.Debug("client connection closed by server")
	default:
		cs.logger.Warn("client worker stopped", "error", err)
	}
}

// finish runs when the worker exits. It leaves the mailbox alone.
func (cs *ClientState) finish(conn *net.UnixConn) {
	wasActive := cs.active.Swap(false)
	if n := cs.retireSwapchains(); n > 0 {
		cs.logger.Debug("swapchains retired", "count", n)
	}
	_ = conn.Close()

	cs.mu.Lock()
	cs.conn = nil
	cs.mu.Unlock()

	cs.s.metrics.clientActive.Set(0)
	cs.s.metrics.swapchains.Set(0)

	if wasActive && cs.s.exitOnDisconnect.Load() {
		cs.logger.Info("client disconnected, exiting as configured")
		cs.s.running.Store(false)
	}
	close(cs.done)
}

// handshake reads ClientHello and answers with ServerHello plus the shared
// memory descriptor.
func (cs *ClientState) handshake(conn *net.UnixConn) error {
	f, err := protocol.ReadFrame(conn)
	if err != nil {
		return err
	}
	cs.s.metrics.requests.WithLabelValues(f.Command.String()).Inc()

	if f.Command != protocol.CmdHandshake {
		_ = protocol.WriteFrame(conn, protocol.NewErrorReply(f.Command,
			protocol.NewFatalError(protocol.ErrNotActive, "handshake required")))
		return NewClientError(cs.id, "handshake", fmt.Errorf("unexpected %s", f.Command))
	}

	hello, err := protocol.DecodeClientHello(f.Payload)
	if err != nil {
		cs.replyHello(conn, protocol.NewServerHelloError(protocol.HandshakeInvalidFormat))
		return NewClientError(cs.id, "handshake", err)
	}
	if !hello.Version.Compatible() {
		cs.replyHello(conn, protocol.NewServerHelloError(protocol.HandshakeVersionMismatch))
		return NewClientError(cs.id, "handshake",
			fmt.Errorf("protocol version %d.%d", hello.Version.Major, hello.Version.Minor))
	}

	reply := &protocol.ServerHello{
		Status:        protocol.HandshakeOK,
		Version:       protocol.CurrentVersion,
		LayoutVersion: shm.LayoutVersion,
		SegmentSize:   uint32(shm.LayoutSize),
		ClientID:      cs.id,
	}
	frame := protocol.NewReply(protocol.CmdHandshake, protocol.EncodeServerHello(reply))
	if err := protocol.WriteFrameFDs(conn, frame, cs.s.seg.FD()); err != nil {
		return NewClientError(cs.id, "handshake", err)
	}

	cs.mu.Lock()
	cs.app = hello.AppName
	cs.mu.Unlock()
	cs.active.Store(true)
	cs.s.metrics.clientActive.Set(1)

	cs.logger.Info("client connected",
		"app", hello.AppName,
		"pid", hello.PID,
		"version", fmt.Sprintf("%d.%d", hello.Version.Major, hello.Version.Minor),
	)
	return nil
}

func (cs *ClientState) replyHello(conn *net.UnixConn, sh *protocol.ServerHello) {
	_ = protocol.WriteFrame(conn, protocol.NewReply(protocol.CmdHandshake, protocol.EncodeServerHello(sh)))
}

// serve handles requests until the connection ends.
func (cs *ClientState) serve(ctx context.Context, conn *net.UnixConn) error {
	for {
		f, err := protocol.ReadFrame(conn)
		if err != nil {
			return err
		}
		if f.Command == protocol.CmdClose {
			cs.s.metrics.requests.WithLabelValues(f.Command.String()).Inc()
			return errCloseRequested
		}

		reply := cs.dispatch(ctx, f)
		if err := protocol.WriteFrame(conn, reply); err != nil {
			return err
		}
		if reply.Flags.Has(protocol.FlagError) {
			if em, err := protocol.DecodeErrorMessage(reply.Payload); err == nil && em.Fatal {
				return NewClientError(cs.id, f.Command.String(), em)
			}
		}
	}
}

// dispatch handles one request inside a span and returns the reply frame.
func (cs *ClientState) dispatch(ctx context.Context, f *protocol.Frame) *protocol.Frame {
	cmd := f.Command.String()
	cs.s.metrics.requests.WithLabelValues(cmd).Inc()

	ctx, span := cs.s.tracer.Start(ctx, "xripc."+cmd,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("xripc.client_id", cs.id),
			attribute.Int("xripc.payload_bytes", len(f.Payload)),
		),
	)
	defer span.End()

	payload, em := cs.handle(ctx, f)
	if em != nil {
		cs.s.metrics.requestErrors.WithLabelValues(cmd, em.Code.String()).Inc()
		span.RecordError(em)
		span.SetStatus(codes.Error, em.Error())
		cs.logger.Debug("request failed", "command", cmd, "error", em)
		return protocol.NewErrorReply(f.Command, em)
	}
	span.SetStatus(codes.Ok, "")
	return protocol.NewReply(f.Command, payload)
}

func (cs *ClientState) handle(ctx context.Context, f *protocol.Frame) ([]byte, *protocol.ErrorMessage) {
	switch f.Command {
	case protocol.CmdSwapchainCreate:
		return cs.handleSwapchainCreate(f.Payload)
	case protocol.CmdSwapchainDestroy:
		return cs.handleSwapchainDestroy(f.Payload)
	case protocol.CmdSwapchainUpload:
		return cs.handleSwapchainUpload(f.Payload)
	case protocol.CmdLayerSync:
		return cs.handleLayerSync(ctx, f.Payload)
	case protocol.CmdDeviceUpdateInput:
		return cs.handleDeviceUpdateInput(f.Payload)
	case protocol.CmdPing:
		if _, err := protocol.DecodePing(f.Payload); err != nil {
			return nil, invalidFrame(err)
		}
		return f.Payload, nil
	case protocol.CmdHandshake:
		return nil, protocol.NewError(protocol.ErrInvalidCommand, "already connected")
	default:
		return nil, protocol.NewError(protocol.ErrInvalidCommand, f.Command.String())
	}
}

func invalidFrame(err error) *protocol.ErrorMessage {
	return protocol.NewError(protocol.ErrInvalidFrame, err.Error())
}

func (cs *ClientState) handleSwapchainCreate(payload []byte) ([]byte, *protocol.ErrorMessage) {
	info, err := protocol.DecodeSwapchainCreateInfo(payload)
	if err != nil {
		return nil, invalidFrame(err)
	}
	if cs.liveSwapchains() >= MaxSwapchains {
		return nil, protocol.NewError(protocol.ErrSwapchainCapacity,
			fmt.Sprintf("all %d swapchain slots in use", MaxSwapchains))
	}

	sc, err := cs.s.comp.CreateSwapchain(*info)
	if err != nil {
		return nil, protocol.NewError(protocol.ErrInvalidSwapchain, err.Error())
	}
	id, ok := cs.addSwapchain(sc)
	if !ok {
		sc.Destroy()
		return nil, protocol.NewError(protocol.ErrSwapchainCapacity,
			fmt.Sprintf("all %d swapchain slots in use", MaxSwapchains))
	}
	cs.s.metrics.swapchains.Set(float64(cs.liveSwapchains()))

	cs.logger.Debug("swapchain created",
		"swapchain", id,
		"width", info.Width,
		"height", info.Height,
		"images", sc.ImageCount(),
	)
	return protocol.EncodeSwapchainCreated(&protocol.SwapchainCreated{
		ID:         id,
		ImageCount: uint32(sc.ImageCount()),
	}), nil
}

func (cs *ClientState) handleSwapchainDestroy(payload []byte) ([]byte, *protocol.ErrorMessage) {
	req, err := protocol.DecodeSwapchainDestroy(payload)
	if err != nil {
		return nil, invalidFrame(err)
	}
	sc := cs.removeSwapchain(req.ID)
	if sc == nil {
		return nil, protocol.NewError(protocol.ErrInvalidSwapchain, fmt.Sprintf("swapchain %d", req.ID))
	}
	sc.Destroy()
	cs.s.metrics.swapchains.Set(float64(cs.liveSwapchains()))
	cs.logger.Debug("swapchain destroyed", "swapchain", req.ID)
	return nil, nil
}

func (cs *ClientState) handleSwapchainUpload(payload []byte) ([]byte, *protocol.ErrorMessage) {
	req, err := protocol.DecodeSwapchainUpload(payload)
	if err != nil {
		return nil, invalidFrame(err)
	}
	sc := cs.swapchain(req.ID)
	if sc == nil {
		return nil, protocol.NewError(protocol.ErrInvalidSwapchain, fmt.Sprintf("swapchain %d", req.ID))
	}
	if err := sc.Upload(int(req.ImageIndex), req.Pixels); err != nil {
		return nil, protocol.NewError(protocol.ErrInvalidImage, err.Error())
	}
	return nil, nil
}

// handleLayerSync hands one frame to the scheduler and waits for it to be
// consumed or rejected.
func (cs *ClientState) handleLayerSync(ctx context.Context, payload []byte) ([]byte, *protocol.ErrorMessage) {
	ls, err := protocol.DecodeLayerSync(payload)
	if err != nil {
		if errors.Is(err, protocol.ErrCollectionTooLarge) {
			return nil, protocol.NewError(protocol.ErrTooManyLayers, fmt.Sprintf("more than %d layers", MaxLayers))
		}
		return nil, invalidFrame(err)
	}
	if cs.liveSwapchains() == 0 {
		cs.s.counters.framesRejected.Add(1)
		cs.s.metrics.framesSubmitted.WithLabelValues(frameRejected.String()).Inc()
		return nil, protocol.NewError(protocol.ErrInvalidSwapchain, "no swapchains")
	}

	rs := &cs.render
	rs.NumLayers = copy(rs.Layers[:], ls.Layers)
	rs.mailbox.publish()

	result, ok := rs.mailbox.wait(ctx, cs.s.cfg.FrameTimeout)
	if !ok {
		cs.s.counters.framesTimedOut.Add(1)
		cs.s.metrics.framesSubmitted.WithLabelValues("timeout").Inc()
		return nil, protocol.NewError(protocol.ErrFrameTimeout,
			fmt.Sprintf("frame not picked up within %s", cs.s.cfg.FrameTimeout))
	}
	if result == frameRejected {
		return nil, protocol.NewError(protocol.ErrInvalidSwapchain, "frame references an unknown swapchain or image")
	}
	return nil, nil
}

func (cs *ClientState) handleDeviceUpdateInput(payload []byte) ([]byte, *protocol.ErrorMessage) {
	req, err := protocol.DecodeDeviceUpdateInput(payload)
	if err != nil {
		return nil, invalidFrame(err)
	}
	i := int(req.DeviceIndex)
	if i >= len(cs.s.devices) {
		return nil, protocol.NewError(protocol.ErrInvalidDevice, fmt.Sprintf("device %d", req.DeviceIndex))
	}
	if err := shm.UpdateDeviceInputs(cs.s.seg.Layout(), i, cs.s.devices[i]); err != nil {
		return nil, protocol.NewError(protocol.ErrInvalidDevice, err.Error())
	}
	return nil, nil
}
