package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	xerrors "github.com/vango-dev/xripc/internal/errors"
	"github.com/vango-dev/xripc/pkg/shm"
	"github.com/vango-dev/xripc/pkg/xrt"
)

// Server is the IPC server process: it owns the devices, the compositor,
// the shared memory segment, the listening socket and the single client
// slot, and drives them from one loop.
type Server struct {
	cfg    *ServerConfig
	logger *slog.Logger
	tracer trace.Tracer

	// Devices and output
	inst    xrt.Instance
	devices []xrt.Device
	origins []*xrt.TrackingOrigin
	comp    xrt.Compositor
	snap    xrt.Snapshotter
	sched   *scheduler

	// Shared memory handed to clients
	seg *shm.Segment

	// Event loop
	listener *listener
	poller   *poller
	adminFD  int

	client *ClientState

	// ctx is the context of the running loop; workers derive from it.
	ctx context.Context

	running          atomic.Bool
	exitOnDisconnect atomic.Bool

	metrics  *metrics
	counters counters

	captures chan captureRequest
	admin    io.Closer

	closeOnce sync.Once
	closeErr  error
}

type captureRequest struct {
	reply chan captureResult
}

type captureResult struct {
	png []byte
	err error
}

// New creates a Server for the devices of inst. Call Init before Run.
func New(cfg *ServerConfig, inst xrt.Instance) *Server {
	cfg = cfg.withDefaults()

	s := &Server{
		cfg:      cfg,
		logger:   cfg.Logger.With("component", "server"),
		tracer:   otel.Tracer("xripc"),
		inst:     inst,
		adminFD:  -1,
		ctx:      context.Background(),
		metrics:  newMetrics(cfg.Registry),
		captures: make(chan captureRequest, 1),
	}
	s.exitOnDisconnect.Store(cfg.ExitOnDisconnect)
	s.client = newClientState(s)
	return s
}

// Init selects devices, creates the compositor, publishes the shared
// memory segment and opens the listening socket. On failure everything
// already created is released and the error carries a registry code.
func (s *Server) Init() error {
	if err := s.init(); err != nil {
		s.logger.Error("initialization failed", "error", err)
		_ = s.Close()
		return err
	}
	s.running.Store(true)
	return nil
}

func (s *Server) init() error {
	devices, err := s.inst.Select(s.cfg.MaxDevices)
	if err != nil {
		return xerrors.New("E132").Wrap(err)
	}
	s.devices = devices
	if len(devices) == 0 || devices[0] == nil {
		return xerrors.New("E130").Wrap(ErrNoDevice)
	}
	s.origins = shm.CollectTrackingOrigins(devices)
	for i, d := range devices {
		s.logger.Info("device selected", "index", i, "name", d.Name().String(), "str", d.Str())
	}

	comp, err := s.inst.CreateCompositor(devices[0])
	if err != nil {
		return xerrors.New("E131").Wrap(err)
	}
	s.comp = comp
	s.snap, _ = comp.(xrt.Snapshotter)
	s.sched = newScheduler(s, comp.Renderer())

	seg, err := shm.Create(s.cfg.ShmName)
	if err != nil {
		return xerrors.New("E100").Wrap(err)
	}
	s.seg = seg
	if err := shm.Publish(seg.Layout(), devices); err != nil {
		return xerrors.New("E101").Wrap(err)
	}

	l, err := listen(s.cfg)
	switch {
	case errors.Is(err, ErrAlreadyRunning):
		return xerrors.New("E110").Wrap(err)
	case errors.Is(err, ErrTooManyActivationFDs):
		return xerrors.New("E111").Wrap(err)
	case err != nil:
		return xerrors.New("E112").Wrap(err)
	}
	s.listener = l

	p, err := newPoller()
	if err != nil {
		return xerrors.New("E120").Wrap(err)
	}
	s.poller = p
	if s.cfg.WatchAdminFD && !l.activated {
		if err := p.add(s.cfg.AdminFD); err != nil {
			return xerrors.New("E120").Wrap(err)
		}
		s.adminFD = s.cfg.AdminFD
	}
	if err := p.add(l.fd); err != nil {
		return xerrors.New("E120").Wrap(err)
	}

	s.logger.Info("server initialized",
		"socket", s.cfg.SocketPath,
		"activated", l.activated,
		"devices", len(devices),
		"tracking_origins", len(s.origins),
	)
	return nil
}

// Run drives the loop until the server is stopped, ctx is done, the admin
// descriptor becomes readable or, with ExitOnDisconnect, the client leaves.
// A poll or accept failure ends the loop with an error.
func (s *Server) Run(ctx context.Context) error {
	if s.sched == nil || s.poller == nil {
		return ErrNotInitialized
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.ctx = ctx
	stop := context.AfterFunc(ctx, func() { s.running.Store(false) })
	defer stop()

	s.logger.Info("server running")
	for s.running.Load() {
		if err := s.checkPoll(); err != nil {
			s.logger.Error("event loop failed", "error", err)
			return err
		}
		if !s.running.Load() {
			break
		}
		s.sched.step()
	}
	s.logger.Info("server stopped")
	return nil
}

// Stop asks the loop to return after the current iteration. Safe to call
// from any goroutine.
func (s *Server) Stop() {
	s.running.Store(false)
}

// SetExitOnDisconnect changes whether the server stops when its client
// disconnects. Safe to call from any goroutine.
func (s *Server) SetExitOnDisconnect(v bool) {
	s.exitOnDisconnect.Store(v)
}

// AttachAdmin registers the admin endpoint so Close shuts it down first.
func (s *Server) AttachAdmin(c io.Closer) {
	s.admin = c
}

// Capture returns the last drawn frame as PNG. The render loop takes the
// snapshot between two frames.
func (s *Server) Capture(ctx context.Context) ([]byte, error) {
	if s.comp == nil {
		return nil, ErrNotInitialized
	}
	if s.snap == nil {
		return nil, ErrCaptureUnsupported
	}
	if !s.running.Load() {
		return nil, ErrClosed
	}

	req := captureRequest{reply: make(chan captureResult, 1)}
	select {
	case s.captures <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-req.reply:
		return res.png, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// serveCapture answers at most one pending capture request.
func (s *Server) serveCapture() {
	select {
	case req := <-s.captures:
		png, err := s.snap.SnapshotPNG()
		if err == nil {
			s.metrics.capturesServed.Inc()
		}
		req.reply <- captureResult{png: png, err: err}
	default:
	}
}

// Close releases everything the server holds: admin endpoint, client
// worker, compositor, devices, instance, shared memory, epoll and socket,
// in that order. Safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.running.Store(false)
		var errs []error

		if s.admin != nil {
			errs = append(errs, s.admin.Close())
		}
		s.client.stop()
		s.client.reset()

		if s.sched != nil {
			s.sched.releaseLayers()
		}
		if s.comp != nil {
			s.comp.GarbageCollect()
			s.comp.Destroy()
		}
		for _, d := range s.devices {
			if d != nil {
				d.Destroy()
			}
		}
		if s.inst != nil {
			s.inst.Destroy()
		}
		if s.seg != nil {
			errs = append(errs, s.seg.Close())
		}
		if s.poller != nil {
			errs = append(errs, s.poller.close())
		}
		if s.listener != nil {
			errs = append(errs, s.listener.close())
		}

		s.closeErr = errors.Join(errs...)
		s.logger.Info("server closed")
	})
	return s.closeErr
}

// Config returns the server configuration.
func (s *Server) Config() *ServerConfig {
	return s.cfg
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}
