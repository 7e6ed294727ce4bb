package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/xripc/pkg/capture"
	"github.com/vango-dev/xripc/pkg/server"
)

// Backend is the server state the endpoint reports on.
type Backend interface {
	Stats() *server.Stats
	Registry() *prometheus.Registry
	Capture(ctx context.Context) ([]byte, error)
}

// Config configures the admin endpoint.
type Config struct {
	// Address is the TCP listen address, e.g. "127.0.0.1:9464".
	Address string

	// LiveInterval is the /debug/live push interval.
	// Default: 500ms.
	LiveInterval time.Duration

	// CaptureTimeout bounds waiting for the render loop to take a capture.
	// Default: 5s.
	CaptureTimeout time.Duration

	// Store keeps captures. Nil returns the PNG in the response.
	Store capture.Store

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Admin is the admin HTTP endpoint.
type Admin struct {
	cfg     Config
	backend Backend
	logger  *slog.Logger
	router  chi.Router

	upgrader websocket.Upgrader

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	conns      map[*websocket.Conn]struct{}
	done       chan struct{}
	closed     bool
}

// New creates the endpoint for b. Call Start to listen.
func New(b Backend, cfg Config) *Admin {
	if cfg.LiveInterval <= 0 {
		cfg.LiveInterval = 500 * time.Millisecond
	}
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	a := &Admin{
		cfg:     cfg,
		backend: b,
		logger:  cfg.Logger.With("component", "admin"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		conns: make(map[*websocket.Conn]struct{}),
		done:  make(chan struct{}),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", a.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(b.Registry(), promhttp.HandlerOpts{}))
	r.Route("/debug", func(r chi.Router) {
		r.Use(middleware.NoCache)
		r.Get("/vars", a.handleVars)
		r.Get("/live", a.handleLive)
		r.Post("/capture", a.handleCapture)
	})
	a.router = r
	return a
}

// Handler returns the endpoint's router.
func (a *Admin) Handler() http.Handler {
	return a.router
}

// Start listens on the configured address and serves in the background.
func (a *Admin) Start() error {
	ln, err := net.Listen("tcp", a.cfg.Address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.mu.Lock()
	a.listener = ln
	a.httpServer = srv
	a.mu.Unlock()

	a.logger.Info("admin endpoint listening", "address", ln.Addr().String())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("admin endpoint stopped", "error", err)
		}
	}()
	return nil
}

// Addr returns the listening address, or nil before Start.
func (a *Admin) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Close stops live streams and shuts the HTTP server down.
func (a *Admin) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.done)
	for c := range a.conns {
		_ = c.Close()
	}
	srv := a.httpServer
	a.mu.Unlock()

	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *Admin) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := a.backend.Stats()
	status := http.StatusOK
	body := map[string]any{"status": "ok", "running": st.Running}
	if !st.Running {
		status = http.StatusServiceUnavailable
		body["status"] = "stopped"
	}
	writeJSON(w, status, body)
}

func (a *Admin) handleVars(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.backend.Stats())
}

// handleLive pushes a statistics snapshot every LiveInterval until the
// peer goes away or the endpoint closes.
func (a *Admin) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		_ = conn.Close()
		return
	}
	a.conns[conn] = struct{}{}
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		delete(a.conns, conn)
		a.mu.Unlock()
		_ = conn.Close()
	}()

	// Drain control frames; a read error means the peer left.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(a.cfg.LiveInterval)
	defer ticker.Stop()
	for {
		_ = conn.SetWriteDeadline(time.Now().Add(a.cfg.LiveInterval + time.Second))
		if err := conn.WriteJSON(a.backend.Stats()); err != nil {
			return
		}
		select {
		case <-ticker.C:
		case <-gone:
			return
		case <-a.done:
			return
		}
	}
}

type captureResponse struct {
	Location string `json:"location"`
	Bytes    int    `json:"bytes"`
}

func (a *Admin) handleCapture(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), a.cfg.CaptureTimeout)
	defer cancel()

	png, err := a.backend.Capture(ctx)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, server.ErrCaptureUnsupported):
			status = http.StatusNotImplemented
		case errors.Is(err, server.ErrClosed), errors.Is(err, server.ErrNotInitialized):
			status = http.StatusServiceUnavailable
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		}
		a.logger.Warn("capture failed", "error", err)
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	if a.cfg.Store == nil {
		w.Header().Set("Content-Type", capture.ContentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
		return
	}

	loc, err := a.cfg.Store.Save(ctx, capture.NewName(time.Now()), png)
	if err != nil {
		a.logger.Error("storing capture failed", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	a.logger.Info("capture stored", "location", loc, "bytes", len(png))
	writeJSON(w, http.StatusCreated, captureResponse{Location: loc, Bytes: len(png)})
}
