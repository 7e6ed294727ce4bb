package server

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/xripc/pkg/shm"
)

// SocketFileName is the name of the socket file under the runtime directory.
const SocketFileName = "xripc_comp_ipc"

// ServerConfig holds configuration for the server process.
type ServerConfig struct {
	// SocketPath is the unix socket path to bind when not socket-activated.
	// Default: DefaultSocketPath().
	SocketPath string

	// ShmName is the shared memory segment name.
	// Default: "xripc_shm".
	ShmName string

	// ExitOnDisconnect stops the server when its client disconnects.
	ExitOnDisconnect bool

	// WatchAdminFD stops the server when AdminFD becomes readable.
	// Ignored under socket activation.
	// Default: true.
	WatchAdminFD bool

	// AdminFD is the descriptor watched for the administrative stop.
	// Default: 0 (stdin).
	AdminFD int

	// FrameTimeout bounds how long a submitted frame waits for the render
	// loop before the client gets ErrFrameTimeout.
	// Default: 1 second.
	FrameTimeout time.Duration

	// MaxDevices bounds device selection.
	// Default: shm.MaxDevices.
	MaxDevices int

	// Getenv and Getpid read the socket activation environment.
	// Default: os.Getenv and os.Getpid.
	Getenv func(string) string
	Getpid func() int

	// Registry receives the server's Prometheus collectors.
	// Default: a fresh registry, see Server.Registry.
	Registry *prometheus.Registry

	// Logger is the server's logger.
	// Default: slog.Default().
	Logger *slog.Logger
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		SocketPath:   DefaultSocketPath(),
		ShmName:      "xripc_shm",
		WatchAdminFD: true,
		AdminFD:      0,
		FrameTimeout: time.Second,
		MaxDevices:   shm.MaxDevices,
		Getenv:       os.Getenv,
		Getpid:       os.Getpid,
	}
}

// DefaultSocketPath returns $XDG_RUNTIME_DIR/xripc_comp_ipc, or
// /tmp/xripc_comp_ipc when XDG_RUNTIME_DIR is unset.
func DefaultSocketPath() string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, SocketFileName)
}

// Clone returns a copy of the ServerConfig.
func (c *ServerConfig) Clone() *ServerConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// withDefaults returns a copy of c with unset fields filled in.
func (c *ServerConfig) withDefaults() *ServerConfig {
	defaults := DefaultServerConfig()
	if c == nil {
		return defaults
	}
	cfg := c.Clone()
	if cfg.SocketPath == "" {
		cfg.SocketPath = defaults.SocketPath
	}
	if cfg.ShmName == "" {
		cfg.ShmName = defaults.ShmName
	}
	if cfg.FrameTimeout == 0 {
		cfg.FrameTimeout = defaults.FrameTimeout
	}
	if cfg.MaxDevices == 0 {
		cfg.MaxDevices = defaults.MaxDevices
	}
	if cfg.Getenv == nil {
		cfg.Getenv = defaults.Getenv
	}
	if cfg.Getpid == nil {
		cfg.Getpid = defaults.Getpid
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}
