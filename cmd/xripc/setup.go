package main

import (
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vango-dev/xripc/internal/config"
	"github.com/vango-dev/xripc/internal/errors"
	"github.com/vango-dev/xripc/pkg/capture"
	"github.com/vango-dev/xripc/pkg/compositor"
	"github.com/vango-dev/xripc/pkg/device"
	"github.com/vango-dev/xripc/pkg/server"
)

// loadConfig reads path, or xripc.json / xripc.toml in the working
// directory when path is empty, falling back to defaults when neither
// exists. Environment overrides are applied before validation.
func loadConfig(path string, getenv func(string) string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(".")
		var xe *errors.XRError
		if stderrors.As(err, &xe) && xe.Code == "E141" {
			cfg, err = config.New(), nil
		}
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger from the log settings.
func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(lc.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

func compositorConfig(cfg *config.Config, logger *slog.Logger) compositor.Config {
	return compositor.Config{
		Width:         cfg.Render.Width,
		Height:        cfg.Render.Height,
		RefreshRate:   cfg.Render.RefreshRate,
		IdleColor:     cfg.Render.IdleColor,
		ActiveColor:   cfg.Render.ActiveColor,
		StatusOverlay: cfg.Render.StatusOverlay,
		Logger:        logger,
	}
}

func newInstance(cfg *config.Config, logger *slog.Logger) (*device.Simulated, error) {
	inst, err := device.NewSimulated(device.Config{
		Controllers: cfg.Devices.Controllers,
		Tracker:     cfg.Devices.Tracker,
		Compositor:  compositorConfig(cfg, logger),
		Logger:      logger,
	})
	if err != nil {
		return nil, errors.New("E142").Wrap(err)
	}
	return inst, nil
}

// serverConfig maps the file configuration onto the server's runtime
// settings. The registry also carries the Go runtime collectors.
func serverConfig(cfg *config.Config, logger *slog.Logger) *server.ServerConfig {
	sc := server.DefaultServerConfig()
	if cfg.Socket.Path != "" {
		sc.SocketPath = cfg.Socket.Path
	}
	sc.ShmName = cfg.Shm.Name
	sc.ExitOnDisconnect = cfg.ExitOnDisconnect
	sc.WatchAdminFD = cfg.Socket.WatchStdin == nil || *cfg.Socket.WatchStdin
	if d, err := cfg.FrameTimeoutDuration(); err == nil {
		sc.FrameTimeout = d
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	sc.Registry = reg
	sc.Logger = logger
	return sc
}

// captureStore returns the configured capture store, or nil when
// captures are returned inline.
func captureStore(cc config.CaptureConfig) (capture.Store, error) {
	switch {
	case cc.S3.Bucket != "":
		client := capture.NewS3Client(capture.S3Config{
			Region:       cc.S3.Region,
			Endpoint:     cc.S3.Endpoint,
			UsePathStyle: cc.S3.UsePathStyle,
			Getenv:       os.Getenv,
		})
		return capture.NewS3Store(client, cc.S3.Bucket, cc.S3.Prefix), nil
	case cc.Dir != "":
		store, err := capture.NewDirStore(cc.Dir)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, nil
	}
}
