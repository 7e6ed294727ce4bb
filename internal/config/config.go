package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vango-dev/xripc/internal/errors"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "xripc.json"

	// TOMLConfigFileName is the name of the TOML configuration file.
	TOMLConfigFileName = "xripc.toml"

	// DefaultShmName is the default shared memory segment name.
	DefaultShmName = "xripc_shm"

	// DefaultFrameTimeout is how long a client waits for a submitted frame
	// to be picked up by the render loop.
	DefaultFrameTimeout = "1s"

	// DefaultWidth and DefaultHeight size the compositor framebuffer.
	DefaultWidth  = 1280
	DefaultHeight = 720

	// DefaultRefreshRate is the compositor frame rate in Hz.
	DefaultRefreshRate = 90

	// DefaultIdleColor is drawn while no client submits layers.
	DefaultIdleColor = "#1a1a1a"

	// DefaultActiveColor is drawn behind client layers.
	DefaultActiveColor = "#000000"

	// DefaultLiveInterval is the /debug/live push interval.
	DefaultLiveInterval = "500ms"

	// DefaultControllers is the number of simulated controllers.
	DefaultControllers = 2
)

// Environment variables that override file settings.
const (
	EnvExitOnDisconnect = "IPC_EXIT_ON_DISCONNECT"
	EnvSocket           = "XRIPC_SOCKET"
	EnvLogLevel         = "XRIPC_LOG_LEVEL"
)

// Config represents the complete xripc configuration file.
type Config struct {
	// Socket contains listening socket configuration.
	Socket SocketConfig `json:"socket,omitempty" toml:"socket"`

	// Shm contains shared memory configuration.
	Shm ShmConfig `json:"shm,omitempty" toml:"shm"`

	// ExitOnDisconnect stops the server when its client disconnects.
	ExitOnDisconnect bool `json:"exitOnDisconnect,omitempty" toml:"exit_on_disconnect"`

	// FrameTimeout bounds how long a submitted frame may wait for the
	// render loop (e.g., "1s").
	FrameTimeout string `json:"frameTimeout,omitempty" toml:"frame_timeout"`

	// Render contains compositor configuration.
	Render RenderConfig `json:"render,omitempty" toml:"render"`

	// Devices selects the simulated devices.
	Devices DevicesConfig `json:"devices,omitempty" toml:"devices"`

	// Admin contains the optional HTTP admin endpoint configuration.
	Admin AdminConfig `json:"admin,omitempty" toml:"admin"`

	// Capture contains framebuffer capture storage configuration.
	Capture CaptureConfig `json:"capture,omitempty" toml:"capture"`

	// Log contains logging configuration.
	Log LogConfig `json:"log,omitempty" toml:"log"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// SocketConfig contains listening socket settings.
type SocketConfig struct {
	// Path is the filesystem path of the unix socket. Empty selects
	// $XDG_RUNTIME_DIR/xripc_comp_ipc.
	Path string `json:"path,omitempty" toml:"path"`

	// WatchStdin stops the server when stdin becomes readable.
	// Ignored when the socket comes from socket activation.
	WatchStdin *bool `json:"watchStdin,omitempty" toml:"watch_stdin"`
}

// ShmConfig contains shared memory settings.
type ShmConfig struct {
	// Name is the segment name under /dev/shm.
	Name string `json:"name,omitempty" toml:"name"`
}

// RenderConfig contains compositor settings.
type RenderConfig struct {
	Width       int     `json:"width,omitempty" toml:"width"`
	Height      int     `json:"height,omitempty" toml:"height"`
	RefreshRate float64 `json:"refreshRate,omitempty" toml:"refresh_rate"`

	// IdleColor and ActiveColor are hex colors ("#rrggbb").
	IdleColor   string `json:"idleColor,omitempty" toml:"idle_color"`
	ActiveColor string `json:"activeColor,omitempty" toml:"active_color"`

	// StatusOverlay draws a status line into the framebuffer.
	StatusOverlay bool `json:"statusOverlay,omitempty" toml:"status_overlay"`
}

// DevicesConfig selects the simulated devices.
type DevicesConfig struct {
	// Controllers is the number of simulated controllers (0-2).
	Controllers int `json:"controllers,omitempty" toml:"controllers"`

	// Tracker adds a tracker on its own tracking origin.
	Tracker bool `json:"tracker,omitempty" toml:"tracker"`
}

// AdminConfig contains admin endpoint settings.
type AdminConfig struct {
	// Address is the listen address (e.g., "127.0.0.1:9464"). Empty
	// disables the endpoint.
	Address string `json:"address,omitempty" toml:"address"`

	// LiveInterval is the /debug/live push interval.
	LiveInterval string `json:"liveInterval,omitempty" toml:"live_interval"`
}

// CaptureConfig selects where framebuffer captures are stored.
type CaptureConfig struct {
	// Dir stores captures as files in a local directory.
	Dir string `json:"dir,omitempty" toml:"dir"`

	// S3 stores captures in a bucket. Takes precedence over Dir.
	S3 S3Config `json:"s3,omitempty" toml:"s3"`
}

// S3Config contains S3 capture storage settings.
type S3Config struct {
	Bucket       string `json:"bucket,omitempty" toml:"bucket"`
	Prefix       string `json:"prefix,omitempty" toml:"prefix"`
	Region       string `json:"region,omitempty" toml:"region"`
	Endpoint     string `json:"endpoint,omitempty" toml:"endpoint"`
	UsePathStyle bool   `json:"usePathStyle,omitempty" toml:"use_path_style"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty" toml:"level"`

	// Format is text or json.
	Format string `json:"format,omitempty" toml:"format"`
}

// New creates a new Config with default values.
func New() *Config {
	cfg := &Config{
		Devices: DevicesConfig{Controllers: DefaultControllers},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from the specified directory. It prefers
// xripc.json and falls back to xripc.toml.
func Load(dir string) (*Config, error) {
	jsonPath := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(jsonPath); err == nil {
		return LoadFile(jsonPath)
	}
	tomlPath := filepath.Join(dir, TOMLConfigFileName)
	if _, err := os.Stat(tomlPath); err == nil {
		return LoadFile(tomlPath)
	}
	return LoadFile(jsonPath)
}

// LoadFile reads configuration from the specified file path. Files ending
// in .toml are decoded as TOML, everything else as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E141").
				WithDetail("No " + filepath.Base(path) + " found in " + filepath.Dir(path))
		}
		return nil, errors.New("E140").Wrap(err)
	}

	// -1 marks "not set" so an explicit zero survives decoding.
	cfg := &Config{Devices: DevicesConfig{Controllers: -1}}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, errors.New("E140").
				WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
				WithSuggestion("Check that the file is valid TOML")
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E140").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check that the file is valid JSON")
	}
	if cfg.Devices.Controllers == -1 {
		cfg.Devices.Controllers = DefaultControllers
	}

	cfg.configPath = path
	cfg.applyDefaults()
	return cfg, nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Shm.Name == "" {
		c.Shm.Name = DefaultShmName
	}
	if c.FrameTimeout == "" {
		c.FrameTimeout = DefaultFrameTimeout
	}
	if c.Socket.WatchStdin == nil {
		watch := true
		c.Socket.WatchStdin = &watch
	}

	// Render
	if c.Render.Width == 0 {
		c.Render.Width = DefaultWidth
	}
	if c.Render.Height == 0 {
		c.Render.Height = DefaultHeight
	}
	if c.Render.RefreshRate == 0 {
		c.Render.RefreshRate = DefaultRefreshRate
	}
	if c.Render.IdleColor == "" {
		c.Render.IdleColor = DefaultIdleColor
	}
	if c.Render.ActiveColor == "" {
		c.Render.ActiveColor = DefaultActiveColor
	}

	// Admin
	if c.Admin.LiveInterval == "" {
		c.Admin.LiveInterval = DefaultLiveInterval
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// ApplyEnv overrides settings from environment variables looked up with
// getenv. Invalid boolean values are reported as configuration errors.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvExitOnDisconnect); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.New("E142").
				WithDetail(EnvExitOnDisconnect + " must be a boolean, got " + strconv.Quote(v))
		}
		c.ExitOnDisconnect = b
	}
	if v := getenv(EnvSocket); v != "" {
		c.Socket.Path = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return errors.New("E142").
			WithDetail("render width and height must be positive")
	}
	if c.Render.RefreshRate < 0 {
		return errors.New("E142").
			WithDetail("render refresh rate must not be negative")
	}
	for _, col := range []string{c.Render.IdleColor, c.Render.ActiveColor} {
		if !validHexColor(col) {
			return errors.New("E142").
				WithDetail("invalid color " + strconv.Quote(col) + ", want #rrggbb")
		}
	}
	if c.Devices.Controllers < 0 || c.Devices.Controllers > 2 {
		return errors.New("E142").
			WithDetail("devices.controllers must be between 0 and 2")
	}
	if _, err := c.FrameTimeoutDuration(); err != nil {
		return errors.New("E142").
			WithDetail("invalid frameTimeout: " + err.Error())
	}
	if _, err := c.LiveIntervalDuration(); err != nil {
		return errors.New("E142").
			WithDetail("invalid admin.liveInterval: " + err.Error())
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("E142").
			WithDetail("log.level must be one of debug, info, warn, error")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return errors.New("E142").
			WithDetail("log.format must be text or json")
	}
	return nil
}

// FrameTimeoutDuration parses FrameTimeout.
func (c *Config) FrameTimeoutDuration() (time.Duration, error) {
	return parsePositiveDuration(c.FrameTimeout)
}

// LiveIntervalDuration parses Admin.LiveInterval.
func (c *Config) LiveIntervalDuration() (time.Duration, error) {
	return parsePositiveDuration(c.Admin.LiveInterval)
}

func parsePositiveDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, strconv.ErrRange
	}
	return d, nil
}

func validHexColor(s string) bool {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 && len(s) != 8 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case '0' <= c && c <= '9', 'a' <= c && c <= 'f', 'A' <= c && c <= 'F':
		default:
			return false
		}
	}
	return true
}
