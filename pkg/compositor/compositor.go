package compositor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vango-dev/xripc/pkg/xrt"
)

// Limits for swapchains created by clients.
const (
	MaxImageCount = 4
	MaxArraySize  = 2
	MaxDimension  = 4096
)

// Config configures a Compositor.
type Config struct {
	// Width and Height are the framebuffer size. Each eye gets half the
	// width.
	Width  int
	Height int

	// RefreshRate in Hz paces Draw. Zero disables pacing.
	RefreshRate float64

	// IdleColor clears the framebuffer while no layers are allocated.
	IdleColor string

	// ActiveColor clears the framebuffer behind client layers.
	ActiveColor string

	// StatusOverlay draws a status line at the bottom of the framebuffer.
	StatusOverlay bool

	// Logger is the compositor's logger. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Width:       1280,
		Height:      720,
		RefreshRate: 90,
		IdleColor:   "#1a1a1a",
		ActiveColor: "#000000",
	}
}

// Compositor implements xrt.Compositor and xrt.Snapshotter.
type Compositor struct {
	cfg    Config
	logger *slog.Logger

	renderer *renderer

	mu      sync.Mutex
	nextID  uint64
	live    map[uint64]*swapchain
	retired []*swapchain
	closed  bool
}

var (
	_ xrt.Compositor  = (*Compositor)(nil)
	_ xrt.Snapshotter = (*Compositor)(nil)
)

// New creates a compositor with a framebuffer of cfg.Width x cfg.Height.
// Zero fields take their DefaultConfig values.
func New(cfg Config) (*Compositor, error) {
	def := DefaultConfig()
	if cfg.Width == 0 {
		cfg.Width = def.Width
	}
	if cfg.Height == 0 {
		cfg.Height = def.Height
	}
	if cfg.IdleColor == "" {
		cfg.IdleColor = def.IdleColor
	}
	if cfg.ActiveColor == "" {
		cfg.ActiveColor = def.ActiveColor
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Width < 2 || cfg.Height < 1 || cfg.Width > 2*MaxDimension || cfg.Height > MaxDimension {
		return nil, fmt.Errorf("%w: framebuffer %dx%d", ErrInvalidSize, cfg.Width, cfg.Height)
	}
	if cfg.RefreshRate < 0 {
		return nil, fmt.Errorf("compositor: negative refresh rate %v", cfg.RefreshRate)
	}

	c := &Compositor{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "compositor"),
		live:   make(map[uint64]*swapchain),
	}
	r, err := newRenderer(c)
	if err != nil {
		return nil, err
	}
	c.renderer = r

	c.logger.Info("compositor created",
		"width", cfg.Width,
		"height", cfg.Height,
		"refresh_rate", cfg.RefreshRate,
	)
	return c, nil
}

// CreateSwapchain allocates a ring of info.ImageCount images, each with
// info.ArraySize layers of info.Width x info.Height RGBA8 pixels.
func (c *Compositor) CreateSwapchain(info xrt.SwapchainCreateInfo) (xrt.Swapchain, error) {
	if info.Format != xrt.FormatRGBA8 {
		return nil, fmt.Errorf("%w: 0x%x", ErrInvalidFormat, info.Format)
	}
	if info.Width == 0 || info.Height == 0 || info.Width > MaxDimension || info.Height > MaxDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, info.Width, info.Height)
	}
	if info.ImageCount == 0 || info.ImageCount > MaxImageCount {
		return nil, fmt.Errorf("%w: %d", ErrImageCount, info.ImageCount)
	}
	arraySize := info.ArraySize
	if arraySize == 0 {
		arraySize = 1
	}
	if arraySize > MaxArraySize {
		return nil, fmt.Errorf("%w: array size %d", ErrInvalidSize, info.ArraySize)
	}

	sc, err := newSwapchain(c, int(info.Width), int(info.Height), int(info.ImageCount), int(arraySize))
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	c.nextID++
	sc.id = c.nextID
	c.live[sc.id] = sc

	c.logger.Debug("swapchain created",
		"swapchain", sc.id,
		"width", info.Width,
		"height", info.Height,
		"images", info.ImageCount,
		"array_size", arraySize,
	)
	return sc, nil
}

// retire moves sc from the live set to the deferred-destroy queue.
func (c *Compositor) retire(sc *swapchain) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.live[sc.id]; !ok {
		return
	}
	delete(c.live, sc.id)
	c.retired = append(c.retired, sc)
}

// Renderer returns the renderer driven by the render loop.
func (c *Compositor) Renderer() xrt.Renderer {
	return c.renderer
}

// GarbageCollect frees swapchains destroyed since the last call.
func (c *Compositor) GarbageCollect() {
	c.mu.Lock()
	retired := c.retired
	c.retired = nil
	c.mu.Unlock()

	for _, sc := range retired {
		sc.release()
	}
	if len(retired) > 0 {
		c.logger.Debug("swapchains collected", "count", len(retired))
	}
}

// Stats is a point-in-time view of the compositor.
type Stats struct {
	Frames           uint64
	Layers           int
	LiveSwapchains   int
	RetiredSwapchain int
}

// Stats returns current counters.
func (c *Compositor) Stats() Stats {
	c.mu.Lock()
	live, retired := len(c.live), len(c.retired)
	c.mu.Unlock()
	frames, layers := c.renderer.counters()
	return Stats{
		Frames:           frames,
		Layers:           layers,
		LiveSwapchains:   live,
		RetiredSwapchain: retired,
	}
}

// SnapshotPNG returns the most recently drawn frame as PNG.
func (c *Compositor) SnapshotPNG() ([]byte, error) {
	return c.renderer.snapshotPNG()
}

// Destroy releases all swapchains and the framebuffer. The compositor must
// not be used afterwards.
func (c *Compositor) Destroy() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	all := c.retired
	for _, sc := range c.live {
		all = append(all, sc)
	}
	c.live = nil
	c.retired = nil
	c.mu.Unlock()

	for _, sc := range all {
		sc.release()
	}
	c.renderer.close()
	c.logger.Info("compositor destroyed")
}

// framePeriod returns the pacing period, or zero when pacing is off.
func (c *Compositor) framePeriod() time.Duration {
	if c.cfg.RefreshRate == 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.cfg.RefreshRate)
}
