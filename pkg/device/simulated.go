package device

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/vango-dev/xripc/pkg/compositor"
	"github.com/vango-dev/xripc/pkg/xrt"
)

// MaxControllers is the number of simulated controllers available.
const MaxControllers = 2

// Errors returned by the simulated instance.
var (
	ErrDestroyed = errors.New("device: instance destroyed")
	ErrNotHMD    = errors.New("device: primary device has no display")
)

// Config configures a simulated instance.
type Config struct {
	// Controllers is the number of controllers, 0 to MaxControllers.
	Controllers int

	// Tracker adds a tracker on a separate tracking origin.
	Tracker bool

	// Compositor configures the compositor created for the HMD. Its width
	// and height also set the per-eye display size.
	Compositor compositor.Config

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Simulated implements xrt.Instance.
type Simulated struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	destroyed bool
}

var _ xrt.Instance = (*Simulated)(nil)

// NewSimulated creates a simulated instance.
func NewSimulated(cfg Config) (*Simulated, error) {
	if cfg.Controllers < 0 || cfg.Controllers > MaxControllers {
		return nil, fmt.Errorf("device: %d controllers, want 0 to %d", cfg.Controllers, MaxControllers)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	def := compositor.DefaultConfig()
	if cfg.Compositor.Width == 0 {
		cfg.Compositor.Width = def.Width
	}
	if cfg.Compositor.Height == 0 {
		cfg.Compositor.Height = def.Height
	}
	if cfg.Compositor.Logger == nil {
		cfg.Compositor.Logger = cfg.Logger
	}
	return &Simulated{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "device"),
	}, nil
}

// Select returns the HMD followed by the controllers and the tracker,
// truncated to max devices.
func (s *Simulated) Select(max int) ([]xrt.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil, ErrDestroyed
	}

	local := &xrt.TrackingOrigin{
		Name:   "Simulated Local Space",
		Type:   xrt.TrackingTypeOther,
		Offset: xrt.Pose{Orientation: xrt.IdentityQuat, Position: xrt.Vec3{Y: 1.6}},
	}

	devices := []xrt.Device{s.newHMD(local)}
	for i := 0; i < s.cfg.Controllers; i++ {
		devices = append(devices, s.newController(local, i))
	}
	if s.cfg.Tracker {
		room := &xrt.TrackingOrigin{
			Name:   "Simulated Room Tracker",
			Type:   xrt.TrackingTypeLighthouse,
			Offset: xrt.IdentityPose,
		}
		devices = append(devices, s.newTracker(room))
	}

	if max >= 0 && len(devices) > max {
		for _, d := range devices[max:] {
			d.Destroy()
		}
		devices = devices[:max]
	}

	for _, d := range devices {
		s.logger.Debug("device selected", "device", d.Str(), "name", d.Name())
	}
	return devices, nil
}

// CreateCompositor creates a software compositor for primary.
func (s *Simulated) CreateCompositor(primary xrt.Device) (xrt.Compositor, error) {
	s.mu.Lock()
	destroyed := s.destroyed
	s.mu.Unlock()
	if destroyed {
		return nil, ErrDestroyed
	}
	if primary == nil || primary.HMD() == nil {
		return nil, ErrNotHMD
	}
	c, err := compositor.New(s.cfg.Compositor)
	if err != nil {
		return nil, fmt.Errorf("device: create compositor: %w", err)
	}
	return c, nil
}

// Destroy releases the instance.
func (s *Simulated) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
}

func (s *Simulated) newHMD(origin *xrt.TrackingOrigin) *simDevice {
	eyeW := uint32(s.cfg.Compositor.Width / 2)
	eyeH := uint32(s.cfg.Compositor.Height)
	fov := xrt.Fov{AngleLeft: -math.Pi / 4, AngleRight: math.Pi / 4, AngleUp: math.Pi / 4, AngleDown: -math.Pi / 4}
	view := xrt.HMDView{DisplayWidth: eyeW, DisplayHeight: eyeH, Fov: fov}

	return &simDevice{
		name:   xrt.DeviceGenericHMD,
		str:    "Simulated HMD",
		origin: origin,
		hmd:    &xrt.HMDParts{Views: [2]xrt.HMDView{view, view}},
		inputs: []xrt.Input{{Name: xrt.InputGenericHeadPose}},
		now:    s.cfg.Now,
		update: func(d *simDevice, t float64) {
			// Slow sway around the origin.
			d.inputs[0].Value = xrt.InputValue{
				X: float32(0.05 * math.Sin(t*0.5)),
				Y: float32(0.02 * math.Sin(t)),
			}
		},
	}
}

func (s *Simulated) newController(origin *xrt.TrackingOrigin, index int) *simDevice {
	side, x := "Left", float32(-0.2)
	if index == 1 {
		side, x = "Right", 0.2
	}
	return &simDevice{
		name:   xrt.DeviceSimpleController,
		str:    "Simulated " + side + " Controller",
		origin: origin,
		inputs: []xrt.Input{
			{Name: xrt.InputSimpleSelectClick},
			{Name: xrt.InputSimpleMenuClick},
			{Name: xrt.InputSimpleGripPose},
			{Name: xrt.InputSimpleAimPose},
		},
		outputs: []xrt.Output{{Name: xrt.OutputSimpleVibration}},
		now:     s.cfg.Now,
		update: func(d *simDevice, t float64) {
			// Select toggles every second.
			d.inputs[0].Value.Bool = uint32(int64(t) % 2)
			pose := xrt.InputValue{X: x, Y: float32(-0.3 + 0.05*math.Sin(t)), Z: -0.4}
			d.inputs[2].Value = pose
			d.inputs[3].Value = pose
		},
	}
}

func (s *Simulated) newTracker(origin *xrt.TrackingOrigin) *simDevice {
	return &simDevice{
		name:   xrt.DeviceGenericTracker,
		str:    "Simulated Tracker",
		origin: origin,
		inputs: []xrt.Input{{Name: xrt.InputGenericTrackerPose}},
		now:    s.cfg.Now,
		update: func(d *simDevice, t float64) {
			d.inputs[0].Value = xrt.InputValue{X: float32(math.Cos(t * 0.25)), Y: 1, Z: float32(math.Sin(t * 0.25))}
		},
	}
}

// simDevice implements xrt.Device.
type simDevice struct {
	name    xrt.DeviceName
	str     string
	origin  *xrt.TrackingOrigin
	hmd     *xrt.HMDParts
	inputs  []xrt.Input
	outputs []xrt.Output
	now     func() time.Time
	update  func(d *simDevice, seconds float64)
}

func (d *simDevice) Name() xrt.DeviceName                { return d.name }
func (d *simDevice) Str() string                         { return d.str }
func (d *simDevice) TrackingOrigin() *xrt.TrackingOrigin { return d.origin }
func (d *simDevice) Inputs() []xrt.Input                 { return d.inputs }
func (d *simDevice) Outputs() []xrt.Output               { return d.outputs }
func (d *simDevice) HMD() *xrt.HMDParts                  { return d.hmd }

// UpdateInputs stamps every input with the current time and recomputes
// the simulated values.
func (d *simDevice) UpdateInputs() {
	now := d.now()
	ts := now.UnixNano()
	for i := range d.inputs {
		d.inputs[i].Timestamp = ts
		d.inputs[i].Active = 1
	}
	if d.update != nil {
		d.update(d, float64(now.UnixNano())/float64(time.Second))
	}
}

func (d *simDevice) Destroy() {}
