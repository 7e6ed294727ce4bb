package compositor

import (
	"bytes"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/vango-dev/xripc/pkg/xrt"
)

// quadFovX is the horizontal field of view used to project quads into
// each eye.
const quadFovX = math.Pi / 2

// minQuadDepth is the closest distance in meters at which quads are drawn.
const minQuadDepth = 0.05

type layerKind uint8

const (
	layerEmpty layerKind = iota
	layerProjection
	layerQuad
)

// layer is one allocated layer slot.
type layer struct {
	kind  layerKind
	flipY bool

	// projection
	left, right           *image
	leftArray, rightArray uint32

	// quad
	quad      *image
	quadArray uint32
	pose      xrt.Pose
	size      xrt.Vec2
}

// renderer implements xrt.Renderer.
type renderer struct {
	c      *Compositor
	idle   gg.RGBA
	active gg.RGBA
	period time.Duration
	sleep  func(time.Duration)
	now    func() time.Time

	// layers is only touched by the render loop.
	layers []layer
	next   time.Time

	// mu guards the framebuffer and counters against SnapshotPNG and Stats.
	mu       sync.Mutex
	dc       *gg.Context
	face     text.Face
	frames   uint64
	numLayer int
}

var _ xrt.Renderer = (*renderer)(nil)

func newRenderer(c *Compositor) (*renderer, error) {
	r := &renderer{
		c:      c,
		idle:   gg.Hex(c.cfg.IdleColor),
		active: gg.Hex(c.cfg.ActiveColor),
		period: c.framePeriod(),
		sleep:  time.Sleep,
		now:    time.Now,
		dc:     gg.NewContext(c.cfg.Width, c.cfg.Height),
	}
	if c.cfg.StatusOverlay {
		source, err := text.NewFontSource(goregular.TTF)
		if err != nil {
			return nil, fmt.Errorf("compositor: load status font: %w", err)
		}
		r.face = source.Face(14)
	}
	r.dc.ClearWithColor(r.idle)
	return r, nil
}

// AllocateLayers allocates n empty layer slots.
func (r *renderer) AllocateLayers(n int) {
	r.layers = make([]layer, n)
	r.setLayerCount(n)
}

// DestroyLayers releases all layer slots.
func (r *renderer) DestroyLayers() {
	r.layers = nil
	r.setLayerCount(0)
}

func (r *renderer) setLayerCount(n int) {
	r.mu.Lock()
	r.numLayer = n
	r.mu.Unlock()
}

// SetProjectionLayer sets slot to a stereo projection layer.
func (r *renderer) SetProjectionLayer(left, right xrt.Image, leftArray, rightArray uint32, flipY bool, slot int) {
	if slot < 0 || slot >= len(r.layers) {
		return
	}
	l, _ := left.(*image)
	rt, _ := right.(*image)
	r.layers[slot] = layer{
		kind:       layerProjection,
		flipY:      flipY,
		left:       l,
		right:      rt,
		leftArray:  leftArray,
		rightArray: rightArray,
	}
}

// SetQuadLayer sets slot to a quad layer.
func (r *renderer) SetQuadLayer(img xrt.Image, pose xrt.Pose, size xrt.Vec2, flipY bool, slot int, array uint32) {
	if slot < 0 || slot >= len(r.layers) {
		return
	}
	q, _ := img.(*image)
	r.layers[slot] = layer{
		kind:      layerQuad,
		flipY:     flipY,
		quad:      q,
		quadArray: array,
		pose:      pose,
		size:      size,
	}
}

// Draw composes the allocated layers into the framebuffer, then blocks
// until the next refresh deadline.
func (r *renderer) Draw() {
	r.mu.Lock()
	if r.dc == nil {
		r.mu.Unlock()
		return
	}
	if len(r.layers) == 0 {
		r.dc.ClearWithColor(r.idle)
	} else {
		r.dc.ClearWithColor(r.active)
		for i := range r.layers {
			r.drawLayer(&r.layers[i])
		}
	}
	r.frames++
	if r.face != nil {
		r.drawStatus()
	}
	r.mu.Unlock()

	r.pace()
}

func (r *renderer) drawLayer(l *layer) {
	eyeW := float64(r.c.cfg.Width) / 2
	h := float64(r.c.cfg.Height)

	switch l.kind {
	case layerProjection:
		r.blit(l.left, l.leftArray, l.flipY, 0, 0, eyeW, h)
		r.blit(l.right, l.rightArray, l.flipY, eyeW, 0, eyeW, h)
	case layerQuad:
		x, y, w, qh, ok := projectQuad(l.pose, l.size, eyeW, h)
		if !ok {
			return
		}
		r.blit(l.quad, l.quadArray, l.flipY, x, y, w, qh)
		r.blit(l.quad, l.quadArray, l.flipY, eyeW+x, y, w, qh)
	}
}

// blit draws array layer array of img into the destination rectangle.
func (r *renderer) blit(img *image, array uint32, flipY bool, x, y, w, h float64) {
	if img == nil {
		return
	}
	sc := img.sc
	sc.mu.Lock()
	defer sc.mu.Unlock()

	src := img.source(array, flipY)
	if src == nil {
		return
	}
	r.dc.DrawImageEx(src, gg.DrawImageOptions{
		X:             x,
		Y:             y,
		DstWidth:      w,
		DstHeight:     h,
		Interpolation: gg.InterpBilinear,
		Opacity:       1,
		BlendMode:     gg.BlendNormal,
	})
}

// projectQuad maps a quad centred at pose with size in meters to a
// rectangle inside one eye of eyeW x eyeH pixels. Orientation is ignored;
// the quad always faces the viewer.
func projectQuad(pose xrt.Pose, size xrt.Vec2, eyeW, eyeH float64) (x, y, w, h float64, ok bool) {
	depth := -float64(pose.Position.Z)
	if depth < minQuadDepth || size.X <= 0 || size.Y <= 0 {
		return 0, 0, 0, 0, false
	}
	focal := (eyeW / 2) / math.Tan(quadFovX/2)
	cx := eyeW/2 + focal*float64(pose.Position.X)/depth
	cy := eyeH/2 - focal*float64(pose.Position.Y)/depth
	w = focal * float64(size.X) / depth
	h = focal * float64(size.Y) / depth
	return cx - w/2, cy - h/2, w, h, true
}

func (r *renderer) drawStatus() {
	status := fmt.Sprintf("xripc  layers %d  frame %d", len(r.layers), r.frames)
	r.dc.SetFont(r.face)
	r.dc.SetRGB(0.85, 0.85, 0.85)
	r.dc.DrawString(status, 8, float64(r.c.cfg.Height)-8)
}

// pace sleeps until the next refresh deadline. A late frame moves the
// deadline forward instead of bursting to catch up.
func (r *renderer) pace() {
	if r.period == 0 {
		return
	}
	now := r.now()
	if r.next.IsZero() {
		r.next = now
	}
	r.next = r.next.Add(r.period)
	if wait := r.next.Sub(now); wait > 0 {
		r.sleep(wait)
		return
	}
	r.next = now
}

func (r *renderer) counters() (frames uint64, layers int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames, r.numLayer
}

func (r *renderer) snapshotPNG() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dc == nil {
		return nil, ErrClosed
	}
	var buf bytes.Buffer
	if err := r.dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("compositor: encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *renderer) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dc != nil {
		_ = r.dc.Close()
		r.dc = nil
	}
	r.layers = nil
}
