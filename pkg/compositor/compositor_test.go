package compositor

import (
	"bytes"
	"errors"
	"image/png"
	"math"
	"testing"
	"time"

	"github.com/vango-dev/xripc/pkg/xrt"
)

func newTestCompositor(t *testing.T) *Compositor {
	t.Helper()
	c, err := New(Config{Width: 8, Height: 4, IdleColor: "#1a1a1a", ActiveColor: "#000000"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(c.Destroy)
	return c
}

func solid(w, h int, r, g, b byte) []byte {
	px := make([]byte, 0, w*h*4)
	for i := 0; i < w*h; i++ {
		px = append(px, r, g, b, 0xFF)
	}
	return px
}

func createUploaded(t *testing.T, c *Compositor, w, h int, pixels []byte) xrt.Swapchain {
	t.Helper()
	sc, err := c.CreateSwapchain(xrt.SwapchainCreateInfo{
		Width: uint32(w), Height: uint32(h), ImageCount: 1, ArraySize: 1, Format: xrt.FormatRGBA8,
	})
	if err != nil {
		t.Fatalf("CreateSwapchain() error = %v", err)
	}
	if err := sc.Upload(0, pixels); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	return sc
}

func pixelAt(c *Compositor, x, y int) [3]uint8 {
	img := c.renderer.dc.Image()
	r, g, b, _ := img.At(x, y).RGBA()
	return [3]uint8{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)}
}

func assertPixel(t *testing.T, c *Compositor, x, y int, want [3]uint8) {
	t.Helper()
	got := pixelAt(c, x, y)
	for i := range got {
		if d := int(got[i]) - int(want[i]); d < -2 || d > 2 {
			t.Errorf("pixel(%d,%d) = %v, want %v", x, y, got, want)
			return
		}
	}
}

func TestNewDefaults(t *testing.T) {
	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Destroy()

	if c.cfg.Width != 1280 || c.cfg.Height != 720 {
		t.Errorf("size = %dx%d, want 1280x720", c.cfg.Width, c.cfg.Height)
	}
	if c.cfg.IdleColor != "#1a1a1a" {
		t.Errorf("IdleColor = %q", c.cfg.IdleColor)
	}
}

func TestNewInvalid(t *testing.T) {
	if _, err := New(Config{Width: 1, Height: 1}); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("New(1x1) error = %v, want ErrInvalidSize", err)
	}
	if _, err := New(Config{RefreshRate: -1}); err == nil {
		t.Error("New(negative refresh) succeeded, want error")
	}
}

func TestCreateSwapchainValidation(t *testing.T) {
	c := newTestCompositor(t)

	tests := []struct {
		name string
		info xrt.SwapchainCreateInfo
		want error
	}{
		{"bad format", xrt.SwapchainCreateInfo{Width: 4, Height: 4, ImageCount: 1, Format: 7}, ErrInvalidFormat},
		{"zero width", xrt.SwapchainCreateInfo{Height: 4, ImageCount: 1, Format: xrt.FormatRGBA8}, ErrInvalidSize},
		{"too large", xrt.SwapchainCreateInfo{Width: MaxDimension + 1, Height: 4, ImageCount: 1, Format: xrt.FormatRGBA8}, ErrInvalidSize},
		{"no images", xrt.SwapchainCreateInfo{Width: 4, Height: 4, Format: xrt.FormatRGBA8}, ErrImageCount},
		{"too many images", xrt.SwapchainCreateInfo{Width: 4, Height: 4, ImageCount: MaxImageCount + 1, Format: xrt.FormatRGBA8}, ErrImageCount},
		{"array too large", xrt.SwapchainCreateInfo{Width: 4, Height: 4, ImageCount: 1, ArraySize: MaxArraySize + 1, Format: xrt.FormatRGBA8}, ErrInvalidSize},
		{"valid", xrt.SwapchainCreateInfo{Width: 4, Height: 4, ImageCount: 3, ArraySize: 2, Format: xrt.FormatRGBA8}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := c.CreateSwapchain(tt.info)
			if !errors.Is(err, tt.want) {
				t.Fatalf("CreateSwapchain() error = %v, want %v", err, tt.want)
			}
			if err == nil && sc.ImageCount() != int(tt.info.ImageCount) {
				t.Errorf("ImageCount() = %d, want %d", sc.ImageCount(), tt.info.ImageCount)
			}
			if err == nil && sc.ArraySize() != int(tt.info.ArraySize) {
				t.Errorf("ArraySize() = %d, want %d", sc.ArraySize(), tt.info.ArraySize)
			}
		})
	}
}

func TestUploadValidation(t *testing.T) {
	c := newTestCompositor(t)
	sc, err := c.CreateSwapchain(xrt.SwapchainCreateInfo{Width: 2, Height: 2, ImageCount: 2, ArraySize: 2, Format: xrt.FormatRGBA8})
	if err != nil {
		t.Fatal(err)
	}

	if err := sc.Upload(2, nil); !errors.Is(err, ErrImageIndex) {
		t.Errorf("Upload(2) error = %v, want ErrImageIndex", err)
	}
	if err := sc.Upload(0, make([]byte, 16)); !errors.Is(err, ErrPixelDataSize) {
		t.Errorf("Upload(short) error = %v, want ErrPixelDataSize", err)
	}
	if err := sc.Upload(1, make([]byte, 2*2*4*2)); err != nil {
		t.Errorf("Upload() error = %v", err)
	}
	if img := sc.Image(1); img.Width() != 2 || img.Height() != 2 {
		t.Errorf("Image(1) = %dx%d, want 2x2", img.Width(), img.Height())
	}
	if sc.Image(5) != nil {
		t.Error("Image(5) should be nil")
	}
}

func TestDrawIdle(t *testing.T) {
	c := newTestCompositor(t)
	c.Renderer().Draw()
	assertPixel(t, c, 0, 0, [3]uint8{0x1a, 0x1a, 0x1a})
	assertPixel(t, c, 7, 3, [3]uint8{0x1a, 0x1a, 0x1a})

	if got := c.Stats().Frames; got != 1 {
		t.Errorf("Frames = %d, want 1", got)
	}
}

func TestDrawProjectionLayer(t *testing.T) {
	c := newTestCompositor(t)
	left := createUploaded(t, c, 4, 4, solid(4, 4, 0xFF, 0, 0))
	right := createUploaded(t, c, 4, 4, solid(4, 4, 0, 0xFF, 0))

	r := c.Renderer()
	r.AllocateLayers(1)
	r.SetProjectionLayer(left.Image(0), right.Image(0), 0, 0, false, 0)
	r.Draw()

	assertPixel(t, c, 1, 1, [3]uint8{0xFF, 0, 0})
	assertPixel(t, c, 6, 2, [3]uint8{0, 0xFF, 0})
	if got := c.Stats().Layers; got != 1 {
		t.Errorf("Layers = %d, want 1", got)
	}

	r.DestroyLayers()
	r.Draw()
	assertPixel(t, c, 1, 1, [3]uint8{0x1a, 0x1a, 0x1a})
}

func TestDrawFlipY(t *testing.T) {
	c := newTestCompositor(t)
	// Top two rows red, bottom two rows blue.
	px := append(solid(4, 2, 0xFF, 0, 0), solid(4, 2, 0, 0, 0xFF)...)
	sc := createUploaded(t, c, 4, 4, px)

	r := c.Renderer()
	r.AllocateLayers(1)
	r.SetProjectionLayer(sc.Image(0), sc.Image(0), 0, 0, false, 0)
	r.Draw()
	assertPixel(t, c, 1, 0, [3]uint8{0xFF, 0, 0})
	assertPixel(t, c, 1, 3, [3]uint8{0, 0, 0xFF})

	r.SetProjectionLayer(sc.Image(0), sc.Image(0), 0, 0, true, 0)
	r.Draw()
	assertPixel(t, c, 1, 0, [3]uint8{0, 0, 0xFF})
	assertPixel(t, c, 1, 3, [3]uint8{0xFF, 0, 0})

	// A new upload invalidates the mirrored copy.
	if err := sc.Upload(0, solid(4, 4, 0, 0xFF, 0)); err != nil {
		t.Fatal(err)
	}
	r.Draw()
	assertPixel(t, c, 1, 0, [3]uint8{0, 0xFF, 0})
}

func TestDrawArrayLayer(t *testing.T) {
	c := newTestCompositor(t)
	sc, err := c.CreateSwapchain(xrt.SwapchainCreateInfo{Width: 4, Height: 4, ImageCount: 1, ArraySize: 2, Format: xrt.FormatRGBA8})
	if err != nil {
		t.Fatal(err)
	}
	if err := sc.Upload(0, append(solid(4, 4, 0xFF, 0, 0), solid(4, 4, 0, 0, 0xFF)...)); err != nil {
		t.Fatal(err)
	}

	r := c.Renderer()
	r.AllocateLayers(1)
	r.SetProjectionLayer(sc.Image(0), sc.Image(0), 0, 1, false, 0)
	r.Draw()
	assertPixel(t, c, 1, 1, [3]uint8{0xFF, 0, 0})
	assertPixel(t, c, 5, 1, [3]uint8{0, 0, 0xFF})
}

func TestGarbageCollectDefersRelease(t *testing.T) {
	c := newTestCompositor(t)
	sc := createUploaded(t, c, 4, 4, solid(4, 4, 0xFF, 0, 0))

	r := c.Renderer()
	r.AllocateLayers(1)
	r.SetProjectionLayer(sc.Image(0), sc.Image(0), 0, 0, false, 0)

	sc.Destroy()
	if s := c.Stats(); s.LiveSwapchains != 0 || s.RetiredSwapchain != 1 {
		t.Errorf("Stats() = %+v, want 0 live, 1 retired", s)
	}

	// Still readable until collected.
	r.Draw()
	assertPixel(t, c, 1, 1, [3]uint8{0xFF, 0, 0})

	c.GarbageCollect()
	if s := c.Stats(); s.RetiredSwapchain != 0 {
		t.Errorf("RetiredSwapchain = %d after GarbageCollect, want 0", s.RetiredSwapchain)
	}
	r.Draw()
	assertPixel(t, c, 1, 1, [3]uint8{0, 0, 0})

	if err := sc.Upload(0, solid(4, 4, 0, 0, 0)); !errors.Is(err, ErrSwapchainRetired) {
		t.Errorf("Upload() after collect error = %v, want ErrSwapchainRetired", err)
	}
}

func TestDrawPacing(t *testing.T) {
	c, err := New(Config{Width: 8, Height: 4, RefreshRate: 100})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Destroy()

	clock := time.Unix(1000, 0)
	var slept []time.Duration
	r := c.renderer
	r.now = func() time.Time { return clock }
	r.sleep = func(d time.Duration) {
		slept = append(slept, d)
		clock = clock.Add(d)
	}

	r.Draw()
	r.Draw()
	clock = clock.Add(50 * time.Millisecond)
	r.Draw()
	r.Draw()

	want := []time.Duration{10 * time.Millisecond, 10 * time.Millisecond, 10 * time.Millisecond}
	if len(slept) != len(want) {
		t.Fatalf("slept = %v, want %v", slept, want)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("slept[%d] = %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestSnapshotPNG(t *testing.T) {
	c := newTestCompositor(t)
	c.Renderer().Draw()

	data, err := c.SnapshotPNG()
	if err != nil {
		t.Fatalf("SnapshotPNG() error = %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 4 {
		t.Errorf("snapshot bounds = %v, want 8x4", b)
	}

	c.Destroy()
	if _, err := c.SnapshotPNG(); !errors.Is(err, ErrClosed) {
		t.Errorf("SnapshotPNG() after Destroy error = %v, want ErrClosed", err)
	}
	if _, err := c.CreateSwapchain(xrt.SwapchainCreateInfo{Width: 1, Height: 1, ImageCount: 1, Format: xrt.FormatRGBA8}); !errors.Is(err, ErrClosed) {
		t.Errorf("CreateSwapchain() after Destroy error = %v, want ErrClosed", err)
	}
}

func TestStatusOverlay(t *testing.T) {
	c, err := New(Config{Width: 320, Height: 64, StatusOverlay: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Destroy()
	if c.renderer.face == nil {
		t.Fatal("status font not loaded")
	}
	c.Renderer().Draw()
}

func TestProjectQuad(t *testing.T) {
	tests := []struct {
		name       string
		pos        xrt.Vec3
		size       xrt.Vec2
		x, y, w, h float64
		ok         bool
	}{
		{"centered", xrt.Vec3{Z: -1}, xrt.Vec2{X: 1, Y: 1}, 25, 25, 50, 50, true},
		{"twice as far", xrt.Vec3{Z: -2}, xrt.Vec2{X: 1, Y: 1}, 37.5, 37.5, 25, 25, true},
		{"offset right and up", xrt.Vec3{X: 0.5, Y: 0.5, Z: -1}, xrt.Vec2{X: 1, Y: 1}, 50, 0, 50, 50, true},
		{"behind viewer", xrt.Vec3{Z: 1}, xrt.Vec2{X: 1, Y: 1}, 0, 0, 0, 0, false},
		{"empty size", xrt.Vec3{Z: -1}, xrt.Vec2{}, 0, 0, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pose := xrt.Pose{Orientation: xrt.IdentityQuat, Position: tt.pos}
			x, y, w, h, ok := projectQuad(pose, tt.size, 100, 100)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			for _, v := range [][2]float64{{x, tt.x}, {y, tt.y}, {w, tt.w}, {h, tt.h}} {
				if math.Abs(v[0]-v[1]) > 1e-6 {
					t.Errorf("projectQuad() = (%v, %v, %v, %v), want (%v, %v, %v, %v)", x, y, w, h, tt.x, tt.y, tt.w, tt.h)
					break
				}
			}
		})
	}
}
