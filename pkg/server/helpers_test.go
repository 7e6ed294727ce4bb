//go:build linux

package server

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/vango-dev/xripc/pkg/shm"
	"github.com/vango-dev/xripc/pkg/xrt"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeImage struct {
	sc    *fakeSwapchain
	index int
}

func (img *fakeImage) Width() int  { return 4 }
func (img *fakeImage) Height() int { return 4 }

type fakeSwapchain struct {
	images    []fakeImage
	destroyed bool
}

func newFakeSwapchain(n int) *fakeSwapchain {
	sc := &fakeSwapchain{images: make([]fakeImage, n)}
	for i := range sc.images {
		sc.images[i] = fakeImage{sc: sc, index: i}
	}
	return sc
}

func (sc *fakeSwapchain) ImageCount() int                   { return len(sc.images) }
func (sc *fakeSwapchain) ArraySize() int                    { return 1 }
func (sc *fakeSwapchain) Image(i int) xrt.Image             { return &sc.images[i] }
func (sc *fakeSwapchain) Upload(i int, pixels []byte) error { return nil }
func (sc *fakeSwapchain) Destroy()                          { sc.destroyed = true }

// fakeRenderer records the calls the scheduler makes.
type fakeRenderer struct {
	allocs      []int
	destroys    int
	projections int
	quads       int
	draws       int
	slots       []xrt.Image
}

func (r *fakeRenderer) AllocateLayers(n int) {
	r.allocs = append(r.allocs, n)
	r.slots = make([]xrt.Image, n)
}

func (r *fakeRenderer) DestroyLayers() {
	r.destroys++
	r.slots = nil
}

func (r *fakeRenderer) SetProjectionLayer(left, right xrt.Image, leftArray, rightArray uint32, flipY bool, slot int) {
	r.projections++
	r.slots[slot] = left
}

func (r *fakeRenderer) SetQuadLayer(img xrt.Image, pose xrt.Pose, size xrt.Vec2, flipY bool, slot int, array uint32) {
	r.quads++
	r.slots[slot] = img
}

func (r *fakeRenderer) Draw() { r.draws++ }

type fakeCompositor struct {
	mu        sync.Mutex
	r         *fakeRenderer
	gcs       int
	destroyed bool
	png       []byte
}

func newFakeCompositor() *fakeCompositor {
	return &fakeCompositor{r: &fakeRenderer{}, png: []byte("\x89PNG fake")}
}

func (c *fakeCompositor) CreateSwapchain(info xrt.SwapchainCreateInfo) (xrt.Swapchain, error) {
	return newFakeSwapchain(int(info.ImageCount)), nil
}

func (c *fakeCompositor) Renderer() xrt.Renderer { return c.r }
func (c *fakeCompositor) GarbageCollect()        { c.gcs++ }

func (c *fakeCompositor) Destroy() {
	c.mu.Lock()
	c.destroyed = true
	c.mu.Unlock()
}

func (c *fakeCompositor) SnapshotPNG() ([]byte, error) { return c.png, nil }

// newSchedulerServer returns a server wired to a fake compositor and a
// real shared memory segment, without a socket or poller.
func newSchedulerServer(t *testing.T) (*Server, *fakeCompositor) {
	t.Helper()
	s := New(&ServerConfig{Logger: discardLogger()}, nil)

	name := fmt.Sprintf("xripc_server_test_%d_%s", os.Getpid(), strings.ReplaceAll(t.Name(), "/", "_"))
	seg, err := shm.Create(name)
	if err != nil {
		t.Fatalf("shm.Create() error = %v", err)
	}
	t.Cleanup(func() { _ = seg.Close() })

	comp := newFakeCompositor()
	s.seg = seg
	s.comp = comp
	s.snap = comp
	s.sched = newScheduler(s, comp.r)
	return s, comp
}

// activate marks the client slot connected with the given swapchains in
// slots 0..n-1.
func activate(t *testing.T, s *Server, swapchains ...*fakeSwapchain) {
	t.Helper()
	for _, sc := range swapchains {
		if _, ok := s.client.addSwapchain(sc); !ok {
			t.Fatal("addSwapchain() failed")
		}
	}
	s.client.active.Store(true)
}

// submit publishes a frame as the worker would.
func submit(s *Server, layers ...xrt.LayerRenderState) {
	rs := &s.client.render
	rs.NumLayers = copy(rs.Layers[:], layers)
	rs.mailbox.publish()
}

// result returns the mailbox result delivered by the scheduler, if any.
func result(t *testing.T, s *Server) frameResult {
	t.Helper()
	select {
	case r := <-s.client.render.mailbox.result:
		return r
	default:
		t.Fatal("no frame result delivered")
		return 0
	}
}

func projection(left, right uint32, leftImage, rightImage uint32) xrt.LayerRenderState {
	return xrt.LayerRenderState{
		SwapchainIDs: [2]uint32{left, right},
		Data: xrt.StereoProjectionData{
			Left:  xrt.SubImage{ImageIndex: leftImage},
			Right: xrt.SubImage{ImageIndex: rightImage},
		},
	}
}

func quad(id, image uint32) xrt.LayerRenderState {
	return xrt.LayerRenderState{
		SwapchainIDs: [2]uint32{id, 0},
		Data: xrt.QuadData{
			Sub:  xrt.SubImage{ImageIndex: image},
			Pose: xrt.Pose{Orientation: xrt.IdentityQuat, Position: xrt.Vec3{Z: -1}},
			Size: xrt.Vec2{X: 0.5, Y: 0.5},
		},
	}
}

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	if m.Gauge == nil {
		t.Fatal("expected gauge metric to have Gauge field")
	}
	return m.GetGauge().GetValue()
}

func metricHistogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}
