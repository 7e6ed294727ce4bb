//go:build linux

package server

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/vango-dev/xripc/pkg/xrt"
)

func TestStepIdle(t *testing.T) {
	s, comp := newSchedulerServer(t)
	seq := s.seg.Layout().WaitFrame.Current()

	for i := 0; i < 3; i++ {
		s.sched.step()
	}

	r := comp.r
	if r.draws != 3 {
		t.Errorf("draws = %d, want 3", r.draws)
	}
	if len(r.allocs) != 0 || r.destroys != 0 {
		t.Errorf("idle loop touched layers: allocs %v, destroys %d", r.allocs, r.destroys)
	}
	if comp.gcs != 3 {
		t.Errorf("GarbageCollect calls = %d, want 3", comp.gcs)
	}
	if got := s.seg.Layout().WaitFrame.Current(); got != seq+3 {
		t.Errorf("frame counter = %d, want %d", got, seq+3)
	}
	if got := s.counters.framesDrawn.Load(); got != 3 {
		t.Errorf("framesDrawn = %d, want 3", got)
	}
	if got := metricCounterValue(t, s.metrics.framesDrawn); got != 3 {
		t.Errorf("frames_drawn_total = %v, want 3", got)
	}
	if got := metricHistogramCount(t, s.metrics.drawDuration); got != 3 {
		t.Errorf("draw_duration_seconds count = %d, want 3", got)
	}
}

func TestStepIdleDoesNotAllocate(t *testing.T) {
	s, _ := newSchedulerServer(t)
	s.sched.step()

	allocs := testing.AllocsPerRun(100, s.sched.step)
	if allocs != 0 {
		t.Errorf("idle step allocates %v times, want 0", allocs)
	}
}

func TestStepReallocatesOnlyOnCountChange(t *testing.T) {
	s, comp := newSchedulerServer(t)
	activate(t, s, newFakeSwapchain(3), newFakeSwapchain(3))
	r := comp.r

	frames := []struct {
		name         string
		layers       []xrt.LayerRenderState
		wantAllocs   []int
		wantDestroys int
	}{
		{"first frame", []xrt.LayerRenderState{projection(0, 1, 0, 0)}, []int{1}, 0},
		{"same count", []xrt.LayerRenderState{projection(0, 1, 1, 2)}, []int{1}, 0},
		{"grows", []xrt.LayerRenderState{projection(0, 1, 2, 2), quad(1, 0)}, []int{1, 2}, 1},
		{"same count again", []xrt.LayerRenderState{quad(0, 1), quad(1, 1)}, []int{1, 2}, 1},
		{"shrinks", []xrt.LayerRenderState{quad(0, 2)}, []int{1, 2, 1}, 2},
	}

	for _, f := range frames {
		submit(s, f.layers...)
		s.sched.step()

		if got := result(t, s); got != frameConsumed {
			t.Fatalf("%s: result = %v, want consumed", f.name, got)
		}
		if !reflect.DeepEqual(r.allocs, f.wantAllocs) {
			t.Errorf("%s: AllocateLayers calls = %v, want %v", f.name, r.allocs, f.wantAllocs)
		}
		if r.destroys != f.wantDestroys {
			t.Errorf("%s: DestroyLayers calls = %d, want %d", f.name, r.destroys, f.wantDestroys)
		}
		if s.sched.numLayers != len(f.layers) {
			t.Errorf("%s: numLayers = %d, want %d", f.name, s.sched.numLayers, len(f.layers))
		}
	}

	if r.projections != 3 {
		t.Errorf("SetProjectionLayer calls = %d, want 3", r.projections)
	}
	if r.quads != 4 {
		t.Errorf("SetQuadLayer calls = %d, want 4", r.quads)
	}
	if got := s.counters.layerAllocations.Load(); got != 3 {
		t.Errorf("layerAllocations = %d, want 3", got)
	}
	if got := s.counters.framesConsumed.Load(); got != 5 {
		t.Errorf("framesConsumed = %d, want 5", got)
	}
	if got := metricGaugeValue(t, s.metrics.layers); got != 1 {
		t.Errorf("layers gauge = %v, want 1", got)
	}
}

func TestStepResolvesImages(t *testing.T) {
	s, comp := newSchedulerServer(t)
	left, right := newFakeSwapchain(3), newFakeSwapchain(3)
	activate(t, s, left, right)

	submit(s, projection(0, 1, 2, 1))
	s.sched.step()
	result(t, s)

	img, ok := comp.r.slots[0].(*fakeImage)
	if !ok {
		t.Fatalf("slot 0 = %T, want *fakeImage", comp.r.slots[0])
	}
	if img.sc != left || img.index != 2 {
		t.Errorf("slot 0 holds image %d of %p, want image 2 of %p", img.index, img.sc, left)
	}
}

func TestStepRejectsInvalidFrame(t *testing.T) {
	tests := []struct {
		name   string
		layers []xrt.LayerRenderState
	}{
		{"unknown swapchain", []xrt.LayerRenderState{projection(0, 5, 0, 0)}},
		{"empty slot", []xrt.LayerRenderState{quad(3, 0)}},
		{"image out of range", []xrt.LayerRenderState{projection(0, 1, 0, 3)}},
		{"valid then invalid", []xrt.LayerRenderState{quad(0, 0), quad(1, 0), quad(7, 0)}},
		{"missing layer data", []xrt.LayerRenderState{{SwapchainIDs: [2]uint32{0, 1}}}},
		{"quad array layer out of range", []xrt.LayerRenderState{
			{SwapchainIDs: [2]uint32{0, 0}, Data: xrt.QuadData{Sub: xrt.SubImage{ArrayIndex: 1}}},
		}},
		{"right eye array layer out of range", []xrt.LayerRenderState{
			{SwapchainIDs: [2]uint32{0, 1}, Data: xrt.StereoProjectionData{Right: xrt.SubImage{ImageIndex: 1, ArrayIndex: 2}}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, comp := newSchedulerServer(t)
			activate(t, s, newFakeSwapchain(3), newFakeSwapchain(3))
			r := comp.r

			submit(s, projection(0, 1, 0, 0))
			s.sched.step()
			result(t, s)
			before := *r

			submit(s, tt.layers...)
			s.sched.step()

			if got := result(t, s); got != frameRejected {
				t.Fatalf("result = %v, want rejected", got)
			}
			if !reflect.DeepEqual(r.allocs, before.allocs) || r.destroys != before.destroys {
				t.Errorf("renderer layers changed: allocs %v destroys %d, want %v %d",
					r.allocs, r.destroys, before.allocs, before.destroys)
			}
			if r.projections != before.projections || r.quads != before.quads {
				t.Error("rejected frame reached the renderer")
			}
			if r.draws != before.draws+1 {
				t.Errorf("draws = %d, want %d", r.draws, before.draws+1)
			}
			if s.sched.numLayers != 1 {
				t.Errorf("numLayers = %d, want 1", s.sched.numLayers)
			}
			if s.client.render.mailbox.ready() {
				t.Error("rejected frame left in the mailbox")
			}
			if got := s.counters.framesRejected.Load(); got != 1 {
				t.Errorf("framesRejected = %d, want 1", got)
			}
		})
	}
}

func TestStepIdleTransitions(t *testing.T) {
	tests := []struct {
		name   string
		goIdle func(s *Server)
	}{
		{
			name:   "client inactive",
			goIdle: func(s *Server) { s.client.active.Store(false) },
		},
		{
			name: "no swapchains",
			goIdle: func(s *Server) {
				s.client.removeSwapchain(0)
				s.client.removeSwapchain(1)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, comp := newSchedulerServer(t)
			activate(t, s, newFakeSwapchain(2), newFakeSwapchain(2))

			submit(s, projection(0, 1, 0, 0), quad(0, 1))
			s.sched.step()
			result(t, s)
			if s.sched.numLayers != 2 {
				t.Fatalf("numLayers = %d, want 2", s.sched.numLayers)
			}

			tt.goIdle(s)
			s.sched.step()
			if s.sched.numLayers != 0 {
				t.Errorf("numLayers = %d, want 0", s.sched.numLayers)
			}
			if comp.r.destroys != 1 {
				t.Errorf("DestroyLayers calls = %d, want 1", comp.r.destroys)
			}

			s.sched.step()
			if comp.r.destroys != 1 {
				t.Errorf("idle step destroyed layers again: %d calls", comp.r.destroys)
			}
			if got := s.counters.layers.Load(); got != 0 {
				t.Errorf("layers counter = %d, want 0", got)
			}
		})
	}
}

func TestStepIgnoresFrameWithoutActiveClient(t *testing.T) {
	s, comp := newSchedulerServer(t)
	s.client.addSwapchain(newFakeSwapchain(1))

	submit(s, quad(0, 0))
	s.sched.step()

	if !s.client.render.mailbox.ready() {
		t.Error("frame of an inactive client was claimed")
	}
	if len(comp.r.allocs) != 0 {
		t.Errorf("AllocateLayers calls = %v, want none", comp.r.allocs)
	}
}

func TestStepServesCapture(t *testing.T) {
	s, comp := newSchedulerServer(t)
	s.running.Store(true)

	type captured struct {
		png []byte
		err error
	}
	done := make(chan captured, 1)
	go func() {
		png, err := s.Capture(context.Background())
		done <- captured{png, err}
	}()

	deadline := time.After(5 * time.Second)
	for {
		s.sched.step()
		select {
		case got := <-done:
			if got.err != nil {
				t.Fatalf("Capture() error = %v", got.err)
			}
			if string(got.png) != string(comp.png) {
				t.Errorf("Capture() = %q, want %q", got.png, comp.png)
			}
			if v := metricCounterValue(t, s.metrics.capturesServed); v != 1 {
				t.Errorf("captures_total = %v, want 1", v)
			}
			return
		case <-deadline:
			t.Fatal("capture was not served")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestCaptureErrors(t *testing.T) {
	s := New(&ServerConfig{Logger: discardLogger()}, nil)
	if _, err := s.Capture(context.Background()); err != ErrNotInitialized {
		t.Errorf("Capture() before Init error = %v, want %v", err, ErrNotInitialized)
	}

	s, _ = newSchedulerServer(t)
	if _, err := s.Capture(context.Background()); err != ErrClosed {
		t.Errorf("Capture() while stopped error = %v, want %v", err, ErrClosed)
	}

	s.running.Store(true)
	s.snap = nil
	if _, err := s.Capture(context.Background()); err != ErrCaptureUnsupported {
		t.Errorf("Capture() without snapshots error = %v, want %v", err, ErrCaptureUnsupported)
	}

	s, _ = newSchedulerServer(t)
	s.running.Store(true)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Capture(ctx); err != context.DeadlineExceeded {
		t.Errorf("Capture() without a loop error = %v, want %v", err, context.DeadlineExceeded)
	}
}
