package server

import (
	"time"

	"github.com/vango-dev/xripc/pkg/xrt"
)

// scheduler feeds client frames to the renderer. It runs on the main
// goroutine only, once per loop iteration.
type scheduler struct {
	s *Server
	r xrt.Renderer

	// numLayers is the layer count currently allocated in the renderer.
	numLayers int

	// images holds the images resolved for the frame being taken, so a
	// frame is validated completely before the renderer is touched.
	images [MaxLayers][2]xrt.Image
}

func newScheduler(s *Server, r xrt.Renderer) *scheduler {
	return &scheduler{s: s, r: r}
}

// step runs one render iteration: take a submitted frame if there is one,
// draw, wake frame waiters, serve a capture and collect retired swapchains.
func (sc *scheduler) step() {
	s := sc.s
	cs := s.client

	if !cs.active.Load() || cs.liveSwapchains() == 0 {
		if sc.numLayers > 0 {
			sc.r.DestroyLayers()
			sc.setLayers(0)
			s.logger.Debug("no active client, layers released")
		}
	} else if cs.render.mailbox.claim() {
		sc.takeFrame(cs)
	}

	start := time.Now()
	sc.r.Draw()
	s.metrics.drawDuration.Observe(time.Since(start).Seconds())
	s.metrics.framesDrawn.Inc()
	s.counters.framesDrawn.Add(1)

	s.seg.Layout().WaitFrame.Post()

	s.serveCapture()
	s.comp.GarbageCollect()
}

// takeFrame hands a claimed frame to the renderer, or rejects it when any
// layer references a swapchain or image that does not exist. A rejected
// frame leaves the renderer as it was.
func (sc *scheduler) takeFrame(cs *ClientState) {
	rs := &cs.render
	n := rs.NumLayers

	for i := 0; i < n; i++ {
		if !sc.resolve(cs, i, &rs.Layers[i]) {
			sc.finishFrame(rs, frameRejected)
			cs.logger.Warn("frame rejected", "layer", i, "layers", n)
			return
		}
	}

	if n != sc.numLayers {
		if sc.numLayers > 0 {
			sc.r.DestroyLayers()
		}
		sc.r.AllocateLayers(n)
		sc.setLayers(n)
		sc.s.counters.layerAllocations.Add(1)
		sc.s.metrics.layerAllocations.Inc()
	}

	for i := 0; i < n; i++ {
		l := &rs.Layers[i]
		switch d := l.Data.(type) {
		case xrt.StereoProjectionData:
			sc.r.SetProjectionLayer(sc.images[i][0], sc.images[i][1],
				d.Left.ArrayIndex, d.Right.ArrayIndex, l.FlipY, i)
		case xrt.QuadData:
			sc.r.SetQuadLayer(sc.images[i][0], d.Pose, d.Size, l.FlipY, i, d.Sub.ArrayIndex)
		}
	}
	sc.finishFrame(rs, frameConsumed)
}

// resolve looks up the images layer i reads from and stores them in
// sc.images[i]. Image and array indices must exist in the swapchain.
func (sc *scheduler) resolve(cs *ClientState, i int, l *xrt.LayerRenderState) bool {
	var subs [2]xrt.SubImage
	switch d := l.Data.(type) {
	case xrt.StereoProjectionData:
		subs = [2]xrt.SubImage{d.Left, d.Right}
	case xrt.QuadData:
		subs[0] = d.Sub
	default:
		return false
	}

	sc.images[i] = [2]xrt.Image{}
	for j, id := range l.SwapchainRefs() {
		swc := cs.swapchain(id)
		if swc == nil {
			return false
		}
		idx := subs[j].ImageIndex
		if int(idx) >= swc.ImageCount() || int(subs[j].ArrayIndex) >= swc.ArraySize() {
			return false
		}
		sc.images[i][j] = swc.Image(int(idx))
	}
	return true
}

func (sc *scheduler) finishFrame(rs *RenderState, r frameResult) {
	if r == frameConsumed {
		sc.s.counters.framesConsumed.Add(1)
	} else {
		sc.s.counters.framesRejected.Add(1)
	}
	sc.s.metrics.framesSubmitted.WithLabelValues(r.String()).Inc()
	rs.mailbox.release(r)
}

func (sc *scheduler) setLayers(n int) {
	sc.numLayers = n
	sc.s.counters.layers.Store(int64(n))
	sc.s.metrics.layers.Set(float64(n))
}

// releaseLayers frees the renderer's layers on shutdown and before a
// client slot is reused.
func (sc *scheduler) releaseLayers() {
	if sc.numLayers > 0 {
		sc.r.DestroyLayers()
		sc.setLayers(0)
	}
}
