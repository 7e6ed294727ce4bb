package server

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "xripc"

// metrics holds the Prometheus collectors of one server.
type metrics struct {
	framesDrawn      prometheus.Counter
	framesSubmitted  *prometheus.CounterVec
	drawDuration     prometheus.Histogram
	layers           prometheus.Gauge
	connections      *prometheus.CounterVec
	clientActive     prometheus.Gauge
	requests         *prometheus.CounterVec
	requestErrors    *prometheus.CounterVec
	swapchains       prometheus.Gauge
	capturesServed   prometheus.Counter
	layerAllocations prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		framesDrawn: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_drawn_total",
			Help:      "Total number of frames drawn by the render loop",
		}),

		framesSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_submitted_total",
			Help:      "Client frame submissions by outcome",
		}, []string{"result"}),

		drawDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "draw_duration_seconds",
			Help:      "Renderer Draw duration in seconds, including pacing",
			Buckets:   []float64{0.001, 0.004, 0.008, 0.011, 0.014, 0.017, 0.025, 0.05, 0.1},
		}),

		layers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "layers",
			Help:      "Number of layers allocated in the renderer",
		}),

		connections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_total",
			Help:      "Accepted connections by outcome",
		}, []string{"result"}),

		clientActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "client_active",
			Help:      "1 while a client has completed the handshake",
		}),

		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Client requests by command",
		}, []string{"command"}),

		requestErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "request_errors_total",
			Help:      "Client requests answered with an error, by command and code",
		}, []string{"command", "code"}),

		swapchains: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "swapchains",
			Help:      "Number of live client swapchains",
		}),

		capturesServed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "captures_total",
			Help:      "Total number of framebuffer captures served",
		}),

		layerAllocations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "layer_allocations_total",
			Help:      "Times the renderer's layer array was reallocated",
		}),
	}
}

// counters mirrors the metrics the server reports in Stats.
type counters struct {
	framesDrawn         atomic.Uint64
	framesConsumed      atomic.Uint64
	framesRejected      atomic.Uint64
	framesTimedOut      atomic.Uint64
	connectionsAccepted atomic.Uint64
	connectionsRejected atomic.Uint64
	layerAllocations    atomic.Uint64
	layers              atomic.Int64
}

// Stats is a point-in-time view of the server.
type Stats struct {
	Running          bool   `json:"running"`
	ExitOnDisconnect bool   `json:"exit_on_disconnect"`
	ClientConnected  bool   `json:"client_connected"`
	ClientActive     bool   `json:"client_active"`
	ClientID         string `json:"client_id,omitempty"`
	ClientApp        string `json:"client_app,omitempty"`
	Swapchains       int    `json:"swapchains"`
	Layers           int    `json:"layers"`
	Devices          int    `json:"devices"`
	TrackingOrigins  int    `json:"tracking_origins"`

	FramesDrawn         uint64 `json:"frames_drawn"`
	FramesConsumed      uint64 `json:"frames_consumed"`
	FramesRejected      uint64 `json:"frames_rejected"`
	FramesTimedOut      uint64 `json:"frames_timed_out"`
	ConnectionsAccepted uint64 `json:"connections_accepted"`
	ConnectionsRejected uint64 `json:"connections_rejected"`
	LayerAllocations    uint64 `json:"layer_allocations"`

	CollectedAt time.Time `json:"collected_at"`
}

// Stats collects and returns server statistics. Safe to call from any
// goroutine.
func (s *Server) Stats() *Stats {
	st := &Stats{
		Running:          s.running.Load(),
		ExitOnDisconnect: s.exitOnDisconnect.Load(),
		Devices:          len(s.devices),
		TrackingOrigins:  len(s.origins),

		FramesDrawn:         s.counters.framesDrawn.Load(),
		FramesConsumed:      s.counters.framesConsumed.Load(),
		FramesRejected:      s.counters.framesRejected.Load(),
		FramesTimedOut:      s.counters.framesTimedOut.Load(),
		ConnectionsAccepted: s.counters.connectionsAccepted.Load(),
		ConnectionsRejected: s.counters.connectionsRejected.Load(),
		LayerAllocations:    s.counters.layerAllocations.Load(),
		Layers:              int(s.counters.layers.Load()),
		CollectedAt:         time.Now(),
	}
	if s.client != nil {
		info := s.client.info()
		st.ClientConnected = info.connected
		st.ClientActive = info.active
		st.ClientID = info.id
		st.ClientApp = info.app
		st.Swapchains = info.swapchains
	}
	return st
}

// Registry returns the registry holding the server's collectors.
func (s *Server) Registry() *prometheus.Registry {
	return s.cfg.Registry
}
