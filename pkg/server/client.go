package server

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/vango-dev/xripc/pkg/protocol"
	"github.com/vango-dev/xripc/pkg/xrt"
)

// MaxSwapchains is the number of swapchain slots per client.
const MaxSwapchains = 8

// MaxLayers is the number of layers per frame.
const MaxLayers = protocol.MaxLayers

// RenderState is the frame the client worker hands to the scheduler. The
// worker owns NumLayers and Layers while the mailbox is Empty, the
// scheduler while it is Claimed.
type RenderState struct {
	NumLayers int
	Layers    [MaxLayers]xrt.LayerRenderState

	mailbox *mailbox
}

// ClientState is the single client slot. It is created once and reset
// between connections.
type ClientState struct {
	s *Server

	// Main goroutine only.
	started bool
	done    chan struct{}
	cancel  context.CancelFunc

	// active is set by a successful handshake and cleared when the worker
	// exits.
	active atomic.Bool

	mu            sync.RWMutex // guards the fields below
	conn          *net.UnixConn
	id            string
	app           string
	swapchains    [MaxSwapchains]xrt.Swapchain
	numSwapchains int

	render RenderState
	logger *slog.Logger
}

func newClientState(s *Server) *ClientState {
	return &ClientState{
		s:      s,
		render: RenderState{mailbox: newMailbox()},
		logger: s.logger,
	}
}

// running reports whether a worker was started and has not finished.
func (cs *ClientState) running() bool {
	if !cs.started {
		return false
	}
	select {
	case <-cs.done:
		return false
	default:
		return true
	}
}

// start installs conn and starts its worker goroutine.
func (cs *ClientState) start(ctx context.Context, conn *net.UnixConn, id string) {
	ctx, cancel := context.WithCancel(ctx)

	cs.mu.Lock()
	cs.conn = conn
	cs.id = id
	cs.app = ""
	cs.mu.Unlock()

	cs.logger = cs.s.logger.With("client_id", id)
	cs.started = true
	cs.cancel = cancel
	cs.done = make(chan struct{})

	go cs.run(ctx, conn)
}

// join waits for the worker to finish.
func (cs *ClientState) join() {
	if !cs.started {
		return
	}
	<-cs.done
	cs.cancel()
}

// stop closes the connection, which ends a blocked worker, and joins it.
func (cs *ClientState) stop() {
	if !cs.started {
		return
	}
	cs.cancel()
	cs.mu.RLock()
	conn := cs.conn
	cs.mu.RUnlock()
	if conn != nil {
		_ = conn.Close()
	}
	cs.join()
}

// reset clears the slot after its worker was joined.
func (cs *ClientState) reset() {
	cs.mu.Lock()
	cs.conn = nil
	cs.id = ""
	cs.app = ""
	cs.swapchains = [MaxSwapchains]xrt.Swapchain{}
	cs.numSwapchains = 0
	cs.mu.Unlock()

	cs.active.Store(false)
	cs.render.NumLayers = 0
	cs.render.Layers = [MaxLayers]xrt.LayerRenderState{}
	cs.render.mailbox.reset()
	cs.started = false
	cs.done = nil
	cs.cancel = nil
	cs.logger = cs.s.logger
}

// swapchain returns the swapchain in slot id, or nil.
func (cs *ClientState) swapchain(id uint32) xrt.Swapchain {
	if id >= MaxSwapchains {
		return nil
	}
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.swapchains[id]
}

// liveSwapchains returns the number of occupied swapchain slots.
func (cs *ClientState) liveSwapchains() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.numSwapchains
}

// addSwapchain stores sc in the lowest free slot.
func (cs *ClientState) addSwapchain(sc xrt.Swapchain) (uint32, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for i := range cs.swapchains {
		if cs.swapchains[i] == nil {
			cs.swapchains[i] = sc
			cs.numSwapchains++
			return uint32(i), true
		}
	}
	return 0, false
}

// removeSwapchain empties slot id and returns what it held.
func (cs *ClientState) removeSwapchain(id uint32) xrt.Swapchain {
	if id >= MaxSwapchains {
		return nil
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	sc := cs.swapchains[id]
	if sc != nil {
		cs.swapchains[id] = nil
		cs.numSwapchains--
	}
	return sc
}

// retireSwapchains hands every swapchain to the compositor's deferred
// destroy queue.
func (cs *ClientState) retireSwapchains() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	n := 0
	for i, sc := range cs.swapchains {
		if sc != nil {
			sc.Destroy()
			cs.swapchains[i] = nil
			n++
		}
	}
	cs.numSwapchains = 0
	return n
}

type clientInfo struct {
	connected  bool
	active     bool
	id         string
	app        string
	swapchains int
}

func (cs *ClientState) info() clientInfo {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return clientInfo{
		connected:  cs.conn != nil,
		active:     cs.active.Load(),
		id:         cs.id,
		app:        cs.app,
		swapchains: cs.numSwapchains,
	}
}
