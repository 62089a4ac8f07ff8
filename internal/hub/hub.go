// Package hub serializes real-time traffic. Every connection's read loop
// hands its frames and its disconnect to the hub, and a single goroutine
// applies them in arrival order.
package hub

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"tutorrelay/pkg/interfaces"
)

const defaultInboundBuffer = 1000

type eventKind int

const (
	eventFrame eventKind = iota
	eventDisconnect
)

type event struct {
	kind   eventKind
	handle interfaces.Handle
	data   []byte
}

// Hub implements interfaces.FrameHandler in front of another FrameHandler.
type Hub struct {
	inbound chan event
	next    interfaces.FrameHandler
	logger  *zap.Logger

	mu       sync.RWMutex
	running  bool
	shutdown chan struct{}
	done     chan struct{}
}

// NewHub creates a hub that forwards to next. A non-positive buffer uses
// the default size.
func NewHub(next interfaces.FrameHandler, buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultInboundBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		inbound: make(chan event, buffer),
		next:    next,
		logger:  logger,
	}
}

// Start begins processing in a new goroutine.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.shutdown = make(chan struct{})
	h.done = make(chan struct{})

	h.logger.Info("Starting hub")
	go h.run(ctx, h.shutdown, h.done)

	return nil
}

// Stop ends processing and waits for the current event to finish. Events
// still queued are discarded.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrHubNotRunning
	}
	h.running = false
	close(h.shutdown)
	done := h.done
	h.mu.Unlock()

	h.logger.Info("Stopping hub")
	<-done
	return nil
}

// IsRunning reports whether the hub is processing events.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Dispatch queues a frame without blocking.
func (h *Hub) Dispatch(handle interfaces.Handle, data []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.running {
		return ErrHubNotRunning
	}

	select {
	case h.inbound <- event{kind: eventFrame, handle: handle, data: data}:
		return nil
	default:
		return ErrInboundChannelFull
	}
}

// HandleFrame queues data for the downstream handler. Frames that cannot be
// queued are dropped.
func (h *Hub) HandleFrame(handle interfaces.Handle, data []byte) {
	if err := h.Dispatch(handle, data); err != nil {
		h.logger.Warn("Frame dropped", zap.String("connection", handle.ID()), zap.Error(err))
	}
}

// HandleDisconnect queues the disconnect, waiting for room if needed so a
// departed connection is always cleaned up while the hub runs.
func (h *Hub) HandleDisconnect(handle interfaces.Handle) {
	h.mu.RLock()
	if !h.running {
		h.mu.RUnlock()
		return
	}
	shutdown := h.shutdown
	h.mu.RUnlock()

	select {
	case h.inbound <- event{kind: eventDisconnect, handle: handle}:
	case <-shutdown:
	}
}

func (h *Hub) run(ctx context.Context, shutdown <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer h.logger.Info("Hub stopped")

	for {
		select {
		case ev := <-h.inbound:
			h.process(ev)
		case <-shutdown:
			return
		case <-ctx.Done():
			h.mu.Lock()
			if h.running {
				h.running = false
				close(h.shutdown)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) process(ev event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Recovered from panic while handling event",
				zap.String("connection", ev.handle.ID()),
				zap.Any("panic", r))
		}
	}()

	switch ev.kind {
	case eventFrame:
		h.next.HandleFrame(ev.handle, ev.data)
	case eventDisconnect:
		h.next.HandleDisconnect(ev.handle)
	}
}
