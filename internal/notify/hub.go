package notify

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

const subscriberBuffer = 64

// Hub fans events out to every subscriber.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	log    *zap.Logger
	closed bool
}

// Subscription is one client's feed. Read from C until it is closed.
type Subscription struct {
	C       <-chan Event
	ch      chan Event
	hub     *Hub
	once    sync.Once
	dropped atomic.Uint64
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{subs: map[*Subscription]struct{}{}, log: log}
}

func (h *Hub) Subscribe() *Subscription {
	ch := make(chan Event, subscriberBuffer)
	s := &Subscription{C: ch, ch: ch, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

// Close detaches the subscription and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()
		if _, ok := s.hub.subs[s]; ok {
			delete(s.hub.subs, s)
			close(s.ch)
		}
	})
}

// Dropped counts events lost because the buffer was full.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Publish never blocks: a full subscriber buffer drops the event.
func (h *Hub) Publish(events ...Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, e := range events {
		for s := range h.subs {
			select {
			case s.ch <- e:
			default:
				s.dropped.Add(1)
				h.log.Debug("event dropped for slow subscriber", zap.String("event", e.Type), zap.String("id", e.ID))
			}
		}
	}
}

// Subscribers returns the number of attached subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Shutdown closes every subscription; later subscribers get a closed channel.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		delete(h.subs, s)
		close(s.ch)
	}
	h.closed = true
}
