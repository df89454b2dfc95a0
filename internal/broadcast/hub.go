package broadcast

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/genricoloni/nowplayingd/internal/domain"
)

// DefaultCapacity is the number of events retained for lagging subscribers
const DefaultCapacity = 100

// ErrClosed is returned by Recv once the hub is closed and the subscriber has drained it
var ErrClosed = errors.New("broadcast hub closed")

// Hub is a single-topic broadcast channel backed by a bounded ring.
// Publish never blocks: subscribers that fall more than the ring size behind
// lose the oldest events instead of stalling the publisher.
type Hub struct {
	mu     sync.Mutex
	ring   []domain.ChangeEvent
	head   uint64 // sequence of the oldest retained event
	next   uint64 // sequence the next published event will get
	notify chan struct{}
	closed bool
}

// New creates a hub retaining up to capacity events
func New(capacity int) *Hub {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Hub{
		ring:   make([]domain.ChangeEvent, capacity),
		notify: make(chan struct{}),
	}
}

// Publish appends ev and wakes every waiting subscriber. Events published
// after Close are discarded.
func (h *Hub) Publish(ev domain.ChangeEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.ring[h.next%uint64(len(h.ring))] = ev
	h.next++
	if h.next-h.head > uint64(len(h.ring)) {
		h.head = h.next - uint64(len(h.ring))
	}

	close(h.notify)
	h.notify = make(chan struct{})
}

// Subscribe returns a handle that receives every event published from now on
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	return &Subscription{hub: h, cursor: h.next}
}

// Close ends the stream. Subscribers still receive retained events they have
// not consumed, then ErrClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	close(h.notify)
}

// Published returns how many events have been published so far
func (h *Hub) Published() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.next
}

// Subscription is an independent read cursor over a Hub.
// It is not safe for concurrent use by multiple goroutines.
type Subscription struct {
	hub    *Hub
	cursor uint64
	lagged uint64
}

// Recv waits for the next event. It returns ctx.Err() when ctx is done and
// ErrClosed once the hub is closed and drained.
func (s *Subscription) Recv(ctx context.Context) (domain.ChangeEvent, error) {
	for {
		ev, wait, err := s.poll()
		if err != nil {
			return domain.ChangeEvent{}, err
		}
		if wait == nil {
			return ev, nil
		}

		select {
		case <-ctx.Done():
			return domain.ChangeEvent{}, ctx.Err()
		case <-wait:
		}
	}
}

// TryRecv returns the next event without waiting
func (s *Subscription) TryRecv() (domain.ChangeEvent, bool) {
	ev, wait, err := s.poll()
	if err != nil || wait != nil {
		return domain.ChangeEvent{}, false
	}
	return ev, true
}

// Lagged returns how many events this subscriber missed because it fell behind
func (s *Subscription) Lagged() uint64 {
	return s.lagged
}

// poll returns the next event, or a channel to wait on when there is none yet
func (s *Subscription) poll() (domain.ChangeEvent, <-chan struct{}, error) {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	if s.cursor < h.head {
		s.lagged += h.head - s.cursor
		s.cursor = h.head
	}

	if s.cursor < h.next {
		ev := h.ring[s.cursor%uint64(len(h.ring))]
		s.cursor++
		return ev, nil, nil
	}

	if h.closed {
		return domain.ChangeEvent{}, nil, ErrClosed
	}
	return domain.ChangeEvent{}, h.notify, nil
}
