package shell

import (
	"sync"
	"time"
)

// State is the shell's coarse state
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateError   State = "error"
)

// Status is a snapshot published to subscribers
type Status struct {
	State         State     `json:"state"`
	Message       string    `json:"message"`
	Indeterminate bool      `json:"indeterminate"` // Progress bar animates while running
	RunID         string    `json:"run_id,omitempty"`
	Preset        string    `json:"preset,omitempty"`
	Written       []string  `json:"written,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

const subscriberBuffer = 16

// Hub fans status snapshots out to subscribers from a single goroutine.
// Slow subscribers miss snapshots instead of blocking the publisher.
type Hub struct {
	register   chan chan Status
	unregister chan chan Status
	publish    chan Status
	done       chan struct{}
	closeOnce  sync.Once

	mu     sync.RWMutex
	latest Status
}

// NewHub creates a hub and starts its goroutine
func NewHub(initial Status) *Hub {
	h := &Hub{
		register:   make(chan chan Status),
		unregister: make(chan chan Status),
		publish:    make(chan Status),
		done:       make(chan struct{}),
		latest:     initial,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	subs := make(map[chan Status]struct{})
	for {
		select {
		case ch := <-h.register:
			ch <- h.Latest()
			subs[ch] = struct{}{}
		case ch := <-h.unregister:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
		case s := <-h.publish:
			for ch := range subs {
				select {
				case ch <- s:
				default:
				}
			}
		case <-h.done:
			for ch := range subs {
				close(ch)
			}
			return
		}
	}
}

// Publish records s as the latest snapshot and forwards it to subscribers
func (h *Hub) Publish(s Status) {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	h.mu.Lock()
	h.latest = s
	h.mu.Unlock()

	select {
	case h.publish <- s:
	case <-h.done:
	}
}

// Latest returns the most recent snapshot
func (h *Hub) Latest() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// Subscribe returns a channel that first receives the latest snapshot, and a
// function that ends the subscription and closes the channel.
func (h *Hub) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, subscriberBuffer)
	select {
	case h.register <- ch:
	case <-h.done:
		close(ch)
		return ch, func() {}
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			select {
			case h.unregister <- ch:
			case <-h.done:
			}
		})
	}
}

// Close stops the hub and closes every subscriber channel
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}
