// Package notification provides the notification manager for broadcasting
// state snapshots to subscribers.
package notification

import (
	"sync"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// subscription represents a subscriber's subscription.
type subscription[T any] struct {
	id string
	ch chan T
}

// Manager manages subscriptions and broadcasts values to all of them.
// Sends never block the broadcaster: a subscriber whose channel is full
// misses intermediate values and catches up on the next broadcast.
type Manager[T any] struct {
	mu     sync.RWMutex
	subs   map[string]*subscription[T]
	buffer int
	latest T
}

// NewManager creates a new manager. buffer is the per-subscriber channel
// capacity.
func NewManager[T any](buffer int) *Manager[T] {
	if buffer <= 0 {
		buffer = 16
	}
	return &Manager[T]{
		subs:   make(map[string]*subscription[T]),
		buffer: buffer,
	}
}

// Subscribe adds a new subscription and returns its ID and receive channel.
func (m *Manager[T]) Subscribe() (string, <-chan T) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	sub := &subscription[T]{id: id, ch: make(chan T, m.buffer)}
	m.subs[id] = sub
	return id, sub.ch
}

// Unsubscribe removes a subscription.
func (m *Manager[T]) Unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, id)
}

// Broadcast sends a value to all subscribers and records it as the latest.
func (m *Manager[T]) Broadcast(v T) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.latest = v
	for id, sub := range m.subs {
		select {
		case sub.ch <- v:
		default:
			zlog.Debug().Str("subscriber", id).Msg("notification: subscriber channel full, dropping")
		}
	}
}

// Latest returns the most recently broadcast value.
func (m *Manager[T]) Latest() T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// subscriberCount returns the number of active subscribers.
func (m *Manager[T]) subscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

// Close removes all subscriptions.
func (m *Manager[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = make(map[string]*subscription[T])
}
