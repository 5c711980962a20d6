// ABOUTME: In-memory fan-out of manager lifecycle events to UI subscribers
// ABOUTME: Publishes state changes and appended turns without blocking the manager

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/council/internal/turn"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64
)

// EventType identifies a manager event.
type EventType string

const (
	EventStateChanged EventType = "state_changed"
	EventTurnAppended EventType = "turn_appended"
)

// Event is published whenever the manager changes state or appends a turn.
type Event struct {
	Type         EventType
	ConnectionID string
	State        State
	// Turn is set for EventTurnAppended.
	Turn *turn.Turn
}

// Broadcaster provides in-memory pub/sub for manager events.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]subscriber // subID -> subscriber
	closed      bool
	logger      *slog.Logger
}

type subscriber struct {
	ch chan Event
	// gone is closed when the subscription ends for any reason.
	gone chan struct{}
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]subscriber),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber and returns its channel and ID. The
// subscription is cleaned up when ctx is cancelled. Subscribing to a closed
// broadcaster returns an already closed channel.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan Event, string) {
	subID := uuid.New().String()
	ch := make(chan Event, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	sub := subscriber{ch: ch, gone: make(chan struct{})}
	b.subscribers[subID] = sub
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	// Auto-cleanup on context cancellation
	go func() {
		select {
		case <-ctx.Done():
			b.Unsubscribe(subID)
		case <-sub.gone:
		}
	}()

	return ch, subID
}

// Publish sends an event to all subscribers.
// Non-blocking: events are dropped for subscribers whose channels are full.
func (b *Broadcaster) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, sub := range b.subscribers {
		select {
		case sub.ch <- event:
		default:
			b.logger.Debug("dropped event for slow subscriber",
				"sub_id", id,
				"event_type", event.Type)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, exists := b.subscribers[subID]
	if !exists {
		return
	}

	delete(b.subscribers, subID)
	sub.close()

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for subID, sub := range b.subscribers {
		sub.close()
		delete(b.subscribers, subID)
	}
	b.closed = true

	b.logger.Debug("broadcaster closed")
}

func (s subscriber) close() {
	close(s.ch)
	close(s.gone)
}
