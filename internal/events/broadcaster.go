// ABOUTME: In-memory fan-out of store change events to a device's live subscribers
// ABOUTME: Feeds the SSE endpoint so every open client sees mutations from the others

package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// Event says which store changed and how.
type Event struct {
	ID     string    `json:"id"`
	Store  string    `json:"store"`
	Action string    `json:"action"`
	At     time.Time `json:"at"`
}

// New builds an event with a fresh id.
func New(store, action string) Event {
	return Event{ID: uuid.NewString(), Store: store, Action: action, At: time.Now().UTC()}
}

// Broadcaster delivers events to every subscriber of a device.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan Event // deviceID -> subID -> ch
	closed      bool
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan Event),
		logger:      logger.With("component", "events"),
	}
}

// Subscribe registers for a device's events. The subscription ends, and the
// channel closes, when ctx is cancelled or Unsubscribe is called.
func (b *Broadcaster) Subscribe(ctx context.Context, deviceID string) (<-chan Event, string) {
	subID := uuid.NewString()
	ch := make(chan Event, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	if _, ok := b.subscribers[deviceID]; !ok {
		b.subscribers[deviceID] = make(map[string]chan Event)
	}
	b.subscribers[deviceID][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "device", deviceID, "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(deviceID, subID)
	}()

	return ch, subID
}

// Publish sends event to the device's subscribers, skipping excludeSubID when
// set. Slow subscribers with full buffers miss the event.
func (b *Broadcaster) Publish(deviceID string, event Event, excludeSubID string) {
	// Sends happen under the read lock so Unsubscribe cannot close a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers[deviceID] {
		if excludeSubID != "" && id == excludeSubID {
			continue
		}
		select {
		case ch <- event:
		default:
			b.logger.Debug("dropped event for slow subscriber", "device", deviceID, "event_id", event.ID)
		}
	}
}

// Subscribers returns the number of live subscriptions for a device.
func (b *Broadcaster) Subscribers(deviceID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[deviceID])
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(deviceID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[deviceID]
	if !ok {
		return
	}
	ch, ok := subs[subID]
	if !ok {
		return
	}

	delete(subs, subID)
	close(ch)
	if len(subs) == 0 {
		delete(b.subscribers, deviceID)
	}

	b.logger.Debug("subscriber removed", "device", deviceID, "sub_id", subID)
}

// Close closes every subscriber channel. Later subscriptions are closed immediately.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for deviceID, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, deviceID)
	}
	b.closed = true
}
