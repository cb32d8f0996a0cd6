// Package stream fans journal change events out to live subscribers.
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"tradestein/internal/models"
)

// HubConfig holds configuration for the Hub.
type HubConfig struct {
	// BufferSize is the size of the internal event channel buffer.
	BufferSize int
	// SubscriberBufferSize is the size of each subscriber's channel buffer.
	SubscriberBufferSize int
	// SlowConsumerDropThreshold is the number of consecutive drops after
	// which a subscriber is disconnected. Zero keeps slow subscribers forever.
	SlowConsumerDropThreshold int
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		BufferSize:                256,
		SubscriberBufferSize:      16,
		SlowConsumerDropThreshold: 32,
	}
}

// Hub distributes change events to the subscribers of the owning user.
// Events for one user are never delivered to another.
type Hub struct {
	config      HubConfig
	mu          sync.RWMutex
	subscribers map[string][]*Subscriber
	events      chan models.Event
	done        chan struct{}
	started     bool

	// Metrics
	eventsReceived  uint64
	eventsDelivered uint64
	eventsDropped   uint64
	evicted         uint64
	metricsMu       sync.RWMutex
}

// Subscriber is one live listener for a user's events.
type Subscriber struct {
	ID           string
	UserID       string
	Channel      chan models.Event
	DroppedCount int
	CreatedAt    time.Time
}

// NewHub creates a hub with default configuration.
func NewHub() *Hub {
	return NewHubWithConfig(DefaultHubConfig())
}

// NewHubWithConfig creates a hub with custom configuration.
func NewHubWithConfig(config HubConfig) *Hub {
	if config.BufferSize <= 0 {
		config.BufferSize = 1
	}
	if config.SubscriberBufferSize <= 0 {
		config.SubscriberBufferSize = 1
	}
	return &Hub{
		config:      config,
		subscribers: make(map[string][]*Subscriber),
		events:      make(chan models.Event, config.BufferSize),
		done:        make(chan struct{}),
	}
}

// Start begins the distribution loop. It returns once the loop is running;
// the loop exits when ctx is cancelled or Stop is called.
func (h *Hub) Start(ctx context.Context) {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return
	}
	h.started = true
	h.mu.Unlock()

	go h.broadcastLoop(ctx)
}

func (h *Hub) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case ev := <-h.events:
			h.metricsMu.Lock()
			h.eventsReceived++
			h.metricsMu.Unlock()

			h.broadcast(ev)
		}
	}
}

// Stop stops the hub and closes every subscriber channel.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return
	}

	close(h.done)
	h.started = false

	for userID, subs := range h.subscribers {
		for _, sub := range subs {
			close(sub.Channel)
		}
		delete(h.subscribers, userID)
	}
}

// Subscribe registers a listener for userID. The returned cancel function
// unsubscribes and closes the channel; calling it more than once is safe.
// The channel is also closed when the hub stops or evicts the subscriber
// for falling behind.
func (h *Hub) Subscribe(userID string) (<-chan models.Event, func()) {
	sub := &Subscriber{
		ID:        uuid.NewString(),
		UserID:    userID,
		Channel:   make(chan models.Event, h.config.SubscriberBufferSize),
		CreatedAt: time.Now(),
	}

	h.mu.Lock()
	h.subscribers[userID] = append(h.subscribers[userID], sub)
	h.mu.Unlock()

	return sub.Channel, func() { h.remove(userID, sub.ID) }
}

// remove detaches and closes a subscriber if it is still registered.
func (h *Hub) remove(userID, id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subscribers[userID]
	for i, sub := range subs {
		if sub.ID == id {
			close(sub.Channel)
			h.subscribers[userID] = append(subs[:i:i], subs[i+1:]...)
			if len(h.subscribers[userID]) == 0 {
				delete(h.subscribers, userID)
			}
			return true
		}
	}
	return false
}

// Publish queues an event for distribution. It never blocks: when the
// internal buffer is full the event is dropped.
func (h *Hub) Publish(ev models.Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	select {
	case h.events <- ev:
	default:
		h.metricsMu.Lock()
		h.eventsDropped++
		h.metricsMu.Unlock()
	}
}

// Notify publishes a change of kind to userID's subscribers.
func (h *Hub) Notify(userID string, kind models.EventKind, entityID string) {
	h.Publish(models.Event{Kind: kind, UserID: userID, EntityID: entityID})
}

// broadcast sends ev to the owner's subscribers with non-blocking sends.
// A subscriber whose buffer stays full for SlowConsumerDropThreshold
// consecutive events is evicted.
func (h *Hub) broadcast(ev models.Event) {
	h.mu.RLock()
	subs := make([]*Subscriber, len(h.subscribers[ev.UserID]))
	copy(subs, h.subscribers[ev.UserID])
	h.mu.RUnlock()

	var slow []*Subscriber
	for _, sub := range subs {
		if h.deliver(sub, ev) {
			continue
		}
		if h.config.SlowConsumerDropThreshold > 0 && sub.DroppedCount >= h.config.SlowConsumerDropThreshold {
			slow = append(slow, sub)
		}
	}

	for _, sub := range slow {
		if h.remove(sub.UserID, sub.ID) {
			h.metricsMu.Lock()
			h.evicted++
			h.metricsMu.Unlock()
		}
	}
}

func (h *Hub) deliver(sub *Subscriber, ev models.Event) (ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// Stop or cancel may have closed the channel since the snapshot.
	if !h.registered(sub) {
		return true
	}

	select {
	case sub.Channel <- ev:
		sub.DroppedCount = 0
		h.metricsMu.Lock()
		h.eventsDelivered++
		h.metricsMu.Unlock()
		return true
	default:
		sub.DroppedCount++
		h.metricsMu.Lock()
		h.eventsDropped++
		h.metricsMu.Unlock()
		return false
	}
}

// registered must be called with h.mu held.
func (h *Hub) registered(sub *Subscriber) bool {
	for _, s := range h.subscribers[sub.UserID] {
		if s == sub {
			return true
		}
	}
	return false
}

// SubscriberCount returns the number of subscribers for userID.
func (h *Hub) SubscriberCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[userID])
}

// TotalSubscriberCount returns the number of subscribers across all users.
func (h *Hub) TotalSubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, subs := range h.subscribers {
		count += len(subs)
	}
	return count
}

// HubMetrics contains hub delivery counters.
type HubMetrics struct {
	EventsReceived  uint64 `json:"events_received"`
	EventsDelivered uint64 `json:"events_delivered"`
	EventsDropped   uint64 `json:"events_dropped"`
	Evicted         uint64 `json:"evicted"`
	Subscribers     int    `json:"subscribers"`
}

// Metrics returns a snapshot of the hub counters.
func (h *Hub) Metrics() HubMetrics {
	subscribers := h.TotalSubscriberCount()

	h.metricsMu.RLock()
	defer h.metricsMu.RUnlock()

	return HubMetrics{
		EventsReceived:  h.eventsReceived,
		EventsDelivered: h.eventsDelivered,
		EventsDropped:   h.eventsDropped,
		Evicted:         h.evicted,
		Subscribers:     subscribers,
	}
}

// IsStarted returns whether the hub is running.
func (h *Hub) IsStarted() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started
}
