package broadcast

import (
	"context"
	"strconv"
	"sync"

	"lanes/internal/observability"
)

// subscriptionBuffer is the per-subscriber event buffer. A subscriber
// that falls this far behind starts dropping events (counted in metrics)
// rather than blocking the room.
const subscriptionBuffer = 256

// Broadcaster publishes events to room and organisation channels. The
// Hub implements it for in-process delivery; the Notifier implements it
// on top of Redis for cross-process delivery.
type Broadcaster interface {
	PublishRoom(ctx context.Context, roomID uint, event Event) error
	PublishOrg(ctx context.Context, slug string, event Event) error
}

// Subscription is one live listener on a room or organisation channel.
// It receives every event published from the moment of subscription
// onward; there is no backlog replay.
type Subscription struct {
	hub     *Hub
	roomID  uint
	orgSlug string
	events  chan Event
	once    sync.Once
}

// Events returns the live event stream. The channel is closed when the
// subscription is closed.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close deregisters the subscription. Safe to call concurrently with
// ongoing publishes and safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
		close(s.events)
	})
}

// Hub is the in-process fan-out: it maps room ids (and org slugs) to
// their current subscriber sets. Each room is an independent unit of
// concurrency: publishing to one room never blocks on another room's
// subscribers, because delivery is a non-blocking send per subscriber.
type Hub struct {
	mu    sync.RWMutex
	rooms map[uint]map[*Subscription]struct{}
	orgs  map[string]map[*Subscription]struct{}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "room hub" }

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[uint]map[*Subscription]struct{}),
		orgs:  make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers a listener for a room's events.
func (h *Hub) Subscribe(roomID uint) *Subscription {
	sub := &Subscription{
		hub:    h,
		roomID: roomID,
		events: make(chan Event, subscriptionBuffer),
	}
	h.mu.Lock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Subscription]struct{})
	}
	h.rooms[roomID][sub] = struct{}{}
	h.mu.Unlock()

	observability.WebSocketRoomConnections.WithLabelValues(strconv.FormatUint(uint64(roomID), 10)).Inc()
	return sub
}

// SubscribeOrg registers a listener for an organisation's presence events.
func (h *Hub) SubscribeOrg(slug string) *Subscription {
	sub := &Subscription{
		hub:     h,
		orgSlug: slug,
		events:  make(chan Event, subscriptionBuffer),
	}
	h.mu.Lock()
	if h.orgs[slug] == nil {
		h.orgs[slug] = make(map[*Subscription]struct{})
	}
	h.orgs[slug][sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub.orgSlug != "" {
		if subs, ok := h.orgs[sub.orgSlug]; ok {
			if _, exists := subs[sub]; exists {
				delete(subs, sub)
				if len(subs) == 0 {
					delete(h.orgs, sub.orgSlug)
				}
			}
		}
		return
	}
	if subs, ok := h.rooms[sub.roomID]; ok {
		if _, exists := subs[sub]; exists {
			delete(subs, sub)
			observability.WebSocketRoomConnections.WithLabelValues(strconv.FormatUint(uint64(sub.roomID), 10)).Dec()
			if len(subs) == 0 {
				delete(h.rooms, sub.roomID)
			}
		}
	}
}

// PublishRoom delivers the event to every current subscriber of the
// room. Delivery is fire-and-forget: a subscriber whose buffer is full
// misses the event and the drop is counted.
func (h *Hub) PublishRoom(_ context.Context, roomID uint, event Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	observability.EventPublishes.WithLabelValues(strconv.FormatUint(uint64(roomID), 10), string(event.Type)).Inc()
	for sub := range h.rooms[roomID] {
		select {
		case sub.events <- event:
		default:
			observability.WebSocketBackpressureDrops.WithLabelValues(h.Name(), "full").Inc()
		}
	}
	return nil
}

// PublishOrg delivers the event to every current subscriber of the
// organisation channel.
func (h *Hub) PublishOrg(_ context.Context, slug string, event Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	observability.EventPublishes.WithLabelValues(OrgChannel(slug), string(event.Type)).Inc()
	for sub := range h.orgs[slug] {
		select {
		case sub.events <- event:
		default:
			observability.WebSocketBackpressureDrops.WithLabelValues(h.Name(), "full").Inc()
		}
	}
	return nil
}

// SubscriberCount returns the number of live subscribers for a room.
func (h *Hub) SubscriberCount(roomID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Shutdown closes every subscription.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	subs := make([]*Subscription, 0)
	for _, set := range h.rooms {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	for _, set := range h.orgs {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	return nil
}
