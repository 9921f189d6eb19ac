package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"

	"github.com/redis/go-redis/v9"
)

// Notifier publishes events into Redis channels so every process in the
// deployment sees them. Constructed once per process and passed
// explicitly to whoever publishes; there is no ambient client.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishRoom publishes the event on the room's channel.
func (n *Notifier) PublishRoom(ctx context.Context, roomID uint, event Event) error {
	return n.publish(ctx, RoomChannel(roomID), event)
}

// PublishOrg publishes the event on the organisation's presence channel.
func (n *Notifier) PublishOrg(ctx context.Context, slug string, event Event) error {
	return n.publish(ctx, OrgChannel(slug), event)
}

func (n *Notifier) publish(ctx context.Context, channel string, event Event) error {
	if n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return n.rdb.Publish(ctx, channel, payload).Err()
}

// StartWiring subscribes to the room_* and org_* patterns and forwards
// every incoming event into the local hub. Call once per process.
func (n *Notifier) StartWiring(ctx context.Context, hub *Hub) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "room_*", "org_*")
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in room subscriber: %v\n%s", r, debug.Stack())
						}
					}()
					n.dispatch(ctx, hub, msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

func (n *Notifier) dispatch(ctx context.Context, hub *Hub, channel, payload string) {
	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		log.Printf("invalid event on channel %s: %v", channel, err)
		return
	}
	if roomID, ok := ParseRoomChannel(channel); ok {
		_ = hub.PublishRoom(ctx, roomID, event)
		return
	}
	if slug, ok := ParseOrgChannel(channel); ok {
		_ = hub.PublishOrg(ctx, slug, event)
		return
	}
	log.Printf("invalid broadcast channel: %s", channel)
}
