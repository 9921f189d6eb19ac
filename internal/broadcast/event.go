// Package broadcast provides per-room fan-out of chat events to live
// subscribers, locally and across processes via Redis pub/sub.
package broadcast

import (
	"fmt"
	"strings"
)

// EventType discriminates broadcast event payloads.
type EventType string

// Broadcast event types.
const (
	EventMsg     EventType = "msg"
	EventEdit    EventType = "edit"
	EventDelete  EventType = "delete"
	EventPin     EventType = "pin"
	EventUnpin   EventType = "unpin"
	EventVote    EventType = "vote"
	EventStatus  EventType = "status"
	EventFlag    EventType = "flag"
	EventHotness EventType = "hotness"
)

// Author is the `author` object on msg events.
type Author struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// HotPost is one row of a hotness event.
type HotPost struct {
	ID      uint    `json:"id"`
	Score   int64   `json:"score"`
	Hotness float64 `json:"hotness"`
}

// Event is the wire payload published to room and organisation channels.
// Fields are populated per event type; everything unused is omitted.
type Event struct {
	Type     EventType   `json:"type"`
	ID       uint        `json:"id,omitempty"`
	Author   *Author     `json:"author,omitempty"`
	AuthorID uint        `json:"author_id,omitempty"`
	Content  interface{} `json:"content,omitempty"`
	Raw      string      `json:"raw,omitempty"`
	Score    *int64      `json:"score,omitempty"`
	Status   *int        `json:"status,omitempty"`
	Posts    []HotPost   `json:"posts,omitempty"`
}

// RoomChannel derives the pub/sub channel name for a room.
func RoomChannel(roomID uint) string {
	return fmt.Sprintf("room_%d", roomID)
}

// OrgChannel derives the pub/sub channel name for an organisation's
// presence events.
func OrgChannel(slug string) string {
	return "org_" + slug
}

// ParseRoomChannel extracts the room id from a room channel name.
func ParseRoomChannel(channel string) (uint, bool) {
	var roomID uint
	if _, err := fmt.Sscanf(channel, "room_%d", &roomID); err != nil {
		return 0, false
	}
	return roomID, true
}

// ParseOrgChannel extracts the organisation slug from an org channel name.
func ParseOrgChannel(channel string) (string, bool) {
	slug, ok := strings.CutPrefix(channel, "org_")
	if !ok || slug == "" {
		return "", false
	}
	return slug, true
}
