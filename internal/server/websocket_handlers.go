package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"lanes/internal/broadcast"
	"lanes/internal/moderation"
	"lanes/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

var wsLogger = observability.NewWSLogger("room hub")

// RoomSocketHandler upgrades the connection and streams a room's live
// events. The subscriber receives every event published from the moment
// of subscription onward; there is no backlog replay.
func (s *Server) RoomSocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		ctx := context.Background()

		userID, ok := conn.Locals("userID").(uint)
		if !ok {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		roomID, err := paramUint(conn, "id")
		if err != nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid room id"}`))
			_ = conn.Close()
			return
		}

		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			wsLogger.LogError(ctx, userID, roomID, err, "load_user")
			_ = conn.Close()
			return
		}
		room, err := s.roomRepo.GetRoom(ctx, roomID)
		if err != nil {
			wsLogger.LogError(ctx, userID, roomID, err, "load_room")
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"room not found"}`))
			_ = conn.Close()
			return
		}
		if _, err := s.gate.Authorize(ctx, user, room, moderation.ActionSubscribe, nil); err != nil {
			wsLogger.LogError(ctx, userID, roomID, err, "authorize")
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"forbidden"}`))
			_ = conn.Close()
			return
		}

		wsLogger.LogConnect(ctx, userID, roomID)

		sub := s.hub.Subscribe(roomID)
		client := broadcast.NewClient(conn, userID, broadcast.RoomChannel(roomID))
		client.OnClose = func(*broadcast.Client) {
			sub.Close()
			wsLogger.LogDisconnect(ctx, userID, roomID, "read closed")
		}

		go pumpEvents(sub, client)
		go client.WritePump()
		client.ReadPump()
	})
}

// OrgSocketHandler streams an organisation's presence events.
func (s *Server) OrgSocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		ctx := context.Background()

		userID, ok := conn.Locals("userID").(uint)
		if !ok {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		slug := conn.Params("slug")
		org, err := s.roomRepo.GetOrgBySlug(ctx, slug)
		if err != nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"organisation not found"}`))
			_ = conn.Close()
			return
		}

		member, err := s.roomRepo.IsOrgMember(ctx, userID, org.ID)
		if err != nil {
			wsLogger.LogError(ctx, userID, 0, err, "membership")
			_ = conn.Close()
			return
		}
		if !member {
			admin, err := s.roomRepo.IsOrgAdmin(ctx, userID, org.ID)
			if err != nil || !admin {
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"forbidden"}`))
				_ = conn.Close()
				return
			}
		}

		sub := s.hub.SubscribeOrg(org.Slug)
		client := broadcast.NewClient(conn, userID, broadcast.OrgChannel(org.Slug))
		client.OnClose = func(*broadcast.Client) {
			sub.Close()
		}

		go pumpEvents(sub, client)
		go client.WritePump()
		client.ReadPump()
	})
}

// pumpEvents serializes hub events onto the client until the
// subscription closes, then closes the client's send channel so
// WritePump terminates.
func pumpEvents(sub *broadcast.Subscription, client *broadcast.Client) {
	defer close(client.Send)
	for event := range sub.Events() {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		client.TrySend(payload)
	}
}

// paramUint parses a positive integer route parameter from an upgraded
// connection.
func paramUint(conn *websocket.Conn, name string) (uint, error) {
	id, err := strconv.ParseUint(conn.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return uint(id), nil
}
