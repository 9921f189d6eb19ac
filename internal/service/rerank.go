package service

import (
	"context"
	"sort"
	"time"

	"lanes/internal/broadcast"
	"lanes/internal/models"
	"lanes/internal/observability"
	"lanes/internal/ranking"
)

// RerankPinned recomputes the hotness of every pinned post from its
// stored vote aggregate and pin timestamp, then publishes each room's
// top slice as a hotness event. The computation is deterministic, so a
// sweep that changes nothing repeats the stored scores exactly.
func (s *IngestionService) RerankPinned(ctx context.Context) error {
	pinned, err := s.posts.AllPinned(ctx)
	if err != nil {
		return models.WrapStoreError(err)
	}

	byRoom := make(map[uint][]*models.Post)
	for _, post := range pinned {
		if post.PinnedAt == nil {
			continue
		}
		hotness := ranking.Hotness(post.Score, *post.PinnedAt)
		if hotness != post.Hotness {
			if err := s.posts.UpdateHotness(ctx, post.ID, hotness); err != nil {
				return models.WrapStoreError(err)
			}
			post.Hotness = hotness
		}
		byRoom[post.RoomID] = append(byRoom[post.RoomID], post)
	}

	for roomID, posts := range byRoom {
		sort.Slice(posts, func(i, j int) bool {
			return posts[i].Hotness > posts[j].Hotness
		})
		if len(posts) > s.cfg.PinnedPageSize {
			posts = posts[:s.cfg.PinnedPageSize]
		}
		rows := make([]broadcast.HotPost, len(posts))
		for i, post := range posts {
			rows[i] = broadcast.HotPost{ID: post.ID, Score: post.Score, Hotness: post.Hotness}
		}
		s.publishRoom(ctx, roomID, broadcast.Event{
			Type:  broadcast.EventHotness,
			Posts: rows,
		})
	}

	observability.RerankSweeps.Inc()
	return nil
}

// RunRerankLoop runs the sweep on the configured interval until the
// context is cancelled. Scheduling policy beyond the interval (backoff,
// leader election) belongs to the caller.
func (s *IngestionService) RunRerankLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RerankInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RerankPinned(ctx); err != nil {
				observability.GlobalLogger.Error("rerank sweep failed", "error", err)
			}
		}
	}
}
