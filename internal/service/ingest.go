// Package service orchestrates inbound chat actions end-to-end: authorize,
// transform and rank, persist, then publish. Denials and rejections leave
// no trace; a store failure aborts before anything is published.
package service

import (
	"context"
	"errors"
	"time"

	"lanes/internal/broadcast"
	"lanes/internal/config"
	"lanes/internal/models"
	"lanes/internal/moderation"
	"lanes/internal/observability"
	"lanes/internal/ranking"
	"lanes/internal/repository"
	"lanes/internal/textproc"
)

// IngestionService coordinates one inbound action at a time. All methods
// are safe for concurrent use.
type IngestionService struct {
	cfg   *config.Config
	posts repository.PostRepository
	votes repository.VoteRepository
	flags repository.FlagRepository
	rooms repository.RoomRepository
	users repository.UserRepository
	bans  repository.BanRepository
	gate  *moderation.Gate
	proc  *textproc.Processor
	bus   broadcast.Broadcaster
	now   func() time.Time
}

// NewIngestionService wires the coordinator. The broadcaster may be the
// in-process hub or the redis notifier; the coordinator does not care.
func NewIngestionService(
	cfg *config.Config,
	posts repository.PostRepository,
	votes repository.VoteRepository,
	flags repository.FlagRepository,
	rooms repository.RoomRepository,
	users repository.UserRepository,
	bans repository.BanRepository,
	gate *moderation.Gate,
	proc *textproc.Processor,
	bus broadcast.Broadcaster,
) *IngestionService {
	return &IngestionService{
		cfg:   cfg,
		posts: posts,
		votes: votes,
		flags: flags,
		rooms: rooms,
		users: users,
		bans:  bans,
		gate:  gate,
		proc:  proc,
		bus:   bus,
		now:   time.Now,
	}
}

// publishRoom sends an event after a confirmed write. Delivery is
// best-effort; a publish failure is logged, never surfaced to the caller.
func (s *IngestionService) publishRoom(ctx context.Context, roomID uint, event broadcast.Event) {
	if err := s.bus.PublishRoom(ctx, roomID, event); err != nil {
		observability.GlobalLogger.Error("room publish failed",
			"room_id", roomID, "event_type", event.Type, "error", err)
	}
}

func (s *IngestionService) publishOrg(ctx context.Context, slug string, event broadcast.Event) {
	if err := s.bus.PublishOrg(ctx, slug, event); err != nil {
		observability.GlobalLogger.Error("org publish failed",
			"org", slug, "event_type", event.Type, "error", err)
	}
}

func (s *IngestionService) loadActor(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, models.WrapStoreError(err)
	}
	return user, nil
}

// loadPost fetches the post with room and organisation attached. Deleted
// posts are visible only as tombstones, so mutating actions treat them
// as absent.
func (s *IngestionService) loadPost(ctx context.Context, postID uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, models.WrapStoreError(err)
	}
	return post, nil
}

// PostMessage ingests a new message into a room.
func (s *IngestionService) PostMessage(ctx context.Context, userID, roomID uint, raw string) (*models.Post, error) {
	user, err := s.loadActor(ctx, userID)
	if err != nil {
		return nil, err
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, models.WrapStoreError(err)
	}

	if _, err := s.gate.Authorize(ctx, user, room, moderation.ActionPost, nil); err != nil {
		return nil, err
	}

	processed, err := s.proc.Process(raw)
	if err != nil {
		return nil, err
	}
	mentioned, err := s.resolveMentions(ctx, processed.Mentions)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		RoomID:   roomID,
		AuthorID: user.ID,
		Hotness:  models.UnrankedHotness,
	}
	if processed.ReplyTo != 0 {
		replyTo := processed.ReplyTo
		post.ReplyToID = &replyTo
	}
	rev := &models.PostRevision{
		AuthorID: user.ID,
		Rendered: processed.HTML,
		Raw:      raw,
	}
	if err := s.posts.Create(ctx, post, rev); err != nil {
		return nil, models.WrapStoreError(err)
	}

	s.publishRoom(ctx, roomID, broadcast.Event{
		Type:    broadcast.EventMsg,
		ID:      post.ID,
		Author:  &broadcast.Author{ID: user.ID, Name: user.Username},
		Content: processed.HTML,
		Raw:     raw,
	})

	if len(mentioned) > 0 {
		names := make([]string, len(mentioned))
		for i, u := range mentioned {
			names[i] = u.Username
			post.Mentions = append(post.Mentions, *u)
		}
		observability.GlobalLogger.Info("mentions resolved",
			"post_id", post.ID, "mentions", names)
	}

	post.Author = *user
	post.Revisions = []models.PostRevision{*rev}
	return post, nil
}

// resolveMentions drops candidate mentions that do not match a known
// username. Unknown names are not an error.
func (s *IngestionService) resolveMentions(ctx context.Context, candidates []string) ([]*models.User, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	users, err := s.users.ResolveUsernames(ctx, candidates)
	if err != nil {
		return nil, models.WrapStoreError(err)
	}
	return users, nil
}

// EditPost appends a new revision to an existing post.
func (s *IngestionService) EditPost(ctx context.Context, userID, postID uint, raw string) (*models.Post, error) {
	user, err := s.loadActor(ctx, userID)
	if err != nil {
		return nil, err
	}
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Deleted {
		return nil, models.NewNotFoundError("Post", postID)
	}

	if _, err := s.gate.Authorize(ctx, user, &post.Room, moderation.ActionEdit, post); err != nil {
		return nil, err
	}

	processed, err := s.proc.Process(raw)
	if err != nil {
		return nil, err
	}

	rev := &models.PostRevision{
		PostID:   post.ID,
		AuthorID: user.ID,
		Rendered: processed.HTML,
		Raw:      raw,
	}
	if err := s.posts.AddRevision(ctx, rev); err != nil {
		return nil, models.WrapStoreError(err)
	}

	s.publishRoom(ctx, post.RoomID, broadcast.Event{
		Type:    broadcast.EventEdit,
		ID:      post.ID,
		Content: processed.HTML,
		Raw:     raw,
	})

	post.Revisions = append([]models.PostRevision{*rev}, post.Revisions...)
	return post, nil
}

// DeletePost soft-deletes a post, replacing its visible content with the
// tombstone. Deleting an already-deleted post is a no-op.
func (s *IngestionService) DeletePost(ctx context.Context, userID, postID uint) error {
	user, err := s.loadActor(ctx, userID)
	if err != nil {
		return err
	}
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return err
	}

	if _, err := s.gate.Authorize(ctx, user, &post.Room, moderation.ActionDelete, post); err != nil {
		return err
	}
	if post.Deleted {
		return nil
	}

	tombstone := &models.PostRevision{
		AuthorID: user.ID,
		Rendered: models.DeletedTombstone,
		Raw:      models.DeletedTombstone,
	}
	if err := s.posts.SoftDelete(ctx, post.ID, tombstone); err != nil {
		return models.WrapStoreError(err)
	}

	s.publishRoom(ctx, post.RoomID, broadcast.Event{
		Type: broadcast.EventDelete,
		ID:   post.ID,
	})
	return nil
}

// PinPost pins a post to its room. Unless the actor wrote the post, an
// implicit +1 vote from the actor is recorded with the pin.
func (s *IngestionService) PinPost(ctx context.Context, userID, postID uint) (*models.Post, error) {
	user, err := s.loadActor(ctx, userID)
	if err != nil {
		return nil, err
	}
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Deleted {
		return nil, models.NewNotFoundError("Post", postID)
	}

	if _, err := s.gate.Authorize(ctx, user, &post.Room, moderation.ActionPin, post); err != nil {
		return nil, err
	}

	if post.Pinned {
		return nil, models.NewDeniedError(models.DenyAlreadyPinned, "post is already pinned")
	}
	voted, err := s.votes.HasVoted(ctx, post.ID, user.ID)
	if err != nil {
		return nil, models.WrapStoreError(err)
	}
	if voted {
		return nil, models.NewDeniedError(models.DenyAlreadyVoted, "you have already voted on this post")
	}

	if user.ID != post.AuthorID {
		vote := &models.Vote{PostID: post.ID, VoterID: user.ID, Score: 1}
		if err := s.votes.Create(ctx, vote); err != nil {
			// A racing vote landed between the check and the insert.
			var conflict *models.ConflictError
			if errors.As(err, &conflict) {
				return nil, models.NewDeniedError(models.DenyAlreadyVoted, "you have already voted on this post")
			}
			return nil, models.WrapStoreError(err)
		}
	}

	score, err := s.votes.Sum(ctx, post.ID)
	if err != nil {
		return nil, models.WrapStoreError(err)
	}

	pinnedAt := s.now()
	hotness := ranking.Hotness(score, pinnedAt)
	if err := s.posts.SetPinned(ctx, post.ID, pinnedAt, hotness); err != nil {
		return nil, models.WrapStoreError(err)
	}

	s.publishRoom(ctx, post.RoomID, broadcast.Event{
		Type:     broadcast.EventPin,
		ID:       post.ID,
		AuthorID: post.AuthorID,
		Score:    &score,
	})

	post.Pinned = true
	post.PinnedAt = &pinnedAt
	post.Hotness = hotness
	post.Score = score
	return post, nil
}

// VotePost records a single up or down vote from the actor. When the
// aggregate falls to the demotion threshold a pinned post is unpinned
// but not deleted.
func (s *IngestionService) VotePost(ctx context.Context, userID, postID uint, up bool) (int64, error) {
	user, err := s.loadActor(ctx, userID)
	if err != nil {
		return 0, err
	}
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return 0, err
	}
	if post.Deleted {
		return 0, models.NewNotFoundError("Post", postID)
	}

	if _, err := s.gate.Authorize(ctx, user, &post.Room, moderation.ActionVote, post); err != nil {
		return 0, err
	}
	if post.AuthorID == user.ID {
		return 0, models.NewDeniedError(models.DenySelfVote, "you may not vote on your own post")
	}

	score := 1
	if !up {
		score = -1
	}
	vote := &models.Vote{PostID: post.ID, VoterID: user.ID, Score: score}
	if err := s.votes.Create(ctx, vote); err != nil {
		return 0, models.WrapStoreError(err)
	}

	sum, err := s.votes.Sum(ctx, post.ID)
	if err != nil {
		return 0, models.WrapStoreError(err)
	}

	if post.Pinned && ranking.ShouldDemote(sum, int64(s.cfg.DemotionThreshold)) {
		if err := s.posts.Unpin(ctx, post.ID); err != nil {
			return 0, models.WrapStoreError(err)
		}
		s.publishRoom(ctx, post.RoomID, broadcast.Event{
			Type:     broadcast.EventUnpin,
			ID:       post.ID,
			AuthorID: post.AuthorID,
			Score:    &sum,
		})
	}

	s.publishRoom(ctx, post.RoomID, broadcast.Event{
		Type:    broadcast.EventVote,
		ID:      post.ID,
		Content: sum,
	})
	return sum, nil
}

// FlagPost records a flag. When the accumulated count strictly exceeds
// the threshold the post is removed exactly once and its author receives
// a temporary ban.
func (s *IngestionService) FlagPost(ctx context.Context, userID, postID uint) error {
	user, err := s.loadActor(ctx, userID)
	if err != nil {
		return err
	}
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return err
	}

	if _, err := s.gate.Authorize(ctx, user, &post.Room, moderation.ActionFlag, post); err != nil {
		return err
	}

	flag := &models.Flag{PostID: post.ID, FlaggerID: user.ID}
	if err := s.flags.Create(ctx, flag); err != nil {
		return models.WrapStoreError(err)
	}

	count, err := s.flags.Count(ctx, post.ID)
	if err != nil {
		return models.WrapStoreError(err)
	}

	if count > int64(s.cfg.FlagThreshold) && !post.Deleted {
		return s.removeFlagged(ctx, post)
	}

	s.publishRoom(ctx, post.RoomID, broadcast.Event{
		Type: broadcast.EventFlag,
		ID:   post.ID,
	})
	return nil
}

// removeFlagged tombstones a post that crossed the flag threshold and
// bans its author for the configured duration.
func (s *IngestionService) removeFlagged(ctx context.Context, post *models.Post) error {
	tombstone := &models.PostRevision{
		AuthorID: post.AuthorID,
		Rendered: models.DeletedTombstone,
		Raw:      models.DeletedTombstone,
	}
	if err := s.posts.SoftDelete(ctx, post.ID, tombstone); err != nil {
		return models.WrapStoreError(err)
	}

	ban := &models.BanRecord{
		UserID:         post.AuthorID,
		OrganisationID: post.Room.OrganisationID,
		Reason:         "flag threshold exceeded",
		ExpiresAt:      s.now().Add(s.cfg.AutoBanDuration()),
	}
	if s.cfg.BanScope == config.BanScopeRoom {
		roomID := post.RoomID
		ban.RoomID = &roomID
	}
	if err := s.bans.Ban(ctx, ban); err != nil {
		return models.WrapStoreError(err)
	}

	observability.GlobalLogger.Info("post removed by flags",
		"post_id", post.ID, "author_id", post.AuthorID, "room_id", post.RoomID)

	s.publishRoom(ctx, post.RoomID, broadcast.Event{
		Type: broadcast.EventDelete,
		ID:   post.ID,
	})
	return nil
}

// SetStatus updates the actor's presence in an organisation and
// broadcasts it on the org channel.
func (s *IngestionService) SetStatus(ctx context.Context, userID, orgID uint, status int) error {
	if !models.PresenceStatus(status).Valid() {
		return models.NewInvalidStatusError(status)
	}
	user, err := s.loadActor(ctx, userID)
	if err != nil {
		return err
	}

	member, err := s.rooms.IsOrgMember(ctx, user.ID, orgID)
	if err != nil {
		return models.WrapStoreError(err)
	}
	if !member {
		admin, err := s.rooms.IsOrgAdmin(ctx, user.ID, orgID)
		if err != nil {
			return models.WrapStoreError(err)
		}
		if !admin {
			return models.NewDeniedError(models.DenyNotMember, "you are not a member of this organisation")
		}
	}

	org, err := s.rooms.SetStatus(ctx, user.ID, orgID, models.PresenceStatus(status))
	if err != nil {
		return models.WrapStoreError(err)
	}

	s.publishOrg(ctx, org.Slug, broadcast.Event{
		Type:   broadcast.EventStatus,
		ID:     user.ID,
		Status: &status,
	})
	return nil
}

// PinnedPosts lists a room's pinned posts in descending hotness order,
// capped at the configured page size.
func (s *IngestionService) PinnedPosts(ctx context.Context, userID, roomID uint) ([]*models.Post, error) {
	user, err := s.loadActor(ctx, userID)
	if err != nil {
		return nil, err
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, models.WrapStoreError(err)
	}
	if _, err := s.gate.Authorize(ctx, user, room, moderation.ActionSubscribe, nil); err != nil {
		return nil, err
	}

	posts, err := s.posts.PinnedByRoom(ctx, roomID, s.cfg.PinnedPageSize)
	if err != nil {
		return nil, models.WrapStoreError(err)
	}
	return posts, nil
}
