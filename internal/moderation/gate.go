package moderation

import (
	"context"
	"time"

	"lanes/internal/models"
	"lanes/internal/observability"
	"lanes/internal/repository"
)

// Action identifies an inbound action kind for authorization.
type Action string

// Inbound action kinds.
const (
	ActionPost   Action = "post"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionPin    Action = "pin"
	ActionVote   Action = "vote"
	ActionFlag   Action = "flag"
	ActionStatus Action = "status"

	// ActionSubscribe covers read access: listing pinned posts and
	// opening a live room stream. Not rate limited.
	ActionSubscribe Action = "subscribe"
)

// rateGroup buckets actions for rate limiting. An empty group is not
// rate limited.
func (a Action) rateGroup() string {
	switch a {
	case ActionPost, ActionEdit:
		return "post"
	case ActionPin, ActionVote, ActionFlag:
		return "react"
	}
	return ""
}

// needsAuthority reports whether the action requires post ownership or
// an admin role.
func (a Action) needsAuthority() bool {
	switch a {
	case ActionEdit, ActionDelete:
		return true
	}
	return false
}

// Grant is the context an authorized action carries forward.
type Grant struct {
	Actor *models.User
	Room  *models.Room
	Admin bool
	Bot   bool
}

// Gate performs the ordered authorization checks for every inbound
// action. Checks short-circuit: the first failure wins and no later
// check runs.
type Gate struct {
	rooms   repository.RoomRepository
	bans    repository.BanRepository
	limiter RateLimiter
	now     func() time.Time
}

// NewGate returns a Gate backed by the given repositories and limiter.
func NewGate(rooms repository.RoomRepository, bans repository.BanRepository, limiter RateLimiter) *Gate {
	return &Gate{
		rooms:   rooms,
		bans:    bans,
		limiter: limiter,
		now:     time.Now,
	}
}

func deny(reason models.DenyReason, message string) error {
	observability.GateDenials.WithLabelValues(string(reason)).Inc()
	return models.NewDeniedError(reason, message)
}

// Authorize runs the gate for one action. post is required for actions
// that target an existing post and may be nil otherwise. A denial never
// has persistence or publish side effects; the only mutation on the
// success path is clearing an expired ban.
func (g *Gate) Authorize(ctx context.Context, actor *models.User, room *models.Room, action Action, post *models.Post) (*Grant, error) {
	now := g.now()
	orgID := room.OrganisationID

	// (1) ban status, lazily derived from the stored expiry
	ban, err := g.bans.Latest(ctx, actor.ID, orgID, room.ID)
	if err != nil {
		return nil, models.WrapStoreError(err)
	}
	if ban != nil {
		if ban.Active(now) {
			return nil, deny(models.DenyBanned, "you are banned from this room")
		}
		if err := g.bans.ClearExpired(ctx, actor.ID, orgID, now); err != nil {
			return nil, models.WrapStoreError(err)
		}
	}

	admin, err := g.rooms.IsOrgAdmin(ctx, actor.ID, orgID)
	if err != nil {
		return nil, models.WrapStoreError(err)
	}

	// Bots inside their configured scope skip the membership checks but
	// remain subject to bans and rate limits.
	botBypass := false
	if actor.Bot {
		botBypass, err = g.rooms.BotInScope(ctx, actor.ID, room)
		if err != nil {
			return nil, models.WrapStoreError(err)
		}
	}

	if !botBypass {
		// (2) organisation membership
		member, err := g.rooms.IsOrgMember(ctx, actor.ID, orgID)
		if err != nil {
			return nil, models.WrapStoreError(err)
		}
		if !member && !admin {
			return nil, deny(models.DenyNotMember, "you are not a member of this organisation")
		}

		// (3) private room membership
		if room.Private && !admin {
			roomMember, err := g.rooms.IsRoomMember(ctx, actor.ID, room.ID)
			if err != nil {
				return nil, models.WrapStoreError(err)
			}
			if !roomMember {
				return nil, deny(models.DenyPrivateRoom, "this room is private")
			}
		}
	}

	// (4) rate limit
	if group := action.rateGroup(); group != "" && g.limiter != nil {
		allowed, err := g.limiter.Allow(ctx, group, actor.ID)
		if err != nil {
			return nil, models.WrapStoreError(err)
		}
		if !allowed {
			return nil, deny(models.DenyRateLimited, "rate limit exceeded")
		}
	}

	// (5) action-specific authority
	if action.needsAuthority() && post != nil {
		if post.AuthorID != actor.ID && !admin {
			return nil, deny(models.DenyNotAuthor, "only the author or an admin may do this")
		}
	}

	return &Grant{Actor: actor, Room: room, Admin: admin, Bot: botBypass}, nil
}
