package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"lanes/internal/broadcast"
	"lanes/internal/config"
	"lanes/internal/models"
	"lanes/internal/moderation"
	"lanes/internal/textproc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn        func(context.Context, *models.Post, *models.PostRevision) error
	getByIDFn       func(context.Context, uint) (*models.Post, error)
	addRevisionFn   func(context.Context, *models.PostRevision) error
	setPinnedFn     func(context.Context, uint, time.Time, float64) error
	unpinFn         func(context.Context, uint) error
	updateHotnessFn func(context.Context, uint, float64) error
	softDeleteFn    func(context.Context, uint, *models.PostRevision) error
	pinnedByRoomFn  func(context.Context, uint, int) ([]*models.Post, error)
	allPinnedFn     func(context.Context) ([]*models.Post, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post, rev *models.PostRevision) error {
	return s.createFn(ctx, post, rev)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) AddRevision(ctx context.Context, rev *models.PostRevision) error {
	return s.addRevisionFn(ctx, rev)
}
func (s *postRepoStub) SetPinned(ctx context.Context, postID uint, pinnedAt time.Time, hotness float64) error {
	return s.setPinnedFn(ctx, postID, pinnedAt, hotness)
}
func (s *postRepoStub) Unpin(ctx context.Context, postID uint) error {
	return s.unpinFn(ctx, postID)
}
func (s *postRepoStub) UpdateHotness(ctx context.Context, postID uint, hotness float64) error {
	return s.updateHotnessFn(ctx, postID, hotness)
}
func (s *postRepoStub) SoftDelete(ctx context.Context, postID uint, tombstone *models.PostRevision) error {
	return s.softDeleteFn(ctx, postID, tombstone)
}
func (s *postRepoStub) PinnedByRoom(ctx context.Context, roomID uint, limit int) ([]*models.Post, error) {
	return s.pinnedByRoomFn(ctx, roomID, limit)
}
func (s *postRepoStub) AllPinned(ctx context.Context) ([]*models.Post, error) {
	return s.allPinnedFn(ctx)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn: func(_ context.Context, post *models.Post, _ *models.PostRevision) error {
			post.ID = 1
			return nil
		},
		getByIDFn:       func(_ context.Context, id uint) (*models.Post, error) { return &models.Post{ID: id}, nil },
		addRevisionFn:   func(_ context.Context, _ *models.PostRevision) error { return nil },
		setPinnedFn:     func(_ context.Context, _ uint, _ time.Time, _ float64) error { return nil },
		unpinFn:         func(_ context.Context, _ uint) error { return nil },
		updateHotnessFn: func(_ context.Context, _ uint, _ float64) error { return nil },
		softDeleteFn:    func(_ context.Context, _ uint, _ *models.PostRevision) error { return nil },
		pinnedByRoomFn:  func(_ context.Context, _ uint, _ int) ([]*models.Post, error) { return nil, nil },
		allPinnedFn:     func(_ context.Context) ([]*models.Post, error) { return nil, nil },
	}
}

// voteRepoStub is a stub for repository.VoteRepository.
type voteRepoStub struct {
	createFn   func(context.Context, *models.Vote) error
	sumFn      func(context.Context, uint) (int64, error)
	hasVotedFn func(context.Context, uint, uint) (bool, error)
}

func (s *voteRepoStub) Create(ctx context.Context, vote *models.Vote) error { return s.createFn(ctx, vote) }
func (s *voteRepoStub) Sum(ctx context.Context, postID uint) (int64, error) { return s.sumFn(ctx, postID) }
func (s *voteRepoStub) HasVoted(ctx context.Context, postID, voterID uint) (bool, error) {
	return s.hasVotedFn(ctx, postID, voterID)
}

func noopVoteRepo() *voteRepoStub {
	return &voteRepoStub{
		createFn:   func(_ context.Context, _ *models.Vote) error { return nil },
		sumFn:      func(_ context.Context, _ uint) (int64, error) { return 0, nil },
		hasVotedFn: func(_ context.Context, _, _ uint) (bool, error) { return false, nil },
	}
}

// flagRepoStub is a stub for repository.FlagRepository.
type flagRepoStub struct {
	createFn func(context.Context, *models.Flag) error
	countFn  func(context.Context, uint) (int64, error)
}

func (s *flagRepoStub) Create(ctx context.Context, flag *models.Flag) error { return s.createFn(ctx, flag) }
func (s *flagRepoStub) Count(ctx context.Context, postID uint) (int64, error) {
	return s.countFn(ctx, postID)
}

func noopFlagRepo() *flagRepoStub {
	return &flagRepoStub{
		createFn: func(_ context.Context, _ *models.Flag) error { return nil },
		countFn:  func(_ context.Context, _ uint) (int64, error) { return 1, nil },
	}
}

// roomRepoStub is a stub for repository.RoomRepository.
type roomRepoStub struct {
	getRoomFn      func(context.Context, uint) (*models.Room, error)
	getOrgBySlugFn func(context.Context, string) (*models.Organisation, error)
	isOrgMemberFn  func(context.Context, uint, uint) (bool, error)
	isRoomMemberFn func(context.Context, uint, uint) (bool, error)
	isOrgAdminFn   func(context.Context, uint, uint) (bool, error)
	botInScopeFn   func(context.Context, uint, *models.Room) (bool, error)
	setStatusFn    func(context.Context, uint, uint, models.PresenceStatus) (*models.Organisation, error)
}

func (s *roomRepoStub) GetRoom(ctx context.Context, id uint) (*models.Room, error) {
	return s.getRoomFn(ctx, id)
}
func (s *roomRepoStub) GetOrgBySlug(ctx context.Context, slug string) (*models.Organisation, error) {
	return s.getOrgBySlugFn(ctx, slug)
}
func (s *roomRepoStub) IsOrgMember(ctx context.Context, userID, orgID uint) (bool, error) {
	return s.isOrgMemberFn(ctx, userID, orgID)
}
func (s *roomRepoStub) IsRoomMember(ctx context.Context, userID, roomID uint) (bool, error) {
	return s.isRoomMemberFn(ctx, userID, roomID)
}
func (s *roomRepoStub) IsOrgAdmin(ctx context.Context, userID, orgID uint) (bool, error) {
	return s.isOrgAdminFn(ctx, userID, orgID)
}
func (s *roomRepoStub) BotInScope(ctx context.Context, userID uint, room *models.Room) (bool, error) {
	return s.botInScopeFn(ctx, userID, room)
}
func (s *roomRepoStub) SetStatus(ctx context.Context, userID, orgID uint, status models.PresenceStatus) (*models.Organisation, error) {
	return s.setStatusFn(ctx, userID, orgID, status)
}

func memberRoomRepo() *roomRepoStub {
	return &roomRepoStub{
		getRoomFn: func(_ context.Context, id uint) (*models.Room, error) {
			return &models.Room{ID: id, OrganisationID: 3, Organisation: models.Organisation{ID: 3, Slug: "acme"}}, nil
		},
		getOrgBySlugFn: func(_ context.Context, slug string) (*models.Organisation, error) {
			return &models.Organisation{ID: 3, Slug: slug}, nil
		},
		isOrgMemberFn:  func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		isRoomMemberFn: func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		isOrgAdminFn:   func(_ context.Context, _, _ uint) (bool, error) { return false, nil },
		botInScopeFn:   func(_ context.Context, _ uint, _ *models.Room) (bool, error) { return false, nil },
		setStatusFn: func(_ context.Context, _, _ uint, _ models.PresenceStatus) (*models.Organisation, error) {
			return &models.Organisation{ID: 3, Slug: "acme"}, nil
		},
	}
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn          func(context.Context, uint) (*models.User, error)
	resolveUsernamesFn func(context.Context, []string) ([]*models.User, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) ResolveUsernames(ctx context.Context, usernames []string) ([]*models.User, error) {
	return s.resolveUsernamesFn(ctx, usernames)
}

func knownUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, Username: "alice"}, nil
		},
		resolveUsernamesFn: func(_ context.Context, _ []string) ([]*models.User, error) { return nil, nil },
	}
}

// banRepoStub is a stub for repository.BanRepository.
type banRepoStub struct {
	latestFn       func(context.Context, uint, uint, uint) (*models.BanRecord, error)
	clearExpiredFn func(context.Context, uint, uint, time.Time) error
	banFn          func(context.Context, *models.BanRecord) error
}

func (s *banRepoStub) Latest(ctx context.Context, userID, orgID, roomID uint) (*models.BanRecord, error) {
	return s.latestFn(ctx, userID, orgID, roomID)
}
func (s *banRepoStub) ClearExpired(ctx context.Context, userID, orgID uint, now time.Time) error {
	return s.clearExpiredFn(ctx, userID, orgID, now)
}
func (s *banRepoStub) Ban(ctx context.Context, ban *models.BanRecord) error {
	return s.banFn(ctx, ban)
}

func noBans() *banRepoStub {
	return &banRepoStub{
		latestFn:       func(_ context.Context, _, _, _ uint) (*models.BanRecord, error) { return nil, nil },
		clearExpiredFn: func(_ context.Context, _, _ uint, _ time.Time) error { return nil },
		banFn:          func(_ context.Context, _ *models.BanRecord) error { return nil },
	}
}

// publishRecorder captures everything published for later assertions.
type publishRecorder struct {
	mu   sync.Mutex
	room []recordedEvent
	org  []recordedEvent
}

type recordedEvent struct {
	roomID uint
	slug   string
	event  broadcast.Event
}

func (r *publishRecorder) PublishRoom(_ context.Context, roomID uint, event broadcast.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.room = append(r.room, recordedEvent{roomID: roomID, event: event})
	return nil
}

func (r *publishRecorder) PublishOrg(_ context.Context, slug string, event broadcast.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.org = append(r.org, recordedEvent{slug: slug, event: event})
	return nil
}

func (r *publishRecorder) roomEvents() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEvent(nil), r.room...)
}

func (r *publishRecorder) orgEvents() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEvent(nil), r.org...)
}

// deps bundles every stub so tests can tweak only what they care about.
type deps struct {
	cfg   *config.Config
	posts *postRepoStub
	votes *voteRepoStub
	flags *flagRepoStub
	rooms *roomRepoStub
	users *userRepoStub
	bans  *banRepoStub
	bus   *publishRecorder
}

func defaultDeps() *deps {
	return &deps{
		cfg: &config.Config{
			FlagThreshold:     4,
			DemotionThreshold: -4,
			AutoBanMinutes:    30,
			BanScope:          config.BanScopeOrganisation,
			PinnedPageSize:    20,
			RerankIntervalS:   300,
		},
		posts: noopPostRepo(),
		votes: noopVoteRepo(),
		flags: noopFlagRepo(),
		rooms: memberRoomRepo(),
		users: knownUserRepo(),
		bans:  noBans(),
		bus:   &publishRecorder{},
	}
}

func newTestService(d *deps) *IngestionService {
	gate := moderation.NewGate(d.rooms, d.bans, nil)
	return NewIngestionService(
		d.cfg, d.posts, d.votes, d.flags, d.rooms, d.users, d.bans,
		gate, textproc.New(nil), d.bus)
}

func requireDenied(t *testing.T, err error, reason models.DenyReason) {
	t.Helper()
	var denied *models.DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, reason, denied.Reason)
}

func TestPostMessage_PublishesMsgEvent(t *testing.T) {
	d := defaultDeps()
	svc := newTestService(d)

	post, err := svc.PostMessage(context.Background(), 1, 2, "hello")
	require.NoError(t, err)
	assert.Equal(t, uint(1), post.ID)
	assert.Equal(t, "hello", post.CurrentContent())

	events := d.bus.roomEvents()
	require.Len(t, events, 1)
	assert.Equal(t, uint(2), events[0].roomID)
	assert.Equal(t, broadcast.EventMsg, events[0].event.Type)
	assert.Equal(t, "hello", events[0].event.Content)
	require.NotNil(t, events[0].event.Author)
	assert.Equal(t, "alice", events[0].event.Author.Name)
}

func TestPostMessage_ReplyMarkerSetsReplyTarget(t *testing.T) {
	d := defaultDeps()
	var created *models.Post
	d.posts.createFn = func(_ context.Context, post *models.Post, _ *models.PostRevision) error {
		post.ID = 5
		created = post
		return nil
	}
	svc := newTestService(d)

	_, err := svc.PostMessage(context.Background(), 1, 2, ":42 replying")
	require.NoError(t, err)
	require.NotNil(t, created.ReplyToID)
	assert.Equal(t, uint(42), *created.ReplyToID)
}

func TestPostMessage_ResolvedMentionsAttachedToResult(t *testing.T) {
	d := defaultDeps()
	var asked []string
	d.users.resolveUsernamesFn = func(_ context.Context, usernames []string) ([]*models.User, error) {
		asked = usernames
		return []*models.User{{ID: 7, Username: "bob"}}, nil
	}
	svc := newTestService(d)

	post, err := svc.PostMessage(context.Background(), 1, 2, "hey @bob and @ghost")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bob", "ghost"}, asked)
	require.Len(t, post.Mentions, 1, "unresolved names are dropped silently")
	assert.Equal(t, uint(7), post.Mentions[0].ID)
	assert.Equal(t, "bob", post.Mentions[0].Username)
}

func TestPostMessage_BannedUserNothingPersistedOrPublished(t *testing.T) {
	d := defaultDeps()
	d.bans.latestFn = func(_ context.Context, _, _, _ uint) (*models.BanRecord, error) {
		return &models.BanRecord{ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	persisted := false
	d.posts.createFn = func(_ context.Context, _ *models.Post, _ *models.PostRevision) error {
		persisted = true
		return nil
	}
	svc := newTestService(d)

	_, err := svc.PostMessage(context.Background(), 1, 2, "hello")
	requireDenied(t, err, models.DenyBanned)
	assert.False(t, persisted)
	assert.Empty(t, d.bus.roomEvents())
}

func TestPostMessage_EmptyInputNothingPersistedOrPublished(t *testing.T) {
	d := defaultDeps()
	persisted := false
	d.posts.createFn = func(_ context.Context, _ *models.Post, _ *models.PostRevision) error {
		persisted = true
		return nil
	}
	svc := newTestService(d)

	_, err := svc.PostMessage(context.Background(), 1, 2, "   ")
	var rejected *models.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.False(t, persisted)
	assert.Empty(t, d.bus.roomEvents())
}

func TestPostMessage_StoreFailureAbortsBeforePublish(t *testing.T) {
	d := defaultDeps()
	d.posts.createFn = func(_ context.Context, _ *models.Post, _ *models.PostRevision) error {
		return assert.AnError
	}
	svc := newTestService(d)

	_, err := svc.PostMessage(context.Background(), 1, 2, "hello")
	var storeFail *models.StoreError
	require.ErrorAs(t, err, &storeFail)
	assert.Empty(t, d.bus.roomEvents(), "publish must never happen without a confirmed write")
}

func TestEditPost_AppendsRevisionAndPublishes(t *testing.T) {
	d := defaultDeps()
	d.posts.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{
			ID: id, RoomID: 2, AuthorID: 1,
			Room:      models.Room{ID: 2, OrganisationID: 3},
			Revisions: []models.PostRevision{{Rendered: "old", Raw: "old"}},
		}, nil
	}
	svc := newTestService(d)

	post, err := svc.EditPost(context.Background(), 1, 9, "new text")
	require.NoError(t, err)
	assert.True(t, post.Edited())
	assert.Equal(t, "new text", post.CurrentContent())

	events := d.bus.roomEvents()
	require.Len(t, events, 1)
	assert.Equal(t, broadcast.EventEdit, events[0].event.Type)
	assert.Equal(t, "new text", events[0].event.Content)
	assert.Equal(t, "new text", events[0].event.Raw)
}

func TestEditPost_NonAuthorDenied(t *testing.T) {
	d := defaultDeps()
	d.posts.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, RoomID: 2, AuthorID: 42, Room: models.Room{ID: 2, OrganisationID: 3}}, nil
	}
	svc := newTestService(d)

	_, err := svc.EditPost(context.Background(), 1, 9, "hijack")
	requireDenied(t, err, models.DenyNotAuthor)
	assert.Empty(t, d.bus.roomEvents())
}

func TestDeletePost_TombstonesAndPublishes(t *testing.T) {
	d := defaultDeps()
	d.posts.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, RoomID: 2, AuthorID: 1, Room: models.Room{ID: 2, OrganisationID: 3}}, nil
	}
	var tombstone *models.PostRevision
	d.posts.softDeleteFn = func(_ context.Context, _ uint, rev *models.PostRevision) error {
		tombstone = rev
		return nil
	}
	svc := newTestService(d)

	require.NoError(t, svc.DeletePost(context.Background(), 1, 9))
	require.NotNil(t, tombstone)
	assert.Equal(t, models.DeletedTombstone, tombstone.Rendered)

	events := d.bus.roomEvents()
	require.Len(t, events, 1)
	assert.Equal(t, broadcast.EventDelete, events[0].event.Type)
	assert.Equal(t, uint(9), events[0].event.ID)
}

func TestDeletePost_AlreadyDeletedIsNoop(t *testing.T) {
	d := defaultDeps()
	d.posts.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, RoomID: 2, AuthorID: 1, Deleted: true, Room: models.Room{ID: 2, OrganisationID: 3}}, nil
	}
	deleted := false
	d.posts.softDeleteFn = func(_ context.Context, _ uint, _ *models.PostRevision) error {
		deleted = true
		return nil
	}
	svc := newTestService(d)

	require.NoError(t, svc.DeletePost(context.Background(), 1, 9))
	assert.False(t, deleted)
	assert.Empty(t, d.bus.roomEvents())
}

func TestPinPost_NonAuthorGetsImplicitVote(t *testing.T) {
	d := defaultDeps()
	d.posts.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, RoomID: 2, AuthorID: 42, Room: models.Room{ID: 2, OrganisationID: 3}}, nil
	}
	var vote *models.Vote
	d.votes.createFn = func(_ context.Context, v *models.Vote) error {
		vote = v
		return nil
	}
	d.votes.sumFn = func(_ context.Context, _ uint) (int64, error) { return 1, nil }
	svc := newTestService(d)

	post, err := svc.PinPost(context.Background(), 1, 9)
	require.NoError(t, err)
	assert.True(t, post.Pinned)
	require.NotNil(t, vote, "pinning another author's post records an implicit vote")
	assert.Equal(t, 1, vote.Score)
	assert.Equal(t, uint(1), vote.VoterID)

	events := d.bus.roomEvents()
	require.Len(t, events, 1)
	assert.Equal(t, broadcast.EventPin, events[0].event.Type)
	assert.Equal(t, uint(42), events[0].event.AuthorID)
	require.NotNil(t, events[0].event.Score)
	assert.Equal(t, int64(1), *events[0].event.Score)
}

func TestPinPost_AuthorPinsWithoutImplicitVote(t *testing.T) {
	d := defaultDeps()
	d.posts.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, RoomID: 2, AuthorID: 1, Room: models.Room{ID: 2, OrganisationID: 3}}, nil
	}
	voted := false
	d.votes.createFn = func(_ context.Context, _ *models.Vote) error {
		voted = true
		return nil
	}
	svc := newTestService(d)

	post, err := svc.PinPost(context.Background(), 1, 9)
	require.NoError(t, err)
	assert.True(t, post.Pinned)
	assert.False(t, voted, "author pinning own post must not self-vote")
}

func TestPinPost_AlreadyPinnedDenied(t *testing.T) {
	d := defaultDeps()
	d.posts.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, RoomID: 2, AuthorID: 42, Pinned: true, Room: models.Room{ID: 2, OrganisationID: 3}}, nil
	}
	svc := newTestService(d)

	_, err := svc.PinPost(context.Background(), 1, 9)
	requireDenied(t, err, models.DenyAlreadyPinned)
}

func TestPinPost_PriorVoteDenied(t *testing.T) {
	d := defaultDeps()
	d.posts.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, RoomID: 2, AuthorID: 42, Room: models.Room{ID: 2, OrganisationID: 3}}, nil
	}
	d.votes.hasVotedFn = func(_ context.Context, _, _ uint) (bool, error) { return true, nil }
	svc := newTestService(d)

	_, err := svc.PinPost(context.Background(), 1, 9)
	requireDenied(t, err, models.DenyAlreadyVoted)
	assert.Empty(t, d.bus.roomEvents())
}

func TestVotePost_SelfVoteDenied(t *testing.T) {
	d := defaultDeps()
	d.posts.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, RoomID: 2, AuthorID: 1, Room: models.Room{ID: 2, OrganisationID: 3}}, nil
	}
	svc := newTestService(d)

	_, err := svc.VotePost(context.Background(), 1, 9, true)
	requireDenied(t, err, models.DenySelfVote)
}

func TestVotePost_DuplicatePassesConflictThrough(t *testing.T) {
	d := defaultDeps()
	d.posts.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, RoomID: 2, AuthorID: 42, Room: models.Room{ID: 2, OrganisationID: 3}}, nil
	}
	d.votes.createFn = func(_ context.Context, _ *models.Vote) error {
		return models.NewConflictError(models.ConflictDuplicateVote)
	}
	svc := newTestService(d)

	_, err := svc.VotePost(context.Background(), 1, 9, true)
	var conflict *models.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, models.ConflictDuplicateVote, conflict.Kind)
	assert.Empty(t, d.bus.roomEvents())
}

func TestVotePost_StoreFailureTypedAndUnpublished(t *testing.T) {
	d := defaultDeps()
	d.posts.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, RoomID: 2, AuthorID: 42, Room: models.Room{ID: 2, OrganisationID: 3}}, nil
	}
	d.votes.createFn = func(_ context.Context, _ *models.Vote) error {
		return assert.AnError
	}
	svc := newTestService(d)

	_, err := svc.VotePost(context.Background(), 1, 9, true)
	var storeFail *models.StoreError
	require.ErrorAs(t, err, &storeFail, "a raw insert failure must surface as a store failure")
	assert.Empty(t, d.bus.roomEvents())
}

func TestVotePost_PublishesNewAggregate(t *testing.T) {
	d := defaultDeps()
	d.posts.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, RoomID: 2, AuthorID: 42, Room: models.Room{ID: 2, OrganisationID: 3}}, nil
	}
	d.votes.sumFn = func(_ context.Context, _ uint) (int64, error) { return 7, nil }
	svc := newTestService(d)

	score, err := svc.VotePost(context.Background(), 1, 9, true)
	require.NoError(t, err)
	assert.Equal(t, int64(7), score)

	events := d.bus.roomEvents()
	require.Len(t, events, 1)
	assert.Equal(t, broadcast.EventVote, events[0].event.Type)
	assert.Equal(t, int64(7), events[0].event.Content)
}

func TestVotePost_DemotionUnpinsAtThreshold(t *testing.T) {
	d := defaultDeps()
	d.posts.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, RoomID: 2, AuthorID: 42, Pinned: true, Room: models.Room{ID: 2, OrganisationID: 3}}, nil
	}
	d.votes.sumFn = func(_ context.Context, _ uint) (int64, error) { return -4, nil }
	unpinned := false
	d.posts.unpinFn = func(_ context.Context, _ uint) error {
		unpinned = true
		return nil
	}
	deleted := false
	d.posts.softDeleteFn = func(_ context.Context, _ uint, _ *models.PostRevision) error {
		deleted = true
		return nil
	}
	svc := newTestService(d)

	_, err := svc.VotePost(context.Background(), 1, 9, false)
	require.NoError(t, err)
	assert.True(t, unpinned)
	assert.False(t, deleted, "demotion unpins but never deletes")

	events := d.bus.roomEvents()
	require.Len(t, events, 2)
	assert.Equal(t, broadcast.EventUnpin, events[0].event.Type)
	assert.Equal(t, broadcast.EventVote, events[1].event.Type)
}

func TestVotePost_AboveThresholdStaysPinned(t *testing.T) {
	d := defaultDeps()
	d.posts.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, RoomID: 2, AuthorID: 42, Pinned: true, Room: models.Room{ID: 2, OrganisationID: 3}}, nil
	}
	d.votes.sumFn = func(_ context.Context, _ uint) (int64, error) { return -3, nil }
	unpinned := false
	d.posts.unpinFn = func(_ context.Context, _ uint) error {
		unpinned = true
		return nil
	}
	svc := newTestService(d)

	_, err := svc.VotePost(context.Background(), 1, 9, false)
	require.NoError(t, err)
	assert.False(t, unpinned)
}

func TestFlagPost_BelowThresholdOnlyFlagEvent(t *testing.T) {
	d := defaultDeps()
	d.posts.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, RoomID: 2, AuthorID: 42, Room: models.Room{ID: 2, OrganisationID: 3}}, nil
	}
	d.flags.countFn = func(_ context.Context, _ uint) (int64, error) { return 4, nil }
	svc := newTestService(d)

	require.NoError(t, svc.FlagPost(context.Background(), 1, 9))

	events := d.bus.roomEvents()
	require.Len(t, events, 1)
	assert.Equal(t, broadcast.EventFlag, events[0].event.Type)
}

func TestFlagPost_StoreFailureTypedAndUnpublished(t *testing.T) {
	d := defaultDeps()
	d.posts.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, RoomID: 2, AuthorID: 42, Room: models.Room{ID: 2, OrganisationID: 3}}, nil
	}
	d.flags.createFn = func(_ context.Context, _ *models.Flag) error {
		return assert.AnError
	}
	svc := newTestService(d)

	err := svc.FlagPost(context.Background(), 1, 9)
	var storeFail *models.StoreError
	require.ErrorAs(t, err, &storeFail, "a raw insert failure must surface as a store failure")
	assert.Empty(t, d.bus.roomEvents())
}

func TestFlagPost_ThresholdExceededRemovesAndBansOnce(t *testing.T) {
	d := defaultDeps()
	d.posts.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{
			ID: id, RoomID: 2, AuthorID: 42,
			Room: models.Room{ID: 2, OrganisationID: 3},
		}, nil
	}
	d.flags.countFn = func(_ context.Context, _ uint) (int64, error) { return 5, nil }
	deleted := false
	d.posts.softDeleteFn = func(_ context.Context, _ uint, rev *models.PostRevision) error {
		deleted = true
		assert.Equal(t, models.DeletedTombstone, rev.Rendered)
		return nil
	}
	var ban *models.BanRecord
	d.bans.banFn = func(_ context.Context, b *models.BanRecord) error {
		ban = b
		return nil
	}
	svc := newTestService(d)

	require.NoError(t, svc.FlagPost(context.Background(), 1, 9))
	assert.True(t, deleted)
	require.NotNil(t, ban)
	assert.Equal(t, uint(42), ban.UserID)
	assert.Equal(t, uint(3), ban.OrganisationID)
	assert.Nil(t, ban.RoomID, "organisation scope by default")
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), ban.ExpiresAt, 5*time.Second)

	events := d.bus.roomEvents()
	require.Len(t, events, 1)
	assert.Equal(t, broadcast.EventDelete, events[0].event.Type)
}

func TestFlagPost_RemovalSkippedWhenAlreadyDeleted(t *testing.T) {
	d := defaultDeps()
	d.posts.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, RoomID: 2, AuthorID: 42, Deleted: true, Room: models.Room{ID: 2, OrganisationID: 3}}, nil
	}
	d.flags.countFn = func(_ context.Context, _ uint) (int64, error) { return 6, nil }
	banned := false
	d.bans.banFn = func(_ context.Context, _ *models.BanRecord) error {
		banned = true
		return nil
	}
	svc := newTestService(d)

	require.NoError(t, svc.FlagPost(context.Background(), 1, 9))
	assert.False(t, banned, "removal and ban happen exactly once")
}

func TestFlagPost_RoomScopedBan(t *testing.T) {
	d := defaultDeps()
	d.cfg.BanScope = config.BanScopeRoom
	d.posts.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, RoomID: 2, AuthorID: 42, Room: models.Room{ID: 2, OrganisationID: 3}}, nil
	}
	d.flags.countFn = func(_ context.Context, _ uint) (int64, error) { return 5, nil }
	var ban *models.BanRecord
	d.bans.banFn = func(_ context.Context, b *models.BanRecord) error {
		ban = b
		return nil
	}
	svc := newTestService(d)

	require.NoError(t, svc.FlagPost(context.Background(), 1, 9))
	require.NotNil(t, ban)
	require.NotNil(t, ban.RoomID)
	assert.Equal(t, uint(2), *ban.RoomID)
}

func TestSetStatus_PublishesOrgEvent(t *testing.T) {
	d := defaultDeps()
	svc := newTestService(d)

	require.NoError(t, svc.SetStatus(context.Background(), 1, 3, int(models.StatusAway)))

	events := d.bus.orgEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "acme", events[0].slug)
	assert.Equal(t, broadcast.EventStatus, events[0].event.Type)
	assert.Equal(t, uint(1), events[0].event.ID)
	require.NotNil(t, events[0].event.Status)
	assert.Equal(t, int(models.StatusAway), *events[0].event.Status)
}

func TestSetStatus_InvalidValueRejected(t *testing.T) {
	d := defaultDeps()
	svc := newTestService(d)

	err := svc.SetStatus(context.Background(), 1, 3, 9)
	var rejected *models.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, models.RejectInvalidStatus, rejected.Reason)
	assert.Empty(t, d.bus.orgEvents())
}

func TestSetStatus_NonMemberDenied(t *testing.T) {
	d := defaultDeps()
	d.rooms.isOrgMemberFn = func(_ context.Context, _, _ uint) (bool, error) { return false, nil }
	svc := newTestService(d)

	err := svc.SetStatus(context.Background(), 1, 3, int(models.StatusOnline))
	requireDenied(t, err, models.DenyNotMember)
}
