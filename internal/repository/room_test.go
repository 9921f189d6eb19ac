package repository

import (
	"context"
	"testing"

	"lanes/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomRepository_GetRoomPreloadsOrganisation(t *testing.T) {
	db := testDB(t)
	_, room, _ := seedRoom(t, db)

	got, err := NewRoomRepository(db).GetRoom(context.Background(), room.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Organisation.Slug)

	_, err = NewRoomRepository(db).GetRoom(context.Background(), 999)
	var notFound *models.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestRoomRepository_GetOrgBySlug(t *testing.T) {
	db := testDB(t)
	org, _, _ := seedRoom(t, db)
	repo := NewRoomRepository(db)

	got, err := repo.GetOrgBySlug(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, org.ID, got.ID)

	_, err = repo.GetOrgBySlug(context.Background(), "nope")
	var notFound *models.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestRoomRepository_Membership(t *testing.T) {
	db := testDB(t)
	org, room, user := seedRoom(t, db)
	ctx := context.Background()
	repo := NewRoomRepository(db)

	member, err := repo.IsOrgMember(ctx, user.ID, org.ID)
	require.NoError(t, err)
	assert.True(t, member)

	member, err = repo.IsOrgMember(ctx, 999, org.ID)
	require.NoError(t, err)
	assert.False(t, member)

	// Org membership does not imply room membership.
	roomMember, err := repo.IsRoomMember(ctx, user.ID, room.ID)
	require.NoError(t, err)
	assert.False(t, roomMember)

	roomID := room.ID
	require.NoError(t, db.Create(&models.Membership{
		UserID: user.ID, OrganisationID: org.ID, RoomID: &roomID,
	}).Error)
	roomMember, err = repo.IsRoomMember(ctx, user.ID, room.ID)
	require.NoError(t, err)
	assert.True(t, roomMember)
}

func TestRoomRepository_IsOrgAdmin(t *testing.T) {
	db := testDB(t)
	org, _, user := seedRoom(t, db)
	ctx := context.Background()
	repo := NewRoomRepository(db)

	admin, err := repo.IsOrgAdmin(ctx, user.ID, org.ID)
	require.NoError(t, err)
	assert.False(t, admin)

	require.NoError(t, db.Model(&models.Membership{}).
		Where("user_id = ? AND organisation_id = ?", user.ID, org.ID).
		Update("admin", true).Error)

	admin, err = repo.IsOrgAdmin(ctx, user.ID, org.ID)
	require.NoError(t, err)
	assert.True(t, admin)
}

func TestRoomRepository_BotInScope(t *testing.T) {
	db := testDB(t)
	org, room, _ := seedRoom(t, db)
	ctx := context.Background()
	repo := NewRoomRepository(db)

	bot := &models.User{Username: "helper-bot", Bot: true}
	require.NoError(t, db.Create(bot).Error)

	inScope, err := repo.BotInScope(ctx, bot.ID, room)
	require.NoError(t, err)
	assert.False(t, inScope)

	// Org-wide grant covers every room.
	require.NoError(t, db.Create(&models.BotScope{UserID: bot.ID, OrganisationID: org.ID}).Error)
	inScope, err = repo.BotInScope(ctx, bot.ID, room)
	require.NoError(t, err)
	assert.True(t, inScope)
}

func TestRoomRepository_BotScopeLimitedToRoom(t *testing.T) {
	db := testDB(t)
	org, room, user := seedRoom(t, db)
	ctx := context.Background()
	repo := NewRoomRepository(db)

	other := &models.Room{Name: "other", OrganisationID: org.ID, CreatorID: user.ID}
	require.NoError(t, db.Create(other).Error)

	bot := &models.User{Username: "narrow-bot", Bot: true}
	require.NoError(t, db.Create(bot).Error)

	roomID := room.ID
	require.NoError(t, db.Create(&models.BotScope{
		UserID: bot.ID, OrganisationID: org.ID, RoomID: &roomID,
	}).Error)

	inScope, err := repo.BotInScope(ctx, bot.ID, room)
	require.NoError(t, err)
	assert.True(t, inScope)

	inScope, err = repo.BotInScope(ctx, bot.ID, other)
	require.NoError(t, err)
	assert.False(t, inScope)
}

func TestRoomRepository_SetStatusUpserts(t *testing.T) {
	db := testDB(t)
	org, _, user := seedRoom(t, db)
	ctx := context.Background()
	repo := NewRoomRepository(db)

	got, err := repo.SetStatus(ctx, user.ID, org.ID, models.StatusAway)
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Slug)

	var membership models.Membership
	require.NoError(t, db.
		Where("user_id = ? AND organisation_id = ? AND room_id IS NULL", user.ID, org.ID).
		First(&membership).Error)
	assert.Equal(t, models.StatusAway, membership.Status)

	// Second update rewrites the same row.
	_, err = repo.SetStatus(ctx, user.ID, org.ID, models.StatusBusy)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Membership{}).
		Where("user_id = ? AND organisation_id = ? AND room_id IS NULL", user.ID, org.ID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
