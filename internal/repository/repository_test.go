package repository

import (
	"context"
	"testing"

	"lanes/internal/database"
	"lanes/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// testDB gives each test a fresh in-memory schema.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.ConnectSQLite(":memory:")
	require.NoError(t, err)
	return db
}

// seedRoom creates an organisation, one room in it and the post author
// as an org member.
func seedRoom(t *testing.T, db *gorm.DB) (*models.Organisation, *models.Room, *models.User) {
	t.Helper()
	author := &models.User{Username: "alice", Email: "alice@example.com"}
	require.NoError(t, db.Create(author).Error)

	org := &models.Organisation{Name: "Acme", Slug: "acme"}
	require.NoError(t, db.Create(org).Error)

	room := &models.Room{Name: "general", OrganisationID: org.ID, CreatorID: author.ID}
	require.NoError(t, db.Create(room).Error)

	membership := &models.Membership{UserID: author.ID, OrganisationID: org.ID}
	require.NoError(t, db.Create(membership).Error)

	return org, room, author
}

func seedPost(t *testing.T, db *gorm.DB, room *models.Room, author *models.User, raw string) *models.Post {
	t.Helper()
	repo := NewPostRepository(db)
	post := &models.Post{RoomID: room.ID, AuthorID: author.ID, Hotness: models.UnrankedHotness}
	rev := &models.PostRevision{AuthorID: author.ID, Rendered: raw, Raw: raw}
	require.NoError(t, repo.Create(context.Background(), post, rev))
	return post
}
