// Package repository provides the persistence layer for posts, votes,
// flags, bans and memberships.
package repository

import (
	"context"
	"errors"
	"time"

	"lanes/internal/models"

	"gorm.io/gorm"
)

// scoreSelect computes the vote aggregate alongside each post row. The
// subquery reads a snapshot of all votes committed before the read began.
const scoreSelect = "posts.*, COALESCE((SELECT SUM(score) FROM votes WHERE votes.post_id = posts.id), 0) AS score"

// PostRepository persists posts and their revisions.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post, rev *models.PostRevision) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	AddRevision(ctx context.Context, rev *models.PostRevision) error
	SetPinned(ctx context.Context, postID uint, pinnedAt time.Time, hotness float64) error
	Unpin(ctx context.Context, postID uint) error
	UpdateHotness(ctx context.Context, postID uint, hotness float64) error
	SoftDelete(ctx context.Context, postID uint, tombstone *models.PostRevision) error
	PinnedByRoom(ctx context.Context, roomID uint, limit int) ([]*models.Post, error)
	AllPinned(ctx context.Context) ([]*models.Post, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository returns a gorm-backed PostRepository.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create persists a new post together with its first revision in one
// transaction. The revision is never written without the post.
func (r *postRepository) Create(ctx context.Context, post *models.Post, rev *models.PostRevision) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(post).Error; err != nil {
			return err
		}
		rev.PostID = post.ID
		return tx.Create(rev).Error
	})
}

// GetByID loads a post with its author, room (and owning organisation)
// and revisions newest-first, plus the computed vote aggregate.
func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Select(scoreSelect).
		Preload("Author").
		Preload("Room").
		Preload("Room.Organisation").
		Preload("Revisions", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC, id DESC")
		}).
		First(&post, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) AddRevision(ctx context.Context, rev *models.PostRevision) error {
	return r.db.WithContext(ctx).Create(rev).Error
}

func (r *postRepository) SetPinned(ctx context.Context, postID uint, pinnedAt time.Time, hotness float64) error {
	return r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", postID).
		Updates(map[string]interface{}{
			"pinned":    true,
			"pinned_at": pinnedAt,
			"hotness":   hotness,
		}).Error
}

func (r *postRepository) Unpin(ctx context.Context, postID uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", postID).
		Updates(map[string]interface{}{
			"pinned":  false,
			"hotness": models.UnrankedHotness,
		}).Error
}

func (r *postRepository) UpdateHotness(ctx context.Context, postID uint, hotness float64) error {
	return r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", postID).
		Update("hotness", hotness).Error
}

// SoftDelete tombstones a post: deleted flips on, the pin is dropped and
// a synthetic revision replaces the visible content. The post row itself
// is never removed.
func (r *postRepository) SoftDelete(ctx context.Context, postID uint, tombstone *models.PostRevision) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Post{}).
			Where("id = ?", postID).
			Updates(map[string]interface{}{
				"deleted": true,
				"pinned":  false,
				"hotness": models.UnrankedHotness,
			}).Error; err != nil {
			return err
		}
		tombstone.PostID = postID
		return tx.Create(tombstone).Error
	})
}

// PinnedByRoom lists a room's pinned posts in descending hotness order.
func (r *postRepository) PinnedByRoom(ctx context.Context, roomID uint, limit int) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.db.WithContext(ctx).
		Select(scoreSelect).
		Where("room_id = ? AND pinned = ?", roomID, true).
		Order("hotness DESC").
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

// AllPinned lists every pinned post in the system for the re-ranking sweep.
func (r *postRepository) AllPinned(ctx context.Context) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.db.WithContext(ctx).
		Select(scoreSelect).
		Where("pinned = ?", true).
		Order("room_id ASC, hotness DESC").
		Find(&posts).Error
	return posts, err
}
