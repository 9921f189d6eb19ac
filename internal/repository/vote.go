package repository

import (
	"context"

	"lanes/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoteRepository persists vote facts. Votes are append-only: uniqueness
// at the (post, voter) key rejects duplicates instead of merging them.
type VoteRepository interface {
	Create(ctx context.Context, vote *models.Vote) error
	Sum(ctx context.Context, postID uint) (int64, error)
	HasVoted(ctx context.Context, postID, voterID uint) (bool, error)
}

type voteRepository struct {
	db *gorm.DB
}

// NewVoteRepository returns a gorm-backed VoteRepository.
func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db}
}

// Create inserts a vote. A second vote for the same (post, voter) pair
// returns Conflict{DuplicateVote} and leaves the stored aggregate
// unchanged; racing inserts are resolved by the unique index, not by
// last-writer-wins.
func (r *voteRepository) Create(ctx context.Context, vote *models.Vote) error {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(vote)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewConflictError(models.ConflictDuplicateVote)
	}
	return nil
}

// Sum returns the vote aggregate for a post.
func (r *voteRepository) Sum(ctx context.Context, postID uint) (int64, error) {
	var total *int64
	err := r.db.WithContext(ctx).
		Model(&models.Vote{}).
		Where("post_id = ?", postID).
		Select("SUM(score)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (r *voteRepository) HasVoted(ctx context.Context, postID, voterID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Vote{}).
		Where("post_id = ? AND voter_id = ?", postID, voterID).
		Count(&count).Error
	return count > 0, err
}

// FlagRepository persists flag facts, unique at (post, flagger).
type FlagRepository interface {
	Create(ctx context.Context, flag *models.Flag) error
	Count(ctx context.Context, postID uint) (int64, error)
}

type flagRepository struct {
	db *gorm.DB
}

// NewFlagRepository returns a gorm-backed FlagRepository.
func NewFlagRepository(db *gorm.DB) FlagRepository {
	return &flagRepository{db: db}
}

// Create inserts a flag; a duplicate (post, flagger) pair returns
// Conflict{DuplicateFlag}.
func (r *flagRepository) Create(ctx context.Context, flag *models.Flag) error {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(flag)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewConflictError(models.ConflictDuplicateFlag)
	}
	return nil
}

func (r *flagRepository) Count(ctx context.Context, postID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Flag{}).
		Where("post_id = ?", postID).
		Count(&count).Error
	return count, err
}
