package repository

import (
	"context"
	"errors"
	"time"

	"lanes/internal/models"

	"gorm.io/gorm"
)

// BanRepository persists ban records and their audit log. Ban state is
// derived lazily: callers compare the stored expiry against the clock and
// invoke ClearExpired as an explicit side effect.
type BanRepository interface {
	Latest(ctx context.Context, userID, orgID, roomID uint) (*models.BanRecord, error)
	ClearExpired(ctx context.Context, userID, orgID uint, now time.Time) error
	Ban(ctx context.Context, ban *models.BanRecord) error
}

type banRepository struct {
	db *gorm.DB
}

// NewBanRepository returns a gorm-backed BanRepository.
func NewBanRepository(db *gorm.DB) BanRepository {
	return &banRepository{db: db}
}

// Latest returns the most recent ban covering the user in the given room
// (either organisation-wide or scoped to that room), or nil when none is
// stored. The record may already be expired; the caller decides.
func (r *banRepository) Latest(ctx context.Context, userID, orgID, roomID uint) (*models.BanRecord, error) {
	var ban models.BanRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND organisation_id = ? AND (room_id IS NULL OR room_id = ?)", userID, orgID, roomID).
		Order("expires_at DESC").
		First(&ban).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ban, nil
}

// ClearExpired removes the user's expired bans in the organisation and
// appends an "unban" audit row for each.
func (r *banRepository) ClearExpired(ctx context.Context, userID, orgID uint, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var expired []models.BanRecord
		if err := tx.
			Where("user_id = ? AND organisation_id = ? AND expires_at <= ?", userID, orgID, now).
			Find(&expired).Error; err != nil {
			return err
		}
		for _, ban := range expired {
			if err := tx.Delete(&models.BanRecord{}, ban.ID).Error; err != nil {
				return err
			}
			log := models.BanLog{
				UserID:         ban.UserID,
				OrganisationID: ban.OrganisationID,
				RoomID:         ban.RoomID,
				Action:         "unban",
				Reason:         "expired",
			}
			if err := tx.Create(&log).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Ban creates a ban record and appends a "ban" audit row.
func (r *banRepository) Ban(ctx context.Context, ban *models.BanRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ban).Error; err != nil {
			return err
		}
		log := models.BanLog{
			UserID:         ban.UserID,
			OrganisationID: ban.OrganisationID,
			RoomID:         ban.RoomID,
			Action:         "ban",
			Reason:         ban.Reason,
		}
		return tx.Create(&log).Error
	})
}
