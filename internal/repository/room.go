package repository

import (
	"context"
	"errors"

	"lanes/internal/models"

	"gorm.io/gorm"
)

// RoomRepository resolves rooms, memberships and bot scopes.
type RoomRepository interface {
	GetRoom(ctx context.Context, id uint) (*models.Room, error)
	GetOrgBySlug(ctx context.Context, slug string) (*models.Organisation, error)
	IsOrgMember(ctx context.Context, userID, orgID uint) (bool, error)
	IsRoomMember(ctx context.Context, userID, roomID uint) (bool, error)
	IsOrgAdmin(ctx context.Context, userID, orgID uint) (bool, error)
	BotInScope(ctx context.Context, userID uint, room *models.Room) (bool, error)
	SetStatus(ctx context.Context, userID, orgID uint, status models.PresenceStatus) (*models.Organisation, error)
}

type roomRepository struct {
	db *gorm.DB
}

// NewRoomRepository returns a gorm-backed RoomRepository.
func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

func (r *roomRepository) GetRoom(ctx context.Context, id uint) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).
		Preload("Organisation").
		First(&room, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Room", id)
		}
		return nil, err
	}
	return &room, nil
}

func (r *roomRepository) GetOrgBySlug(ctx context.Context, slug string) (*models.Organisation, error) {
	var org models.Organisation
	err := r.db.WithContext(ctx).
		Where("slug = ?", slug).
		First(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Organisation", slug)
		}
		return nil, err
	}
	return &org, nil
}

func (r *roomRepository) IsOrgMember(ctx context.Context, userID, orgID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("user_id = ? AND organisation_id = ? AND room_id IS NULL", userID, orgID).
		Count(&count).Error
	return count > 0, err
}

func (r *roomRepository) IsRoomMember(ctx context.Context, userID, roomID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("user_id = ? AND room_id = ?", userID, roomID).
		Count(&count).Error
	return count > 0, err
}

func (r *roomRepository) IsOrgAdmin(ctx context.Context, userID, orgID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("user_id = ? AND organisation_id = ? AND admin = ?", userID, orgID, true).
		Count(&count).Error
	return count > 0, err
}

// BotInScope reports whether a bot account may act in the room: either an
// organisation-wide grant (nil room) or an explicit grant for this room.
func (r *roomRepository) BotInScope(ctx context.Context, userID uint, room *models.Room) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.BotScope{}).
		Where("user_id = ? AND organisation_id = ? AND (room_id IS NULL OR room_id = ?)",
			userID, room.OrganisationID, room.ID).
		Count(&count).Error
	return count > 0, err
}

// SetStatus updates the user's org-level presence status and returns the
// organisation for channel naming.
func (r *roomRepository) SetStatus(ctx context.Context, userID, orgID uint, status models.PresenceStatus) (*models.Organisation, error) {
	var org models.Organisation
	if err := r.db.WithContext(ctx).First(&org, orgID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Organisation", orgID)
		}
		return nil, err
	}
	// The org-level membership row has a NULL room id, which unique
	// indexes treat as distinct, so an upsert clause cannot match it.
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Membership{}).
			Where("user_id = ? AND organisation_id = ? AND room_id IS NULL", userID, orgID).
			Update("status", status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		return tx.Create(&models.Membership{
			UserID:         userID,
			OrganisationID: orgID,
			Status:         status,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &org, nil
}
