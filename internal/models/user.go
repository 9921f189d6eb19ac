// Package models contains data structures for the application's domain models.
package models

import "time"

// User represents a chat platform account. Bot accounts are non-human
// actors whose posting rights are limited by BotScope rows.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	Email     string    `gorm:"index" json:"email,omitempty"`
	Bot       bool      `gorm:"not null;default:false" json:"bot"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BotScope grants a bot account posting rights inside an organisation.
// A nil RoomID means every room in the organisation; otherwise the grant
// is limited to the single room.
type BotScope struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index:idx_bot_scope_user_org" json:"user_id"`
	OrganisationID uint      `gorm:"not null;index:idx_bot_scope_user_org" json:"organisation_id"`
	RoomID         *uint     `gorm:"index" json:"room_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (BotScope) TableName() string {
	return "bot_scopes"
}
