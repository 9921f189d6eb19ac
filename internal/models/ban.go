package models

import "time"

// BanRecord bans a user from an organisation or, when RoomID is set, from
// a single room. Ban state is derived lazily: a record with a past expiry
// means "not banned" until the authorization path clears it.
type BanRecord struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	OrganisationID uint      `gorm:"not null;index" json:"organisation_id"`
	RoomID         *uint     `gorm:"index" json:"room_id,omitempty"`
	BannedByUserID uint      `json:"banned_by_user_id"`
	Reason         string    `gorm:"type:text;default:''" json:"reason"`
	ExpiresAt      time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Active reports whether the ban is in force at the given instant.
func (b *BanRecord) Active(now time.Time) bool {
	return b.ExpiresAt.After(now)
}

// TableName specifies the table name for GORM.
func (BanRecord) TableName() string {
	return "ban_records"
}

// BanLog is an append-only audit row recorded on every ban/unban
// transition.
type BanLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	OrganisationID uint      `gorm:"not null" json:"organisation_id"`
	RoomID         *uint     `json:"room_id,omitempty"`
	Action         string    `gorm:"not null" json:"action"` // "ban" or "unban"
	Reason         string    `gorm:"type:text;default:''" json:"reason"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (BanLog) TableName() string {
	return "ban_logs"
}
