package models

import "time"

// Organisation is the top-level tenant. Rooms, memberships and bans are
// scoped to exactly one organisation.
type Organisation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Slug      string    `gorm:"uniqueIndex;not null" json:"slug"`
	Domain    string    `json:"domain"`
	Admins    []User    `gorm:"many2many:organisation_admins" json:"admins,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Room is a conversation channel belonging to one organisation.
type Room struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	Name           string       `gorm:"not null" json:"name"`
	Topic          string       `json:"topic"`
	OrganisationID uint         `gorm:"not null;index" json:"organisation_id"`
	Organisation   Organisation `gorm:"foreignKey:OrganisationID" json:"organisation,omitempty"`
	CreatorID      uint         `gorm:"not null" json:"creator_id"`
	Private        bool         `gorm:"not null;default:false" json:"private"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// PresenceStatus is the per-user, per-room presence enum carried on
// "status" broadcast events.
type PresenceStatus int

// Presence status values, in wire order.
const (
	StatusOnline PresenceStatus = iota
	StatusAway
	StatusBusy
	StatusInvisible
	StatusOffline
)

// Valid reports whether s is one of the known presence values.
func (s PresenceStatus) Valid() bool {
	return s >= StatusOnline && s <= StatusOffline
}

// Membership grants a user read/write eligibility in an organisation and,
// when RoomID is set, in a private room. Admin marks organisation admins
// alongside the Organisation.Admins association for fast lookup.
type Membership struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UserID         uint           `gorm:"not null;uniqueIndex:idx_membership_scope" json:"user_id"`
	OrganisationID uint           `gorm:"not null;uniqueIndex:idx_membership_scope" json:"organisation_id"`
	RoomID         *uint          `gorm:"uniqueIndex:idx_membership_scope" json:"room_id,omitempty"`
	Admin          bool           `gorm:"not null;default:false" json:"admin"`
	Status         PresenceStatus `gorm:"not null;default:4" json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Membership) TableName() string {
	return "memberships"
}
