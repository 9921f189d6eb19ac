package models

import "time"

// Vote is an append-only (post, voter) fact with score -1 or +1. A voter
// casts at most one vote per post; re-votes are rejected at the unique
// index, never merged or overwritten.
type Vote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_vote_post_voter" json:"post_id"`
	VoterID   uint      `gorm:"not null;uniqueIndex:idx_vote_post_voter" json:"voter_id"`
	Score     int       `gorm:"not null" json:"score"` // -1 or +1
	CreatedAt time.Time `json:"created_at"`
}

// Flag is an append-only (post, flagger) fact. Accumulating flags past
// the configured threshold triggers moderation removal of the post.
type Flag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_flag_post_flagger" json:"post_id"`
	FlaggerID uint      `gorm:"not null;uniqueIndex:idx_flag_post_flagger" json:"flagger_id"`
	CreatedAt time.Time `json:"created_at"`
}
