package models

import "time"

// UnrankedHotness is the sentinel stored on posts that have never been
// pinned. It sorts after every real hotness value so unranked posts never
// interleave with ranked ones.
const UnrankedHotness = 1e10

// DeletedTombstone is the synthetic content a removed post exposes in
// place of its revisions.
const DeletedTombstone = "(deleted)"

// Post is a message in a room. Content lives in PostRevision rows; the
// post itself carries moderation and ranking state. Posts are soft-deleted
// only: Deleted flips, rows are never removed.
type Post struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	RoomID    uint       `gorm:"not null;index" json:"room_id"`
	Room      Room       `gorm:"foreignKey:RoomID" json:"room,omitempty"`
	AuthorID  uint       `gorm:"not null;index" json:"author_id"`
	Author    User       `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	ReplyToID *uint      `gorm:"index" json:"reply_to_id,omitempty"`
	Pinned    bool       `gorm:"not null;default:false;index" json:"pinned"`
	PinnedAt  *time.Time `json:"pinned_at,omitempty"`
	Deleted   bool       `gorm:"not null;default:false" json:"deleted"`
	Hotness   float64    `gorm:"not null;default:10000000000" json:"hotness"`

	// Score is the vote aggregate; computed at query time, not persisted.
	Score int64 `gorm:"->" json:"score"`

	// Mentions are the users resolved from @-tokens at ingestion time,
	// attached to the creation result only. Not persisted.
	Mentions []User `gorm:"-" json:"mentions,omitempty"`

	Revisions []PostRevision `gorm:"foreignKey:PostID" json:"revisions,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// CurrentRevision returns the most recent revision, or nil when none are
// loaded. Revisions are expected to be preloaded newest-first.
func (p *Post) CurrentRevision() *PostRevision {
	if len(p.Revisions) == 0 {
		return nil
	}
	return &p.Revisions[0]
}

// CurrentContent returns the rendered content of the latest revision, or
// the tombstone once the post has been removed.
func (p *Post) CurrentContent() string {
	if p.Deleted {
		return DeletedTombstone
	}
	if rev := p.CurrentRevision(); rev != nil {
		return rev.Rendered
	}
	return ""
}

// Edited reports whether the post has been revised after creation.
func (p *Post) Edited() bool {
	return len(p.Revisions) > 1
}

// PostRevision is one content version of a post, newest revision wins.
// Raw keeps the user's original text, Rendered the processed HTML.
type PostRevision struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	AuthorID  uint      `gorm:"not null" json:"author_id"`
	Rendered  string    `gorm:"type:text;not null" json:"rendered"`
	Raw       string    `gorm:"type:text;not null" json:"raw"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (PostRevision) TableName() string {
	return "post_revisions"
}
