package domain

import "time"

// Idempotency records the comment produced for a (user, post, key) triple so
// a retried POST returns the original comment instead of writing a second one
// and scheduling a second auto-reply. A record with an empty CommentID is a
// reservation held by a request still in progress.
type Idempotency struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_post_key,priority:1"`
	PostID    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_post_key,priority:2"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_post_key,priority:3"`
	CommentID string    `gorm:"type:TEXT NOT NULL"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
