// Package domain defines the persistence models for users, posts and
// comments. These types are mapped with GORM and shared by the repository,
// service and HTTP layers.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// User is a registered account. Username and email are unique.
//
// Fields:
//   - ID: stable UUID primary key (char(36)); it is the token subject.
//   - Username / Email: unique login identifiers.
//   - PasswordHash: bcrypt hash, never serialized.
type User struct {
	ID           string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Username     string    `json:"username"   gorm:"type:varchar(150);not null;uniqueIndex:ux_users_username"`
	Email        string    `json:"email"      gorm:"type:varchar(254);not null;uniqueIndex:ux_users_email"`
	PasswordHash string    `json:"-"          gorm:"type:varchar(100);not null"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Post is a short text item that other users comment on. A post may carry an
// auto-reply configuration; when AutoReplyEnabled is false the delay and text
// are kept but ignored.
//
// Fields:
//   - AutoReplyDelay: seconds to wait after a new comment, >= 0.
//   - IsBlocked: moderation verdict on title and content.
//   - DeletedAt: soft deletion marker.
type Post struct {
	ID               string         `json:"id"                 gorm:"type:char(36);primaryKey"`
	Title            string         `json:"title"              gorm:"type:varchar(255);not null"`
	Content          string         `json:"content"            gorm:"type:text;not null"`
	AuthorID         string         `json:"author_id"          gorm:"type:char(36);not null;index:idx_author_posts"`
	IsBlocked        bool           `json:"is_blocked"         gorm:"not null;default:false"`
	AutoReplyEnabled bool           `json:"auto_reply_enabled" gorm:"not null;default:false"`
	AutoReplyDelay   int            `json:"auto_reply_delay"   gorm:"not null;default:0;check:auto_reply_delay >= 0"`
	AutoReplyText    string         `json:"auto_reply_text"    gorm:"type:text;not null;default:''"`
	CreatedAt        time.Time      `json:"created_at"         gorm:"index"`
	DeletedAt        gorm.DeletedAt `json:"-"                  gorm:"index"`
}

// TableName returns the database table name for Post.
func (Post) TableName() string { return "posts" }

// AutoReplyAfter returns the configured delay as a duration.
func (p Post) AutoReplyAfter() time.Duration {
	return time.Duration(p.AutoReplyDelay) * time.Second
}

// Comment is a reply attached to a post. Comments are immutable once written;
// they go away only with a hard delete of the parent post.
type Comment struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	PostID    string    `json:"post_id"    gorm:"type:char(36);not null;index:idx_post_comments,priority:1"`
	AuthorID  string    `json:"author_id"  gorm:"type:char(36);not null;index"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	IsBlocked bool      `json:"is_blocked" gorm:"not null;default:false;index"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_post_comments,priority:2;index:idx_comments_created"`

	Post Post `json:"-" gorm:"foreignKey:PostID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Comment.
func (Comment) TableName() string { return "comments" }
