// Package handlers implements the HTTP endpoints of the postboard API.
//
// Handlers are transport-thin: they bind and validate input, call the
// application services and translate service errors into ErrorResponse codes.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-postboard/internal/domain"
	"github.com/tbourn/go-postboard/internal/repo"
	"github.com/tbourn/go-postboard/internal/services"
)

// UserService registers accounts and issues tokens.
type UserService interface {
	Register(ctx context.Context, username, email, password string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*services.Session, error)
}

// PostService manages posts.
type PostService interface {
	Create(ctx context.Context, authorID string, in services.NewPost) (*domain.Post, error)
	Get(ctx context.Context, id string) (*domain.Post, error)
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Post, int64, error)
	Delete(ctx context.Context, userID, postID string) error
}

// CommentService accepts and lists comments.
type CommentService interface {
	Submit(ctx context.Context, authorID, postID, content string) (*domain.Comment, error)
	Get(ctx context.Context, id string) (*domain.Comment, error)
	ListPage(ctx context.Context, postID string, page, pageSize int) ([]domain.Comment, int64, error)
}

// StatsService answers reporting queries.
type StatsService interface {
	DailyBreakdown(ctx context.Context, from, to time.Time) (repo.Breakdown, error)
}

// Deps wires Handlers. DB is optional; without it ETags and idempotent
// replays are skipped.
type Deps struct {
	Users    UserService
	Posts    PostService
	Comments CommentService
	Stats    StatsService

	DB             *gorm.DB
	IdempotencyTTL time.Duration
}

// Handlers groups all endpoints.
type Handlers struct {
	users    UserService
	posts    PostService
	comments CommentService
	stats    StatsService

	db      *gorm.DB
	idemTTL time.Duration
}

// New returns Handlers bound to d.
func New(d Deps) *Handlers {
	ttl := d.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Handlers{
		users:    d.Users,
		posts:    d.Posts,
		comments: d.Comments,
		stats:    d.Stats,
		db:       d.DB,
		idemTTL:  ttl,
	}
}

// userID returns the caller set by the auth middleware.
func userID(c *gin.Context) string {
	return c.GetString("userID")
}
