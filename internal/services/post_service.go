package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/go-postboard/internal/domain"
	"github.com/tbourn/go-postboard/internal/moderation"
	"github.com/tbourn/go-postboard/internal/repo"
	"github.com/tbourn/go-postboard/internal/utils"
)

// ReplyCanceller drops pending auto-replies for a post.
type ReplyCanceller interface {
	CancelPost(postID string)
}

// NewPost is the input to PostService.Create.
type NewPost struct {
	Title            string
	Content          string
	AutoReplyEnabled bool
	AutoReplyDelay   int // seconds
	AutoReplyText    string
}

// PostService creates, lists and deletes posts. Title and content are run
// through the moderation gate; blocked posts are stored with IsBlocked set.
type PostService struct {
	DB        *gorm.DB
	Moderator moderation.Classifier
	Replies   ReplyCanceller

	TitleMaxRunes   int
	ContentMaxRunes int
	MaxReplyDelay   time.Duration
}

// NewPostService returns a PostService with default limits.
func NewPostService(db *gorm.DB, m moderation.Classifier, replies ReplyCanceller) *PostService {
	return &PostService{
		DB:              db,
		Moderator:       m,
		Replies:         replies,
		TitleMaxRunes:   255,
		ContentMaxRunes: 10000,
		MaxReplyDelay:   24 * time.Hour,
	}
}

// Create validates and stores a post owned by authorID.
func (s *PostService) Create(ctx context.Context, authorID string, in NewPost) (*domain.Post, error) {
	ctx, span := otel.Tracer("services/PostService").Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("user.id", authorID),
			attribute.Bool("auto_reply.enabled", in.AutoReplyEnabled),
		))
	defer span.End()

	title := cleanText(in.Title)
	content := strings.TrimSpace(norm.NFC.String(in.Content))
	switch {
	case title == "":
		return nil, ErrEmptyTitle
	case content == "":
		return nil, ErrEmptyContent
	case tooLong(title, s.TitleMaxRunes), tooLong(content, s.ContentMaxRunes):
		return nil, ErrTooLong
	}

	replyText := strings.TrimSpace(in.AutoReplyText)
	if in.AutoReplyDelay < 0 {
		return nil, ErrInvalidAutoReply
	}
	if s.MaxReplyDelay > 0 && time.Duration(in.AutoReplyDelay)*time.Second > s.MaxReplyDelay {
		return nil, ErrInvalidAutoReply
	}
	if in.AutoReplyEnabled && replyText == "" {
		return nil, ErrInvalidAutoReply
	}
	if tooLong(replyText, s.ContentMaxRunes) {
		return nil, ErrTooLong
	}

	p := &domain.Post{
		Title:            title,
		Content:          content,
		AuthorID:         authorID,
		IsBlocked:        s.Moderator.Classify(title + "\n" + content),
		AutoReplyEnabled: in.AutoReplyEnabled,
		AutoReplyDelay:   in.AutoReplyDelay,
		AutoReplyText:    replyText,
	}
	if err := repo.CreatePost(ctx, s.DB, p); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("post.id", p.ID), attribute.Bool("post.blocked", p.IsBlocked))
	return p, nil
}

// Get returns a live post.
func (s *PostService) Get(ctx context.Context, id string) (*domain.Post, error) {
	p, err := repo.GetPost(ctx, s.DB, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListPage returns a page of posts, newest first, and the total count.
func (s *PostService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Post, int64, error) {
	ctx, span := otel.Tracer("services/PostService").Start(ctx, "ListPage",
		trace.WithAttributes(attribute.Int("page", page), attribute.Int("page_size", pageSize)))
	defer span.End()

	offset, limit := pageBounds(page, pageSize)
	total, err := repo.CountPosts(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Post{}, 0, nil
	}
	items, err := repo.ListPostsPage(ctx, s.DB, offset, limit)
	return items, total, err
}

// Delete soft-deletes a post owned by userID and cancels its pending
// auto-replies.
func (s *PostService) Delete(ctx context.Context, userID, postID string) error {
	ctx, span := otel.Tracer("services/PostService").Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("post.id", postID), attribute.String("user.id", userID)))
	defer span.End()

	p, err := s.Get(ctx, postID)
	if err != nil {
		return err
	}
	if p.AuthorID != userID {
		return ErrForbidden
	}
	if err := repo.SoftDeletePost(ctx, s.DB, postID, userID); err != nil {
		if isNotFound(err) {
			return ErrPostNotFound
		}
		return err
	}
	if s.Replies != nil {
		s.Replies.CancelPost(postID)
	}
	return nil
}

// cleanText NFC-normalizes, trims and collapses inner whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

func tooLong(s string, max int) bool {
	return max > 0 && utf8.RuneCountInString(s) > max
}

// pageBounds converts a 1-based page into offset/limit.
func pageBounds(page, pageSize int) (offset, limit int) {
	return utils.Offset(page, pageSize)
}
