package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/go-postboard/internal/domain"
	"github.com/tbourn/go-postboard/internal/moderation"
	"github.com/tbourn/go-postboard/internal/repo"
	"github.com/tbourn/go-postboard/internal/scheduler"
)

// ReplyScheduler accepts delayed auto-reply tasks.
type ReplyScheduler interface {
	Schedule(t scheduler.Task) (*scheduler.Handle, error)
}

// CommentPipeline moderates and stores comments and, when the post asks for
// it, hands one delayed auto-reply to the scheduler. It is also the
// scheduler's executor (DeliverReply).
type CommentPipeline struct {
	DB        *gorm.DB
	Moderator moderation.Classifier
	Scheduler ReplyScheduler
	Logger    zerolog.Logger

	ContentMaxRunes int
}

// NewCommentPipeline returns a pipeline. The scheduler may be attached later,
// since the scheduler itself needs DeliverReply.
func NewCommentPipeline(db *gorm.DB, m moderation.Classifier, sched ReplyScheduler) *CommentPipeline {
	return &CommentPipeline{
		DB:              db,
		Moderator:       m,
		Scheduler:       sched,
		Logger:          log.With().Str("component", "comment-pipeline").Logger(),
		ContentMaxRunes: 10000,
	}
}

// Submit stores a comment by authorID on postID. The post must exist. The
// content is classified and stored either way; blocked comments carry
// IsBlocked. If the post has auto-reply enabled exactly one task is
// scheduled with the post's current delay and text. Scheduling failures are
// logged and never fail the call: the comment is already stored.
func (p *CommentPipeline) Submit(ctx context.Context, authorID, postID, content string) (*domain.Comment, error) {
	ctx, span := otel.Tracer("services/CommentPipeline").Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.String("post.id", postID),
			attribute.String("user.id", authorID),
		))
	defer span.End()

	content = strings.TrimSpace(norm.NFC.String(content))
	if content == "" {
		return nil, ErrEmptyContent
	}
	if tooLong(content, p.ContentMaxRunes) {
		return nil, ErrTooLong
	}

	blocked := p.Moderator.Classify(content)

	var (
		post    *domain.Post
		comment *domain.Comment
	)
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if post, err = repo.GetPost(ctx, tx, postID); err != nil {
			if isNotFound(err) {
				return ErrPostNotFound
			}
			return err
		}
		comment, err = repo.CreateComment(ctx, tx, postID, authorID, content, blocked)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrPostNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "persist comment")
		}
		return nil, err
	}
	commentsCreated.WithLabelValues("user", verdict(blocked)).Inc()
	span.SetAttributes(attribute.Bool("comment.blocked", blocked))

	if post.AutoReplyEnabled {
		p.scheduleReply(ctx, post, comment)
	}
	return comment, nil
}

func (p *CommentPipeline) scheduleReply(ctx context.Context, post *domain.Post, trigger *domain.Comment) {
	lg := p.Logger.With().
		Str("post_id", post.ID).
		Str("comment_id", trigger.ID).
		Logger()
	if p.Scheduler == nil {
		lg.Warn().Msg("auto-reply enabled but no scheduler attached")
		autoReplyScheduleErrors.WithLabelValues("no_scheduler").Inc()
		return
	}

	h, err := p.Scheduler.Schedule(scheduler.Task{
		PostID:   post.ID,
		AuthorID: post.AuthorID,
		Text:     post.AutoReplyText,
		Delay:    post.AutoReplyAfter(),
	})
	if err != nil {
		reason := "other"
		switch {
		case errors.Is(err, scheduler.ErrQueueFull):
			reason = "queue_full"
		case errors.Is(err, scheduler.ErrInvalidDelay):
			reason = "invalid_delay"
		case errors.Is(err, scheduler.ErrClosed):
			reason = "closed"
		}
		autoReplyScheduleErrors.WithLabelValues(reason).Inc()
		lg.Warn().Err(err).Msg("auto-reply not scheduled")
		return
	}
	if h != nil {
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("auto_reply.task_id", h.ID()))
		lg.Debug().Str("task_id", h.ID()).Time("due", h.DueAt()).Msg("auto-reply scheduled")
	}
}

// DeliverReply is the scheduler executor: it writes the synthetic reply if
// the post still exists and returns scheduler.ErrTargetGone otherwise. The
// reply text goes through moderation like any other comment.
func (p *CommentPipeline) DeliverReply(ctx context.Context, t scheduler.Task) error {
	ctx, span := otel.Tracer("services/CommentPipeline").Start(ctx, "DeliverReply",
		trace.WithAttributes(attribute.String("post.id", t.PostID)))
	defer span.End()

	blocked := p.Moderator.Classify(t.Text)
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetPost(ctx, tx, t.PostID); err != nil {
			if isNotFound(err) {
				return scheduler.ErrTargetGone
			}
			return err
		}
		_, err := repo.CreateComment(ctx, tx, t.PostID, t.AuthorID, t.Text, blocked)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	commentsCreated.WithLabelValues("auto_reply", verdict(blocked)).Inc()
	return nil
}

// Get returns a single comment.
func (p *CommentPipeline) Get(ctx context.Context, id string) (*domain.Comment, error) {
	c, err := repo.GetComment(ctx, p.DB, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}
	return c, nil
}

// ListPage returns comments of a live post in insertion order.
func (p *CommentPipeline) ListPage(ctx context.Context, postID string, page, pageSize int) ([]domain.Comment, int64, error) {
	ctx, span := otel.Tracer("services/CommentPipeline").Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("post.id", postID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		))
	defer span.End()

	if _, err := repo.GetPost(ctx, p.DB, postID); err != nil {
		if isNotFound(err) {
			return nil, 0, ErrPostNotFound
		}
		return nil, 0, err
	}

	offset, limit := pageBounds(page, pageSize)
	total, err := repo.CountComments(ctx, p.DB, postID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Comment{}, 0, nil
	}
	items, err := repo.ListCommentsPage(ctx, p.DB, postID, offset, limit)
	return items, total, err
}
