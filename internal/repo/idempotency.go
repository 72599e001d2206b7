package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-postboard/internal/domain"
)

// GetIdempotency returns a non-expired record for (user, post, key) or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, userID, postID, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(postID) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("user_id = ? AND post_id = ? AND key = ? AND expires_at > ?", userID, postID, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotency inserts a record and returns ErrDuplicate on unique violation.
func CreateIdempotency(ctx context.Context, db *gorm.DB, userID, postID, key, commentID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		UserID:    userID,
		PostID:    postID,
		Key:       key,
		CommentID: commentID,
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// ReserveIdempotency claims (user, post, key) before the comment is written.
// The record is pending (empty CommentID, Status 0) until CompleteIdempotency
// fills it in. A stale expired row for the same triple is replaced. A live
// row, pending or complete, yields ErrDuplicate.
func ReserveIdempotency(ctx context.Context, db *gorm.DB, userID, postID, key string, ttl time.Duration) (*domain.Idempotency, error) {
	var rec *domain.Idempotency
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND post_id = ? AND key = ? AND expires_at <= ?",
			userID, postID, key, time.Now().UTC()).
			Delete(&domain.Idempotency{}).Error; err != nil {
			return err
		}
		var err error
		rec, err = CreateIdempotency(ctx, tx, userID, postID, key, "", 0, ttl)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// CompleteIdempotency records the outcome of a reserved request.
func CompleteIdempotency(ctx context.Context, db *gorm.DB, id, commentID string, status int) error {
	res := db.WithContext(ctx).Model(&domain.Idempotency{}).
		Where("id = ?", id).
		Updates(map[string]any{"comment_id": commentID, "status": status})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReleaseIdempotency drops a reservation whose request failed so the client
// can retry with the same key.
func ReleaseIdempotency(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Idempotency{}).Error
}

// PurgeExpiredIdempotency deletes records whose TTL has elapsed.
func PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}
