package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-postboard/internal/domain"
)

func TestGetIdempotency_BlankPostID_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, true)
	rec, err := GetIdempotency(context.Background(), db, "u1", "   ", "k1", time.Now().UTC())
	if rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected (nil, ErrNotFound), got (%v, %v)", rec, err)
	}
}

func TestGetIdempotency_ExpiredOrMissing(t *testing.T) {
	db := newTestDB(t, true)
	now := time.Now().UTC()

	expired := &domain.Idempotency{
		ID: "expired", UserID: "u1", PostID: "p1", Key: "k1", CommentID: "c1", Status: 201,
		CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}
	if err := db.Create(expired).Error; err != nil {
		t.Fatalf("seed expired: %v", err)
	}

	if rec, err := GetIdempotency(context.Background(), db, "u1", "p1", "k1", now); rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired: got (%v, %v)", rec, err)
	}
	if rec, err := GetIdempotency(context.Background(), db, "u1", "p1", "missing", now); rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing: got (%v, %v)", rec, err)
	}
}

func TestCreateThenGetIdempotency(t *testing.T) {
	db := newTestDB(t, true)
	start := time.Now().UTC()

	rec, err := CreateIdempotency(context.Background(), db, "u9", "p9", "k9", "c9", 201, 90*time.Minute)
	if err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	if rec.ID == "" || rec.PostID != "p9" || rec.CommentID != "c9" || rec.Status != 201 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if !(rec.ExpiresAt.After(start) && rec.ExpiresAt.Before(start.Add(2*time.Hour))) {
		t.Fatalf("unexpected ExpiresAt: %v", rec.ExpiresAt)
	}

	got, err := GetIdempotency(context.Background(), db, "u9", "p9", "k9", time.Now().UTC())
	if err != nil || got.CommentID != "c9" {
		t.Fatalf("GetIdempotency: rec=%+v err=%v", got, err)
	}

	if _, err := CreateIdempotency(context.Background(), db, "u9", "p9", "k9", "cX", 201, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestCreateIdempotency_Error_NoTable(t *testing.T) {
	db := newTestDB(t, false)
	_, err := CreateIdempotency(context.Background(), db, "u", "p", "k", "c", 201, time.Minute)
	if err == nil || errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected non-duplicate error, got %v", err)
	}
}

func TestPurgeExpiredIdempotency(t *testing.T) {
	db := newTestDB(t, true)
	now := time.Now().UTC()
	for i, exp := range []time.Time{now.Add(-time.Minute), now.Add(time.Hour)} {
		rec := &domain.Idempotency{
			ID: string(rune('a' + i)), UserID: "u", PostID: "p", Key: string(rune('k' + i)),
			CommentID: "c", Status: 201, CreatedAt: now, ExpiresAt: exp,
		}
		if err := db.Create(rec).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	n, err := PurgeExpiredIdempotency(context.Background(), db, now)
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpiredIdempotency = (%d, %v), want (1, nil)", n, err)
	}
}

func TestReserveCompleteRelease(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()

	rec, err := ReserveIdempotency(ctx, db, "u1", "p1", "k1", time.Hour)
	if err != nil {
		t.Fatalf("ReserveIdempotency: %v", err)
	}
	if rec.CommentID != "" || rec.Status != 0 {
		t.Fatalf("reservation should be pending: %+v", rec)
	}

	// a concurrent request with the same key loses the race
	if _, err := ReserveIdempotency(ctx, db, "u1", "p1", "k1", time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second reservation: want ErrDuplicate, got %v", err)
	}

	if err := CompleteIdempotency(ctx, db, rec.ID, "c1", 201); err != nil {
		t.Fatalf("CompleteIdempotency: %v", err)
	}
	got, err := GetIdempotency(ctx, db, "u1", "p1", "k1", time.Now().UTC())
	if err != nil || got.CommentID != "c1" || got.Status != 201 {
		t.Fatalf("completed record: %+v err=%v", got, err)
	}
	if err := CompleteIdempotency(ctx, db, "missing", "c1", 201); !errors.Is(err, ErrNotFound) {
		t.Fatalf("complete unknown: want ErrNotFound, got %v", err)
	}

	other, err := ReserveIdempotency(ctx, db, "u1", "p1", "k2", time.Hour)
	if err != nil {
		t.Fatalf("reserve k2: %v", err)
	}
	if err := ReleaseIdempotency(ctx, db, other.ID); err != nil {
		t.Fatalf("ReleaseIdempotency: %v", err)
	}
	if _, err := ReserveIdempotency(ctx, db, "u1", "p1", "k2", time.Hour); err != nil {
		t.Fatalf("key should be reusable after release: %v", err)
	}
}

func TestReserveIdempotency_ReplacesExpired(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()
	if _, err := CreateIdempotency(ctx, db, "u1", "p1", "k1", "old", 201, -time.Minute); err != nil {
		t.Fatalf("seed: %v", err)
	}
	rec, err := ReserveIdempotency(ctx, db, "u1", "p1", "k1", time.Hour)
	if err != nil {
		t.Fatalf("reserve over expired row: %v", err)
	}
	if rec.CommentID != "" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}
