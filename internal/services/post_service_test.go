package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestPostCreate_ModerationAndNormalization(t *testing.T) {
	db := newTestDB(t)
	svc := NewPostService(db, newTestGate(t), nil)
	u := seedUser(t, db, "alice")
	ctx := context.Background()

	clean, err := svc.Create(ctx, u.ID, NewPost{Title: "  A   calm\ttitle ", Content: "nice weather"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if clean.IsBlocked || clean.Title != "A calm title" || clean.AuthorID != u.ID {
		t.Fatalf("unexpected post: %+v", clean)
	}

	blocked, err := svc.Create(ctx, u.ID, NewPost{Title: "Damn", Content: "whatever"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !blocked.IsBlocked {
		t.Fatalf("title with a listed word should be blocked")
	}

	// blocked posts are still stored and readable
	if got, err := svc.Get(ctx, blocked.ID); err != nil || !got.IsBlocked {
		t.Fatalf("Get blocked = %+v, %v", got, err)
	}
}

func TestPostCreate_Validation(t *testing.T) {
	db := newTestDB(t)
	svc := NewPostService(db, newTestGate(t), nil)
	svc.MaxReplyDelay = time.Hour
	svc.TitleMaxRunes = 10
	ctx := context.Background()

	cases := []struct {
		name string
		in   NewPost
		want error
	}{
		{"empty title", NewPost{Title: "  ", Content: "c"}, ErrEmptyTitle},
		{"empty content", NewPost{Title: "t", Content: "\n"}, ErrEmptyContent},
		{"long title", NewPost{Title: strings.Repeat("é", 11), Content: "c"}, ErrTooLong},
		{"negative delay", NewPost{Title: "t", Content: "c", AutoReplyDelay: -1}, ErrInvalidAutoReply},
		{"delay over max", NewPost{Title: "t", Content: "c", AutoReplyDelay: 3601}, ErrInvalidAutoReply},
		{"enabled without text", NewPost{Title: "t", Content: "c", AutoReplyEnabled: true, AutoReplyText: " "}, ErrInvalidAutoReply},
	}
	for _, tc := range cases {
		if _, err := svc.Create(ctx, "u1", tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("%s: want %v, got %v", tc.name, tc.want, err)
		}
	}

	// disabled auto-reply may carry a delay and no text
	if _, err := svc.Create(ctx, seedUser(t, db, "bob").ID, NewPost{Title: "t", Content: "c", AutoReplyDelay: 60}); err != nil {
		t.Fatalf("disabled auto-reply rejected: %v", err)
	}
}

func TestPostListPage(t *testing.T) {
	db := newTestDB(t)
	svc := NewPostService(db, newTestGate(t), nil)
	u := seedUser(t, db, "alice")
	ctx := context.Background()

	items, total, err := svc.ListPage(ctx, 1, 10)
	if err != nil || total != 0 || items == nil || len(items) != 0 {
		t.Fatalf("empty ListPage = %v, %d, %v", items, total, err)
	}

	for i := 0; i < 3; i++ {
		seedPost(t, svc, u.ID, NewPost{})
		time.Sleep(2 * time.Millisecond)
	}
	items, total, err = svc.ListPage(ctx, 1, 2)
	if err != nil || total != 3 || len(items) != 2 {
		t.Fatalf("ListPage = %d items, total %d, %v", len(items), total, err)
	}
	if items[0].CreatedAt.Before(items[1].CreatedAt) {
		t.Fatalf("posts should be newest first")
	}
	items, _, _ = svc.ListPage(ctx, 2, 2)
	if len(items) != 1 {
		t.Fatalf("page 2 = %d items; want 1", len(items))
	}
}

func TestPostDelete(t *testing.T) {
	db := newTestDB(t)
	cr := &cancelRecorder{}
	svc := NewPostService(db, newTestGate(t), cr)
	owner := seedUser(t, db, "alice")
	other := seedUser(t, db, "bob")
	ctx := context.Background()
	p := seedPost(t, svc, owner.ID, NewPost{})

	if err := svc.Delete(ctx, other.ID, p.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("want ErrForbidden, got %v", err)
	}
	if err := svc.Delete(ctx, owner.ID, "missing"); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("want ErrPostNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, owner.ID, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(cr.posts) != 1 || cr.posts[0] != p.ID {
		t.Fatalf("pending replies not cancelled: %v", cr.posts)
	}
	if _, err := svc.Get(ctx, p.ID); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("deleted post still visible: %v", err)
	}
	if err := svc.Delete(ctx, owner.ID, p.ID); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("second delete: want ErrPostNotFound, got %v", err)
	}
}
