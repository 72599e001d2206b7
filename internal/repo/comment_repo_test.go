package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-postboard/internal/domain"
)

func TestCreateComment_AndList(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()
	p := &domain.Post{Title: "t", Content: "c", AuthorID: "u1"}
	if err := CreatePost(ctx, db, p); err != nil {
		t.Fatalf("seed post: %v", err)
	}

	first, err := CreateComment(ctx, db, p.ID, "u2", "first", false)
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	if _, err := CreateComment(ctx, db, p.ID, "u3", "second", true); err != nil {
		t.Fatalf("CreateComment: %v", err)
	}

	got, err := GetComment(ctx, db, first.ID)
	if err != nil || got.Content != "first" || got.IsBlocked {
		t.Fatalf("GetComment: %+v %v", got, err)
	}

	n, err := CountComments(ctx, db, p.ID)
	if err != nil || n != 2 {
		t.Fatalf("CountComments = %d, %v", n, err)
	}
	page, err := ListCommentsPage(ctx, db, p.ID, 0, 10)
	if err != nil || len(page) != 2 || page[0].Content != "first" || !page[1].IsBlocked {
		t.Fatalf("ListCommentsPage: %+v %v", page, err)
	}
}

func TestCreateComment_MissingPostFails(t *testing.T) {
	db := newTestDB(t, true)
	if _, err := CreateComment(context.Background(), db, "nope", "u1", "x", false); err == nil {
		t.Fatalf("expected foreign key error")
	}
}

func TestGetComment_NotFound(t *testing.T) {
	db := newTestDB(t, true)
	if _, err := GetComment(context.Background(), db, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCountComments_NoTable(t *testing.T) {
	db := newTestDB(t, false)
	if _, err := CountComments(context.Background(), db, "p"); err == nil {
		t.Fatalf("expected error without comments table")
	}
}
