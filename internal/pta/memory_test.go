package pta

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryUpdatePostKeepsCommentsAndLikes(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	published := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := s.CreatePost(ctx, BlogPost{
		ID:          "p1",
		Title:       "Book fair",
		Slug:        "book-fair",
		AuthorID:    "admin",
		Status:      PostPublished,
		PublishedAt: &published,
		CreatedAt:   published,
	}); err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	stale, err := s.GetPost(ctx, "p1")
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if _, err := s.AddComment(ctx, "p1", Comment{ID: "c1", AuthorID: "u1", Content: "hi", Status: CommentPending}); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if _, err := s.AddLike(ctx, "p1", "u1"); err != nil {
		t.Fatalf("AddLike: %v", err)
	}

	stale.Status = PostArchived
	updated, err := s.UpdatePost(ctx, stale)
	if err != nil {
		t.Fatalf("UpdatePost: %v", err)
	}
	if updated.Status != PostArchived {
		t.Fatalf("status not written: %s", updated.Status)
	}
	if len(updated.Comments) != 1 || len(updated.Likes) != 1 {
		t.Fatalf("comments=%d likes=%d after UpdatePost, want 1 and 1", len(updated.Comments), len(updated.Likes))
	}
	got, err := s.GetPost(ctx, "p1")
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if len(got.Comments) != 1 || got.Likes[0] != "u1" {
		t.Fatalf("stored post lost comment or like: %+v", got)
	}
}
