package domain

import (
	"context"
	"time"
)

type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	AuthorID  string    `json:"authorId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PostWithAuthor is a post joined with the user that wrote it.
type PostWithAuthor struct {
	Post
	Author User `json:"author"`
}

type CreatePostRequest struct {
	Title    string `json:"title" validate:"required"`
	Content  string `json:"content" validate:"required"`
	AuthorID string `json:"authorId" validate:"required"`
}

// PostPatch is a partial update, same semantics as UserPatch.
type PostPatch struct {
	Title    *string `json:"title" validate:"omitempty,min=1"`
	Content  *string `json:"content" validate:"omitempty,min=1"`
	AuthorID *string `json:"authorId" validate:"omitempty,min=1"`
}

type PostRepository interface {
	FindAll(ctx context.Context) ([]Post, error)
	FindByID(ctx context.Context, id string) (*Post, error)
	FindByAuthor(ctx context.Context, authorID string) ([]Post, error)
	Create(ctx context.Context, post *Post) error
	Update(ctx context.Context, id string, patch PostPatch) (*Post, error)
	Delete(ctx context.Context, id string) error
	GetPostWithAuthor(ctx context.Context, id string) (*PostWithAuthor, error)
	GetPostsWithAuthors(ctx context.Context) ([]PostWithAuthor, error)
	Count(ctx context.Context) (int64, error)
}
