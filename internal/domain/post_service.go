package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/scribeapp/scribe/internal/audit"
)

// PostService mirrors UserService for posts. Referential integrity against
// users is enforced by the store's foreign key, not re-checked here.
type PostService struct {
	posts    PostRepository
	recorder audit.Recorder
}

func NewPostService(posts PostRepository, recorder audit.Recorder) *PostService {
	return &PostService{
		posts:    posts,
		recorder: recorder,
	}
}

func (s *PostService) List(ctx context.Context) ([]Post, error) {
	return s.posts.FindAll(ctx)
}

func (s *PostService) Get(ctx context.Context, id string) (*Post, error) {
	return s.posts.FindByID(ctx, id)
}

func (s *PostService) GetByAuthor(ctx context.Context, authorID string) ([]Post, error) {
	return s.posts.FindByAuthor(ctx, authorID)
}

func (s *PostService) GetWithAuthor(ctx context.Context, id string) (*PostWithAuthor, error) {
	return s.posts.GetPostWithAuthor(ctx, id)
}

func (s *PostService) ListWithAuthors(ctx context.Context) ([]PostWithAuthor, error) {
	return s.posts.GetPostsWithAuthors(ctx)
}

func (s *PostService) Count(ctx context.Context) (int64, error) {
	return s.posts.Count(ctx)
}

func (s *PostService) Create(ctx context.Context, req CreatePostRequest) (*Post, error) {
	now := time.Now().UTC()
	post := &Post{
		ID:        NewPostID(),
		Title:     req.Title,
		Content:   req.Content,
		AuthorID:  req.AuthorID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	if err := s.record(ctx, "post.created", post.ID, map[string]any{"title": post.Title, "author_id": post.AuthorID}); err != nil {
		return nil, err
	}

	return post, nil
}

func (s *PostService) Update(ctx context.Context, id string, patch PostPatch) (*Post, error) {
	post, err := s.posts.Update(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	if post == nil {
		return nil, nil
	}

	if err := s.record(ctx, "post.updated", post.ID, map[string]any{"title": post.Title, "author_id": post.AuthorID}); err != nil {
		return nil, err
	}

	return post, nil
}

func (s *PostService) Delete(ctx context.Context, id string) error {
	if err := s.posts.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	return s.record(ctx, "post.deleted", id, nil)
}

func (s *PostService) record(ctx context.Context, eventType, postID string, data map[string]any) error {
	err := s.recorder.Record(ctx, audit.NewEvent(eventType, "post", postID, data))
	if err != nil {
		return fmt.Errorf("post mutation committed but audit record failed: %w", err)
	}
	return nil
}
