package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/scribeapp/scribe/internal/domain"
)

// DBPostRepository is the posts counterpart of DBUserRepository. The
// author_id foreign key makes the store reject posts with unknown authors;
// that error passes through unwrapped beyond the usual %w.
type DBPostRepository struct {
	db DB
}

func NewDBPostRepository(db DB) *DBPostRepository {
	return &DBPostRepository{
		db: db,
	}
}

const postColumns = "id, title, content, author_id, created_at, updated_at"

func (r *DBPostRepository) FindAll(ctx context.Context) ([]domain.Post, error) {
	query := `
		SELECT id, title, content, author_id, created_at, updated_at
		FROM posts
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

func (r *DBPostRepository) FindByID(ctx context.Context, id string) (*domain.Post, error) {
	query := `
		SELECT id, title, content, author_id, created_at, updated_at
		FROM posts
		WHERE id = $1
	`

	var post domain.Post
	err := r.db.QueryRow(ctx, query, id).Scan(
		&post.ID, &post.Title, &post.Content, &post.AuthorID, &post.CreatedAt, &post.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post by ID: %w", err)
	}

	return &post, nil
}

func (r *DBPostRepository) FindByAuthor(ctx context.Context, authorID string) ([]domain.Post, error) {
	query := `
		SELECT id, title, content, author_id, created_at, updated_at
		FROM posts
		WHERE author_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, authorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts by author: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

func (r *DBPostRepository) Create(ctx context.Context, post *domain.Post) error {
	query := `
		INSERT INTO posts (id, title, content, author_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(ctx, query,
		post.ID, post.Title, post.Content, post.AuthorID, post.CreatedAt, post.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}

	return nil
}

func (r *DBPostRepository) Update(ctx context.Context, id string, patch domain.PostPatch) (*domain.Post, error) {
	builder := sq.Update("posts").Set("updated_at", time.Now().UTC())
	if patch.Title != nil {
		builder = builder.Set("title", *patch.Title)
	}
	if patch.Content != nil {
		builder = builder.Set("content", *patch.Content)
	}
	if patch.AuthorID != nil {
		builder = builder.Set("author_id", *patch.AuthorID)
	}

	query, args, err := builder.
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + postColumns).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build post update: %w", err)
	}

	var post domain.Post
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&post.ID, &post.Title, &post.Content, &post.AuthorID, &post.CreatedAt, &post.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}

	return &post, nil
}

func (r *DBPostRepository) Delete(ctx context.Context, id string) error {
	query := `
		DELETE FROM posts
		WHERE id = $1
	`

	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	return nil
}

func (r *DBPostRepository) GetPostWithAuthor(ctx context.Context, id string) (*domain.PostWithAuthor, error) {
	query := `
		SELECT p.id, p.title, p.content, p.author_id, p.created_at, p.updated_at,
		       u.id, u.name, u.email, u.created_at, u.updated_at
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.id = $1
	`

	var result domain.PostWithAuthor
	err := r.db.QueryRow(ctx, query, id).Scan(
		&result.ID, &result.Title, &result.Content, &result.AuthorID, &result.CreatedAt, &result.UpdatedAt,
		&result.Author.ID, &result.Author.Name, &result.Author.Email, &result.Author.CreatedAt, &result.Author.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post with author: %w", err)
	}

	return &result, nil
}

func (r *DBPostRepository) GetPostsWithAuthors(ctx context.Context) ([]domain.PostWithAuthor, error) {
	query := `
		SELECT p.id, p.title, p.content, p.author_id, p.created_at, p.updated_at,
		       u.id, u.name, u.email, u.created_at, u.updated_at
		FROM posts p
		JOIN users u ON u.id = p.author_id
		ORDER BY p.created_at DESC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts with authors: %w", err)
	}
	defer rows.Close()

	var results []domain.PostWithAuthor
	for rows.Next() {
		var result domain.PostWithAuthor
		err := rows.Scan(
			&result.ID, &result.Title, &result.Content, &result.AuthorID, &result.CreatedAt, &result.UpdatedAt,
			&result.Author.ID, &result.Author.Name, &result.Author.Email, &result.Author.CreatedAt, &result.Author.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post with author: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list posts with authors: %w", err)
	}

	return results, nil
}

func (r *DBPostRepository) Count(ctx context.Context) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM posts
	`

	var count int64
	if err := r.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}

	return count, nil
}

func scanPosts(rows pgx.Rows) ([]domain.Post, error) {
	var posts []domain.Post
	for rows.Next() {
		var post domain.Post
		if err := rows.Scan(&post.ID, &post.Title, &post.Content, &post.AuthorID, &post.CreatedAt, &post.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read posts: %w", err)
	}

	return posts, nil
}
