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

// DBUserRepository is the only code path that touches the users table. Each
// method runs exactly one statement; store errors are wrapped, never
// translated or retried.
type DBUserRepository struct {
	db DB
}

func NewDBUserRepository(db DB) *DBUserRepository {
	return &DBUserRepository{
		db: db,
	}
}

func (r *DBUserRepository) FindAll(ctx context.Context) ([]domain.User, error) {
	query := `
		SELECT id, name, email, created_at, updated_at
		FROM users
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return users, nil
}

func (r *DBUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var user domain.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Name, &user.Email, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return &user, nil
}

func (r *DBUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE email = $1
	`

	var user domain.User
	err := r.db.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.Name, &user.Email, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return &user, nil
}

func (r *DBUserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, name, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Exec(ctx, query,
		user.ID, user.Name, user.Email, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// Update applies the patch fields that are set and refreshes updated_at
// unconditionally. Returns nil without error when the id matches no row.
func (r *DBUserRepository) Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	builder := sq.Update("users").Set("updated_at", time.Now().UTC())
	if patch.Name != nil {
		builder = builder.Set("name", *patch.Name)
	}
	if patch.Email != nil {
		builder = builder.Set("email", *patch.Email)
	}

	query, args, err := builder.
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING id, name, email, created_at, updated_at").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build user update: %w", err)
	}

	var user domain.User
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&user.ID, &user.Name, &user.Email, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return &user, nil
}

// Delete removes the user; the posts.author_id cascade removes their posts
// in the same statement. Unknown ids delete zero rows and report no error.
func (r *DBUserRepository) Delete(ctx context.Context, id string) error {
	query := `
		DELETE FROM users
		WHERE id = $1
	`

	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return nil
}

func (r *DBUserRepository) GetUserWithPosts(ctx context.Context, id string) (*domain.UserWithPosts, error) {
	query := `
		SELECT u.id, u.name, u.email, u.created_at, u.updated_at,
		       p.id, p.title, p.content, p.author_id, p.created_at, p.updated_at
		FROM users u
		LEFT JOIN posts p ON p.author_id = u.id
		WHERE u.id = $1
		ORDER BY p.created_at DESC
	`

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user with posts: %w", err)
	}
	defer rows.Close()

	var result *domain.UserWithPosts
	for rows.Next() {
		var user domain.User
		var postID, title, content, authorID *string
		var postCreatedAt, postUpdatedAt *time.Time

		err := rows.Scan(
			&user.ID, &user.Name, &user.Email, &user.CreatedAt, &user.UpdatedAt,
			&postID, &title, &content, &authorID, &postCreatedAt, &postUpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user with posts: %w", err)
		}

		if result == nil {
			result = &domain.UserWithPosts{User: user, Posts: []domain.Post{}}
		}

		// postID is nil on the padding row of a user with no posts
		if postID != nil {
			result.Posts = append(result.Posts, domain.Post{
				ID:        *postID,
				Title:     *title,
				Content:   *content,
				AuthorID:  *authorID,
				CreatedAt: *postCreatedAt,
				UpdatedAt: *postUpdatedAt,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get user with posts: %w", err)
	}

	return result, nil
}
