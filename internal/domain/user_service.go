package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scribeapp/scribe/internal/audit"
)

var ErrEmailTaken = errors.New("email already in use")

// UserService owns user lifecycle rules: ID generation, timestamps, the
// email pre-check, and audit recording after successful mutations. All store
// access goes through the repository.
type UserService struct {
	users    UserRepository
	recorder audit.Recorder
}

func NewUserService(users UserRepository, recorder audit.Recorder) *UserService {
	return &UserService{
		users:    users,
		recorder: recorder,
	}
}

func (s *UserService) List(ctx context.Context) ([]User, error) {
	return s.users.FindAll(ctx)
}

func (s *UserService) Get(ctx context.Context, id string) (*User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *UserService) GetWithPosts(ctx context.Context, id string) (*UserWithPosts, error) {
	return s.users.GetUserWithPosts(ctx, id)
}

func (s *UserService) Create(ctx context.Context, req CreateUserRequest) (*User, error) {
	// Friendly pre-check; the unique index on email is the real guarantee.
	existing, err := s.users.FindByEmail(ctx, req.Email)
	if err == nil && existing != nil {
		return nil, ErrEmailTaken
	}

	now := time.Now().UTC()
	user := &User{
		ID:        NewUserID(),
		Name:      req.Name,
		Email:     req.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.record(ctx, "user.created", user.ID, map[string]any{"name": user.Name, "email": user.Email}); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *UserService) Update(ctx context.Context, id string, patch UserPatch) (*User, error) {
	user, err := s.users.Update(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	if err := s.record(ctx, "user.updated", user.ID, map[string]any{"name": user.Name, "email": user.Email}); err != nil {
		return nil, err
	}

	return user, nil
}

// Delete removes the user and, via the store's cascade, every post they
// authored. Deleting an unknown id is not an error.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return s.record(ctx, "user.deleted", id, nil)
}

func (s *UserService) record(ctx context.Context, eventType, userID string, data map[string]any) error {
	err := s.recorder.Record(ctx, audit.NewEvent(eventType, "user", userID, data))
	if err != nil {
		// The mutation itself already landed; the caller learns the audit
		// trail did not keep up.
		return fmt.Errorf("user mutation committed but audit record failed: %w", err)
	}
	return nil
}
