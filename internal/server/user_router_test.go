package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/scribeapp/scribe/internal/audit"
	"github.com/scribeapp/scribe/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeUserRepo struct {
	users     []domain.User
	byEmail   *domain.User
	created   *domain.User
	createErr error
	updateOut *domain.User
	deletedID string
	withPosts *domain.UserWithPosts
}

func (f *fakeUserRepo) FindAll(ctx context.Context) ([]domain.User, error) {
	return f.users, nil
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	for i := range f.users {
		if f.users[i].ID == id {
			return &f.users[i], nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return f.byEmail, nil
}

func (f *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = user
	return nil
}

func (f *fakeUserRepo) Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	return f.updateOut, nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, id string) error {
	f.deletedID = id
	return nil
}

func (f *fakeUserRepo) GetUserWithPosts(ctx context.Context, id string) (*domain.UserWithPosts, error) {
	return f.withPosts, nil
}

type noopRecorder struct {
	err error
}

func (n *noopRecorder) Record(ctx context.Context, event audit.Event) error { return n.err }
func (n *noopRecorder) Start(ctx context.Context)                           {}
func (n *noopRecorder) Stop()                                               {}

func newTestHandler(userRepo domain.UserRepository, postRepo domain.PostRepository, recorder audit.Recorder) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	validate := validator.New()

	rpc := chi.NewRouter()
	NewUserRouter(domain.NewUserService(userRepo, recorder), validate, logger).Register(rpc)
	NewPostRouter(domain.NewPostService(postRepo, recorder), validate, logger).Register(rpc)

	root := chi.NewRouter()
	root.Mount("/rpc", rpc)
	return root
}

func doJSON(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// --- tests ---

func TestUsersList_Empty(t *testing.T) {
	handler := newTestHandler(&fakeUserRepo{}, &fakePostRepo{}, &noopRecorder{})

	rr := doJSON(t, handler, http.MethodGet, "/rpc/users.list", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String(), "empty table serializes as [], not null")
}

func TestUsersCreate(t *testing.T) {
	repo := &fakeUserRepo{}
	handler := newTestHandler(repo, &fakePostRepo{}, &noopRecorder{})

	rr := doJSON(t, handler, http.MethodPost, "/rpc/users.create",
		`{"name": "Ada", "email": "ada@example.com"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	var user domain.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &user))
	assert.True(t, strings.HasPrefix(user.ID, "user_"))
	assert.Equal(t, "Ada", user.Name)
	assert.Equal(t, user.CreatedAt, user.UpdatedAt)
}

func TestUsersCreate_InvalidEmail(t *testing.T) {
	handler := newTestHandler(&fakeUserRepo{}, &fakePostRepo{}, &noopRecorder{})

	rr := doJSON(t, handler, http.MethodPost, "/rpc/users.create",
		`{"name": "Ada", "email": "not-an-email"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Fields, 1)
	assert.Equal(t, "Email", resp.Fields[0].Field)
	assert.Contains(t, resp.Fields[0].Reason, "email")
}

func TestUsersCreate_MissingFields(t *testing.T) {
	handler := newTestHandler(&fakeUserRepo{}, &fakePostRepo{}, &noopRecorder{})

	rr := doJSON(t, handler, http.MethodPost, "/rpc/users.create", `{}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp.Fields, 2)
}

func TestUsersCreate_DuplicateEmail(t *testing.T) {
	repo := &fakeUserRepo{byEmail: &domain.User{ID: "user_existing0000", Email: "ada@example.com"}}
	handler := newTestHandler(repo, &fakePostRepo{}, &noopRecorder{})

	rr := doJSON(t, handler, http.MethodPost, "/rpc/users.create",
		`{"name": "Ada", "email": "ada@example.com"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestUsersCreate_RecorderFull(t *testing.T) {
	handler := newTestHandler(&fakeUserRepo{}, &fakePostRepo{}, &noopRecorder{err: audit.ErrRecorderFull})

	rr := doJSON(t, handler, http.MethodPost, "/rpc/users.create",
		`{"name": "Ada", "email": "ada@example.com"}`)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestUsersGetById_Absent(t *testing.T) {
	handler := newTestHandler(&fakeUserRepo{}, &fakePostRepo{}, &noopRecorder{})

	rr := doJSON(t, handler, http.MethodGet, "/rpc/users.getById?id=user_nobody000000", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "null", strings.TrimSpace(rr.Body.String()))
}

func TestUsersGetById_MissingParam(t *testing.T) {
	handler := newTestHandler(&fakeUserRepo{}, &fakePostRepo{}, &noopRecorder{})

	rr := doJSON(t, handler, http.MethodGet, "/rpc/users.getById", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUsersGetUserWithPosts(t *testing.T) {
	repo := &fakeUserRepo{withPosts: &domain.UserWithPosts{
		User:  domain.User{ID: "user_a1111111111a", Name: "Ada", Email: "ada@example.com"},
		Posts: []domain.Post{{ID: "post_11111111111a", Title: "Hi", AuthorID: "user_a1111111111a"}},
	}}
	handler := newTestHandler(repo, &fakePostRepo{}, &noopRecorder{})

	rr := doJSON(t, handler, http.MethodGet, "/rpc/users.getUserWithPosts?id=user_a1111111111a", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var result domain.UserWithPosts
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, "Ada", result.Name)
	require.Len(t, result.Posts, 1)
	assert.Equal(t, "Hi", result.Posts[0].Title)
}

func TestUsersUpdate(t *testing.T) {
	updated := &domain.User{ID: "user_a1111111111a", Name: "Ada L.", Email: "ada@example.com"}
	handler := newTestHandler(&fakeUserRepo{updateOut: updated}, &fakePostRepo{}, &noopRecorder{})

	rr := doJSON(t, handler, http.MethodPost, "/rpc/users.update",
		`{"id": "user_a1111111111a", "data": {"name": "Ada L."}}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var user domain.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &user))
	assert.Equal(t, "Ada L.", user.Name)
}

func TestUsersUpdate_Absent(t *testing.T) {
	handler := newTestHandler(&fakeUserRepo{updateOut: nil}, &fakePostRepo{}, &noopRecorder{})

	rr := doJSON(t, handler, http.MethodPost, "/rpc/users.update",
		`{"id": "user_nobody000000", "data": {}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "null", strings.TrimSpace(rr.Body.String()))
}

func TestUsersUpdate_MissingID(t *testing.T) {
	handler := newTestHandler(&fakeUserRepo{}, &fakePostRepo{}, &noopRecorder{})

	rr := doJSON(t, handler, http.MethodPost, "/rpc/users.update", `{"data": {"name": "Ada"}}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUsersUpdate_InvalidPatchEmail(t *testing.T) {
	handler := newTestHandler(&fakeUserRepo{}, &fakePostRepo{}, &noopRecorder{})

	rr := doJSON(t, handler, http.MethodPost, "/rpc/users.update",
		`{"id": "user_a1111111111a", "data": {"email": "nope"}}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUsersDelete(t *testing.T) {
	repo := &fakeUserRepo{}
	handler := newTestHandler(repo, &fakePostRepo{}, &noopRecorder{})

	rr := doJSON(t, handler, http.MethodPost, "/rpc/users.delete", `{"id": "user_a1111111111a"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success": true}`, rr.Body.String())
	assert.Equal(t, "user_a1111111111a", repo.deletedID)
}

func TestUsersCreate_MalformedBody(t *testing.T) {
	handler := newTestHandler(&fakeUserRepo{}, &fakePostRepo{}, &noopRecorder{})

	rr := doJSON(t, handler, http.MethodPost, "/rpc/users.create", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
