package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/scribeapp/scribe/internal/domain"
)

// PostRouter exposes the posts.* procedures, same conventions as UserRouter.
type PostRouter struct {
	service  *domain.PostService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewPostRouter(service *domain.PostService, validate *validator.Validate, logger *slog.Logger) *PostRouter {
	return &PostRouter{
		service:  service,
		validate: validate,
		logger:   logger,
	}
}

func (pr *PostRouter) Register(r chi.Router) {
	r.Get("/posts.list", pr.list)
	r.Get("/posts.getById", pr.getByID)
	r.Get("/posts.getByAuthor", pr.getByAuthor)
	r.Get("/posts.getPostsWithAuthors", pr.listWithAuthors)
	r.Get("/posts.getCount", pr.count)
	r.Post("/posts.create", pr.create)
	r.Post("/posts.update", pr.update)
	r.Post("/posts.delete", pr.delete)
}

type countResponse struct {
	Count int64 `json:"count"`
}

func (pr *PostRouter) list(w http.ResponseWriter, r *http.Request) {
	posts, err := pr.service.List(r.Context())
	if err != nil {
		pr.logger.Error("failed to list posts", "error", err)
		writeError(w, statusForError(err), err.Error())
		return
	}
	if posts == nil {
		posts = []domain.Post{}
	}

	writeJSON(w, http.StatusOK, posts)
}

func (pr *PostRouter) getByID(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	post, err := pr.service.Get(r.Context(), id)
	if err != nil {
		pr.logger.Error("failed to get post", "error", err, "id", id)
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, post)
}

func (pr *PostRouter) getByAuthor(w http.ResponseWriter, r *http.Request) {
	authorID := r.URL.Query().Get("authorId")
	if authorID == "" {
		writeError(w, http.StatusBadRequest, "authorId is required")
		return
	}

	posts, err := pr.service.GetByAuthor(r.Context(), authorID)
	if err != nil {
		pr.logger.Error("failed to list posts by author", "error", err, "author_id", authorID)
		writeError(w, statusForError(err), err.Error())
		return
	}
	if posts == nil {
		posts = []domain.Post{}
	}

	writeJSON(w, http.StatusOK, posts)
}

func (pr *PostRouter) listWithAuthors(w http.ResponseWriter, r *http.Request) {
	posts, err := pr.service.ListWithAuthors(r.Context())
	if err != nil {
		pr.logger.Error("failed to list posts with authors", "error", err)
		writeError(w, statusForError(err), err.Error())
		return
	}
	if posts == nil {
		posts = []domain.PostWithAuthor{}
	}

	writeJSON(w, http.StatusOK, posts)
}

func (pr *PostRouter) count(w http.ResponseWriter, r *http.Request) {
	count, err := pr.service.Count(r.Context())
	if err != nil {
		pr.logger.Error("failed to count posts", "error", err)
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, countResponse{Count: count})
}

func (pr *PostRouter) create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := pr.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	post, err := pr.service.Create(r.Context(), req)
	if err != nil {
		// a foreign-key violation here means the author does not exist
		pr.logger.Error("failed to create post", "error", err, "author_id", req.AuthorID)
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, post)
}

type updatePostInput struct {
	ID   string           `json:"id" validate:"required"`
	Data domain.PostPatch `json:"data"`
}

func (pr *PostRouter) update(w http.ResponseWriter, r *http.Request) {
	var input updatePostInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := pr.validate.Struct(input); err != nil {
		writeValidationError(w, err)
		return
	}

	post, err := pr.service.Update(r.Context(), input.ID, input.Data)
	if err != nil {
		pr.logger.Error("failed to update post", "error", err, "id", input.ID)
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, post)
}

type deletePostInput struct {
	ID string `json:"id" validate:"required"`
}

func (pr *PostRouter) delete(w http.ResponseWriter, r *http.Request) {
	var input deletePostInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := pr.validate.Struct(input); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := pr.service.Delete(r.Context(), input.ID); err != nil {
		pr.logger.Error("failed to delete post", "error", err, "id", input.ID)
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
