package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/scribeapp/scribe/internal/domain"
)

// UserRouter exposes the users.* procedures. Queries are GETs with query
// params, mutations are POSTs with JSON bodies; every handler is
// validate-then-delegate with no logic of its own.
type UserRouter struct {
	service  *domain.UserService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewUserRouter(service *domain.UserService, validate *validator.Validate, logger *slog.Logger) *UserRouter {
	return &UserRouter{
		service:  service,
		validate: validate,
		logger:   logger,
	}
}

func (ur *UserRouter) Register(r chi.Router) {
	r.Get("/users.list", ur.list)
	r.Get("/users.getById", ur.getByID)
	r.Get("/users.getUserWithPosts", ur.getUserWithPosts)
	r.Post("/users.create", ur.create)
	r.Post("/users.update", ur.update)
	r.Post("/users.delete", ur.delete)
}

type successResponse struct {
	Success bool `json:"success"`
}

func (ur *UserRouter) list(w http.ResponseWriter, r *http.Request) {
	users, err := ur.service.List(r.Context())
	if err != nil {
		ur.logger.Error("failed to list users", "error", err)
		writeError(w, statusForError(err), err.Error())
		return
	}
	if users == nil {
		users = []domain.User{}
	}

	writeJSON(w, http.StatusOK, users)
}

func (ur *UserRouter) getByID(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	user, err := ur.service.Get(r.Context(), id)
	if err != nil {
		ur.logger.Error("failed to get user", "error", err, "id", id)
		writeError(w, statusForError(err), err.Error())
		return
	}

	// absent is not an error for reads: a miss serializes as null
	writeJSON(w, http.StatusOK, user)
}

func (ur *UserRouter) getUserWithPosts(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	user, err := ur.service.GetWithPosts(r.Context(), id)
	if err != nil {
		ur.logger.Error("failed to get user with posts", "error", err, "id", id)
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (ur *UserRouter) create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := ur.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	user, err := ur.service.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			ur.logger.Warn("duplicate email on user create", "email", req.Email)
		} else {
			ur.logger.Error("failed to create user", "error", err, "email", req.Email)
		}
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

type updateUserInput struct {
	ID   string           `json:"id" validate:"required"`
	Data domain.UserPatch `json:"data"`
}

func (ur *UserRouter) update(w http.ResponseWriter, r *http.Request) {
	var input updateUserInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := ur.validate.Struct(input); err != nil {
		writeValidationError(w, err)
		return
	}

	user, err := ur.service.Update(r.Context(), input.ID, input.Data)
	if err != nil {
		ur.logger.Error("failed to update user", "error", err, "id", input.ID)
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type deleteUserInput struct {
	ID string `json:"id" validate:"required"`
}

func (ur *UserRouter) delete(w http.ResponseWriter, r *http.Request) {
	var input deleteUserInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := ur.validate.Struct(input); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := ur.service.Delete(r.Context(), input.ID); err != nil {
		ur.logger.Error("failed to delete user", "error", err, "id", input.ID)
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
