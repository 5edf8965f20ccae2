package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/scribeapp/scribe/internal/audit"
	"github.com/scribeapp/scribe/internal/domain"
)

// Postgres error codes the transport boundary maps to client-visible statuses.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type fieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type errorResponse struct {
	Error  string       `json:"error"`
	Fields []fieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeValidationError enumerates the offending fields so the caller can fix
// its input without guessing.
func writeValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fields := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fieldError{
			Field:  fe.Field(),
			Reason: "failed validation rule: " + fe.Tag(),
		})
	}

	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:  "invalid input",
		Fields: fields,
	})
}

// statusForError maps service and store failures onto HTTP statuses:
// duplicate email and dangling author_id are conflicts, a saturated audit
// recorder asks the caller to back off, the rest is a plain 500.
func statusForError(err error) int {
	if errors.Is(err, domain.ErrEmailTaken) {
		return http.StatusConflict
	}
	if errors.Is(err, audit.ErrRecorderFull) {
		return http.StatusTooManyRequests
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgForeignKeyViolation:
			return http.StatusConflict
		}
	}

	return http.StatusInternalServerError
}
