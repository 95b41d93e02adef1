package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"watch-match-backend/internal/kv"
	"watch-match-backend/internal/models"
	"watch-match-backend/internal/services"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, kv.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, kv.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError logs server-side failures and writes the mapped status
func respondServiceError(w http.ResponseWriter, err error, what string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("Failed to " + what)
		respondError(w, "Failed to "+what, status)
		return
	}
	respondError(w, err.Error(), status)
}

// decodeJSON decodes and validates a request body
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid field %s: failed %s", strings.ToLower(fe.Field()), fe.Tag())
		}
		return err
	}
	return nil
}

// parseItemRef parses an item type and numeric ID from path or body values
func parseItemRef(kind, id string) (models.ItemRef, error) {
	mk, ok := models.ParseMediaKind(kind)
	if !ok {
		return models.ItemRef{}, fmt.Errorf("unknown item type %q", kind)
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return models.ItemRef{}, fmt.Errorf("invalid item id %q", id)
	}
	return models.ItemRef{ID: n, Kind: mk}, nil
}

// itemBody is the catalog item payload shared by queue and rating requests
type itemBody struct {
	ID       int64  `json:"id" validate:"required,gt=0"`
	Type     string `json:"type" validate:"required"`
	Title    string `json:"title" validate:"max=256"`
	Poster   string `json:"poster" validate:"max=1024"`
	Overview string `json:"overview" validate:"max=4096"`
}

func (b itemBody) candidate() (models.CandidateItem, error) {
	kind, ok := models.ParseMediaKind(b.Type)
	if !ok {
		return models.CandidateItem{}, fmt.Errorf("unknown item type %q", b.Type)
	}
	return models.CandidateItem{
		ItemRef:  models.ItemRef{ID: b.ID, Kind: kind},
		Title:    b.Title,
		Poster:   b.Poster,
		Overview: b.Overview,
	}, nil
}
