package handlers

import (
	"net/http"

	"watch-match-backend/internal/middleware"
	"watch-match-backend/internal/services"
)

// RatingHandler handles personal ratings and the feed
type RatingHandler struct {
	ratingService *services.RatingService
}

// NewRatingHandler creates a new rating handler
func NewRatingHandler(ratingService *services.RatingService) *RatingHandler {
	return &RatingHandler{
		ratingService: ratingService,
	}
}

// RateRequest is the body of POST /api/v1/ratings
type RateRequest struct {
	itemBody
	Rating *int `json:"rating" validate:"required,min=0,max=10"`
}

// Rate handles POST /api/v1/ratings
func (h *RatingHandler) Rate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req RateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	item, err := req.candidate()
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	rating, err := h.ratingService.Rate(r.Context(), userID, item, *req.Rating)
	if err != nil {
		respondServiceError(w, err, "save rating")
		return
	}

	respondJSON(w, http.StatusOK, rating)
}

// ListRatings handles GET /api/v1/ratings
func (h *RatingHandler) ListRatings(w http.ResponseWriter, r *http.Request) {
	ratings, err := h.ratingService.ListRatings(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, err, "list ratings")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"ratings": ratings})
}

// Feed handles GET /api/v1/feed
func (h *RatingHandler) Feed(w http.ResponseWriter, r *http.Request) {
	feed, err := h.ratingService.Feed(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, err, "load feed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"feed": feed})
}
