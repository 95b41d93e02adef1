package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"watch-match-backend/internal/middleware"
	"watch-match-backend/internal/models"
	"watch-match-backend/internal/services"
)

// SwipeHandler handles reactions and matches
type SwipeHandler struct {
	matchService *services.MatchService
}

// NewSwipeHandler creates a new swipe handler
func NewSwipeHandler(matchService *services.MatchService) *SwipeHandler {
	return &SwipeHandler{
		matchService: matchService,
	}
}

// SwipeRequest is the body of POST /api/v1/groups/{group_id}/swipe.
// Exactly one of Reaction, RatingType or Direction is expected; they are checked in that order.
type SwipeRequest struct {
	ItemID        int64  `json:"item_id" validate:"required,gt=0"`
	ItemType      string `json:"item_type" validate:"required"`
	Reaction      string `json:"reaction"`
	RatingType    string `json:"rating_type"`
	Direction     string `json:"direction"`
	WatchedStatus string `json:"watched_status"`
	ServiceID     *int   `json:"service_id" validate:"omitempty,gt=0"`
}

func (req SwipeRequest) reaction() (models.Reaction, bool) {
	for _, tag := range []string{req.Reaction, req.RatingType, req.Direction} {
		if tag != "" {
			return models.ParseReaction(tag)
		}
	}
	return "", false
}

// Swipe handles POST /api/v1/groups/{group_id}/swipe
func (h *SwipeHandler) Swipe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req SwipeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	reaction, ok := req.reaction()
	if !ok {
		respondError(w, services.ErrInvalidReaction.Error(), http.StatusBadRequest)
		return
	}
	watched, ok := models.ParseWatchedStatus(req.WatchedStatus)
	if !ok {
		respondError(w, "invalid watched_status", http.StatusBadRequest)
		return
	}
	kind, ok := models.ParseMediaKind(req.ItemType)
	if !ok {
		respondError(w, "invalid item_type", http.StatusBadRequest)
		return
	}

	result, err := h.matchService.RecordReaction(r.Context(), services.ReactionInput{
		GroupID:       chi.URLParam(r, "group_id"),
		Item:          models.ItemRef{ID: req.ItemID, Kind: kind},
		MemberID:      userID,
		Reaction:      reaction,
		WatchedStatus: watched,
		ServiceID:     req.ServiceID,
	})
	if err != nil {
		respondServiceError(w, err, "record reaction")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetSwipes handles GET /api/v1/groups/{group_id}/swipes/{kind}/{item_id}
func (h *SwipeHandler) GetSwipes(w http.ResponseWriter, r *http.Request) {
	item, err := parseItemRef(chi.URLParam(r, "kind"), chi.URLParam(r, "item_id"))
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	state, err := h.matchService.GetSwipeState(r.Context(), chi.URLParam(r, "group_id"), item)
	if err != nil {
		respondServiceError(w, err, "get swipes")
		return
	}

	respondJSON(w, http.StatusOK, state)
}

// GetMatches handles GET /api/v1/groups/{group_id}/matches
func (h *SwipeHandler) GetMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := h.matchService.GetMatches(r.Context(), chi.URLParam(r, "group_id"))
	if err != nil {
		respondServiceError(w, err, "get matches")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"matches": matches})
}
