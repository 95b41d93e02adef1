package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"watch-match-backend/internal/middleware"
	"watch-match-backend/internal/models"
	"watch-match-backend/internal/services"
)

// QueueHandler handles a group's candidate queue
type QueueHandler struct {
	queueService *services.QueueService
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(queueService *services.QueueService) *QueueHandler {
	return &QueueHandler{
		queueService: queueService,
	}
}

// QueueResponse is returned by both queue endpoints
type QueueResponse struct {
	Queue         []models.CandidateItem `json:"queue"`
	AlreadyExists bool                   `json:"already_exists,omitempty"`
}

// GetQueue handles GET /api/v1/groups/{group_id}/queue
func (h *QueueHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	items, err := h.queueService.GetQueue(r.Context(), chi.URLParam(r, "group_id"))
	if err != nil {
		respondServiceError(w, err, "get queue")
		return
	}

	respondJSON(w, http.StatusOK, QueueResponse{Queue: items})
}

// AddToQueue handles POST /api/v1/groups/{group_id}/queue
func (h *QueueHandler) AddToQueue(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req itemBody
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	item, err := req.candidate()
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	items, exists, err := h.queueService.AddToQueue(r.Context(), chi.URLParam(r, "group_id"), userID, item)
	if err != nil {
		respondServiceError(w, err, "add to queue")
		return
	}

	status := http.StatusCreated
	if exists {
		status = http.StatusOK
	}
	respondJSON(w, status, QueueResponse{Queue: items, AlreadyExists: exists})
}
