package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"watch-match-backend/internal/middleware"
	"watch-match-backend/internal/services"
)

// GroupHandler handles group-related HTTP requests
type GroupHandler struct {
	groupService *services.GroupService
}

// NewGroupHandler creates a new group handler
func NewGroupHandler(groupService *services.GroupService) *GroupHandler {
	return &GroupHandler{
		groupService: groupService,
	}
}

// CreateGroupRequest is the body of POST /api/v1/groups
type CreateGroupRequest struct {
	Name        string   `json:"name" validate:"required,max=64"`
	MemberIDs   []string `json:"member_ids" validate:"max=50,dive,uuid"`
	MemberCodes []string `json:"member_codes" validate:"max=50,dive,len=6,alphanum"`
}

// CreateGroup handles POST /api/v1/groups
func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreateGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	group, err := h.groupService.CreateGroup(r.Context(), userID, req.Name, req.MemberIDs, req.MemberCodes)
	if err != nil {
		respondServiceError(w, err, "create group")
		return
	}

	respondJSON(w, http.StatusCreated, group)
}

// ListGroups handles GET /api/v1/groups
func (h *GroupHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	groups, err := h.groupService.ListGroups(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err, "list groups")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"groups": groups})
}

// GetGroup handles GET /api/v1/groups/{group_id}
func (h *GroupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := h.groupService.GetGroup(r.Context(), chi.URLParam(r, "group_id"))
	if err != nil {
		respondServiceError(w, err, "get group")
		return
	}

	respondJSON(w, http.StatusOK, group)
}

// RequireMember rejects requests from users outside the {group_id} group
func (h *GroupHandler) RequireMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.GetUserID(r.Context())
		if _, err := h.groupService.RequireMember(r.Context(), chi.URLParam(r, "group_id"), userID); err != nil {
			respondServiceError(w, err, "load group")
			return
		}
		next.ServeHTTP(w, r)
	})
}
