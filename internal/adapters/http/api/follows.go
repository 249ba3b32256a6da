package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/matchbar/internal/domain/follow"
)

type followRequest struct {
	Team string `json:"team"`
}

type followsResponse struct {
	Followed []int `json:"followed"`
}

type followChangeResponse struct {
	Team     string `json:"team"`
	Changed  bool   `json:"changed"`
	Followed []int  `json:"followed"`
}

// FollowsHandler exposes the follow set.
type FollowsHandler struct {
	deps    Dependencies
	maxBody int64
}

// NewFollowsHandler creates a new follows handler.
func NewFollowsHandler(deps Dependencies, maxBody int64) *FollowsHandler {
	return &FollowsHandler{deps: deps, maxBody: maxBody}
}

// HandleList handles GET /api/follows.
func (h *FollowsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	teams, err := h.deps.Follows(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind("follows", ErrUnavailable, err))
		return
	}
	writeJSON(w, http.StatusOK, followsResponse{Followed: nonNil(teams)})
}

// HandleAdd handles POST /api/follows with body {"team": "254"}.
func (h *FollowsHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req followRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind("follows", ErrBadRequest, err))
		return
	}
	changed, err := h.deps.Follow(r.Context(), req.Team)
	h.respond(w, r, req.Team, changed, err)
}

// HandleRemove handles DELETE /api/follows/{team}.
func (h *FollowsHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	team := chi.URLParam(r, "team")
	changed, err := h.deps.Unfollow(r.Context(), team)
	h.respond(w, r, team, changed, err)
}

func (h *FollowsHandler) respond(w http.ResponseWriter, r *http.Request, team string, changed bool, err error) {
	switch {
	case errors.Is(err, follow.ErrInvalidTeam):
		writeError(w, http.StatusBadRequest, "invalid_team", err)
		return
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind("follows", ErrUnavailable, err))
		return
	}

	teams, err := h.deps.Follows(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind("follows", ErrUnavailable, err))
		return
	}
	writeJSON(w, http.StatusOK, followChangeResponse{Team: team, Changed: changed, Followed: nonNil(teams)})
}
