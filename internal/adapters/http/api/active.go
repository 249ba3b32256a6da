package api

import (
	"net/http"

	service "github.com/okian/matchbar/internal/app"
)

type activeRequest struct {
	Events []string `json:"events"`
}

type activeResponse struct {
	Events    []string `json:"events"`
	Opened    []string `json:"opened,omitempty"`
	Closed    []string `json:"closed,omitempty"`
	Refreshed []string `json:"refreshed,omitempty"`
	Failed    []string `json:"failed,omitempty"`
}

// ActiveHandler reads and replaces the watched event set.
type ActiveHandler struct {
	deps    Dependencies
	maxBody int64
}

// NewActiveHandler creates a new active events handler.
func NewActiveHandler(deps Dependencies, maxBody int64) *ActiveHandler {
	return &ActiveHandler{deps: deps, maxBody: maxBody}
}

// HandleGet handles GET /api/active.
func (h *ActiveHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	keys, err := h.deps.ActiveEvents(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind("active", ErrUnavailable, err))
		return
	}
	writeJSON(w, http.StatusOK, activeResponse{Events: nonNil(keys)})
}

// HandlePut handles PUT /api/active with body {"events": [...]}.
func (h *ActiveHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind("active", ErrBadRequest, err))
		return
	}

	changes, err := h.deps.SetActiveEvents(r.Context(), req.Events)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind("active", ErrUnavailable, err))
		return
	}
	keys, err := h.deps.ActiveEvents(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind("active", ErrUnavailable, err))
		return
	}
	writeJSON(w, http.StatusOK, toActiveResponse(keys, changes))
}

func toActiveResponse(keys []string, c service.ChangeSet) activeResponse {
	return activeResponse{
		Events:    nonNil(keys),
		Opened:    c.Opened,
		Closed:    c.Closed,
		Refreshed: c.Refreshed,
		Failed:    c.Failed,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
