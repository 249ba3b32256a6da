package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// DeliveryIDHeader carries an optional backend delivery id for a push.
const DeliveryIDHeader = "X-Delivery-ID"

type publishResponse struct {
	EventKey   string `json:"event_key"`
	DeliveryID string `json:"delivery_id"`
}

// FeedHandler accepts backend pushes and hands them to the feed.
type FeedHandler struct {
	publisher Publisher
	maxBody   int64
}

// NewFeedHandler creates a new feed ingest handler.
func NewFeedHandler(publisher Publisher, maxBody int64) *FeedHandler {
	return &FeedHandler{publisher: publisher, maxBody: maxBody}
}

// HandlePublish handles POST /api/feed/{eventKey}. The body is the raw
// snapshot document; "null" clears the event.
func (h *FeedHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		writeError(w, http.StatusNotFound, "not_found", NewKind("feed", ErrUnavailable))
		return
	}

	key := strings.TrimSpace(chi.URLParam(r, "eventKey"))
	if key == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind("feed: missing event key", ErrBadRequest))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", WrapKind("feed", ErrBadRequest, err))
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind("feed", ErrBadRequest, err))
		return
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "invalid_json", NewKind("feed: body is not JSON", ErrBadRequest))
		return
	}

	id := r.Header.Get(DeliveryIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	if err := h.publisher.PublishDelivery(key, id, body); err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind("feed", ErrUnavailable, err))
		return
	}
	writeJSON(w, http.StatusAccepted, publishResponse{EventKey: key, DeliveryID: id})
}
