package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/okian/matchbar/internal/domain/matchbar"
	"github.com/okian/matchbar/pkg/logger"
	"github.com/okian/matchbar/pkg/metrics"
)

const detachTimeout = 2 * time.Second

// socketRenderer queues ops for one websocket. Render runs on the event
// loop so it never blocks; a full buffer fails the surface.
type socketRenderer struct {
	out      chan matchbar.Op
	done     chan struct{}
	overflow chan struct{}

	doneOnce     sync.Once
	overflowOnce sync.Once
}

func newSocketRenderer(buffer int) *socketRenderer {
	return &socketRenderer{
		out:      make(chan matchbar.Op, buffer),
		done:     make(chan struct{}),
		overflow: make(chan struct{}),
	}
}

func (r *socketRenderer) Render(op matchbar.Op) error {
	select {
	case <-r.done:
		return ErrClosed
	default:
	}
	select {
	case r.out <- op:
		return nil
	default:
		r.overflowOnce.Do(func() { close(r.overflow) })
		return ErrSlowClient
	}
}

func (r *socketRenderer) close() {
	r.doneOnce.Do(func() { close(r.done) })
}

// SurfaceHandler streams matchbar edit ops over a websocket.
type SurfaceHandler struct {
	deps           Dependencies
	buffer         int
	writeTimeout   time.Duration
	originPatterns []string
	log            logger.Logger

	active sync.WaitGroup
}

// NewSurfaceHandler creates a websocket surface handler.
func NewSurfaceHandler(deps Dependencies, buffer int, writeTimeout time.Duration, originPatterns []string, log logger.Logger) *SurfaceHandler {
	return &SurfaceHandler{
		deps:           deps,
		buffer:         buffer,
		writeTimeout:   writeTimeout,
		originPatterns: originPatterns,
		log:            log,
	}
}

// HandleSurface handles GET /ws/{eventKey}. Each connection is one surface;
// the client receives one JSON op per text message. Client messages are
// ignored.
func (h *SurfaceHandler) HandleSurface(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(chi.URLParam(r, "eventKey"))
	if key == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind("surface: missing event key", ErrBadRequest))
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.log.Warn(r.Context(), "websocket accept failed", logger.Error(err))
		return
	}
	h.active.Add(1)
	defer h.active.Done()
	defer func() { _ = conn.CloseNow() }()

	ctx := conn.CloseRead(r.Context())

	rend := newSocketRenderer(h.buffer)
	surface := matchbar.NewSurface(key, rend)
	if err := h.deps.AttachSurface(ctx, surface); err != nil {
		h.log.Warn(ctx, "attach surface failed", logger.String("event_key", key), logger.Error(err))
		_ = conn.Close(websocket.StatusTryAgainLater, "service unavailable")
		return
	}
	h.log.Debug(ctx, "surface attached", logger.String("event_key", key), logger.String("surface_id", surface.ID()))

	defer func() {
		rend.close()
		dctx, cancel := context.WithTimeout(context.Background(), detachTimeout)
		defer cancel()
		if _, err := h.deps.DetachSurface(dctx, surface.ID()); err != nil {
			h.log.Warn(dctx, "detach surface failed", logger.String("surface_id", surface.ID()), logger.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			if r.Context().Err() != nil {
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			}
			return
		case <-rend.overflow:
			metrics.RecordErrorByComponent("surface", "slow_client")
			_ = conn.Close(websocket.StatusPolicyViolation, "client too slow")
			return
		case op := <-rend.out:
			if err := h.write(ctx, conn, op); err != nil {
				metrics.RecordErrorByComponent("surface", "write_failed")
				h.log.Debug(ctx, "surface write failed", logger.String("surface_id", surface.ID()), logger.Error(err))
				return
			}
		}
	}
}

// Wait blocks until every open surface has detached or ctx is done.
func (h *SurfaceHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for surfaces: %w", ctx.Err())
	}
}

func (h *SurfaceHandler) write(ctx context.Context, conn *websocket.Conn, op matchbar.Op) error {
	payload, err := json.Marshal(op)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}
