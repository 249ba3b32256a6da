// Package api wires the HTTP surface of the matchbar service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/matchbar/internal/adapters/http/swagger"
	service "github.com/okian/matchbar/internal/app"
	"github.com/okian/matchbar/internal/domain/matchbar"
	"github.com/okian/matchbar/pkg/logger"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	SetActiveEvents(ctx context.Context, keys []string) (service.ChangeSet, error)
	ActiveEvents(ctx context.Context) ([]string, error)

	AttachSurface(ctx context.Context, s *matchbar.Surface) error
	DetachSurface(ctx context.Context, id string) (bool, error)

	Follow(ctx context.Context, team string) (bool, error)
	Unfollow(ctx context.Context, team string) (bool, error)
	Follows(ctx context.Context) ([]int, error)

	StatsProvider
}

// Publisher accepts backend pushes for the in-process feed.
type Publisher interface {
	PublishDelivery(eventKey, deliveryID string, payload []byte) error
}

// Server wires HTTP routes for the matchbar API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	activeHandler  *ActiveHandler
	feedHandler    *FeedHandler
	followsHandler *FollowsHandler
	surfaceHandler *SurfaceHandler
}

// Option configures a Server.
type Option func(*serverConfig)

type serverConfig struct {
	surfaceBuffer  int
	writeTimeout   time.Duration
	originPatterns []string
	maxBodyBytes   int64
	logger         logger.Logger
}

// WithSurfaceBuffer bounds queued ops per websocket before it is dropped.
func WithSurfaceBuffer(n int) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.surfaceBuffer = n
		}
	}
}

// WithWriteTimeout bounds a single websocket write.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *serverConfig) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

// WithOriginPatterns allows cross-origin websocket clients.
func WithOriginPatterns(patterns ...string) Option {
	return func(c *serverConfig) {
		c.originPatterns = append(c.originPatterns, patterns...)
	}
}

// WithMaxBodyBytes caps ingest and JSON request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

// WithLogger sets the API logger.
func WithLogger(l logger.Logger) Option {
	return func(c *serverConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, publisher Publisher, opts ...Option) *Server {
	cfg := serverConfig{
		surfaceBuffer: 512,
		writeTimeout:  3 * time.Second,
		maxBodyBytes:  4 << 20,
		logger:        logger.Discard(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps),
		activeHandler:  NewActiveHandler(deps, cfg.maxBodyBytes),
		feedHandler:    NewFeedHandler(publisher, cfg.maxBodyBytes),
		followsHandler: NewFollowsHandler(deps, cfg.maxBodyBytes),
		surfaceHandler: NewSurfaceHandler(deps, cfg.surfaceBuffer, cfg.writeTimeout, cfg.originPatterns, cfg.logger.Named("surfaces")),
	}
}

// Routes returns the router with every endpoint attached.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/api", func(r chi.Router) {
		r.Get("/active", MetricsMiddleware(s.activeHandler.HandleGet, "active"))
		r.Put("/active", MetricsMiddleware(s.activeHandler.HandlePut, "active"))
		r.Post("/feed/{eventKey}", MetricsMiddleware(s.feedHandler.HandlePublish, "feed"))
		r.Get("/follows", MetricsMiddleware(s.followsHandler.HandleList, "follows"))
		r.Post("/follows", MetricsMiddleware(s.followsHandler.HandleAdd, "follows"))
		r.Delete("/follows/{team}", MetricsMiddleware(s.followsHandler.HandleRemove, "follows"))
	})

	r.Get("/ws/{eventKey}", MetricsMiddleware(s.surfaceHandler.HandleSurface, "surface"))

	swagger.Register(r)
	return r
}

// WaitSurfaces blocks until every websocket surface has detached. Hijacked
// connections outlive http.Server.Shutdown, so callers cancel the server's
// base context first.
func (s *Server) WaitSurfaces(ctx context.Context) error {
	return s.surfaceHandler.Wait(ctx)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
