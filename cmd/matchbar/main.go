package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/matchbar/internal/adapters/feed"
	"github.com/okian/matchbar/internal/adapters/http/api"
	"github.com/okian/matchbar/internal/adapters/repository"
	service "github.com/okian/matchbar/internal/app"
	"github.com/okian/matchbar/internal/config"
	"github.com/okian/matchbar/internal/domain/follow"
	"github.com/okian/matchbar/pkg/logger"
	"github.com/okian/matchbar/pkg/metrics"
)

// HTTP server timeout constants. WriteTimeout stays zero so websocket
// surfaces are not cut off; per-message write deadlines apply instead.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

// app bundles the wired process components.
type app struct {
	feed       *feed.Memory
	svc        *service.Service
	routes     *api.Server
	server     *http.Server
	cancelBase context.CancelFunc
}

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	a := build(cfg, log)
	if err := a.svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}

	go startSystemMetricsUpdater(ctx)

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(context.Background(), "shutting down server...")
	a.shutdown(log)
	log.Info(context.Background(), "server stopped")
}

// build wires config into the feed, service and HTTP server.
func build(cfg *config.Config, log logger.Logger) *app {
	var store follow.Store
	if cfg.FollowStorePath != "" {
		store = repository.NewFileStore(cfg.FollowStorePath)
	} else {
		store = repository.NewMemoryStore()
	}

	f := feed.NewMemory(feed.WithLogger(log.Named("feed")))
	svc := service.New(f,
		service.WithLogger(log.Named("service")),
		service.WithInboxSize(cfg.InboxSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithFollowStore(store),
		service.WithActiveEvents(cfg.ActiveEvents),
	)

	apiServer := api.NewServer(svc, f,
		api.WithSurfaceBuffer(cfg.SurfaceBuffer),
		api.WithWriteTimeout(time.Duration(cfg.WriteTimeoutMS)*time.Millisecond),
		api.WithLogger(log.Named("api")),
	)

	// Websocket handlers run on this context so shutdown can end them.
	base, cancelBase := context.WithCancel(context.Background())

	return &app{
		feed:   f,
		svc:    svc,
		routes: apiServer,
		server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           apiServer.Routes(),
			ReadTimeout:       readTimeout,
			IdleTimeout:       idleTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
			BaseContext:       func(net.Listener) context.Context { return base },
		},
		cancelBase: cancelBase,
	}
}

// shutdown drains HTTP, then the websocket surfaces, then the event loop,
// then the feed.
func (a *app) shutdown(log logger.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	// Shutdown does not track hijacked connections.
	a.cancelBase()
	if err := a.routes.WaitSurfaces(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "surfaces did not detach", logger.Error(err))
	}
	a.svc.Stop()
	if err := a.feed.Close(); err != nil {
		log.Warn(shutdownCtx, "feed close failed", logger.Error(err))
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
