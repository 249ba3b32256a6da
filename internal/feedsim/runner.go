package feedsim

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/matchbar/pkg/logger"
)

// Runner plays schedules against a service.
type Runner struct {
	cfg    Config
	client *Client
	log    logger.Logger

	sent, accepted, failed, duplicates atomic.Int64
}

// NewRunner validates cfg and fills defaults.
func NewRunner(cfg Config, log logger.Logger) (*Runner, error) {
	if len(cfg.EventKeys) == 0 {
		return nil, fmt.Errorf("%w: no event keys", ErrInvalidConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Teams == 0 {
		cfg.Teams = DefaultTeams
	}
	if cfg.Matches == 0 {
		cfg.Matches = DefaultMatches
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Runner{cfg: cfg, client: NewClient(cfg.BaseURL, cfg.Timeout, log), log: log}, nil
}

// Run executes the complete simulation and returns its statistics.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	stats := Stats{StartTime: time.Now()}

	r.log.Info(ctx, "starting feed simulation",
		logger.String("baseURL", r.cfg.BaseURL),
		logger.Strings("events", r.cfg.EventKeys),
		logger.Int("matches", r.cfg.Matches),
		logger.Duration("interval", r.cfg.Interval))

	schedules := make([]*Schedule, 0, len(r.cfg.EventKeys))
	for _, key := range r.cfg.EventKeys {
		s, err := NewSchedule(key, r.cfg.Teams, r.cfg.Matches, r.cfg.Seed)
		if err != nil {
			return stats, err
		}
		schedules = append(schedules, s)
	}

	if err := r.client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}
	for _, team := range r.cfg.Follow {
		if err := r.client.Follow(ctx, team); err != nil {
			return stats, fmt.Errorf("follow %s: %w", team, err)
		}
	}
	if err := r.client.SetActive(ctx, r.cfg.EventKeys); err != nil {
		return stats, fmt.Errorf("activate events: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range schedules {
		g.Go(func() error { return r.play(gctx, s) })
	}
	err := g.Wait()

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	stats.PushesSent = r.sent.Load()
	stats.PushesAccepted = r.accepted.Load()
	stats.PushesFailed = r.failed.Load()
	stats.Duplicates = r.duplicates.Load()
	if err != nil {
		return stats, err
	}

	if err := r.verify(ctx); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	r.log.Info(ctx, "feed simulation completed",
		logger.Any("sent", stats.PushesSent),
		logger.Any("accepted", stats.PushesAccepted),
		logger.Any("failed", stats.PushesFailed),
		logger.Duration("duration", stats.Duration))
	return stats, nil
}

// play pushes the empty schedule, then one snapshot per completed match.
func (r *Runner) play(ctx context.Context, s *Schedule) error {
	if err := r.push(ctx, s); err != nil {
		return err
	}
	for s.Play() {
		if r.cfg.Interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.cfg.Interval):
			}
		}
		if err := r.push(ctx, s); err != nil {
			return err
		}
		if r.cfg.Verbose {
			r.log.Debug(ctx, "match played", logger.String("event_key", s.EventKey()), logger.Int("played", s.Played()))
		}
	}
	return nil
}

func (r *Runner) push(ctx context.Context, s *Schedule) error {
	payload, err := s.Snapshot()
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.EventKey(), err)
	}
	id := uuid.NewString()
	attempts := 1
	if r.cfg.Duplicates {
		attempts = 2
	}
	for i := 0; i < attempts; i++ {
		r.sent.Add(1)
		if err := r.client.Push(ctx, s.EventKey(), id, payload); err != nil {
			r.failed.Add(1)
			return err
		}
		r.accepted.Add(1)
		if i > 0 {
			r.duplicates.Add(1)
		}
	}
	return nil
}

// verify checks every simulated event is active and has a cached snapshot.
// Deliveries are asynchronous so it polls a few times before failing.
func (r *Runner) verify(ctx context.Context) error {
	var err error
	for attempt := 0; attempt < verifyAttempts; attempt++ {
		if err = r.checkStats(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(verifyBackoff):
		}
	}
	return err
}

func (r *Runner) checkStats(ctx context.Context) error {
	st, err := r.client.Stats(ctx)
	if err != nil {
		return err
	}
	active := make(map[string]bool, len(st.ActiveEvents))
	for _, k := range st.ActiveEvents {
		active[k] = true
	}
	for _, k := range r.cfg.EventKeys {
		if !active[k] {
			return fmt.Errorf("event %s not active", k)
		}
	}
	if st.CachedSnapshots < len(r.cfg.EventKeys) {
		return fmt.Errorf("expected %d cached snapshots, got %d", len(r.cfg.EventKeys), st.CachedSnapshots)
	}
	return nil
}
