// Package service runs the matchbar event loop.
//
// Every external trigger, whether a feed push, an active-set change, a
// surface attach or a follow edit, becomes a message on a bounded inbox. A
// single loop goroutine handles messages one at a time, so the subscription
// manager, the snapshot cache and the follow set are only ever touched from
// that goroutine.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/okian/matchbar/internal/adapters/feed"
	"github.com/okian/matchbar/internal/adapters/mq/queue"
	"github.com/okian/matchbar/internal/adapters/mq/worker"
	"github.com/okian/matchbar/internal/domain/dedupe"
	"github.com/okian/matchbar/internal/domain/follow"
	"github.com/okian/matchbar/internal/domain/matchbar"
	"github.com/okian/matchbar/pkg/logger"
	"github.com/okian/matchbar/pkg/metrics"
)

// Stats is a point-in-time view of the service.
type Stats struct {
	Started         bool     `json:"started"`
	ActiveEvents    []string `json:"active_events"`
	CachedSnapshots int      `json:"cached_snapshots"`
	Surfaces        int      `json:"surfaces"`
	FollowedTeams   int      `json:"followed_teams"`
	InboxLength     int      `json:"inbox_length"`
	InboxCapacity   int      `json:"inbox_capacity"`
	DedupeEntries   int64    `json:"dedupe_entries"`
}

// Service owns the event loop and everything it serialises.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	feed  feed.Feed
	store follow.Store

	// Loop-owned state
	follows *follow.Set
	manager *SubscriptionManager
	deduper dedupe.Deduper

	inbox *queue.InMemoryQueue[message]
	loop  *worker.Loop[message]

	// Configuration
	inboxSize       int
	dedupeSize      int
	initialActive   []string
	shutdownTimeout time.Duration

	// State
	started bool
	runCtx  context.Context
	cancel  context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithInboxSize bounds the loop inbox.
func WithInboxSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.inboxSize = size
		}
	}
}

// WithDedupeSize sets how many delivery ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithFollowStore persists the follow set.
func WithFollowStore(store follow.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithActiveEvents seeds the active set at Start.
func WithActiveEvents(keys []string) Option {
	return func(s *Service) {
		s.initialActive = append([]string(nil), keys...)
	}
}

// WithShutdownTimeout bounds Stop.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service reading snapshots from f.
func New(f feed.Feed, opts ...Option) *Service {
	s := &Service{
		feed:            f,
		inboxSize:       4096,
		dedupeSize:      10_000,
		shutdownTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start seeds the follow set, starts the loop and applies the initial
// active set. Calling Start on a started service is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting matchbar service...")

	s.follows = follow.New(
		follow.WithStore(s.store),
		follow.WithLogger(s.logger.Named("follows")),
	)
	if err := s.follows.Seed(ctx); err != nil {
		s.logger.Warn(ctx, "follow set not loaded, starting empty", logger.Error(err))
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	reconciler := matchbar.NewReconciler(matchbar.WithFollows(s.follows))
	s.manager = NewSubscriptionManager(s.feed, s.onDelivery, reconciler,
		WithDeduper(s.deduper),
		WithManagerLogger(s.logger.Named("subscriptions")),
	)

	s.inbox = queue.NewInMemoryQueue[message](queue.WithCapacity(s.inboxSize))
	s.loop = worker.NewLoop[message](s.inbox, worker.HandlerFunc[message](s.handle),
		worker.WithName("loop"),
		worker.WithLogger(s.logger),
	)
	s.runCtx, s.cancel = context.WithCancel(context.Background())
	go s.loop.Run(s.runCtx)

	s.started = true
	initial := s.initialActive
	s.mu.Unlock()

	s.logger.Info(ctx, "matchbar service started",
		logger.Int("inbox_size", s.inboxSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.Int("followed_teams", s.follows.Len()),
	)

	if len(initial) > 0 {
		if _, err := s.SetActiveEvents(ctx, initial); err != nil {
			return err
		}
	}
	return nil
}

// Stop releases every subscription, drains the inbox and stops the loop.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping matchbar service...")

	reply := make(chan ChangeSet, 1)
	if err := s.inbox.Enqueue(ctx, setActiveMsg{reply: reply}); err == nil {
		select {
		case <-reply:
		case <-ctx.Done():
		}
	}

	s.started = false
	_ = s.inbox.Close()
	select {
	case <-s.loop.Done():
	case <-ctx.Done():
		s.logger.Warn(ctx, "loop did not drain before timeout")
		forceCtx, forceCancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		if err := s.loop.Shutdown(forceCtx); err != nil {
			s.logger.Warn(forceCtx, "loop did not stop", logger.Error(err))
		}
		forceCancel()
	}
	s.cancel()
	s.logger.Info(context.Background(), "matchbar service stopped")
}

// onDelivery is the feed callback shared by all subscriptions. It waits for
// room in the inbox so pushes for a key are never dropped or reordered.
func (s *Service) onDelivery(d feed.Delivery) {
	if err := s.inbox.Enqueue(s.runCtx, pushMsg{delivery: d}); err != nil {
		s.logger.Debug(s.runCtx, "push not enqueued",
			logger.String("event_key", d.EventKey),
			logger.Error(err),
		)
	}
}

func (s *Service) handle(ctx context.Context, msg message) {
	switch m := msg.(type) {
	case pushMsg:
		s.manager.HandlePush(ctx, m.delivery)
	case setActiveMsg:
		m.reply <- s.manager.SetActiveEvents(ctx, m.keys)
	case activeMsg:
		m.reply <- s.manager.Active()
	case attachMsg:
		s.manager.AttachSurface(ctx, m.surface)
		m.reply <- struct{}{}
	case detachMsg:
		m.reply <- s.manager.DetachSurface(m.id)
	case followMsg:
		var res followResult
		if m.op == opFollow {
			res.changed, res.err = s.follows.Add(ctx, m.team)
		} else {
			res.changed, res.err = s.follows.Remove(ctx, m.team)
		}
		m.reply <- res
	case listFollowsMsg:
		m.reply <- s.follows.All()
	case statsMsg:
		m.reply <- Stats{
			Started:         true,
			ActiveEvents:    s.manager.Active(),
			CachedSnapshots: s.manager.CachedSnapshots(),
			Surfaces:        s.manager.SurfaceCount(),
			FollowedTeams:   s.follows.Len(),
			InboxLength:     s.inbox.Len(),
			InboxCapacity:   s.inbox.Capacity(),
			DedupeEntries:   s.deduper.Size(),
		}
	default:
		metrics.RecordErrorByComponent("loop", "unknown_message")
		s.logger.Error(ctx, "unknown message", logger.String("kind", msg.Kind()))
	}
}

// call enqueues the message built around a reply channel and waits for the
// loop to answer.
func call[T any](ctx context.Context, s *Service, build func(reply chan T) message) (T, error) {
	var zero T

	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return zero, ErrNotStarted
	}
	inbox, done := s.inbox, s.loop.Done()
	s.mu.RUnlock()

	reply := make(chan T, 1)
	if err := inbox.Enqueue(ctx, build(reply)); err != nil {
		return zero, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-done:
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrNotStarted
		}
	}
}

// SetActiveEvents replaces the set of watched events.
func (s *Service) SetActiveEvents(ctx context.Context, keys []string) (ChangeSet, error) {
	return call(ctx, s, func(reply chan ChangeSet) message {
		return setActiveMsg{keys: append([]string(nil), keys...), reply: reply}
	})
}

// ActiveEvents returns the watched events in order.
func (s *Service) ActiveEvents(ctx context.Context) ([]string, error) {
	return call(ctx, s, func(reply chan []string) message { return activeMsg{reply: reply} })
}

// AttachSurface registers a surface. It is rendered at once when its event
// has a cached snapshot.
func (s *Service) AttachSurface(ctx context.Context, surface *matchbar.Surface) error {
	_, err := call(ctx, s, func(reply chan struct{}) message {
		return attachMsg{surface: surface, reply: reply}
	})
	return err
}

// DetachSurface unregisters a surface. It reports whether it was attached.
func (s *Service) DetachSurface(ctx context.Context, id string) (bool, error) {
	return call(ctx, s, func(reply chan bool) message { return detachMsg{id: id, reply: reply} })
}

// Follow adds team to the follow set. It reports whether the set changed.
func (s *Service) Follow(ctx context.Context, team string) (bool, error) {
	return s.editFollows(ctx, opFollow, team)
}

// Unfollow removes team from the follow set. It reports whether the set changed.
func (s *Service) Unfollow(ctx context.Context, team string) (bool, error) {
	return s.editFollows(ctx, opUnfollow, team)
}

func (s *Service) editFollows(ctx context.Context, op followOp, team string) (bool, error) {
	res, err := call(ctx, s, func(reply chan followResult) message {
		return followMsg{op: op, team: team, reply: reply}
	})
	if err != nil {
		return false, err
	}
	return res.changed, res.err
}

// Follows returns followed team numbers in ascending order.
func (s *Service) Follows(ctx context.Context) ([]int, error) {
	return call(ctx, s, func(reply chan []int) message { return listFollowsMsg{reply: reply} })
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) Stats {
	stats, err := call(ctx, s, func(reply chan Stats) message { return statsMsg{reply: reply} })
	if err != nil {
		return Stats{Started: false}
	}
	return stats
}
