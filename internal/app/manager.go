package service

import (
	"context"
	"sort"
	"time"

	"github.com/okian/matchbar/internal/adapters/feed"
	"github.com/okian/matchbar/internal/domain/dedupe"
	"github.com/okian/matchbar/internal/domain/matchbar"
	"github.com/okian/matchbar/internal/domain/snapshot"
	"github.com/okian/matchbar/pkg/logger"
	"github.com/okian/matchbar/pkg/metrics"
)

// Drop reasons reported by HandlePush.
const (
	DropUntracked = "untracked"
	DropStale     = "stale_subscription"
	DropDuplicate = "duplicate"
)

// tracking is the per-key state: the live subscription and the last snapshot.
type tracking struct {
	handle feed.Handle
	raw    []byte
	view   snapshot.View
	cached bool
}

// ChangeSet reports what SetActiveEvents did.
type ChangeSet struct {
	Opened    []string
	Closed    []string
	Refreshed []string
	Failed    []string
}

// PushResult reports what HandlePush did.
type PushResult struct {
	Applied    bool
	DropReason string
	Surfaces   int
	Ops        matchbar.Result
}

// SubscriptionManager tracks active events, their feed subscriptions and
// cached snapshots, and the surfaces attached to each event.
//
// It is not safe for concurrent use. The service loop is its only caller.
type SubscriptionManager struct {
	feed       feed.Feed
	deliver    feed.Callback
	reconciler *matchbar.Reconciler
	deduper    dedupe.Deduper

	tracked  map[string]*tracking
	surfaces map[string][]*matchbar.Surface // event key -> attach order

	log logger.Logger
}

// ManagerOption configures a SubscriptionManager.
type ManagerOption func(*SubscriptionManager)

// WithDeduper drops redelivered pushes.
func WithDeduper(d dedupe.Deduper) ManagerOption {
	return func(m *SubscriptionManager) {
		if d != nil {
			m.deduper = d
		}
	}
}

// WithManagerLogger sets the manager logger.
func WithManagerLogger(l logger.Logger) ManagerOption {
	return func(m *SubscriptionManager) {
		if l != nil {
			m.log = l
		}
	}
}

// NewSubscriptionManager creates a manager. deliver is handed to every feed
// subscription; it receives the event key inside each Delivery.
func NewSubscriptionManager(f feed.Feed, deliver feed.Callback, r *matchbar.Reconciler, opts ...ManagerOption) *SubscriptionManager {
	m := &SubscriptionManager{
		feed:       f,
		deliver:    deliver,
		reconciler: r,
		tracked:    make(map[string]*tracking),
		surfaces:   make(map[string][]*matchbar.Surface),
		log:        logger.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetActiveEvents makes keys the tracked set. Removed keys are unsubscribed
// and their snapshot dropped. New keys are subscribed. Keys that stay tracked
// and have a snapshot are reconciled again from the cache.
func (m *SubscriptionManager) SetActiveEvents(ctx context.Context, keys []string) ChangeSet {
	var cs ChangeSet
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k != "" {
			want[k] = struct{}{}
		}
	}

	for _, key := range sortedKeys(m.tracked) {
		if _, keep := want[key]; keep {
			continue
		}
		m.feed.Unsubscribe(m.tracked[key].handle)
		delete(m.tracked, key)
		cs.Closed = append(cs.Closed, key)
		metrics.RecordSubscriptionChange("closed")
		m.log.Info(ctx, "subscription closed", logger.String("event_key", key))
	}

	for _, key := range sortedSet(want) {
		if t, ok := m.tracked[key]; ok {
			if t.cached {
				m.reconcileKey(ctx, key, t.view)
				cs.Refreshed = append(cs.Refreshed, key)
			}
			continue
		}
		h, err := m.feed.Subscribe(ctx, key, m.deliver)
		if err != nil {
			cs.Failed = append(cs.Failed, key)
			metrics.RecordSubscriptionChange("failed")
			metrics.RecordErrorByComponent("subscriptions", "subscribe_failed")
			m.log.Warn(ctx, "subscribe failed", logger.String("event_key", key), logger.Error(err))
			continue
		}
		m.tracked[key] = &tracking{handle: h}
		cs.Opened = append(cs.Opened, key)
		metrics.RecordSubscriptionChange("opened")
		m.log.Info(ctx, "subscription opened", logger.String("event_key", key), logger.String("subscription_id", h.ID))
	}

	metrics.UpdateActiveSubscriptions(len(m.tracked))
	metrics.UpdateCachedSnapshots(m.CachedSnapshots())
	return cs
}

// HandlePush stores the delivered snapshot and reconciles every surface for
// its key. Pushes for untracked keys, superseded subscriptions and repeated
// deliveries are dropped.
func (m *SubscriptionManager) HandlePush(ctx context.Context, d feed.Delivery) PushResult {
	t, ok := m.tracked[d.EventKey]
	if !ok {
		return m.drop(ctx, d, DropUntracked)
	}
	if t.handle.ID != d.SubscriptionID {
		return m.drop(ctx, d, DropStale)
	}
	if m.deduper != nil && d.DeliveryID != "" {
		if m.deduper.SeenAndRecord(ctx, d.SubscriptionID+"/"+d.DeliveryID) {
			metrics.RecordDeliveryDuplicate()
			return m.drop(ctx, d, DropDuplicate)
		}
		metrics.UpdateDedupeEntries(m.deduper.Size())
	}

	start := time.Now()
	view := snapshot.Parse(d.Payload)
	metrics.RecordParseLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordSnapshotReceived(string(view.State))
	if view.State == snapshot.StateMalformed {
		metrics.RecordSnapshotMalformed()
		m.log.Warn(ctx, "malformed snapshot rendered as placeholder",
			logger.String("event_key", d.EventKey),
			logger.Error(view.Err),
		)
	}

	t.raw = d.Payload
	t.view = view
	t.cached = true
	metrics.UpdateCachedSnapshots(m.CachedSnapshots())

	res := PushResult{Applied: true, Surfaces: len(m.surfaces[d.EventKey])}
	res.Ops = m.reconcileKey(ctx, d.EventKey, view)
	return res
}

func (m *SubscriptionManager) drop(ctx context.Context, d feed.Delivery, reason string) PushResult {
	metrics.RecordSnapshotDropped(reason)
	m.log.Debug(ctx, "push dropped",
		logger.String("event_key", d.EventKey),
		logger.String("subscription_id", d.SubscriptionID),
		logger.String("reason", reason),
	)
	return PushResult{DropReason: reason}
}

// AttachSurface registers s under its event key and renders the cached
// snapshot, if any. Attaching the same surface twice is a no-op.
func (m *SubscriptionManager) AttachSurface(ctx context.Context, s *matchbar.Surface) {
	key := s.EventKey()
	for _, existing := range m.surfaces[key] {
		if existing.ID() == s.ID() {
			return
		}
	}
	m.surfaces[key] = append(m.surfaces[key], s)
	metrics.UpdateSurfacesAttached(m.SurfaceCount())

	if t, ok := m.tracked[key]; ok && t.cached {
		m.reconcileSurface(ctx, key, s, t.view)
	}
}

// DetachSurface removes the surface with id. It reports whether it was found.
func (m *SubscriptionManager) DetachSurface(id string) bool {
	for key, list := range m.surfaces {
		for i, s := range list {
			if s.ID() != id {
				continue
			}
			list = append(list[:i], list[i+1:]...)
			if len(list) == 0 {
				delete(m.surfaces, key)
			} else {
				m.surfaces[key] = list
			}
			metrics.UpdateSurfacesAttached(m.SurfaceCount())
			return true
		}
	}
	return false
}

// reconcileKey renders view on every surface of key in attach order. A
// surface whose renderer failed is detached; the others are unaffected.
func (m *SubscriptionManager) reconcileKey(ctx context.Context, key string, view snapshot.View) matchbar.Result {
	var total matchbar.Result
	for _, s := range append([]*matchbar.Surface(nil), m.surfaces[key]...) {
		res := m.reconcileSurface(ctx, key, s, view)
		total.Inserts += res.Inserts
		total.Removes += res.Removes
		total.Replaces += res.Replaces
		total.Relabels += res.Relabels
	}
	return total
}

func (m *SubscriptionManager) reconcileSurface(ctx context.Context, key string, s *matchbar.Surface, view snapshot.View) matchbar.Result {
	start := time.Now()
	res := m.reconciler.Reconcile(s, key, view)
	metrics.RecordReconcileLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordReconcileOps(string(matchbar.OpInsert), res.Inserts)
	metrics.RecordReconcileOps(string(matchbar.OpRemove), res.Removes)
	metrics.RecordReconcileOps(string(matchbar.OpReplace), res.Replaces)
	metrics.RecordReconcileOps(string(matchbar.OpRelabel), res.Relabels)

	if err := s.Err(); err != nil {
		m.DetachSurface(s.ID())
		metrics.RecordSurfaceFailure()
		m.log.Warn(ctx, "surface detached after render failure",
			logger.String("event_key", key),
			logger.String("surface_id", s.ID()),
			logger.Error(err),
		)
	}
	return res
}

// Active returns the tracked keys in order.
func (m *SubscriptionManager) Active() []string { return sortedKeys(m.tracked) }

// Tracked reports whether key has a live subscription.
func (m *SubscriptionManager) Tracked(key string) bool {
	_, ok := m.tracked[key]
	return ok
}

// Snapshot returns the cached raw document for key.
func (m *SubscriptionManager) Snapshot(key string) ([]byte, bool) {
	t, ok := m.tracked[key]
	if !ok || !t.cached {
		return nil, false
	}
	return t.raw, true
}

// CachedSnapshots counts tracked keys holding a snapshot.
func (m *SubscriptionManager) CachedSnapshots() int {
	n := 0
	for _, t := range m.tracked {
		if t.cached {
			n++
		}
	}
	return n
}

// SurfaceCount is the number of attached surfaces across all keys.
func (m *SubscriptionManager) SurfaceCount() int {
	n := 0
	for _, list := range m.surfaces {
		n += len(list)
	}
	return n
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedSet(m map[string]struct{}) []string { return sortedKeys(m) }
