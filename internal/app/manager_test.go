package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/matchbar/internal/adapters/feed"
	service "github.com/okian/matchbar/internal/app"
	"github.com/okian/matchbar/internal/domain/dedupe"
	"github.com/okian/matchbar/internal/domain/matchbar"
)

// fakeFeed records subscription calls without delivering anything.
type fakeFeed struct {
	next         int
	subscribed   []string
	unsubscribed []feed.Handle
	failKeys     map[string]bool
}

func (f *fakeFeed) Subscribe(_ context.Context, key string, _ feed.Callback) (feed.Handle, error) {
	if f.failKeys[key] {
		return feed.Handle{}, errors.New("backend unavailable")
	}
	f.next++
	f.subscribed = append(f.subscribed, key)
	return feed.Handle{EventKey: key, ID: fmt.Sprintf("sub-%d", f.next)}, nil
}

func (f *fakeFeed) Unsubscribe(h feed.Handle) { f.unsubscribed = append(f.unsubscribed, h) }

const doc = `{"matches": {
  "m1": {"comp_level": "qm", "match_number": 1, "order": 1,
    "alliances": {"red": {"teams": ["frc254","frc2","frc3"], "score": 30}, "blue": {"teams": ["frc4","frc5","frc6"], "score": 20}}},
  "m2": {"comp_level": "qm", "match_number": 2, "order": 2,
    "alliances": {"red": {"teams": ["frc7","frc8","frc9"], "score": -1}, "blue": {"teams": ["frc10","frc11","frc12"], "score": -1}}}
}}`

func newManager(f feed.Feed) *service.SubscriptionManager {
	return service.NewSubscriptionManager(f, func(feed.Delivery) {}, matchbar.NewReconciler(),
		service.WithDeduper(dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(100))))
}

func push(key, subID, deliveryID, payload string) feed.Delivery {
	d := feed.Delivery{EventKey: key, SubscriptionID: subID, DeliveryID: deliveryID}
	if payload != "" {
		d.Payload = []byte(payload)
	}
	return d
}

func TestManager_SetActiveEventsAddsOnlyNewKeys(t *testing.T) {
	ctx := context.Background()
	f := &fakeFeed{}
	m := newManager(f)

	cs := m.SetActiveEvents(ctx, []string{"2020casj"})
	assert.Equal(t, []string{"2020casj"}, cs.Opened)

	cs = m.SetActiveEvents(ctx, []string{"2020casj", "2020cada"})
	assert.Equal(t, []string{"2020cada"}, cs.Opened)
	assert.Empty(t, cs.Closed)
	assert.Equal(t, []string{"2020casj", "2020cada"}, f.subscribed)
	assert.Empty(t, f.unsubscribed)
	assert.Equal(t, []string{"2020cada", "2020casj"}, m.Active())
}

func TestManager_RemovedKeyDropsCacheAndLatePushes(t *testing.T) {
	ctx := context.Background()
	f := &fakeFeed{}
	m := newManager(f)

	m.SetActiveEvents(ctx, []string{"2020casj"})
	res := m.HandlePush(ctx, push("2020casj", "sub-1", "d1", doc))
	require.True(t, res.Applied)
	assert.Equal(t, 1, m.CachedSnapshots())

	cs := m.SetActiveEvents(ctx, nil)
	assert.Equal(t, []string{"2020casj"}, cs.Closed)
	require.Len(t, f.unsubscribed, 1)
	assert.Equal(t, "sub-1", f.unsubscribed[0].ID)
	assert.Equal(t, 0, m.CachedSnapshots())
	_, cached := m.Snapshot("2020casj")
	assert.False(t, cached)

	late := m.HandlePush(ctx, push("2020casj", "sub-1", "d2", doc))
	assert.False(t, late.Applied)
	assert.Equal(t, service.DropUntracked, late.DropReason)
}

func TestManager_StaleSubscriptionIsDropped(t *testing.T) {
	ctx := context.Background()
	m := newManager(&fakeFeed{})

	m.SetActiveEvents(ctx, []string{"2020casj"})
	m.SetActiveEvents(ctx, nil)
	m.SetActiveEvents(ctx, []string{"2020casj"})

	old := m.HandlePush(ctx, push("2020casj", "sub-1", "d1", doc))
	assert.Equal(t, service.DropStale, old.DropReason)

	cur := m.HandlePush(ctx, push("2020casj", "sub-2", "d1", doc))
	assert.True(t, cur.Applied)
}

func TestManager_DuplicateDeliveryIsDropped(t *testing.T) {
	ctx := context.Background()
	m := newManager(&fakeFeed{})
	m.SetActiveEvents(ctx, []string{"2020casj"})

	assert.True(t, m.HandlePush(ctx, push("2020casj", "sub-1", "d1", doc)).Applied)
	again := m.HandlePush(ctx, push("2020casj", "sub-1", "d1", doc))
	assert.Equal(t, service.DropDuplicate, again.DropReason)
}

func TestManager_PushRendersEverySurfaceInOrder(t *testing.T) {
	ctx := context.Background()
	m := newManager(&fakeFeed{})
	m.SetActiveEvents(ctx, []string{"2020casj"})

	var order []string
	mk := func(name string) *matchbar.Surface {
		return matchbar.NewSurface("2020casj", matchbar.RendererFunc(func(matchbar.Op) error {
			if len(order) == 0 || order[len(order)-1] != name {
				order = append(order, name)
			}
			return nil
		}), matchbar.WithSurfaceID(name))
	}
	a, b := mk("a"), mk("b")
	other := matchbar.NewSurface("2020cada", matchbar.NewRecorder())
	m.AttachSurface(ctx, a)
	m.AttachSurface(ctx, b)
	m.AttachSurface(ctx, a)
	m.AttachSurface(ctx, other)
	assert.Equal(t, 3, m.SurfaceCount())

	res := m.HandlePush(ctx, push("2020casj", "sub-1", "d1", doc))
	assert.Equal(t, 2, res.Surfaces)
	assert.Equal(t, 4, res.Ops.Inserts)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, []string{"m1", "m2"}, []string{a.Cells()[0].Key, a.Cells()[1].Key})
	assert.Equal(t, a.Cells(), b.Cells())
	assert.Zero(t, other.Len())
}

func TestManager_AttachRendersCachedSnapshot(t *testing.T) {
	ctx := context.Background()
	m := newManager(&fakeFeed{})
	m.SetActiveEvents(ctx, []string{"2020casj"})
	m.HandlePush(ctx, push("2020casj", "sub-1", "d1", ""))

	rec := matchbar.NewRecorder()
	s := matchbar.NewSurface("2020casj", rec)
	m.AttachSurface(ctx, s)

	require.Equal(t, 1, s.Len())
	assert.True(t, s.Cells()[0].IsPlaceholder())
	assert.Equal(t, "CASJ", s.Cells()[0].Label)
	assert.Len(t, rec.Ops(), 1)
}

func TestManager_ReAddingTrackedKeyRefreshesFromCache(t *testing.T) {
	ctx := context.Background()
	f := &fakeFeed{}
	m := newManager(f)
	m.SetActiveEvents(ctx, []string{"2020casj"})
	m.HandlePush(ctx, push("2020casj", "sub-1", "d1", doc))

	rec := matchbar.NewRecorder()
	s := matchbar.NewSurface("2020casj", rec)
	m.AttachSurface(ctx, s)
	rec.Reset()

	cs := m.SetActiveEvents(ctx, []string{"2020casj"})
	assert.Equal(t, []string{"2020casj"}, cs.Refreshed)
	assert.Empty(t, cs.Opened)
	assert.Len(t, f.subscribed, 1)
	assert.Empty(t, rec.Ops(), "identical snapshot must not rewrite the surface")
}

func TestManager_SubscribeFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	f := &fakeFeed{failKeys: map[string]bool{"2020casj": true}}
	m := newManager(f)

	cs := m.SetActiveEvents(ctx, []string{"2020casj"})
	assert.Equal(t, []string{"2020casj"}, cs.Failed)
	assert.False(t, m.Tracked("2020casj"))

	delete(f.failKeys, "2020casj")
	cs = m.SetActiveEvents(ctx, []string{"2020casj"})
	assert.Equal(t, []string{"2020casj"}, cs.Opened)
	assert.True(t, m.Tracked("2020casj"))
}

func TestManager_FailingSurfaceIsDetached(t *testing.T) {
	ctx := context.Background()
	m := newManager(&fakeFeed{})
	m.SetActiveEvents(ctx, []string{"2020casj"})

	broken := matchbar.NewRecorder()
	broken.FailWith(errors.New("socket closed"))
	healthy := matchbar.NewRecorder()
	m.AttachSurface(ctx, matchbar.NewSurface("2020casj", broken))
	good := matchbar.NewSurface("2020casj", healthy)
	m.AttachSurface(ctx, good)

	m.HandlePush(ctx, push("2020casj", "sub-1", "d1", doc))
	assert.Equal(t, 1, m.SurfaceCount())
	assert.Equal(t, 2, good.Len())
	assert.True(t, m.DetachSurface(good.ID()))
	assert.False(t, m.DetachSurface(good.ID()))
}
