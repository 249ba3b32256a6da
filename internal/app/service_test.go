package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/matchbar/internal/adapters/feed"
	"github.com/okian/matchbar/internal/adapters/repository"
	service "github.com/okian/matchbar/internal/app"
	"github.com/okian/matchbar/internal/domain/follow"
	"github.com/okian/matchbar/internal/domain/matchbar"
	"github.com/okian/matchbar/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return false
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service that is not started", t, func() {
		svc := service.New(feed.NewMemory())
		ctx := context.Background()

		Convey("Then calls fail with ErrNotStarted", func() {
			_, err := svc.ActiveEvents(ctx)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.GetStats(ctx).Started, ShouldBeFalse)
		})

		Convey("Then Stop is a no-op", func() {
			So(func() { svc.Stop() }, ShouldNotPanic)
		})
	})

	Convey("Given a started service with seeded active events", t, func() {
		f := feed.NewMemory()
		defer f.Close()
		svc := service.New(f,
			service.WithInboxSize(8),
			service.WithDedupeSize(100),
			service.WithActiveEvents([]string{"2020casj"}),
		)
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		So(svc.Start(ctx), ShouldBeNil)

		Convey("Then the seed is tracked", func() {
			active, err := svc.ActiveEvents(ctx)
			So(err, ShouldBeNil)
			So(active, ShouldResemble, []string{"2020casj"})
			So(f.Subscribers("2020casj"), ShouldEqual, 1)
			So(svc.GetStats(ctx).InboxCapacity, ShouldEqual, 8)
		})

		Convey("When stopped", func() {
			svc.Stop()

			Convey("Then subscriptions are released", func() {
				So(f.Subscribers("2020casj"), ShouldEqual, 0)
				So(svc.GetStats(ctx).Started, ShouldBeFalse)
			})
		})

		Reset(svc.Stop)
	})
}

func TestService_StopWithStuckLoop(t *testing.T) {
	Convey("Given a service whose loop is stuck rendering", t, func() {
		f := feed.NewMemory()
		defer f.Close()
		svc := service.New(f, service.WithShutdownTimeout(50*time.Millisecond))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)

		entered := make(chan struct{}, 1)
		release := make(chan struct{})
		defer close(release)
		surface := matchbar.NewSurface("2020casj", matchbar.RendererFunc(func(matchbar.Op) error {
			select {
			case entered <- struct{}{}:
			default:
			}
			<-release
			return nil
		}))
		So(svc.AttachSurface(ctx, surface), ShouldBeNil)
		_, err := svc.SetActiveEvents(ctx, []string{"2020casj"})
		So(err, ShouldBeNil)

		select {
		case <-entered:
		case <-time.After(2 * time.Second):
			t.Fatal("renderer was never called")
		}

		Convey("When stopped", func() {
			start := time.Now()
			svc.Stop()

			Convey("Then Stop gives up after the shutdown timeout", func() {
				So(time.Since(start), ShouldBeLessThan, 2*time.Second)
				So(svc.GetStats(ctx).Started, ShouldBeFalse)
			})
		})
	})
}

func TestService_PushToSurface(t *testing.T) {
	Convey("Given a service with an attached surface", t, func() {
		f := feed.NewMemory()
		defer f.Close()
		svc := service.New(f)
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		Reset(svc.Stop)

		rec := matchbar.NewRecorder()
		surface := matchbar.NewSurface("2020casj", rec)
		So(svc.AttachSurface(ctx, surface), ShouldBeNil)

		cs, err := svc.SetActiveEvents(ctx, []string{"2020casj"})
		So(err, ShouldBeNil)
		So(cs.Opened, ShouldResemble, []string{"2020casj"})

		Convey("Then the first delivery is the placeholder", func() {
			So(eventually(func() bool { return len(rec.Replica()) == 1 }), ShouldBeTrue)
			So(rec.Replica()[0].IsPlaceholder(), ShouldBeTrue)
		})

		Convey("When the backend publishes a snapshot", func() {
			_, err := f.Publish("2020casj", []byte(doc))
			So(err, ShouldBeNil)

			Convey("Then the surface shows the last result and the next match", func() {
				So(eventually(func() bool {
					cells := rec.Replica()
					return len(cells) == 2 && cells[0].Key == "m1"
				}), ShouldBeTrue)
				cells := rec.Replica()
				So(cells[0].State, ShouldEqual, matchbar.StateFinishedRed)
				So(cells[0].Label, ShouldEqual, "CASJ Q1")
				So(cells[1].State, ShouldEqual, matchbar.StateUpcoming)

				stats := svc.GetStats(ctx)
				So(stats.CachedSnapshots, ShouldEqual, 1)
				So(stats.Surfaces, ShouldEqual, 1)
			})
		})

		Convey("When the surface is detached", func() {
			found, err := svc.DetachSurface(ctx, surface.ID())
			So(err, ShouldBeNil)
			So(found, ShouldBeTrue)
			So(svc.GetStats(ctx).Surfaces, ShouldEqual, 0)
		})
	})
}

const followedDoc = `{"matches": {
  "m3": {"comp_level": "qm", "match_number": 3, "order": 3,
    "alliances": {"red": {"teams": ["frc1","frc2","frc3"], "score": -1}, "blue": {"teams": ["frc4","frc254","frc6"], "score": -1}}},
  "m4": {"comp_level": "qm", "match_number": 4, "order": 4,
    "alliances": {"red": {"teams": ["frc7","frc8","frc9"], "score": -1}, "blue": {"teams": ["frc10","frc11","frc12"], "score": -1}}}
}}`

func TestService_Follows(t *testing.T) {
	Convey("Given a service persisting follows in memory", t, func() {
		f := feed.NewMemory()
		defer f.Close()
		store := repository.NewMemoryStore(971)
		svc := service.New(f, service.WithFollowStore(store))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		Reset(svc.Stop)

		Convey("Then persisted teams are loaded", func() {
			teams, err := svc.Follows(ctx)
			So(err, ShouldBeNil)
			So(teams, ShouldResemble, []int{971})
		})

		Convey("When FRC254 is followed", func() {
			changed, err := svc.Follow(ctx, "FRC254")
			So(err, ShouldBeNil)
			So(changed, ShouldBeTrue)

			Convey("Then it is stored canonically", func() {
				loaded, _ := store.Load(ctx)
				So(loaded, ShouldResemble, []int{254, 971})
			})

			Convey("Then a new upcoming cell with 254 is highlighted", func() {
				rec := matchbar.NewRecorder()
				So(svc.AttachSurface(ctx, matchbar.NewSurface("2020casj", rec)), ShouldBeNil)
				_, err := f.Publish("2020casj", []byte(followedDoc))
				So(err, ShouldBeNil)
				_, err = svc.SetActiveEvents(ctx, []string{"2020casj"})
				So(err, ShouldBeNil)

				So(eventually(func() bool { return len(rec.Replica()) == 2 }), ShouldBeTrue)
				cells := rec.Replica()
				So(cells[0].Followed, ShouldBeTrue)
				So(cells[1].Followed, ShouldBeFalse)
			})
		})

		Convey("When invalid input is followed", func() {
			_, err := svc.Follow(ctx, "frc")

			Convey("Then it is rejected without a write", func() {
				So(errors.Is(err, follow.ErrInvalidTeam), ShouldBeTrue)
				So(store.Saves(), ShouldEqual, 0)
			})
		})

		Convey("When a team is unfollowed", func() {
			changed, err := svc.Unfollow(ctx, "971")
			So(err, ShouldBeNil)
			So(changed, ShouldBeTrue)
			teams, _ := svc.Follows(ctx)
			So(teams, ShouldBeEmpty)
		})
	})
}
