package matchbar

import (
	"strings"

	"github.com/okian/matchbar/internal/domain/snapshot"
)

// Follows answers whether any of a match's teams is followed.
type Follows interface {
	HasAny(teams []string) bool
}

type noFollows struct{}

func (noFollows) HasAny([]string) bool { return false }

// Result counts the ops one Reconcile emitted.
type Result struct {
	Inserts  int
	Removes  int
	Replaces int
	Relabels int
}

// Total is the number of ops emitted.
func (r Result) Total() int { return r.Inserts + r.Removes + r.Replaces + r.Relabels }

// Reconciler applies snapshot views to surfaces.
type Reconciler struct {
	follows Follows
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithFollows sets the follow lookup used to tag new upcoming cells.
func WithFollows(f Follows) Option {
	return func(r *Reconciler) {
		if f != nil {
			r.follows = f
		}
	}
}

// NewReconciler creates a Reconciler.
func NewReconciler(opts ...Option) *Reconciler {
	r := &Reconciler{follows: noFollows{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile brings s in line with view for eventKey.
//
// The most recent completed match is shown first, followed by every upcoming
// match in order. Cells before the most recent completed match are pruned.
// Upcoming cells already on the surface are left untouched, so their followed
// tag reflects the follow set at the time they were first drawn. The first
// cell carries the event code prefix exactly once.
//
// When the most recent completed match is not on the surface, every cell that
// is no longer upcoming is removed and upcoming cells keep their place.
// Completed matches other than the most recent never stay on the surface, even
// when they arrived after a higher-order match.
func (r *Reconciler) Reconcile(s *Surface, eventKey string, view snapshot.View) Result {
	var res Result
	rec := &recorder{s: s, res: &res}
	prefix := eventPrefix(eventKey)

	if !view.HasData() {
		r.clearToPlaceholder(rec, eventKey)
		return res
	}

	r.dropPlaceholders(rec)

	if last, ok := view.LastCompleted(); ok {
		r.pruneBefore(rec, last.Key, view)

		cell := renderFinished(last)
		cell.Label = withPrefix(cell.Label, prefix)
		if s.Len() > 0 && s.cells[0].Key == last.Key {
			if s.cells[0] != cell {
				rec.replace(0, cell)
			}
		} else {
			if s.Len() > 0 {
				r.demote(rec, 0, prefix)
			}
			rec.insert(0, cell)
		}
		r.dropCompleted(rec, last.Key, view)
	}

	for _, m := range view.Upcoming {
		if s.Index(m.Key) >= 0 {
			continue
		}
		cell := renderUpcoming(m, r.follows.HasAny(m.Teams()))
		if s.Len() == 0 {
			cell.Label = withPrefix(cell.Label, prefix)
		}
		rec.insert(s.Len(), cell)
	}

	if s.Len() > 0 {
		if first := s.cells[0]; !strings.HasPrefix(first.Label, prefix) {
			rec.relabel(0, prefix+first.Label)
		}
	}
	return res
}

// clearToPlaceholder leaves exactly one placeholder cell. A surface already
// in that state gets no ops.
func (r *Reconciler) clearToPlaceholder(rec *recorder, eventKey string) {
	want := renderPlaceholder(eventKey)
	if rec.s.Len() == 1 && rec.s.cells[0] == want {
		return
	}
	for rec.s.Len() > 0 {
		rec.remove(rec.s.Len() - 1)
	}
	rec.insert(0, want)
}

func (r *Reconciler) dropPlaceholders(rec *recorder) {
	for i := 0; i < rec.s.Len(); {
		if rec.s.cells[i].IsPlaceholder() {
			rec.remove(i)
			continue
		}
		i++
	}
}

// pruneBefore removes the cells in front of key. When key is not on the
// surface only cells that are no longer upcoming are removed; still-upcoming
// cells keep their place.
func (r *Reconciler) pruneBefore(rec *recorder, key string, view snapshot.View) {
	if idx := rec.s.Index(key); idx >= 0 {
		for ; idx > 0; idx-- {
			rec.remove(0)
		}
		return
	}

	upcoming := make(map[string]struct{}, len(view.Upcoming))
	for _, m := range view.Upcoming {
		upcoming[m.Key] = struct{}{}
	}
	for i := 0; i < rec.s.Len(); {
		if _, ok := upcoming[rec.s.cells[i].Key]; !ok {
			rec.remove(i)
			continue
		}
		i++
	}
}

// dropCompleted removes every cell after the first whose match is completed.
// The first cell is the most recent completed match, keyed last.
func (r *Reconciler) dropCompleted(rec *recorder, last string, view snapshot.View) {
	completed := make(map[string]struct{}, len(view.Completed))
	for _, m := range view.Completed {
		if m.Key != last {
			completed[m.Key] = struct{}{}
		}
	}
	for i := 1; i < rec.s.Len(); {
		if _, ok := completed[rec.s.cells[i].Key]; ok {
			rec.remove(i)
			continue
		}
		i++
	}
}

// demote strips the event prefix from the cell at i before another cell
// takes the first slot.
func (r *Reconciler) demote(rec *recorder, i int, prefix string) {
	if label := rec.s.cells[i].Label; strings.HasPrefix(label, prefix) {
		rec.relabel(i, strings.TrimPrefix(label, prefix))
	}
}

// recorder counts ops as they are applied to the surface.
type recorder struct {
	s   *Surface
	res *Result
}

func (r *recorder) insert(i int, c Cell) {
	r.s.insert(i, c)
	r.res.Inserts++
}

func (r *recorder) remove(i int) {
	r.s.remove(i)
	r.res.Removes++
}

func (r *recorder) replace(i int, c Cell) {
	r.s.replace(i, c)
	r.res.Replaces++
}

func (r *recorder) relabel(i int, label string) {
	r.s.relabel(i, label)
	r.res.Relabels++
}
