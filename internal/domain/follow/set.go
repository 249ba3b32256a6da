// Package follow maintains the set of followed team numbers.
package follow

import (
	"context"
	"sort"

	"github.com/okian/matchbar/internal/domain/model"
	"github.com/okian/matchbar/pkg/logger"
	"github.com/okian/matchbar/pkg/metrics"
)

// Store persists the follow set between runs.
type Store interface {
	Load(ctx context.Context) ([]int, error)
	Save(ctx context.Context, teams []int) error
}

// Set is the canonical set of followed team numbers.
// Not safe for concurrent use; the service loop owns it.
type Set struct {
	teams map[int]struct{}
	store Store
	log   logger.Logger
}

// Option configures a Set.
type Option func(*Set)

// WithStore attaches a persistence collaborator.
func WithStore(store Store) Option {
	return func(s *Set) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogger sets the logger used for persistence failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Set) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates an empty Set.
func New(opts ...Option) *Set {
	s := &Set{
		teams: make(map[int]struct{}),
		log:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed loads the persisted teams. Invalid stored entries are skipped.
func (s *Set) Seed(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	teams, err := s.store.Load(ctx)
	if err != nil {
		metrics.RecordFollowPersistError()
		return err
	}
	for _, t := range teams {
		if t > 0 {
			s.teams[t] = struct{}{}
		}
	}
	metrics.UpdateFollowedTeams(len(s.teams))
	return nil
}

// Add follows team. It reports whether the set changed. The set is persisted
// even for a repeated add.
func (s *Set) Add(ctx context.Context, team string) (bool, error) {
	n, err := model.ParseTeamNumber(team)
	if err != nil {
		metrics.RecordFollowRejected()
		return false, err
	}
	_, had := s.teams[n]
	s.teams[n] = struct{}{}
	s.persist(ctx)
	return !had, nil
}

// Remove unfollows team. It reports whether the set changed.
func (s *Set) Remove(ctx context.Context, team string) (bool, error) {
	n, err := model.ParseTeamNumber(team)
	if err != nil {
		metrics.RecordFollowRejected()
		return false, err
	}
	_, had := s.teams[n]
	delete(s.teams, n)
	s.persist(ctx)
	return had, nil
}

// Has reports whether team is followed. Unparseable input is never followed.
func (s *Set) Has(team string) bool {
	n, err := model.ParseTeamNumber(team)
	if err != nil {
		return false
	}
	_, ok := s.teams[n]
	return ok
}

// HasAny reports whether any of teams is followed.
func (s *Set) HasAny(teams []string) bool {
	for _, t := range teams {
		if s.Has(t) {
			return true
		}
	}
	return false
}

// All returns the followed numbers in ascending order.
func (s *Set) All() []int {
	out := make([]int, 0, len(s.teams))
	for t := range s.teams {
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}

// Len is the number of followed teams.
func (s *Set) Len() int { return len(s.teams) }

func (s *Set) persist(ctx context.Context) {
	metrics.UpdateFollowedTeams(len(s.teams))
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, s.All()); err != nil {
		metrics.RecordFollowPersistError()
		s.log.Warn(ctx, "follow set not persisted", logger.Int("teams", len(s.teams)), logger.Error(err))
	}
}
