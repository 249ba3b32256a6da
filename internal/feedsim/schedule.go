package feedsim

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
)

// Document mirrors the event snapshot the feed carries.
type Document struct {
	Matches map[string]*Match `json:"matches"`
}

// Match is one scheduled match in a Document.
type Match struct {
	CompLevel       string               `json:"comp_level"`
	SetNumber       int                  `json:"set_number"`
	MatchNumber     int                  `json:"match_number"`
	Order           int                  `json:"order"`
	Alliances       map[string]*Alliance `json:"alliances"`
	WinningAlliance *string              `json:"winning_alliance,omitempty"`
}

// Alliance is one side of a Match. Score is -1 until played.
type Alliance struct {
	Teams []string `json:"teams"`
	Score int      `json:"score"`
}

// Schedule is an event's qualification schedule being played out in order.
type Schedule struct {
	eventKey string
	keys     []string
	doc      Document
	played   int
	rng      *rand.Rand
}

// NewSchedule builds matches qualification matches drawn from a pool of
// teams. The same seed gives the same schedule and scores.
func NewSchedule(eventKey string, teams, matches int, seed uint64) (*Schedule, error) {
	if teams < 2*teamsPerAlliance {
		return nil, fmt.Errorf("%w: need at least %d teams, got %d", ErrInvalidConfig, 2*teamsPerAlliance, teams)
	}
	if matches <= 0 {
		return nil, fmt.Errorf("%w: matches must be positive", ErrInvalidConfig)
	}

	rng := rand.New(rand.NewPCG(seed, uint64(len(eventKey))))
	pool := make([]string, teams)
	for i := range pool {
		pool[i] = "frc" + strconv.Itoa(100+i*7)
	}

	s := &Schedule{
		eventKey: eventKey,
		doc:      Document{Matches: make(map[string]*Match, matches)},
		rng:      rng,
	}
	for n := 1; n <= matches; n++ {
		rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
		key := fmt.Sprintf("%s_qm%d", eventKey, n)
		s.doc.Matches[key] = &Match{
			CompLevel:   "qm",
			SetNumber:   1,
			MatchNumber: n,
			Order:       n,
			Alliances: map[string]*Alliance{
				"red":  {Teams: append([]string(nil), pool[:teamsPerAlliance]...), Score: -1},
				"blue": {Teams: append([]string(nil), pool[teamsPerAlliance:2*teamsPerAlliance]...), Score: -1},
			},
		}
		s.keys = append(s.keys, key)
	}
	return s, nil
}

// EventKey returns the simulated event.
func (s *Schedule) EventKey() string { return s.eventKey }

// Played returns how many matches have results.
func (s *Schedule) Played() int { return s.played }

// Done reports whether every match has been played.
func (s *Schedule) Done() bool { return s.played >= len(s.keys) }

// Play scores the next unplayed match. It reports false once all are played.
func (s *Schedule) Play() bool {
	if s.Done() {
		return false
	}
	m := s.doc.Matches[s.keys[s.played]]
	red, blue := s.rng.IntN(maxScore), s.rng.IntN(maxScore)
	m.Alliances["red"].Score = red
	m.Alliances["blue"].Score = blue
	winner := ""
	switch {
	case red > blue:
		winner = "red"
	case blue > red:
		winner = "blue"
	}
	m.WinningAlliance = &winner
	s.played++
	return true
}

// Snapshot encodes the current state of the schedule.
func (s *Schedule) Snapshot() ([]byte, error) {
	return json.Marshal(s.doc)
}
