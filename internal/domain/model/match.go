// Package model contains domain models passed between layers.
package model

import (
	"strconv"
	"strings"
)

// Unplayed is the score sentinel for an alliance that has not played yet.
const Unplayed = -1

// Color identifies an alliance.
type Color string

const (
	ColorRed  Color = "red"
	ColorBlue Color = "blue"
)

// Winner is the derived outcome of a match.
type Winner string

const (
	WinnerUnresolved Winner = ""
	WinnerRed        Winner = "red"
	WinnerBlue       Winner = "blue"
	WinnerTie        Winner = "tie"
)

// CompLevel is the competition level of a match.
type CompLevel string

const (
	Qualification CompLevel = "qm"
	Octofinal     CompLevel = "ef"
	Quarterfinal  CompLevel = "qf"
	Semifinal     CompLevel = "sf"
	Final         CompLevel = "f"
)

// IsElimination reports whether set numbers are meaningful for the level.
func (l CompLevel) IsElimination() bool {
	switch l {
	case Quarterfinal, Semifinal, Final:
		return true
	}
	return false
}

// Alliance is one side of a match.
type Alliance struct {
	Color Color
	Teams [3]string // region-prefixed ids, e.g. "frc254"
	Score int       // Unplayed until the match is scored
}

// Played reports whether the alliance has a score.
func (a Alliance) Played() bool { return a.Score >= 0 }

// MatchRecord identifies one match within an event.
type MatchRecord struct {
	Key         string
	CompLevel   CompLevel
	SetNumber   int
	MatchNumber int
	Order       int
	Red         Alliance
	Blue        Alliance

	// Reported is the winner carried by the feed, nil when the feed omits it.
	// The feed encodes ties as an empty string.
	Reported *Winner
}

// Completed is the sole classification predicate: both alliances scored.
func (m MatchRecord) Completed() bool {
	return m.Red.Played() && m.Blue.Played()
}

// WinningAlliance derives the outcome. It is unresolved while either score
// is Unplayed.
func (m MatchRecord) WinningAlliance() Winner {
	if !m.Completed() {
		return WinnerUnresolved
	}
	if m.Reported != nil {
		switch *m.Reported {
		case WinnerRed, WinnerBlue:
			return *m.Reported
		case WinnerUnresolved, WinnerTie:
			return WinnerTie
		}
	}
	switch {
	case m.Red.Score > m.Blue.Score:
		return WinnerRed
	case m.Blue.Score > m.Red.Score:
		return WinnerBlue
	default:
		return WinnerTie
	}
}

// Label renders the short match label: Q12, QF2-1, SF1-3, F1-2.
func (m MatchRecord) Label() string {
	level := strings.ToUpper(string(m.CompLevel))
	if m.CompLevel == Qualification {
		level = "Q"
	}
	if m.CompLevel.IsElimination() {
		return level + strconv.Itoa(m.SetNumber) + "-" + strconv.Itoa(m.MatchNumber)
	}
	return level + strconv.Itoa(m.MatchNumber)
}

// Teams returns all six team ids, red first.
func (m MatchRecord) Teams() []string {
	teams := make([]string, 0, len(m.Red.Teams)+len(m.Blue.Teams))
	teams = append(teams, m.Red.Teams[:]...)
	return append(teams, m.Blue.Teams[:]...)
}

// EventSnapshot maps match key to record. Order is recovered via Order.
type EventSnapshot map[string]MatchRecord
