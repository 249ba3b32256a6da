// Package matchbar keeps an on-screen list of match cells in step with the
// latest event snapshot.
//
// A Surface is the logical list shown by one matchbar panel. The Reconciler
// mutates it in place and every mutation reaches the surface's Renderer as a
// single Op, so a client applying ops in order ends up with the same list.
package matchbar

import (
	"strconv"
	"strings"

	"github.com/okian/matchbar/internal/domain/model"
)

// CellState tags how a cell is drawn.
type CellState string

const (
	StateUpcoming     CellState = "upcoming"
	StateFinishedRed  CellState = "finished:red"
	StateFinishedBlue CellState = "finished:blue"
	StateFinishedTie  CellState = "finished:tie"
	StatePlaceholder  CellState = "placeholder"
)

const (
	placeholderKey     = ""
	placeholderInfo    = "No matches yet!"
	eventPrefixDivider = " "
)

// Cell is one rendered match. Key is the identity used for lookup.
type Cell struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	State    CellState `json:"state"`
	Followed bool      `json:"followed,omitempty"`
	Red      string    `json:"red,omitempty"`
	Blue     string    `json:"blue,omitempty"`
	Info     string    `json:"info,omitempty"`
}

// IsPlaceholder reports whether c stands in for missing data.
func (c Cell) IsPlaceholder() bool { return c.State == StatePlaceholder }

func finishedState(w model.Winner) CellState {
	switch w {
	case model.WinnerRed:
		return StateFinishedRed
	case model.WinnerBlue:
		return StateFinishedBlue
	default:
		return StateFinishedTie
	}
}

func renderFinished(m model.MatchRecord) Cell {
	c := renderMatch(m)
	c.State = finishedState(m.WinningAlliance())
	return c
}

func renderUpcoming(m model.MatchRecord, followed bool) Cell {
	c := renderMatch(m)
	c.State = StateUpcoming
	c.Followed = followed
	return c
}

func renderMatch(m model.MatchRecord) Cell {
	return Cell{
		Key:   m.Key,
		Label: m.Label(),
		Red:   allianceLine(m.Red),
		Blue:  allianceLine(m.Blue),
	}
}

func renderPlaceholder(eventKey string) Cell {
	return Cell{
		Key:   placeholderKey,
		Label: model.EventCode(eventKey),
		State: StatePlaceholder,
		Info:  placeholderInfo,
	}
}

// allianceLine renders "254, 1678, 971 - 30"; the score is omitted while unplayed.
func allianceLine(a model.Alliance) string {
	teams := make([]string, len(a.Teams))
	for i, t := range a.Teams {
		teams[i] = model.DisplayTeam(t)
	}
	line := strings.Join(teams, ", ")
	if a.Played() {
		line += " - " + strconv.Itoa(a.Score)
	}
	return line
}

func eventPrefix(eventKey string) string {
	return model.EventCode(eventKey) + eventPrefixDivider
}

func withPrefix(label, prefix string) string {
	if strings.HasPrefix(label, prefix) {
		return label
	}
	return prefix + label
}
