// Package snapshot turns raw event snapshot documents into ordered views.
//
// A document has the shape delivered by the realtime feed:
//
//	{"matches": {"2020casj_qm1": {"comp_level": "qm", "order": 1, "alliances": {...}}}}
//
// Parsing never mutates its input and is deterministic: the same bytes yield
// equal views.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/okian/matchbar/internal/domain/model"
)

// State classifies a parsed document.
type State string

const (
	StateAbsent    State = "absent"
	StateEmpty     State = "empty"
	StateReady     State = "ready"
	StateMalformed State = "malformed"
)

// View is the ordered projection of one snapshot.
type View struct {
	State     State
	Upcoming  []model.MatchRecord
	Completed []model.MatchRecord
	Err       error // set when State is StateMalformed
}

// HasData reports whether the view carries any match.
func (v View) HasData() bool { return v.State == StateReady }

// LastCompleted returns the tail of Completed.
func (v View) LastCompleted() (model.MatchRecord, bool) {
	if len(v.Completed) == 0 {
		return model.MatchRecord{}, false
	}
	return v.Completed[len(v.Completed)-1], true
}

// Len is the total number of matches in the view.
func (v View) Len() int { return len(v.Upcoming) + len(v.Completed) }

type document struct {
	Matches map[string]*matchDoc `json:"matches"`
}

type matchDoc struct {
	CompLevel       string                  `json:"comp_level"`
	SetNumber       int                     `json:"set_number"`
	MatchNumber     int                     `json:"match_number"`
	Order           int                     `json:"order"`
	Alliances       map[string]*allianceDoc `json:"alliances"`
	WinningAlliance *string                 `json:"winning_alliance"`
}

type allianceDoc struct {
	Teams []string `json:"teams"`
	Score *int     `json:"score"`
}

// Parse decodes raw into a View. A nil or JSON null document is absent.
func Parse(raw []byte) View {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return View{State: StateAbsent}
	}

	var doc document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return malformed(fmt.Errorf("%w: decode: %v", ErrMalformed, err))
	}
	if len(doc.Matches) == 0 {
		return View{State: StateEmpty}
	}

	records := make([]model.MatchRecord, 0, len(doc.Matches))
	for key, m := range doc.Matches {
		rec, err := toRecord(key, m)
		if err != nil {
			return malformed(err)
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Order != records[j].Order {
			return records[i].Order < records[j].Order
		}
		return records[i].Key < records[j].Key
	})

	view := View{State: StateReady}
	for _, rec := range records {
		if rec.Completed() {
			view.Completed = append(view.Completed, rec)
		} else {
			view.Upcoming = append(view.Upcoming, rec)
		}
	}
	return view
}

func malformed(err error) View {
	return View{State: StateMalformed, Err: err}
}

func toRecord(key string, m *matchDoc) (model.MatchRecord, error) {
	if m == nil {
		return model.MatchRecord{}, fmt.Errorf("%w: match %s is null", ErrMalformed, key)
	}
	red, err := toAlliance(key, model.ColorRed, m.Alliances)
	if err != nil {
		return model.MatchRecord{}, err
	}
	blue, err := toAlliance(key, model.ColorBlue, m.Alliances)
	if err != nil {
		return model.MatchRecord{}, err
	}

	rec := model.MatchRecord{
		Key:         key,
		CompLevel:   model.CompLevel(m.CompLevel),
		SetNumber:   m.SetNumber,
		MatchNumber: m.MatchNumber,
		Order:       m.Order,
		Red:         red,
		Blue:        blue,
	}
	if m.WinningAlliance != nil {
		w := model.Winner(*m.WinningAlliance)
		rec.Reported = &w
	}
	return rec, nil
}

func toAlliance(key string, color model.Color, alliances map[string]*allianceDoc) (model.Alliance, error) {
	a, ok := alliances[string(color)]
	if !ok || a == nil {
		return model.Alliance{}, fmt.Errorf("%w: match %s: missing %s alliance", ErrMalformed, key, color)
	}
	if len(a.Teams) != 3 {
		return model.Alliance{}, fmt.Errorf("%w: match %s: %s alliance has %d teams", ErrMalformed, key, color, len(a.Teams))
	}
	if a.Score == nil {
		return model.Alliance{}, fmt.Errorf("%w: match %s: missing %s score", ErrMalformed, key, color)
	}
	out := model.Alliance{Color: color, Score: *a.Score}
	copy(out.Teams[:], a.Teams)
	return out, nil
}
