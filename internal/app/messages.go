package service

import (
	"github.com/okian/matchbar/internal/adapters/feed"
	"github.com/okian/matchbar/internal/domain/matchbar"
)

// message is everything the loop handles. Each kind carries its own reply
// channel when the caller waits for a result.
type message interface {
	Kind() string
}

type pushMsg struct {
	delivery feed.Delivery
}

type setActiveMsg struct {
	keys  []string
	reply chan ChangeSet
}

type activeMsg struct {
	reply chan []string
}

type attachMsg struct {
	surface *matchbar.Surface
	reply   chan struct{}
}

type detachMsg struct {
	id    string
	reply chan bool
}

type followOp int

const (
	opFollow followOp = iota
	opUnfollow
)

type followResult struct {
	changed bool
	err     error
}

type followMsg struct {
	op    followOp
	team  string
	reply chan followResult
}

type listFollowsMsg struct {
	reply chan []int
}

type statsMsg struct {
	reply chan Stats
}

func (pushMsg) Kind() string        { return "push" }
func (setActiveMsg) Kind() string   { return "set_active" }
func (activeMsg) Kind() string      { return "active" }
func (attachMsg) Kind() string      { return "attach" }
func (detachMsg) Kind() string      { return "detach" }
func (followMsg) Kind() string      { return "follow" }
func (listFollowsMsg) Kind() string { return "list_follows" }
func (statsMsg) Kind() string       { return "stats" }
