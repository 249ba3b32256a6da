package matchbar

import (
	"fmt"
	"sync"
)

// Recorder is an in-memory Renderer. It keeps every op and a client-side
// replica of the list built by applying them.
type Recorder struct {
	mu      sync.Mutex
	ops     []Op
	replica []Cell
	fail    error
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Render applies op to the replica.
func (r *Recorder) Render(op Op) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	next, err := Apply(r.replica, op)
	if err != nil {
		return err
	}
	r.replica = next
	r.ops = append(r.ops, op)
	return nil
}

// FailWith makes subsequent renders return err.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	r.fail = err
	r.mu.Unlock()
}

// Ops returns the recorded ops.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Op(nil), r.ops...)
}

// Reset forgets recorded ops but keeps the replica.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.ops = nil
	r.mu.Unlock()
}

// Replica returns the list as a client applying the ops would see it.
func (r *Recorder) Replica() []Cell {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Cell{}, r.replica...)
}

// Apply returns cells with op applied. It is what a client does with each op.
func Apply(cells []Cell, op Op) ([]Cell, error) {
	switch op.Kind {
	case OpInsert:
		if op.Index < 0 || op.Index > len(cells) || op.Cell == nil {
			return cells, fmt.Errorf("%w: insert at %d", ErrBadOp, op.Index)
		}
		cells = append(cells, Cell{})
		copy(cells[op.Index+1:], cells[op.Index:])
		cells[op.Index] = *op.Cell
	case OpRemove:
		if op.Index < 0 || op.Index >= len(cells) {
			return cells, fmt.Errorf("%w: remove at %d", ErrBadOp, op.Index)
		}
		cells = append(cells[:op.Index], cells[op.Index+1:]...)
	case OpReplace:
		if op.Index < 0 || op.Index >= len(cells) || op.Cell == nil {
			return cells, fmt.Errorf("%w: replace at %d", ErrBadOp, op.Index)
		}
		cells[op.Index] = *op.Cell
	case OpRelabel:
		if op.Index < 0 || op.Index >= len(cells) {
			return cells, fmt.Errorf("%w: relabel at %d", ErrBadOp, op.Index)
		}
		cells[op.Index].Label = op.Label
	default:
		return cells, fmt.Errorf("%w: kind %q", ErrBadOp, op.Kind)
	}
	return cells, nil
}
