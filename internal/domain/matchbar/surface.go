package matchbar

import (
	"fmt"

	"github.com/google/uuid"
)

// OpKind names a surface mutation.
type OpKind string

const (
	OpInsert  OpKind = "insert"
	OpRemove  OpKind = "remove"
	OpReplace OpKind = "replace"
	OpRelabel OpKind = "relabel"
)

// Op is a single mutation at Index. Cell is set for insert and replace,
// Label for relabel.
type Op struct {
	Kind  OpKind `json:"op"`
	Index int    `json:"index"`
	Cell  *Cell  `json:"cell,omitempty"`
	Label string `json:"label,omitempty"`
}

// Renderer applies ops to whatever draws the surface.
type Renderer interface {
	Render(op Op) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(Op) error

// Render calls f(op).
func (f RendererFunc) Render(op Op) error { return f(op) }

// Surface is the ordered list of cells of one matchbar panel.
// Not safe for concurrent use.
type Surface struct {
	id       string
	eventKey string
	cells    []Cell
	renderer Renderer
	err      error
}

// SurfaceOption configures a Surface.
type SurfaceOption func(*Surface)

// WithSurfaceID overrides the generated id.
func WithSurfaceID(id string) SurfaceOption {
	return func(s *Surface) {
		if id != "" {
			s.id = id
		}
	}
}

// NewSurface returns an empty surface for eventKey drawing through r.
func NewSurface(eventKey string, r Renderer, opts ...SurfaceOption) *Surface {
	s := &Surface{
		id:       uuid.NewString(),
		eventKey: eventKey,
		renderer: r,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Surface) ID() string       { return s.id }
func (s *Surface) EventKey() string { return s.eventKey }
func (s *Surface) Len() int         { return len(s.cells) }

// Err returns the first renderer failure. Once set, ops are no longer
// forwarded but the logical list keeps tracking.
func (s *Surface) Err() error { return s.err }

// Cells returns a copy of the current list.
func (s *Surface) Cells() []Cell {
	out := make([]Cell, len(s.cells))
	copy(out, s.cells)
	return out
}

// Index returns the position of the cell with key, or -1.
func (s *Surface) Index(key string) int {
	for i, c := range s.cells {
		if c.Key == key {
			return i
		}
	}
	return -1
}

func (s *Surface) insert(i int, c Cell) {
	s.cells = append(s.cells, Cell{})
	copy(s.cells[i+1:], s.cells[i:])
	s.cells[i] = c
	s.emit(Op{Kind: OpInsert, Index: i, Cell: &c})
}

func (s *Surface) remove(i int) {
	s.cells = append(s.cells[:i], s.cells[i+1:]...)
	s.emit(Op{Kind: OpRemove, Index: i})
}

func (s *Surface) replace(i int, c Cell) {
	s.cells[i] = c
	s.emit(Op{Kind: OpReplace, Index: i, Cell: &c})
}

func (s *Surface) relabel(i int, label string) {
	s.cells[i].Label = label
	s.emit(Op{Kind: OpRelabel, Index: i, Label: label})
}

func (s *Surface) emit(op Op) {
	if s.err != nil || s.renderer == nil {
		return
	}
	if err := s.renderer.Render(op); err != nil {
		s.err = fmt.Errorf("%w: surface %s: %v", ErrRenderFailed, s.id, err)
	}
}
