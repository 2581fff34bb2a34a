package media

import "github.com/cockroachdb/errors"

// ErrNilSurface is returned when a nil surface is bound to a video backend.
var ErrNilSurface = errors.New("surface is nil")

// Surface is a video output surface owned by the UI layer.
type Surface struct {
	Name    string
	onClear func()
	cleared int
}

// NewSurface creates a surface. onClear is invoked every time the surface is blanked.
func NewSurface(name string, onClear func()) *Surface {
	return &Surface{Name: name, onClear: onClear}
}

// Clear blanks the surface.
func (s *Surface) Clear() {
	s.cleared++
	if s.onClear != nil {
		s.onClear()
	}
}

// ClearCount returns how many times the surface was blanked.
func (s *Surface) ClearCount() int {
	return s.cleared
}
