package listenermux

import (
	"weak"

	"github.com/osa030/playmux/internal/domain/media"
)

// Clearable is something the mux can blank.
type Clearable interface {
	Clear()
}

// SurfaceRef is a non-owning reference to a surface.
// Get returns false once the surface is gone.
type SurfaceRef interface {
	Get() (Clearable, bool)
}

type weakSurface struct {
	p weak.Pointer[media.Surface]
}

func (w weakSurface) Get() (Clearable, bool) {
	s := w.p.Value()
	if s == nil {
		return nil, false
	}
	return s, true
}

type goneSurface struct{}

func (goneSurface) Get() (Clearable, bool) { return nil, false }

// WeakSurface returns a reference to s that does not keep it alive.
func WeakSurface(s *media.Surface) SurfaceRef {
	if s == nil {
		return goneSurface{}
	}
	return weakSurface{p: weak.Make(s)}
}
