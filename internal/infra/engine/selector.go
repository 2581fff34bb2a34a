package engine

import (
	"github.com/osa030/playmux/internal/domain/track"
)

// MappedRenderer is one engine renderer and the groups mapped to it.
type MappedRenderer struct {
	Type   TrackType
	Groups []track.Group
}

// MappedTrackInfo is the renderer to track group mapping of the loaded media.
type MappedTrackInfo struct {
	Renderers []MappedRenderer
}

// RendererCount returns the number of renderers.
func (m *MappedTrackInfo) RendererCount() int {
	return len(m.Renderers)
}

// RendererType returns the engine type of the renderer at index.
func (m *MappedTrackInfo) RendererType(index int) TrackType {
	return m.Renderers[index].Type
}

// TrackGroups returns the groups mapped to the renderer at index.
func (m *MappedTrackInfo) TrackGroups(index int) []track.Group {
	return m.Renderers[index].Groups
}

// SelectionOverride pins a renderer to tracks of one of its groups.
type SelectionOverride struct {
	GroupIndex int
	Tracks     []int
}

// Parameters is an immutable set of track selection constraints.
type Parameters struct {
	disabled  map[int]bool
	overrides map[int]SelectionOverride
}

// RendererDisabled reports whether the renderer at index is disabled.
func (p Parameters) RendererDisabled(index int) bool {
	return p.disabled[index]
}

// SelectionOverride returns the override installed on the renderer at index.
func (p Parameters) SelectionOverride(index int) (SelectionOverride, bool) {
	o, ok := p.overrides[index]
	return o, ok
}

// BuildUpon returns a builder initialised with a copy of p.
func (p Parameters) BuildUpon() *ParametersBuilder {
	b := &ParametersBuilder{
		disabled:  make(map[int]bool, len(p.disabled)),
		overrides: make(map[int]SelectionOverride, len(p.overrides)),
	}
	for k, v := range p.disabled {
		b.disabled[k] = v
	}
	for k, v := range p.overrides {
		b.overrides[k] = v
	}
	return b
}

// ParametersBuilder accumulates changes to Parameters.
type ParametersBuilder struct {
	disabled  map[int]bool
	overrides map[int]SelectionOverride
}

// SetRendererDisabled disables or enables the renderer at index.
func (b *ParametersBuilder) SetRendererDisabled(index int, disabled bool) *ParametersBuilder {
	if disabled {
		b.disabled[index] = true
	} else {
		delete(b.disabled, index)
	}
	return b
}

// SetSelectionOverride installs an override on the renderer at index.
func (b *ParametersBuilder) SetSelectionOverride(index int, o SelectionOverride) *ParametersBuilder {
	tracks := make([]int, len(o.Tracks))
	copy(tracks, o.Tracks)
	b.overrides[index] = SelectionOverride{GroupIndex: o.GroupIndex, Tracks: tracks}
	return b
}

// ClearSelectionOverrides removes every override of the renderer at index.
func (b *ParametersBuilder) ClearSelectionOverrides(index int) *ParametersBuilder {
	delete(b.overrides, index)
	return b
}

// Build returns the accumulated parameters.
func (b *ParametersBuilder) Build() Parameters {
	return Parameters{disabled: b.disabled, overrides: b.overrides}
}

// TrackSelector maps the loaded media onto renderers and applies parameters.
type TrackSelector interface {
	// MappedTrackInfo returns nil until the media tracks are known.
	MappedTrackInfo() *MappedTrackInfo
	Parameters() Parameters
	SetParameters(p Parameters)
}

// DefaultTrackSelector is a TrackSelector that stores whatever it is given.
type DefaultTrackSelector struct {
	mapped *MappedTrackInfo
	params Parameters
}

// NewDefaultTrackSelector creates a selector with no mapped tracks.
func NewDefaultTrackSelector() *DefaultTrackSelector {
	return &DefaultTrackSelector{}
}

// MappedTrackInfo implements TrackSelector.
func (s *DefaultTrackSelector) MappedTrackInfo() *MappedTrackInfo {
	return s.mapped
}

// SetMappedTrackInfo replaces the mapping, as the engine does after preparing new media.
func (s *DefaultTrackSelector) SetMappedTrackInfo(m *MappedTrackInfo) {
	s.mapped = m
}

// Parameters implements TrackSelector.
func (s *DefaultTrackSelector) Parameters() Parameters {
	return s.params
}

// SetParameters implements TrackSelector.
func (s *DefaultTrackSelector) SetParameters(p Parameters) {
	s.params = p
}
