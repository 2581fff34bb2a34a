// Package trackmgr translates the caller-facing (renderer type, logical
// group) track addressing onto the engine's flat renderer index space.
package trackmgr

import (
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/playmux/internal/domain/track"
	"github.com/osa030/playmux/internal/infra/engine"
)

// IndexUnset marks a renderer or group index that did not resolve.
const IndexUnset = -1

// RendererTrackInfo is the engine addressing of one logical group.
type RendererTrackInfo struct {
	// RendererIndexes holds every engine renderer of the requested type, in engine order.
	RendererIndexes []int
	// RendererIndex is the renderer owning the logical group, or IndexUnset.
	RendererIndex int
	// GroupIndex is the logical group renumbered for that renderer, or IndexUnset.
	GroupIndex int
}

// RendererTypeOf maps an engine track type onto a renderer type.
func RendererTypeOf(t engine.TrackType) (track.RendererType, bool) {
	switch t {
	case engine.TrackTypeAudio:
		return track.RendererAudio, true
	case engine.TrackTypeVideo:
		return track.RendererVideo, true
	case engine.TrackTypeText:
		return track.RendererClosedCaption, true
	case engine.TrackTypeMetadata:
		return track.RendererMetadata, true
	default:
		return 0, false
	}
}

// Manager applies track selection through an engine TrackSelector.
type Manager struct {
	selector engine.TrackSelector
}

// New creates a manager for selector.
func New(selector engine.TrackSelector) *Manager {
	return &Manager{selector: selector}
}

// RendererTrackInfo resolves the logical groupIndex of rendererType.
//
// Logical group indexes concatenate the groups of every renderer of the type
// in renderer order, so the owner is the first renderer whose cumulative range
// contains groupIndex. The renderer list is filled even when nothing owns the
// index, which bulk enable and disable rely on.
func (m *Manager) RendererTrackInfo(rendererType track.RendererType, groupIndex int) RendererTrackInfo {
	return resolve(m.selector.MappedTrackInfo(), rendererType, groupIndex)
}

func resolve(mapped *engine.MappedTrackInfo, rendererType track.RendererType, groupIndex int) RendererTrackInfo {
	info := RendererTrackInfo{RendererIndexes: []int{}, RendererIndex: IndexUnset, GroupIndex: IndexUnset}
	if mapped == nil {
		return info
	}

	skipped := 0
	for i := 0; i < mapped.RendererCount(); i++ {
		t, ok := RendererTypeOf(mapped.RendererType(i))
		if !ok || t != rendererType {
			continue
		}
		info.RendererIndexes = append(info.RendererIndexes, i)

		groups := len(mapped.TrackGroups(i))
		if skipped+groups <= groupIndex {
			skipped += groups
			continue
		}

		if info.RendererIndex == IndexUnset && groupIndex >= skipped {
			info.RendererIndex = i
			info.GroupIndex = groupIndex - skipped
		}
	}
	return info
}

// AvailableTracks returns the groups of every renderer type that has any, or
// nil when the engine has not mapped the media yet.
func (m *Manager) AvailableTracks() track.Map {
	mapped := m.selector.MappedTrackInfo()
	if mapped == nil {
		return nil
	}

	tracks := make(track.Map)
	for _, t := range track.RendererTypes {
		var groups []track.Group
		for _, r := range resolve(mapped, t, 0).RendererIndexes {
			groups = append(groups, mapped.TrackGroups(r)...)
		}
		if len(groups) > 0 {
			tracks[t] = groups
		}
	}
	return tracks
}

// SelectedTrackIndex returns the track pinned in the logical group, or -1
// when the group is not pinned.
func (m *Manager) SelectedTrackIndex(rendererType track.RendererType, groupIndex int) int {
	mapped := m.selector.MappedTrackInfo()
	info := resolve(mapped, rendererType, groupIndex)
	if info.RendererIndex == IndexUnset || len(mapped.TrackGroups(info.RendererIndex)) == 0 {
		return -1
	}

	o, ok := m.selector.Parameters().SelectionOverride(info.RendererIndex)
	if !ok || o.GroupIndex != info.GroupIndex || len(o.Tracks) == 0 {
		return -1
	}
	return o.Tracks[0]
}

// SetSelectedTrack pins trackIndex of the logical group and disables every
// other renderer of the type. Only the owning renderer's override is
// replaced. Out of range requests are ignored.
func (m *Manager) SetSelectedTrack(rendererType track.RendererType, groupIndex, trackIndex int) {
	mapped := m.selector.MappedTrackInfo()
	info := resolve(mapped, rendererType, groupIndex)
	if info.RendererIndex == IndexUnset || trackIndex < 0 {
		return
	}

	groups := mapped.TrackGroups(info.RendererIndex)
	if len(groups) == 0 || len(groups) <= info.GroupIndex {
		return
	}
	if groups[info.GroupIndex].Len() <= trackIndex {
		return
	}

	zlog.Debug().Msgf("trackmgr: select type=%s group=%d track=%d renderer=%d",
		rendererType, groupIndex, trackIndex, info.RendererIndex)

	// The engine fails when two renderers of one type are active without
	// an explicit mapping, so the siblings are disabled. Their overrides stay.
	b := m.selector.Parameters().BuildUpon()
	for _, r := range info.RendererIndexes {
		if r == info.RendererIndex {
			b.ClearSelectionOverrides(r)
			b.SetSelectionOverride(r, engine.SelectionOverride{GroupIndex: info.GroupIndex, Tracks: []int{trackIndex}})
			b.SetRendererDisabled(r, false)
		} else {
			b.SetRendererDisabled(r, true)
		}
	}
	m.selector.SetParameters(b.Build())
}

// ClearSelectedTracks re-enables every renderer of the type and drops their overrides.
func (m *Manager) ClearSelectedTracks(rendererType track.RendererType) {
	info := m.RendererTrackInfo(rendererType, 0)

	b := m.selector.Parameters().BuildUpon()
	for _, r := range info.RendererIndexes {
		b.SetRendererDisabled(r, false)
		b.ClearSelectionOverrides(r)
	}
	m.selector.SetParameters(b.Build())
}

// SetRendererEnabled disables every renderer of the type, or re-enables the
// ones that carry an override. When none does, the first one is enabled.
func (m *Manager) SetRendererEnabled(rendererType track.RendererType, enabled bool) {
	info := m.RendererTrackInfo(rendererType, 0)
	if len(info.RendererIndexes) == 0 {
		return
	}

	params := m.selector.Parameters()
	b := params.BuildUpon()
	enabledSomething := false
	for _, r := range info.RendererIndexes {
		if !enabled {
			b.SetRendererDisabled(r, true)
			continue
		}

		// Renderers without an override stay disabled, nothing says which track they should play.
		if _, ok := params.SelectionOverride(r); ok {
			b.SetRendererDisabled(r, false)
			enabledSomething = true
		}
	}

	if enabled && !enabledSomething {
		b.SetRendererDisabled(info.RendererIndexes[0], false)
	}
	m.selector.SetParameters(b.Build())
}

// IsRendererEnabled reports whether any renderer of the type is enabled.
func (m *Manager) IsRendererEnabled(rendererType track.RendererType) bool {
	info := m.RendererTrackInfo(rendererType, 0)
	params := m.selector.Parameters()
	for _, r := range info.RendererIndexes {
		if !params.RendererDisabled(r) {
			return true
		}
	}
	return false
}

// IsRendererIndexEnabled reports whether the engine renderer at index is enabled.
func (m *Manager) IsRendererIndexEnabled(index int) bool {
	return !m.selector.Parameters().RendererDisabled(index)
}
