// Package track provides the renderer and track group domain types.
package track

// RendererType is the backend-neutral classification of a renderer.
type RendererType int

const (
	RendererAudio RendererType = iota
	RendererVideo
	RendererClosedCaption
	RendererMetadata
)

// RendererTypes lists every renderer type in declaration order.
var RendererTypes = []RendererType{RendererAudio, RendererVideo, RendererClosedCaption, RendererMetadata}

// String returns the string representation of the renderer type.
func (t RendererType) String() string {
	switch t {
	case RendererAudio:
		return "audio"
	case RendererVideo:
		return "video"
	case RendererClosedCaption:
		return "closed_caption"
	case RendererMetadata:
		return "metadata"
	default:
		return "unknown"
	}
}

// ParseRendererType parses the string form produced by String.
func ParseRendererType(s string) (RendererType, bool) {
	for _, t := range RendererTypes {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

// Format describes one encoding of a track.
type Format struct {
	ID       string // Format ID
	MimeType string // Sample MIME type
	Language string // BCP 47 language tag
	Bitrate  int    // Bits per second
	Width    int    // Video width (0 for non-video)
	Height   int    // Video height (0 for non-video)
}

// Group is a set of alternative formats for the same content.
type Group struct {
	Formats []Format
}

// Len returns the number of tracks in the group.
func (g Group) Len() int {
	return len(g.Formats)
}

// Map holds the available groups per renderer type.
type Map map[RendererType][]Group
