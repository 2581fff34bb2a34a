// Package media provides the media session input and output value types.
package media

import (
	"net/url"
	"path"
	"strings"
)

// SourceType classifies how the engine has to load a source.
type SourceType int

const (
	SourceProgressive SourceType = iota // Plain file or progressive download
	SourceHLS                           // HTTP Live Streaming
	SourceDASH                          // MPEG-DASH
	SourceSmoothStreaming               // Microsoft Smooth Streaming
)

// String returns the string representation of the source type.
func (t SourceType) String() string {
	switch t {
	case SourceProgressive:
		return "progressive"
	case SourceHLS:
		return "hls"
	case SourceDASH:
		return "dash"
	case SourceSmoothStreaming:
		return "smooth_streaming"
	default:
		return "unknown"
	}
}

// Source is a pre-built source handle ready to be handed to an engine.
type Source struct {
	URI     string
	Type    SourceType
	Headers map[string]string
}

// Item is the input of one playback session.
// When Source is set it takes precedence over URI.
type Item struct {
	URI    string
	Source *Source
}

// NewItem creates an item for a bare content URI.
func NewItem(uri string) *Item {
	return &Item{URI: uri}
}

// NewSourceItem creates an item for a pre-built source.
func NewSourceItem(src Source) *Item {
	return &Item{URI: src.URI, Source: &src}
}

// Resolve returns the source the engine should load.
// The second value is false when the item carries neither a source nor a URI.
func (i *Item) Resolve() (Source, bool) {
	if i == nil {
		return Source{}, false
	}
	if i.Source != nil {
		return *i.Source, true
	}
	if i.URI == "" {
		return Source{}, false
	}
	return Source{URI: i.URI, Type: InferSourceType(i.URI)}, true
}

// InferSourceType guesses the source type from the URI path extension.
func InferSourceType(uri string) SourceType {
	p := uri
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		p = u.Path
	}

	switch strings.ToLower(path.Ext(p)) {
	case ".m3u8":
		return SourceHLS
	case ".mpd":
		return SourceDASH
	case ".ism", ".isml":
		return SourceSmoothStreaming
	}

	// Smooth streaming manifests are usually addressed as <name>.ism/Manifest
	if strings.Contains(strings.ToLower(p), ".ism/") {
		return SourceSmoothStreaming
	}
	return SourceProgressive
}
