package backend

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Kind names a backend.
type Kind string

const (
	KindAuto     Kind = "auto" // Let the probe decide
	KindRich     Kind = "rich"
	KindFallback Kind = "fallback"
)

// ParseKind parses a backend name. The empty string is KindAuto.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindAuto, "":
		return KindAuto, nil
	case KindRich:
		return KindRich, nil
	case KindFallback:
		return KindFallback, nil
	default:
		return "", errors.Newf("unknown backend kind: %q", s)
	}
}

// DefaultMinRichAPILevel is the first API level the rich engine runs on.
const DefaultMinRichAPILevel = 16

// Capabilities describes the device the player runs on.
type Capabilities struct {
	Manufacturer string
	Model        string
	APILevel     int
}

// Device identifies devices the rich engine misbehaves on. An empty Model
// matches every model of the manufacturer.
type Device struct {
	Manufacturer string
	Model        string
}

// Matches reports whether caps describes d.
func (d Device) Matches(caps Capabilities) bool {
	if !strings.EqualFold(d.Manufacturer, caps.Manufacturer) {
		return false
	}
	return d.Model == "" || strings.EqualFold(d.Model, caps.Model)
}

// DefaultIncompatibleDevices lists the devices known to fail with the rich engine.
var DefaultIncompatibleDevices = []Device{
	{Manufacturer: "Amazon", Model: "AFTM"},
	{Manufacturer: "Amazon", Model: "AFTB"},
}

// Probe decides which backend the device gets. A forced kind wins over the
// capabilities.
type Probe struct {
	Forced          Kind
	MinRichAPILevel int
	Incompatible    []Device
}

// SupportsRich reports whether the rich engine can run on caps.
func (p Probe) SupportsRich(caps Capabilities) bool {
	minLevel := p.MinRichAPILevel
	if minLevel <= 0 {
		minLevel = DefaultMinRichAPILevel
	}
	if caps.APILevel < minLevel {
		return false
	}
	for _, d := range p.Incompatible {
		if d.Matches(caps) {
			return false
		}
	}
	return true
}

// Choose returns KindRich or KindFallback for caps.
func (p Probe) Choose(caps Capabilities) Kind {
	switch p.Forced {
	case KindRich, KindFallback:
		return p.Forced
	}
	if p.SupportsRich(caps) {
		return KindRich
	}
	return KindFallback
}
