package player

import (
	"github.com/osa030/playmux/internal/app/backend"
	"github.com/osa030/playmux/internal/app/looper"
)

// AudioPlayer plays audio-only media through one backend.
type AudioPlayer struct {
	*core
}

// NewAudioPlayer wraps api. handler must be the main thread api runs on.
func NewAudioPlayer(handler looper.Handler, api backend.AudioPlayerAPI, opts Options) *AudioPlayer {
	return &AudioPlayer{core: newCore(handler, api, opts)}
}

// Stop halts playback.
func (p *AudioPlayer) Stop() {
	p.stopwatch.Stop()
	p.api.Stop()
}
