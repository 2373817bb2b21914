// Package audio turns scanner findings into looping directional cues: one
// mixer channel per object kind, cue pitch by vertical direction, stereo
// gain by distance and side.
package audio

import (
	"sync"

	"go.uber.org/zap"

	"github.com/gurgalex/SiralimAccess-sub000/internal/scan"
)

// Cue is one of the three sounds a channel can loop.
type Cue int

const (
	// CueNormal plays when the object is on the player's row.
	CueNormal Cue = iota
	// CueLow plays when the object is below the player.
	CueLow
	// CueHigh plays when the object is above the player.
	CueHigh
)

func (c Cue) String() string {
	switch c {
	case CueLow:
		return "low"
	case CueHigh:
		return "high"
	default:
		return "normal"
	}
}

// SonifiedKinds are the kinds with a mixer channel. Floors, walls,
// decorations and fog are silent.
var SonifiedKinds = []scan.FoundType{
	scan.FoundQuest,
	scan.FoundTeleportationShrine,
	scan.FoundMasterNPC,
	scan.FoundAltar,
	scan.FoundProjectItem,
	scan.FoundNPC,
}

// CueFor selects the cue for a vertical offset: low iff dy > 0, high iff
// dy < 0, normal iff dy == 0.
func CueFor(dy int) Cue {
	switch {
	case dy > 0:
		return CueLow
	case dy < 0:
		return CueHigh
	default:
		return CueNormal
	}
}

// Gains returns the stereo gains for an object at tile offset (dx, dy).
// Objects to the right are heard only on the right, objects to the left
// only on the left, and objects straight above or below on both sides.
func Gains(dx, dy int) (left, right float64) {
	ady := abs(dy)
	switch {
	case dx > 0:
		return 0, 1 / float64(dx+ady+1)
	case dx < 0:
		return 1 / float64(-dx+ady+1), 0
	default:
		g := 1 / float64(ady+1)
		return g, g
	}
}

// Channel is one looping mixer voice.
type Channel interface {
	// Play starts looping cue, replacing whatever the channel was playing.
	Play(cue Cue) error
	Stop()
	SetVolume(left, right float64)
}

// Mixer hands out the channel bound to each sonified kind.
type Mixer interface {
	Channel(kind scan.FoundType) (Channel, bool)
}

// Engine keeps each kind's channel in step with the latest findings.
// It is safe for concurrent use.
type Engine struct {
	mixer  Mixer
	logger *zap.Logger

	mu      sync.Mutex
	playing map[scan.FoundType]Cue
}

// NewEngine returns an Engine driving mixer.
//
// Precondition: mixer and logger must be non-nil.
func NewEngine(mixer Mixer, logger *zap.Logger) *Engine {
	return &Engine{
		mixer:   mixer,
		logger:  logger,
		playing: make(map[scan.FoundType]Cue),
	}
}

// Update sonifies the first offset of every sonified kind. A kind with no
// offsets is stopped; a kind whose cue changed is restarted; otherwise only
// the volumes move.
func (e *Engine) Update(found scan.Found) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, kind := range SonifiedKinds {
		ch, ok := e.mixer.Channel(kind)
		if !ok {
			continue
		}
		p, ok := found.First(kind)
		if !ok {
			if _, playing := e.playing[kind]; playing {
				ch.Stop()
				delete(e.playing, kind)
			}
			continue
		}
		cue := CueFor(p.Y)
		left, right := Gains(p.X, p.Y)
		if cur, playing := e.playing[kind]; !playing || cur != cue {
			if err := ch.Play(cue); err != nil {
				e.logger.Warn("starting cue",
					zap.Stringer("kind", kind),
					zap.Stringer("cue", cue),
					zap.Error(err),
				)
				continue
			}
			e.playing[kind] = cue
		}
		ch.SetVolume(left, right)
	}
}

// StopAll silences every channel.
func (e *Engine) StopAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for kind := range e.playing {
		if ch, ok := e.mixer.Channel(kind); ok {
			ch.Stop()
		}
		delete(e.playing, kind)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
