package audio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/gurgalex/SiralimAccess-sub000/internal/audio"
	"github.com/gurgalex/SiralimAccess-sub000/internal/geom"
	"github.com/gurgalex/SiralimAccess-sub000/internal/scan"
)

type fakeChannel struct {
	plays       []audio.Cue
	stops       int
	left, right float64
}

func (c *fakeChannel) Play(cue audio.Cue) error {
	c.plays = append(c.plays, cue)
	return nil
}

func (c *fakeChannel) Stop() { c.stops++ }

func (c *fakeChannel) SetVolume(left, right float64) { c.left, c.right = left, right }

type fakeMixer map[scan.FoundType]*fakeChannel

func newFakeMixer() fakeMixer {
	m := make(fakeMixer)
	for _, k := range audio.SonifiedKinds {
		m[k] = &fakeChannel{}
	}
	return m
}

func (m fakeMixer) Channel(kind scan.FoundType) (audio.Channel, bool) {
	ch, ok := m[kind]
	return ch, ok
}

func TestEngine_AltarAboveRight(t *testing.T) {
	mixer := newFakeMixer()
	e := audio.NewEngine(mixer, zap.NewNop())
	e.Update(scan.Found{scan.FoundAltar: {geom.Pt(2, -1)}})

	ch := mixer[scan.FoundAltar]
	require.Equal(t, []audio.Cue{audio.CueHigh}, ch.plays)
	assert.Equal(t, 0.0, ch.left)
	assert.InDelta(t, 0.25, ch.right, 1e-12)
}

func TestEngine_FogStartsNothing(t *testing.T) {
	mixer := newFakeMixer()
	e := audio.NewEngine(mixer, zap.NewNop())
	e.Update(scan.Found{scan.FoundBlack: {geom.Pt(1, 0), geom.Pt(0, 1)}})
	for kind, ch := range mixer {
		assert.Empty(t, ch.plays, kind.String())
		assert.Zero(t, ch.stops, kind.String())
	}
}

func TestEngine_SameCueOnlyUpdatesVolume(t *testing.T) {
	mixer := newFakeMixer()
	e := audio.NewEngine(mixer, zap.NewNop())
	e.Update(scan.Found{scan.FoundNPC: {geom.Pt(-1, 2)}})
	e.Update(scan.Found{scan.FoundNPC: {geom.Pt(-3, 1)}})

	ch := mixer[scan.FoundNPC]
	assert.Equal(t, []audio.Cue{audio.CueLow}, ch.plays)
	assert.InDelta(t, 0.2, ch.left, 1e-12)
}

func TestEngine_CueChangeRestarts(t *testing.T) {
	mixer := newFakeMixer()
	e := audio.NewEngine(mixer, zap.NewNop())
	e.Update(scan.Found{scan.FoundQuest: {geom.Pt(0, 2)}})
	e.Update(scan.Found{scan.FoundQuest: {geom.Pt(0, 0)}})
	assert.Equal(t, []audio.Cue{audio.CueLow, audio.CueNormal}, mixer[scan.FoundQuest].plays)
}

func TestEngine_EmptyStops(t *testing.T) {
	mixer := newFakeMixer()
	e := audio.NewEngine(mixer, zap.NewNop())
	e.Update(scan.Found{scan.FoundMasterNPC: {geom.Pt(1, 1)}})
	e.Update(scan.Found{})
	e.Update(scan.Found{})
	assert.Equal(t, 1, mixer[scan.FoundMasterNPC].stops)
}

func TestEngine_StopAll(t *testing.T) {
	mixer := newFakeMixer()
	e := audio.NewEngine(mixer, zap.NewNop())
	e.Update(scan.Found{scan.FoundNPC: {geom.Pt(1, 1)}, scan.FoundAltar: {geom.Pt(0, -1)}})
	e.StopAll()
	assert.Equal(t, 1, mixer[scan.FoundNPC].stops)
	assert.Equal(t, 1, mixer[scan.FoundAltar].stops)
}

func TestCueFor(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dy := rapid.IntRange(-50, 50).Draw(rt, "dy")
		cue := audio.CueFor(dy)
		assert.Equal(rt, dy > 0, cue == audio.CueLow)
		assert.Equal(rt, dy < 0, cue == audio.CueHigh)
		assert.Equal(rt, dy == 0, cue == audio.CueNormal)
	})
}

// TestGains_Monotonic verifies that the audible gain strictly decreases as
// the tile distance grows on the same side, and that centred objects are
// balanced.
func TestGains_Monotonic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		sign := rapid.SampledFrom([]int{-1, 0, 1}).Draw(rt, "sign")
		ax := rapid.IntRange(1, 40).Draw(rt, "ax")
		dy := rapid.IntRange(-40, 40).Draw(rt, "dy")
		grow := rapid.IntRange(1, 10).Draw(rt, "grow")

		if sign == 0 {
			l, r := audio.Gains(0, dy)
			assert.Equal(rt, l, r)
			l2, _ := audio.Gains(0, abs(dy)+grow)
			assert.Less(rt, l2, l)
			return
		}
		dx := sign * ax
		farDx := sign * (ax + grow)
		l1, r1 := audio.Gains(dx, dy)
		l2, r2 := audio.Gains(farDx, dy)
		if sign > 0 {
			assert.Zero(rt, l1)
			assert.Less(rt, r2, r1)
		} else {
			assert.Zero(rt, r1)
			assert.Less(rt, l2, l1)
		}
	})
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
