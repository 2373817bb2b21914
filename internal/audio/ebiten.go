package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	eaudio "github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"

	"github.com/gurgalex/SiralimAccess-sub000/internal/scan"
)

// SampleRate is the mixer output rate.
const SampleRate = 44100

// bytesPerFrame is one 16-bit stereo sample pair.
const bytesPerFrame = 4

// EbitenMixer loops cue sounds through the ebiten audio context with a
// per-channel stereo pan.
type EbitenMixer struct {
	ctx      *eaudio.Context
	channels map[scan.FoundType]*ebitenChannel
}

// NewEbitenMixer loads "<kind>_<cue>.wav" from dir for every sonified kind.
//
// Precondition: dir holds 16-bit PCM WAV files for every kind and cue.
// Postcondition: Returns a mixer with one idle channel per kind.
func NewEbitenMixer(dir string) (*EbitenMixer, error) {
	ctx := eaudio.CurrentContext()
	if ctx == nil {
		ctx = eaudio.NewContext(SampleRate)
	}
	m := &EbitenMixer{ctx: ctx, channels: make(map[scan.FoundType]*ebitenChannel)}
	for _, kind := range SonifiedKinds {
		ch := &ebitenChannel{ctx: ctx}
		for _, cue := range []Cue{CueNormal, CueLow, CueHigh} {
			path := filepath.Join(dir, fmt.Sprintf("%s_%s.wav", kind, cue))
			pcm, err := loadPCM(path)
			if err != nil {
				return nil, err
			}
			ch.cues[cue] = pcm
		}
		m.channels[kind] = ch
	}
	return m, nil
}

// Channel implements Mixer.
func (m *EbitenMixer) Channel(kind scan.FoundType) (Channel, bool) {
	ch, ok := m.channels[kind]
	return ch, ok
}

// Close stops every channel.
func (m *EbitenMixer) Close() {
	for _, ch := range m.channels {
		ch.Stop()
	}
}

func loadPCM(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening cue %s: %w", path, err)
	}
	defer f.Close()
	stream, err := wav.DecodeWithSampleRate(SampleRate, f)
	if err != nil {
		return nil, fmt.Errorf("decoding cue %s: %w", path, err)
	}
	pcm, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("reading cue %s: %w", path, err)
	}
	pcm = pcm[:len(pcm)-len(pcm)%bytesPerFrame]
	if len(pcm) == 0 {
		return nil, fmt.Errorf("cue %s is empty", path)
	}
	return pcm, nil
}

type ebitenChannel struct {
	ctx  *eaudio.Context
	cues [3][]byte

	mu     sync.Mutex
	player *eaudio.Player
	loop   *pannedLoop
	left   float64
	right  float64
}

func (c *ebitenChannel) Play(cue Cue) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	loop := newPannedLoop(c.cues[cue])
	loop.setGains(c.left, c.right)
	p, err := c.ctx.NewPlayer(loop)
	if err != nil {
		return fmt.Errorf("creating player: %w", err)
	}
	p.Play()
	c.player, c.loop = p, loop
	return nil
}

func (c *ebitenChannel) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *ebitenChannel) stopLocked() {
	if c.player == nil {
		return
	}
	c.player.Pause()
	_ = c.player.Close()
	c.player, c.loop = nil, nil
}

func (c *ebitenChannel) SetVolume(left, right float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.left, c.right = left, right
	if c.loop != nil {
		c.loop.setGains(left, right)
	}
}

// pannedLoop repeats a 16-bit stereo PCM buffer forever, scaling the left
// and right samples by independently adjustable gains.
type pannedLoop struct {
	pcm   []byte
	pos   int
	left  atomic.Uint64
	right atomic.Uint64
}

func newPannedLoop(pcm []byte) *pannedLoop {
	return &pannedLoop{pcm: pcm}
}

func (l *pannedLoop) setGains(left, right float64) {
	l.left.Store(math.Float64bits(left))
	l.right.Store(math.Float64bits(right))
}

func (l *pannedLoop) Read(p []byte) (int, error) {
	n := len(p) - len(p)%bytesPerFrame
	gl := math.Float64frombits(l.left.Load())
	gr := math.Float64frombits(l.right.Load())
	for i := 0; i < n; i += bytesPerFrame {
		ls := int16(binary.LittleEndian.Uint16(l.pcm[l.pos:]))
		rs := int16(binary.LittleEndian.Uint16(l.pcm[l.pos+2:]))
		binary.LittleEndian.PutUint16(p[i:], uint16(scale(ls, gl)))
		binary.LittleEndian.PutUint16(p[i+2:], uint16(scale(rs, gr)))
		l.pos += bytesPerFrame
		if l.pos >= len(l.pcm) {
			l.pos = 0
		}
	}
	return n, nil
}

func scale(s int16, g float64) int16 {
	v := float64(s) * g
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}
