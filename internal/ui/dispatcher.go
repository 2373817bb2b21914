package ui

import (
	"context"
	"fmt"
	"image"
	"sync"

	"go.uber.org/zap"

	"github.com/gurgalex/SiralimAccess-sub000/internal/ocr"
	"github.com/gurgalex/SiralimAccess-sub000/internal/speech"
	"github.com/gurgalex/SiralimAccess-sub000/internal/vision"
)

// titleRegion is where screen titles are drawn, as fractions of the frame.
var titleRegion = frac(0.55, 0.00, 1.00, 0.10)

// Dispatcher routes whole-window frames to the speaker for the current
// screen. Frame handling and user actions may run on different
// goroutines.
type Dispatcher struct {
	engine     ocr.Engine
	voice      speech.Voice
	ocrEnabled bool
	logger     *zap.Logger

	mu       sync.Mutex
	mode     Mode
	speaker  Speaker
	silenced bool
}

// NewDispatcher returns a Dispatcher with no active screen.
//
// Precondition: engine, voice and logger must be non-nil.
func NewDispatcher(engine ocr.Engine, voice speech.Voice, ocrEnabled bool, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{engine: engine, voice: voice, ocrEnabled: ocrEnabled, logger: logger}
}

// Mode returns the screen selected by the last handled frame.
func (d *Dispatcher) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// Handle classifies f and lets the screen's speaker narrate any change.
//
// Postcondition: when no UI element is visible, the voice is silenced
// once and nothing is spoken until a UI element appears.
func (d *Dispatcher) Handle(ctx context.Context, f *vision.Frame) error {
	if f.Minimized {
		return nil
	}
	det, err := Detect(f.Color)
	if err != nil {
		return err
	}
	title := ""
	if d.ocrEnabled && !det.HasDialog {
		if title, err = d.readTitle(ctx, f.Gray); err != nil {
			return err
		}
	}
	mode := Classify(title, det)

	d.mu.Lock()
	defer d.mu.Unlock()
	if mode.Screen == ScreenUnknown && !det.Any() {
		if !d.silenced {
			d.voice.Silence()
			d.silenced = true
		}
		d.mode = mode
		d.speaker = nil
		return nil
	}
	d.silenced = false
	if d.speaker == nil || mode.Screen != d.mode.Screen || mode.Spell != d.mode.Spell {
		d.logger.Debug("ui screen changed",
			zap.Stringer("screen", mode.Screen),
			zap.String("title", mode.Title),
		)
		d.speaker = SpeakerFor(mode, d.engine, d.voice, d.ocrEnabled)
		d.mode = mode
	}
	if err := d.speaker.OCR(ctx, f, det); err != nil {
		return err
	}
	d.speaker.SpeakAuto()
	return nil
}

func (d *Dispatcher) readTitle(ctx context.Context, g *image.Gray) (string, error) {
	r := titleRegion(g.Bounds(), Detections{})
	lines, err := d.engine.Lines(ctx, vision.CropGray(g, r))
	if err != nil {
		return "", fmt.Errorf("reading screen title: %w", err)
	}
	if len(lines) == 0 {
		return "", nil
	}
	return lines[0].Text, nil
}

// ReadSecondary speaks the current screen's detail text.
func (d *Dispatcher) ReadSecondary() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.speaker == nil {
		return false
	}
	return d.speaker.SpeakInteraction()
}

// ReadAllInfo speaks every text region of the current screen.
func (d *Dispatcher) ReadAllInfo() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.speaker == nil {
		return false
	}
	return d.speaker.SpeakAllInfo()
}

// AllInfo returns every text region of the current screen.
func (d *Dispatcher) AllInfo() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.speaker == nil {
		return ""
	}
	return d.speaker.AllInfo()
}

// ForceOCR makes the next handled frame speak even if unchanged.
func (d *Dispatcher) ForceOCR() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.silenced = false
	if d.speaker != nil {
		d.speaker.Reset()
	}
}
