package ui

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/gurgalex/SiralimAccess-sub000/internal/ocr"
	"github.com/gurgalex/SiralimAccess-sub000/internal/speech"
	"github.com/gurgalex/SiralimAccess-sub000/internal/vision"
)

// Speaker narrates one screen.
//
// Invariant: SpeakAuto emits nothing while the auto-spoken text regions
// are unchanged since its previous call.
type Speaker interface {
	// OCR reads the screen's text regions into the current snapshot.
	OCR(ctx context.Context, f *vision.Frame, d Detections) error
	// SpeakAuto speaks the primary text if it changed. Reports whether
	// anything was spoken.
	SpeakAuto() bool
	// SpeakInteraction speaks the secondary detail text unconditionally.
	SpeakInteraction() bool
	// SpeakAllInfo speaks every text region.
	SpeakAllInfo() bool
	// AllInfo returns every text region joined by newlines.
	AllInfo() string
	// Reset forgets the previous snapshot so the next SpeakAuto speaks.
	Reset()
}

// regionFunc locates a text region in a frame with bounds b.
type regionFunc func(b image.Rectangle, d Detections) image.Rectangle

// frac returns a region given as fractions of the frame size.
func frac(x0, y0, x1, y1 float64) regionFunc {
	return func(b image.Rectangle, _ Detections) image.Rectangle {
		w, h := float64(b.Dx()), float64(b.Dy())
		return image.Rect(
			b.Min.X+int(x0*w), b.Min.Y+int(y0*h),
			b.Min.X+int(x1*w), b.Min.Y+int(y1*h),
		)
	}
}

func highlightRegion(_ image.Rectangle, d Detections) image.Rectangle {
	if !d.HasHighlight {
		return image.Rectangle{}
	}
	return d.Highlight
}

func dialogRegion(b image.Rectangle, d Detections) image.Rectangle {
	if !d.HasDialog {
		return image.Rectangle{}
	}
	// Extend to the full line width; the bright detector only bounds the
	// lit glyphs.
	return image.Rect(d.Dialog.Min.X, d.Dialog.Min.Y-4, b.Max.X, d.Dialog.Max.Y+4).Intersect(b)
}

func stripRegion(b image.Rectangle, d Detections) image.Rectangle {
	if !d.HasStrip {
		return image.Rectangle{}
	}
	// The selected creature's name sits right of its indicator.
	return image.Rect(d.CreatureStrip.Min.X, d.CreatureStrip.Min.Y, b.Min.X+b.Dx()/2, d.CreatureStrip.Max.Y).Intersect(b)
}

type field struct {
	name   string
	region regionFunc
}

type layout struct {
	auto        []field
	interaction []field
}

var (
	fieldHighlight = field{"selection", highlightRegion}
	fieldDialog    = field{"dialog", dialogRegion}
)

// layouts lists, per screen, the regions spoken automatically and those
// spoken on request.
var layouts = map[Screen]layout{
	ScreenDialog: {
		auto: []field{fieldDialog},
	},
	ScreenAnointment: {
		auto:        []field{fieldHighlight},
		interaction: []field{{"trait", frac(0.50, 0.15, 1.00, 0.85)}},
	},
	ScreenCodex: {
		auto:        []field{fieldHighlight},
		interaction: []field{{"entry", frac(0.30, 0.10, 1.00, 0.90)}},
	},
	ScreenSpellCraft: {
		auto:        []field{fieldHighlight},
		interaction: []field{{"gem", frac(0.50, 0.20, 1.00, 0.80)}},
	},
	ScreenManageSpellGems: {
		auto:        []field{fieldHighlight},
		interaction: []field{{"gem", frac(0.50, 0.15, 1.00, 0.85)}},
	},
	ScreenRealmSelect: {
		auto:        []field{fieldHighlight},
		interaction: []field{{"properties", frac(0.45, 0.20, 1.00, 0.90)}},
	},
	ScreenSummoning: {
		auto:        []field{fieldHighlight},
		interaction: []field{{"creature", frac(0.50, 0.10, 1.00, 0.90)}},
	},
	ScreenInspect: {
		auto:        []field{{"name", frac(0.00, 0.05, 0.50, 0.20)}},
		interaction: []field{{"stats", frac(0.00, 0.20, 1.00, 0.95)}},
	},
	ScreenPerk: {
		auto:        []field{fieldHighlight},
		interaction: []field{{"description", frac(0.40, 0.60, 1.00, 0.95)}},
	},
	ScreenFieldItem: {
		auto:        []field{fieldHighlight},
		interaction: []field{{"description", frac(0.00, 0.70, 1.00, 0.95)}},
	},
	ScreenCreatureReorder: {
		auto:        []field{{"creature", stripRegion}},
		interaction: []field{{"details", frac(0.50, 0.10, 1.00, 0.90)}},
	},
	ScreenGodforge: {
		auto:        []field{fieldHighlight},
		interaction: []field{{"item", frac(0.50, 0.15, 1.00, 0.85)}},
	},
	ScreenUnknown: {
		auto: []field{fieldHighlight},
	},
}

type snapshot map[string]string

// screenSpeaker narrates a screen described by a layout.
type screenSpeaker struct {
	mode   Mode
	layout layout
	engine ocr.Engine
	voice  speech.Voice

	previous snapshot
	current  snapshot
	titled   bool
}

// SpeakerFor returns the speaker for mode. With OCR disabled the unknown
// screen gets a speaker that never reads or speaks.
func SpeakerFor(mode Mode, engine ocr.Engine, voice speech.Voice, ocrEnabled bool) Speaker {
	if mode.Screen == ScreenUnknown && !ocrEnabled {
		return disabledSpeaker{}
	}
	l, ok := layouts[mode.Screen]
	if !ok {
		l = layouts[ScreenUnknown]
	}
	return &screenSpeaker{
		mode:     mode,
		layout:   l,
		engine:   engine,
		voice:    voice,
		previous: snapshot{},
		current:  snapshot{},
	}
}

func (s *screenSpeaker) fields() []field {
	return append(append([]field(nil), s.layout.auto...), s.layout.interaction...)
}

func (s *screenSpeaker) OCR(ctx context.Context, f *vision.Frame, d Detections) error {
	cur := make(snapshot, len(s.layout.auto)+len(s.layout.interaction))
	b := f.Gray.Bounds()
	for _, fl := range s.fields() {
		r := fl.region(b, d).Intersect(b)
		if r.Empty() {
			cur[fl.name] = ""
			continue
		}
		lines, err := s.engine.Lines(ctx, vision.CropGray(f.Gray, r))
		if err != nil {
			return fmt.Errorf("reading %s on %s screen: %w", fl.name, s.mode.Screen, err)
		}
		cur[fl.name] = ocr.Join(lines)
	}
	s.current = cur
	return nil
}

// isSameState compares the auto-spoken regions of the two snapshots.
func (s *screenSpeaker) isSameState() bool {
	for _, fl := range s.layout.auto {
		if s.previous[fl.name] != s.current[fl.name] {
			return false
		}
	}
	return true
}

func (s *screenSpeaker) text(fields []field) string {
	parts := make([]string, 0, len(fields))
	for _, fl := range fields {
		if t := s.current[fl.name]; t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

func (s *screenSpeaker) SpeakAuto() bool {
	if s.isSameState() && (s.titled || s.mode.Title == "") {
		return false
	}
	s.previous = s.current
	text := s.text(s.layout.auto)
	if !s.titled && s.mode.Title != "" {
		s.titled = true
		text = strings.TrimSpace(s.mode.Title + "\n" + text)
	}
	if text == "" {
		return false
	}
	s.voice.Speak(text)
	return true
}

func (s *screenSpeaker) SpeakInteraction() bool {
	text := s.text(s.layout.interaction)
	if text == "" {
		return false
	}
	s.voice.Speak(text)
	return true
}

func (s *screenSpeaker) SpeakAllInfo() bool {
	text := s.AllInfo()
	if text == "" {
		return false
	}
	s.voice.Speak(text)
	return true
}

func (s *screenSpeaker) AllInfo() string {
	text := s.text(s.fields())
	if s.mode.Title != "" {
		text = strings.TrimSpace(s.mode.Title + "\n" + text)
	}
	return text
}

func (s *screenSpeaker) Reset() {
	s.previous = snapshot{}
	s.titled = false
}

// disabledSpeaker is used for unrecognized screens when OCR is off.
type disabledSpeaker struct{}

func (disabledSpeaker) OCR(context.Context, *vision.Frame, Detections) error { return nil }
func (disabledSpeaker) SpeakAuto() bool { return false }
func (disabledSpeaker) SpeakInteraction() bool { return false }
func (disabledSpeaker) SpeakAllInfo() bool { return false }
func (disabledSpeaker) AllInfo() string { return "" }
func (disabledSpeaker) Reset() {}
