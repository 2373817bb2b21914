// Package ocr recognizes text lines in captured frames.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"slices"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// ErrLanguageMissing is returned when the OCR engine has no data for the
// configured language.
var ErrLanguageMissing = errors.New("ocr language data missing")

// Line is one recognized line of text in image coordinates.
type Line struct {
	Text       string
	Box        image.Rectangle
	Confidence float64
}

// Engine recognizes text lines.
type Engine interface {
	Lines(ctx context.Context, img image.Image) ([]Line, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, img image.Image) ([]Line, error)

// Lines calls f.
func (f EngineFunc) Lines(ctx context.Context, img image.Image) ([]Line, error) {
	return f(ctx, img)
}

// Disabled reads no text. It stands in when OCR is turned off.
var Disabled Engine = EngineFunc(func(context.Context, image.Image) ([]Line, error) {
	return nil, nil
})

// Join returns the text of lines separated by newlines, skipping blanks.
func Join(lines []Line) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		if t := strings.TrimSpace(l.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// Tesseract is an Engine backed by a single Tesseract client.
// Calls are serialized because the client is not safe for concurrent use.
type Tesseract struct {
	mu            sync.Mutex
	client        *gosseract.Client
	minConfidence float64
}

// NewTesseract initializes Tesseract for lang.
//
// Postcondition: returns ErrLanguageMissing (wrapped) when lang is not
// installed.
func NewTesseract(lang string, minConfidence float64) (*Tesseract, error) {
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return nil, fmt.Errorf("listing tesseract languages: %w", err)
	}
	if !slices.Contains(langs, lang) {
		return nil, fmt.Errorf("%w: %q (installed: %s)", ErrLanguageMissing, lang, strings.Join(langs, ", "))
	}
	client := gosseract.NewClient()
	if err := client.SetLanguage(lang); err != nil {
		client.Close()
		return nil, fmt.Errorf("setting tesseract language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		client.Close()
		return nil, fmt.Errorf("setting page segmentation: %w", err)
	}
	return &Tesseract{client: client, minConfidence: minConfidence}, nil
}

// Close releases the Tesseract client.
func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}

// Lines recognizes img line by line, dropping lines below the configured
// confidence.
func (t *Tesseract) Lines(ctx context.Context, img image.Image) ([]Line, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding ocr input: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("loading ocr input: %w", err)
	}
	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("recognizing text: %w", err)
	}
	lines := make([]Line, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" || b.Confidence < t.minConfidence {
			continue
		}
		lines = append(lines, Line{Text: text, Box: b.Box, Confidence: b.Confidence})
	}
	return lines, nil
}
