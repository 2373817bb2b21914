package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gurgalex/SiralimAccess-sub000/internal/geom"
	"github.com/gurgalex/SiralimAccess-sub000/internal/hang"
)

// WindowDim is a client-rectangle update forwarded to grabbers.
type WindowDim struct {
	Rect geom.Rect
}

// WindowSink receives window updates.
type WindowSink interface {
	SetWindow(WindowDim)
}

// Tracker keeps the game window's client rectangle current.
type Tracker struct {
	platform Platform
	class    string
	title    string
	logger   *zap.Logger

	mu      sync.Mutex
	current geom.Rect
	known   bool
	sinks   []WindowSink
}

// NewTracker returns a Tracker for the window matching class and title.
//
// Precondition: platform and logger must be non-nil.
func NewTracker(platform Platform, class, title string, logger *zap.Logger) *Tracker {
	return &Tracker{platform: platform, class: class, title: title, logger: logger}
}

// Subscribe registers sink for every subsequent window change.
func (t *Tracker) Subscribe(sink WindowSink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sinks = append(t.sinks, sink)
}

// Current returns the last known client rectangle.
func (t *Tracker) Current() (geom.Rect, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.known
}

// Poll re-queries the window.
//
// Postcondition: on success returns the client rectangle and whether it
// differs from the previous poll. Returns ErrGameNotOpen or
// ErrGameFullscreen (wrapped) when the window cannot be used.
func (t *Tracker) Poll() (geom.Rect, bool, error) {
	info, err := t.platform.FindWindow(t.class, t.title)
	if err != nil {
		return geom.Rect{}, false, fmt.Errorf("finding game window: %w", err)
	}
	if info.Fullscreen() {
		return geom.Rect{}, false, ErrGameFullscreen
	}
	t.mu.Lock()
	changed := !t.known || info.Client != t.current
	t.current = info.Client
	t.known = true
	t.mu.Unlock()
	return info.Client, changed, nil
}

// Run polls every interval and forwards changes to the subscribed sinks
// until ctx is cancelled or the window becomes unusable.
//
// Precondition: interval > 0. pinger may be nil.
func (t *Tracker) Run(ctx context.Context, interval time.Duration, pinger *hang.Pinger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := t.Refresh(); err != nil {
			return err
		}
		if pinger != nil {
			pinger.NotifyActivity("window poll")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Refresh polls once and forwards a change to the subscribed sinks.
func (t *Tracker) Refresh() error {
	rect, changed, err := t.Poll()
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	t.logger.Info("game window changed", zap.Stringer("rect", rect))
	t.mu.Lock()
	sinks := append([]WindowSink(nil), t.sinks...)
	t.mu.Unlock()
	for _, s := range sinks {
		s.SetWindow(WindowDim{Rect: rect})
	}
	return nil
}
