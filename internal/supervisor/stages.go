package supervisor

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/gurgalex/SiralimAccess-sub000/internal/gamestate"
	"github.com/gurgalex/SiralimAccess-sub000/internal/grid"
	"github.com/gurgalex/SiralimAccess-sub000/internal/hang"
	"github.com/gurgalex/SiralimAccess-sub000/internal/keys"
	"github.com/gurgalex/SiralimAccess-sub000/internal/realm"
	"github.com/gurgalex/SiralimAccess-sub000/internal/scan"
	"github.com/gurgalex/SiralimAccess-sub000/internal/vision"
)

var errNoFrame = errors.New("no frame captured yet")

// next waits for a frame. A timeout ends the stage after one last
// activity ping, so the hang monitor reports the silence that follows.
func (s *Supervisor) next(ctx context.Context, frames <-chan *vision.Frame, p *hang.Pinger) (*vision.Frame, bool) {
	p.NotifyWait()
	timer := time.NewTimer(s.cfg.Capture.FrameTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, false
	case f := <-frames:
		p.NotifyActivity("frame received")
		return f, true
	case <-timer.C:
		p.NotifyActivity("frame timeout")
		s.logger.Error("timed out waiting for frame",
			zap.String("stage", p.ID()),
			zap.Duration("timeout", s.cfg.Capture.FrameTimeout),
		)
		return nil, false
	}
}

func (s *Supervisor) nearbyStage(ctx context.Context, p *hang.Pinger) error {
	for {
		f, ok := s.next(ctx, s.near.Frames(), p)
		if !ok {
			return nil
		}
		s.processNearby(ctx, f)
	}
}

// processNearby turns one near-player frame into audio cues. Per-frame
// failures are logged and the next frame is tried.
func (s *Supervisor) processNearby(ctx context.Context, f *vision.Frame) {
	if f.Minimized {
		s.matches.Clear()
		s.audio.StopAll()
		return
	}
	res, aligned, err := s.classifier.Classify(ctx, f.Gray)
	if err != nil {
		s.logger.Debug("classifying realm", zap.Error(err))
		return
	}
	g := grid.Centered(f.Width(), f.Height())
	if aligned {
		g = res.Grid
		if err := s.syncIndex(ctx, res); err != nil {
			s.logger.Warn("rebuilding sprite index", zap.Stringer("realm", res.Realm), zap.Error(err))
			return
		}
	}

	found := s.scanner.Scan(f.Gray, g)
	if s.state.Mode() == gamestate.ModeCastle {
		scan.MergeObjects(found, s.state.CastleObjects(), s.state.PlayerPosition(), s.cfg.Capture.NearbyRadius)
	}
	s.matches.Publish(found)
	s.audio.Update(s.matches.Snapshot())
	s.matches.Clear()
}

// syncIndex rebuilds the sprite index when it was built from a floor set
// other than the classifier's active one. A failed rebuild leaves the sets
// different, so the next aligned frame tries again.
func (s *Supervisor) syncIndex(ctx context.Context, res realm.Result) error {
	active := s.classifier.ActiveFloorSet()
	if active == nil || active == s.index.FloorSet() {
		return nil
	}
	return realm.RebuildIndex(ctx, s.deps.Store, s.index, active, res.RealmID)
}

// fanoutStage hands each whole-window frame to the UI and quest stages
// and keeps the latest one for screenshots.
func (s *Supervisor) fanoutStage(ctx context.Context, p *hang.Pinger) error {
	for {
		f, ok := s.next(ctx, s.whole.Frames(), p)
		if !ok {
			return nil
		}
		if !f.Minimized {
			s.latest.Store(f)
		}
		offer(s.uiFrames, f)
		offer(s.questFrames, f)
	}
}

// offer queues f, discarding the oldest queued frame when full.
// Only one goroutine may offer to a given channel.
func offer(ch chan *vision.Frame, f *vision.Frame) {
	for {
		select {
		case ch <- f:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (s *Supervisor) uiStage(ctx context.Context, p *hang.Pinger) error {
	for {
		f, ok := s.next(ctx, s.uiFrames, p)
		if !ok {
			return nil
		}
		if err := s.dispatcher.Handle(ctx, f); err != nil && ctx.Err() == nil {
			s.logger.Debug("handling ui frame", zap.Error(err))
		}
	}
}

func (s *Supervisor) questStage(ctx context.Context, p *hang.Pinger) error {
	for {
		select {
		case <-s.forceQuest:
			s.watcher.ResetRateLimit()
		default:
		}
		f, ok := s.next(ctx, s.questFrames, p)
		if !ok {
			return nil
		}
		if f.Minimized || !s.cfg.OCR.Enabled {
			continue
		}
		if _, err := s.watcher.Observe(ctx, f.Gray); err != nil && ctx.Err() == nil {
			s.logger.Debug("observing quest banner", zap.Error(err))
		}
	}
}

func (s *Supervisor) actionStage(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case a := <-s.actions:
			s.logger.Debug("user action", zap.Stringer("action", a))
			s.perform(a)
		}
	}
}

func (s *Supervisor) perform(a keys.Action) {
	voice := s.deps.Voice
	switch a {
	case keys.ActionReadSecondary:
		if !s.dispatcher.ReadSecondary() {
			voice.Speak("Nothing to read")
		}
	case keys.ActionReadAllInfo:
		if !s.dispatcher.ReadAllInfo() {
			voice.Speak("Nothing to read")
		}
	case keys.ActionCopyAllInfo:
		text := s.dispatcher.AllInfo()
		if text == "" {
			voice.Speak("Nothing to copy")
			return
		}
		if err := s.deps.Clipboard(text); err != nil {
			s.logger.Warn("copying to clipboard", zap.Error(err))
			voice.Speak("Copy failed")
			return
		}
		voice.Speak("Copied")
	case keys.ActionScreenshot:
		path, err := s.screenshot()
		if err != nil {
			s.logger.Warn("saving screenshot", zap.Error(err))
			voice.Speak("Screenshot failed")
			return
		}
		s.logger.Info("screenshot saved", zap.String("path", path))
		voice.Speak("Screenshot saved")
	case keys.ActionForceOCR:
		s.dispatcher.ForceOCR()
		select {
		case s.forceQuest <- struct{}{}:
		default:
		}
	}
}

// screenshot writes the latest whole-window frame as a PNG.
func (s *Supervisor) screenshot() (string, error) {
	f := s.latest.Load()
	if f == nil {
		return "", errNoFrame
	}
	dir := s.cfg.Capture.ScreenshotDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, "siralim-"+s.now().Format("20060102-150405.000")+".png")
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	if err := png.Encode(out, f.Color); err != nil {
		out.Close()
		return "", fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}
	return path, nil
}
