package capture

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gurgalex/SiralimAccess-sub000/internal/geom"
	"github.com/gurgalex/SiralimAccess-sub000/internal/hang"
	"github.com/gurgalex/SiralimAccess-sub000/internal/vision"
)

// Grabber captures one region of the game window on a fixed cadence and
// publishes frames through a one-deep channel.
//
// Invariant: a frame is dropped rather than queued when the consumer has
// not taken the previous one.
type Grabber struct {
	name     string
	platform Platform
	interval time.Duration
	region   func(window geom.Rect) geom.Rect
	logger   *zap.Logger
	now      func() time.Time

	out chan *vision.Frame

	mu      sync.Mutex
	pending *geom.Rect
	window  geom.Rect
	dropped int
}

// NewWholeWindowGrabber captures the full client rectangle every interval.
//
// Precondition: interval > 0.
func NewWholeWindowGrabber(platform Platform, interval time.Duration, logger *zap.Logger) *Grabber {
	return newGrabber("whole-window", platform, interval, func(w geom.Rect) geom.Rect { return w }, logger)
}

// NewNearPlayerGrabber captures the region of radius tiles around the avatar
// at fps frames per second.
//
// Precondition: fps > 0; radius >= 0.
func NewNearPlayerGrabber(platform Platform, fps, radius int, logger *zap.Logger) *Grabber {
	if fps <= 0 {
		panic("capture.NewNearPlayerGrabber: fps must be > 0")
	}
	interval := time.Second / time.Duration(fps)
	return newGrabber("near-player", platform, interval, func(w geom.Rect) geom.Rect {
		return NearbyRegion(w, radius)
	}, logger)
}

func newGrabber(name string, platform Platform, interval time.Duration, region func(geom.Rect) geom.Rect, logger *zap.Logger) *Grabber {
	if interval <= 0 {
		panic("capture.newGrabber: interval must be > 0")
	}
	return &Grabber{
		name:     name,
		platform: platform,
		interval: interval,
		region:   region,
		logger:   logger.With(zap.String("grabber", name)),
		now:      time.Now,
		out:      make(chan *vision.Frame, 1),
	}
}

// Name returns the grabber's stage name.
func (g *Grabber) Name() string { return g.name }

// Frames returns the one-deep output channel.
func (g *Grabber) Frames() <-chan *vision.Frame { return g.out }

// SetWindow schedules a new client rectangle. It takes effect at the next
// iteration boundary.
func (g *Grabber) SetWindow(d WindowDim) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := d.Rect
	g.pending = &r
}

// Dropped returns how many frames were discarded because the consumer was
// behind.
func (g *Grabber) Dropped() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dropped
}

// Run captures until ctx is cancelled. Every tick publishes a frame and
// reports activity, even when the platform fails to grab.
//
// Precondition: pinger may be nil.
func (g *Grabber) Run(ctx context.Context, pinger *hang.Pinger) error {
	g.logger.Info("grabber started", zap.Duration("interval", g.interval))
	defer g.logger.Info("grabber stopped")
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		g.applyPending()
		frame, err := g.Capture()
		if err != nil {
			// Consumers treat a failed grab like a minimized window for
			// this tick; the grabber itself is still alive.
			g.logger.Debug("capture failed", zap.Error(err))
			frame = vision.NewFrame(nil, geom.Rect{}, g.now())
		}
		g.publish(frame)
		if pinger != nil {
			pinger.NotifyActivity(g.name + " frame")
		}
	}
}

func (g *Grabber) applyPending() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending != nil {
		g.window = *g.pending
		g.pending = nil
	}
}

// Capture grabs one frame of the current region without publishing it.
func (g *Grabber) Capture() (*vision.Frame, error) {
	g.mu.Lock()
	window := g.window
	g.mu.Unlock()

	at := g.now()
	if window.Empty() {
		return vision.NewFrame(nil, window, at), nil
	}
	r := g.region(window)
	img, err := g.platform.Grab(r)
	if err != nil {
		return nil, err
	}
	return vision.NewFrame(img, r, at), nil
}

func (g *Grabber) publish(f *vision.Frame) {
	select {
	case g.out <- f:
	default:
		g.mu.Lock()
		g.dropped++
		g.mu.Unlock()
	}
}
