package capture_test

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gurgalex/SiralimAccess-sub000/internal/capture"
	"github.com/gurgalex/SiralimAccess-sub000/internal/geom"
	"github.com/gurgalex/SiralimAccess-sub000/internal/hang"
)

type fakePlatform struct {
	mu     sync.Mutex
	info   capture.WindowInfo
	err    error
	grabs   []geom.Rect
	zeroes  bool
	grabErr error
}

func (f *fakePlatform) FindWindow(_, _ string) (capture.WindowInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.info, f.err
}

func (f *fakePlatform) Grab(r geom.Rect) (*image.RGBA, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grabs = append(f.grabs, r)
	if f.grabErr != nil {
		return nil, f.grabErr
	}
	if f.zeroes {
		return image.NewRGBA(image.Rectangle{}), nil
	}
	return image.NewRGBA(image.Rect(0, 0, r.W, r.H)), nil
}

func (f *fakePlatform) set(info capture.WindowInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.info = info
}

type recordingSink struct {
	dims []capture.WindowDim
}

func (s *recordingSink) SetWindow(d capture.WindowDim) { s.dims = append(s.dims, d) }

var display = geom.Rect{W: 1920, H: 1080}

func windowAt(client geom.Rect) capture.WindowInfo {
	outer := geom.Rect{X: client.X - 2, Y: client.Y - 30, W: client.W + 4, H: client.H + 32}
	return capture.WindowInfo{Client: client, Outer: outer, Display: display}
}

func TestNearbyRegion_CentredOnAvatar(t *testing.T) {
	w := geom.Rect{X: 100, Y: 50, W: 1280, H: 720}
	r := capture.NearbyRegion(w, 8)
	assert.Equal(t, 17*32, r.W)
	assert.Equal(t, 17*32, r.H)
	avatar := geom.Pt(r.X+8*32, r.Y+8*32)
	assert.Equal(t, geom.Pt(100+640-16, 50+360-16), avatar)
}

func TestNearbyRegion_EmptyWindow(t *testing.T) {
	assert.True(t, capture.NearbyRegion(geom.Rect{X: 5, Y: 5}, 8).Empty())
}

func TestTracker_PollReportsChanges(t *testing.T) {
	p := &fakePlatform{info: windowAt(geom.Rect{X: 10, Y: 40, W: 800, H: 600})}
	tr := capture.NewTracker(p, "class", "title", zap.NewNop())

	r, changed, err := tr.Poll()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 800, r.W)

	_, changed, err = tr.Poll()
	require.NoError(t, err)
	assert.False(t, changed)

	p.set(windowAt(geom.Rect{X: 10, Y: 40, W: 1024, H: 768}))
	r, changed, err = tr.Poll()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1024, r.W)
}

func TestTracker_GameNotOpen(t *testing.T) {
	p := &fakePlatform{err: capture.ErrGameNotOpen}
	tr := capture.NewTracker(p, "class", "title", zap.NewNop())
	_, _, err := tr.Poll()
	assert.ErrorIs(t, err, capture.ErrGameNotOpen)
}

func TestTracker_Fullscreen(t *testing.T) {
	p := &fakePlatform{info: capture.WindowInfo{Client: display, Outer: display, Display: display}}
	tr := capture.NewTracker(p, "class", "title", zap.NewNop())
	_, _, err := tr.Poll()
	assert.ErrorIs(t, err, capture.ErrGameFullscreen)
}

func TestTracker_RunForwardsToSinks(t *testing.T) {
	p := &fakePlatform{info: windowAt(geom.Rect{X: 0, Y: 0, W: 640, H: 480})}
	tr := capture.NewTracker(p, "class", "title", zap.NewNop())
	sink := &recordingSink{}
	tr.Subscribe(sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, tr.Run(ctx, time.Millisecond, nil))
	require.Len(t, sink.dims, 1)
	assert.Equal(t, 640, sink.dims[0].Rect.W)
}

func TestTracker_RunStopsWhenGameCloses(t *testing.T) {
	p := &fakePlatform{err: capture.ErrGameNotOpen}
	tr := capture.NewTracker(p, "class", "title", zap.NewNop())
	err := tr.Run(context.Background(), time.Millisecond, nil)
	assert.ErrorIs(t, err, capture.ErrGameNotOpen)
}

func TestGrabber_MinimizedWithoutWindow(t *testing.T) {
	g := capture.NewWholeWindowGrabber(&fakePlatform{}, time.Second, zap.NewNop())
	f, err := g.Capture()
	require.NoError(t, err)
	assert.True(t, f.Minimized)
}

func TestGrabber_ZeroAreaCaptureIsMinimized(t *testing.T) {
	p := &fakePlatform{zeroes: true}
	g := capture.NewWholeWindowGrabber(p, 5*time.Millisecond, zap.NewNop())
	g.SetWindow(capture.WindowDim{Rect: geom.Rect{W: 640, H: 480}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = g.Run(ctx, nil) }()

	select {
	case f := <-g.Frames():
		assert.True(t, f.Minimized)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame published")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.grabs)
	assert.Equal(t, 640, p.grabs[0].W)
}

func TestGrabber_RunPublishesAndDrops(t *testing.T) {
	p := &fakePlatform{}
	g := capture.NewNearPlayerGrabber(p, 200, 8, zap.NewNop())
	g.SetWindow(capture.WindowDim{Rect: geom.Rect{X: 0, Y: 0, W: 1280, H: 720}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = g.Run(ctx, nil)
	}()

	var f interface{ Width() int }
	select {
	case fr := <-g.Frames():
		require.False(t, fr.Minimized)
		f = fr
	case <-time.After(2 * time.Second):
		t.Fatal("no frame published")
	}
	assert.Equal(t, 17*32, f.Width())

	assert.Eventually(t, func() bool { return g.Dropped() > 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.LessOrEqual(t, len(g.Frames()), 1)
}

// A region the server refuses, such as one crossing the screen edge, must
// not silence the grabber: failed ticks publish minimized frames and keep
// the hang monitor fed.
func TestGrabber_FailedGrabKeepsPublishing(t *testing.T) {
	p := &fakePlatform{}
	g := capture.NewNearPlayerGrabber(p, 100, 8, zap.NewNop())
	g.SetWindow(capture.WindowDim{Rect: geom.Rect{X: 1800, Y: 0, W: 640, H: 480}})

	mon := hang.NewMonitor(10*time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = mon.Run(ctx) }()
	go func() { _ = g.Run(ctx, mon.Register(g.Name(), 100*time.Millisecond)) }()

	select {
	case f := <-g.Frames():
		require.False(t, f.Minimized)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame published")
	}

	p.mu.Lock()
	p.grabErr = errors.New("BadMatch")
	p.mu.Unlock()

	deadline := time.After(500 * time.Millisecond)
	minimized := 0
drain:
	for {
		select {
		case f := <-g.Frames():
			if f.Minimized {
				minimized++
			}
		case h := <-mon.Alerts():
			t.Fatalf("grabber reported as hung: %+v", h)
		case <-deadline:
			break drain
		}
	}
	assert.Positive(t, minimized)
}
