package supervisor_test

import (
	"context"
	"errors"
	"image"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gurgalex/SiralimAccess-sub000/internal/assets"
	"github.com/gurgalex/SiralimAccess-sub000/internal/audio"
	"github.com/gurgalex/SiralimAccess-sub000/internal/capture"
	"github.com/gurgalex/SiralimAccess-sub000/internal/config"
	"github.com/gurgalex/SiralimAccess-sub000/internal/geom"
	"github.com/gurgalex/SiralimAccess-sub000/internal/keys"
	"github.com/gurgalex/SiralimAccess-sub000/internal/ocr"
	"github.com/gurgalex/SiralimAccess-sub000/internal/scan"
	"github.com/gurgalex/SiralimAccess-sub000/internal/supervisor"
	"github.com/gurgalex/SiralimAccess-sub000/internal/testutil"
)

const nearbyTiles = 17

var (
	client  = geom.Rect{X: 100, Y: 100, W: 800, H: 600}
	display = geom.Rect{W: 1920, H: 1080}
)

type gamePlatform struct {
	mu   sync.Mutex
	err  error
	info capture.WindowInfo
	near *image.RGBA
}

func (p *gamePlatform) FindWindow(_, _ string) (capture.WindowInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.info, p.err
}

func (p *gamePlatform) Grab(r geom.Rect) (*image.RGBA, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r.W == nearbyTiles*geom.TileSize && p.near != nil {
		return p.near, nil
	}
	return image.NewRGBA(image.Rect(0, 0, r.W, r.H)), nil
}

type recordingChannel struct {
	mu          sync.Mutex
	plays       []audio.Cue
	left, right float64
}

func (c *recordingChannel) Play(cue audio.Cue) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plays = append(c.plays, cue)
	return nil
}

func (c *recordingChannel) Stop() {}

func (c *recordingChannel) SetVolume(left, right float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.left, c.right = left, right
}

func (c *recordingChannel) snapshot() ([]audio.Cue, float64, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]audio.Cue(nil), c.plays...), c.left, c.right
}

type recordingMixer map[scan.FoundType]*recordingChannel

func (m recordingMixer) Channel(kind scan.FoundType) (audio.Channel, bool) {
	ch, ok := m[kind]
	return ch, ok
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.LoadFromViper(config.Defaults())
	require.NoError(t, err)
	dir := t.TempDir()
	cfg.Game.LogPath = dir + "/outputlog.txt"
	cfg.Capture.ScreenshotDir = dir + "/shots"
	cfg.Capture.WholeWindowInterval = 50 * time.Millisecond
	cfg.Capture.WindowPollInterval = 100 * time.Millisecond
	cfg.Capture.FrameTimeout = 2 * time.Second
	cfg.Hang.ScanInterval = 50 * time.Millisecond
	return cfg
}

func castleCatalog(t *testing.T) (*assets.Catalog, *image.RGBA) {
	t.Helper()
	c := assets.NewCatalog()
	floor := testutil.NoiseTile(100)
	altar := testutil.SpriteTile(7)
	require.NoError(t, c.AddSprite(testutil.Sprite(1, "castle_floor", assets.KindFloor, floor)))
	require.NoError(t, c.AddSprite(testutil.Sprite(2, "altar", assets.KindAltar, altar)))
	near := testutil.TileGrid(nearbyTiles, floor, image.Point{}, map[image.Point]image.Image{
		image.Pt(8+2, 8-1): altar,
	})
	return c, near
}

func windowed() capture.WindowInfo {
	outer := geom.Rect{X: client.X - 2, Y: client.Y - 30, W: client.W + 4, H: client.H + 32}
	return capture.WindowInfo{Client: client, Outer: outer, Display: display}
}

var silentOCR = ocr.Disabled

// groveCatalog is castleCatalog plus a Blood Grove floor; the returned
// frame shows the altar on grove floor.
func groveCatalog(t *testing.T) (*assets.Catalog, *image.RGBA) {
	t.Helper()
	c, _ := castleCatalog(t)
	grove := assets.RealmID(6)
	require.NoError(t, c.AddRealm(assets.RealmInfo{ID: grove, Realm: assets.BloodGrove}))
	floor := testutil.NoiseTile(300)
	groveFloor := testutil.Sprite(3, "grove_floor", assets.KindFloor, floor)
	groveFloor.RealmID = &grove
	require.NoError(t, c.AddSprite(groveFloor))
	near := testutil.TileGrid(nearbyTiles, floor, image.Point{}, map[image.Point]image.Image{
		image.Pt(8+2, 8-1): testutil.SpriteTile(7),
	})
	return c, near
}

// flakyHashes fails the first precomputed-hash lookup that touches
// failFrame.
type flakyHashes struct {
	assets.Store
	failFrame int64

	mu     sync.Mutex
	failed bool
}

func (s *flakyHashes) HashesForFloorSet(ctx context.Context, ids []int64) ([]assets.HashEntry, error) {
	s.mu.Lock()
	fail := !s.failed && slices.Contains(ids, s.failFrame)
	if fail {
		s.failed = true
	}
	s.mu.Unlock()
	if fail {
		return nil, errors.New("connection reset")
	}
	return s.Store.HashesForFloorSet(ctx, ids)
}

func (s *flakyHashes) didFail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

func newSupervisor(t *testing.T, cfg config.Config, platform capture.Platform, engine ocr.Engine, mixer audio.Mixer) (*supervisor.Supervisor, *testutil.Voice) {
	t.Helper()
	store, _ := castleCatalog(t)
	return newSupervisorWithStore(t, cfg, store, platform, engine, mixer)
}

func newSupervisorWithStore(t *testing.T, cfg config.Config, store assets.Store, platform capture.Platform, engine ocr.Engine, mixer audio.Mixer) (*supervisor.Supervisor, *testutil.Voice) {
	t.Helper()
	voice := &testutil.Voice{}
	s, err := supervisor.New(context.Background(), cfg, supervisor.Deps{
		Platform:  platform,
		Store:     store,
		OCR:       engine,
		Voice:     voice,
		Mixer:     mixer,
		Clipboard: func(string) error { return nil },
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s, voice
}

func runAsync(ctx context.Context, s *supervisor.Supervisor) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return done
}

func TestRun_GameNotOpen(t *testing.T) {
	platform := &gamePlatform{err: capture.ErrGameNotOpen}
	s, voice := newSupervisor(t, testConfig(t), platform, silentOCR, nil)

	err := s.Run(context.Background())
	require.ErrorIs(t, err, capture.ErrGameNotOpen)
	assert.Equal(t, 1, supervisor.ExitCode(err))
	assert.Equal(t, []string{supervisor.MsgGameNotOpen}, voice.Blocking())
}

func TestRun_Fullscreen(t *testing.T) {
	platform := &gamePlatform{info: capture.WindowInfo{Client: display, Outer: display, Display: display}}
	s, voice := newSupervisor(t, testConfig(t), platform, silentOCR, nil)

	err := s.Run(context.Background())
	require.ErrorIs(t, err, capture.ErrGameFullscreen)
	assert.Equal(t, 1, supervisor.ExitCode(err))
	assert.Equal(t, []string{supervisor.MsgFullscreen}, voice.Blocking())
}

func TestRun_AltarAboveRightIsSonified(t *testing.T) {
	_, near := castleCatalog(t)
	platform := &gamePlatform{info: windowed(), near: near}
	altar := &recordingChannel{}
	mixer := recordingMixer{scan.FoundAltar: altar}
	s, voice := newSupervisor(t, testConfig(t), platform, silentOCR, mixer)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, s)

	require.Eventually(t, func() bool {
		plays, _, _ := altar.snapshot()
		return len(plays) > 0
	}, 5*time.Second, 20*time.Millisecond)

	plays, left, right := altar.snapshot()
	assert.Equal(t, audio.CueHigh, plays[0])
	assert.Equal(t, 0.0, left)
	assert.InDelta(t, 0.25, right, 1e-9)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.Equal(t, 0, supervisor.ExitCode(err))
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not shut down in time")
	}
	assert.Empty(t, voice.Blocking())
}

func TestRun_RealmIndexRebuildIsRetried(t *testing.T) {
	cat, near := groveCatalog(t)
	store := &flakyHashes{Store: cat, failFrame: 300}
	platform := &gamePlatform{info: windowed(), near: near}
	altar := &recordingChannel{}
	s, _ := newSupervisorWithStore(t, testConfig(t), store, platform, silentOCR, recordingMixer{scan.FoundAltar: altar})

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, s)
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool {
		plays, _, _ := altar.snapshot()
		return len(plays) > 0
	}, 5*time.Second, 20*time.Millisecond)
	assert.True(t, store.didFail())
	plays, _, right := altar.snapshot()
	assert.Equal(t, audio.CueHigh, plays[0])
	assert.InDelta(t, 0.25, right, 1e-9)
}

func TestRun_StalledStageAnnouncesHang(t *testing.T) {
	cfg := testConfig(t)
	cfg.Hang.StageTimeout = 500 * time.Millisecond
	stalled := ocr.EngineFunc(func(ctx context.Context, _ image.Image) ([]ocr.Line, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	s, voice := newSupervisor(t, cfg, &gamePlatform{info: windowed()}, stalled, nil)

	start := time.Now()
	select {
	case err := <-runAsync(context.Background(), s):
		require.ErrorIs(t, err, supervisor.ErrHang)
		assert.Equal(t, 1, supervisor.ExitCode(err))
	case <-time.After(5 * time.Second):
		t.Fatal("hang was not detected")
	}
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Equal(t, []string{supervisor.MsgHang}, voice.Blocking())
}

func TestRun_UserActions(t *testing.T) {
	cfg := testConfig(t)
	s, voice := newSupervisor(t, cfg, &gamePlatform{info: windowed()}, silentOCR, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, s)
	defer func() {
		cancel()
		<-done
	}()

	require.True(t, s.Act(keys.ActionCopyAllInfo))
	require.Eventually(t, func() bool {
		return slices.Contains(voice.Spoken(), "Nothing to copy")
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		s.Act(keys.ActionScreenshot)
		entries, err := os.ReadDir(cfg.Capture.ScreenshotDir)
		return err == nil && len(entries) > 0
	}, 5*time.Second, 100*time.Millisecond)
	assert.Eventually(t, func() bool {
		return slices.Contains(voice.Spoken(), "Screenshot saved")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAnnouncement(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{supervisor.ErrHang, supervisor.MsgHang},
		{capture.ErrGameNotOpen, supervisor.MsgGameNotOpen},
		{capture.ErrGameFullscreen, supervisor.MsgFullscreen},
		{ocr.ErrLanguageMissing, supervisor.MsgOCRLanguage},
		{errors.New("disk on fire"), supervisor.MsgFatal},
		{errors.Join(errors.New("x"), supervisor.ErrHang), supervisor.MsgHang},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, supervisor.Announcement(tc.err), tc.err.Error())
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, supervisor.ExitCode(nil))
	assert.Equal(t, 0, supervisor.ExitCode(context.Canceled))
	assert.Equal(t, 1, supervisor.ExitCode(capture.ErrGameNotOpen))
}
