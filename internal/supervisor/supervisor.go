// Package supervisor wires the capture, analysis and narration stages
// together, runs them until shutdown, and decides the process exit code.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/atotto/clipboard"
	"go.uber.org/zap"

	"github.com/gurgalex/SiralimAccess-sub000/internal/assets"
	"github.com/gurgalex/SiralimAccess-sub000/internal/audio"
	"github.com/gurgalex/SiralimAccess-sub000/internal/capture"
	"github.com/gurgalex/SiralimAccess-sub000/internal/config"
	"github.com/gurgalex/SiralimAccess-sub000/internal/gamestate"
	"github.com/gurgalex/SiralimAccess-sub000/internal/geom"
	"github.com/gurgalex/SiralimAccess-sub000/internal/hang"
	"github.com/gurgalex/SiralimAccess-sub000/internal/keys"
	"github.com/gurgalex/SiralimAccess-sub000/internal/ocr"
	"github.com/gurgalex/SiralimAccess-sub000/internal/quest"
	"github.com/gurgalex/SiralimAccess-sub000/internal/realm"
	"github.com/gurgalex/SiralimAccess-sub000/internal/scan"
	"github.com/gurgalex/SiralimAccess-sub000/internal/speech"
	"github.com/gurgalex/SiralimAccess-sub000/internal/spritehash"
	"github.com/gurgalex/SiralimAccess-sub000/internal/ui"
	"github.com/gurgalex/SiralimAccess-sub000/internal/vision"
)

// ErrHang reports that a stage stopped making progress.
var ErrHang = errors.New("stage stopped responding")

// Shutdown announcements, spoken before the process exits.
const (
	MsgHang         = "Bot has stopped responding. Shutting down"
	MsgGameNotOpen  = "Siralim Ultimate is not open. Shutting down"
	MsgFullscreen   = "Siralim Ultimate is in fullscreen mode. Switch to windowed mode and restart. Shutting down"
	MsgOCRLanguage  = "The OCR language data is not installed. Shutting down"
	MsgFatal        = "An unrecoverable error occurred. Shutting down"
	announceTimeout = 10 * time.Second
	queueDepth      = 2
)

// HotkeySource delivers user actions until ctx is cancelled.
type HotkeySource interface {
	Run(ctx context.Context, out chan<- keys.Action) error
}

// Deps are the platform services the supervisor drives.
type Deps struct {
	Platform capture.Platform
	Store    assets.Store
	OCR      ocr.Engine
	Voice    speech.Voice
	// Mixer may be nil, in which case nothing is sonified.
	Mixer audio.Mixer
	// Hotkeys may be nil, in which case no user actions arrive.
	Hotkeys HotkeySource
	// Clipboard defaults to the system clipboard.
	Clipboard func(string) error
}

// Supervisor owns every stage of the overlay.
type Supervisor struct {
	cfg    config.Config
	deps   Deps
	logger *zap.Logger

	monitor    *hang.Monitor
	window     *capture.Tracker
	near       *capture.Grabber
	whole      *capture.Grabber
	classifier *realm.Classifier
	index      *spritehash.Index
	scanner    *scan.Scanner
	quests     *scan.QuestSprites
	matches    *scan.Matches
	audio      *audio.Engine
	watcher    *quest.Watcher
	dispatcher *ui.Dispatcher
	state      *gamestate.Tracker
	follower   *gamestate.Follower

	uiFrames    chan *vision.Frame
	questFrames chan *vision.Frame
	forceQuest  chan struct{}
	actions     chan keys.Action
	latest      atomic.Pointer[vision.Frame]
	now         func() time.Time
}

// New builds every stage from cfg and deps.
//
// Precondition: cfg is valid; deps.Platform, deps.Store, deps.OCR and
// deps.Voice are non-nil.
// Postcondition: returns a Supervisor ready to Run or a non-nil error.
func New(ctx context.Context, cfg config.Config, deps Deps, logger *zap.Logger) (*Supervisor, error) {
	if deps.Mixer == nil {
		deps.Mixer = silentMixer{}
	}
	if deps.Clipboard == nil {
		deps.Clipboard = clipboard.WriteAll
	}
	realms, err := deps.Store.Realms(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading realms: %w", err)
	}

	s := &Supervisor{
		cfg:         cfg,
		deps:        deps,
		logger:      logger,
		monitor:     hang.NewMonitor(cfg.Hang.ScanInterval, logger.Named("hang")),
		window:      capture.NewTracker(deps.Platform, cfg.Game.WindowClass, cfg.Game.WindowTitle, logger.Named("window")),
		near:        capture.NewNearPlayerGrabber(deps.Platform, cfg.Capture.TargetFPS, cfg.Capture.NearbyRadius, logger.Named("capture")),
		whole:       capture.NewWholeWindowGrabber(deps.Platform, cfg.Capture.WholeWindowInterval, logger.Named("capture")),
		classifier:  realm.NewClassifier(deps.Store, logger.Named("realm")),
		index:       spritehash.NewIndex(),
		quests:      scan.NewQuestSprites(),
		matches:     scan.NewMatches(),
		audio:       audio.NewEngine(deps.Mixer, logger.Named("audio")),
		dispatcher:  ui.NewDispatcher(deps.OCR, deps.Voice, cfg.OCR.Enabled, logger.Named("ui")),
		uiFrames:    make(chan *vision.Frame, queueDepth),
		questFrames: make(chan *vision.Frame, queueDepth),
		forceQuest:  make(chan struct{}, 1),
		actions:     make(chan keys.Action, 8),
		now:         time.Now,
	}
	s.scanner = scan.NewScanner(s.index, s.quests)
	s.watcher = quest.NewWatcher(deps.Store, deps.OCR, deps.Voice, s.quests, logger.Named("quest"))

	var castle gamestate.CastleSource = noSave{}
	if cfg.Game.SavePath != "" {
		castle = gamestate.SaveFile{Path: cfg.Game.SavePath, Key: cfg.Game.SaveKey, Store: deps.Store}
	}
	s.state = gamestate.NewTracker(castle, cfg.Game.CastleSpawn.Point(), cfg.Game.SavePath, realms, logger.Named("gamestate"))
	s.follower = gamestate.NewFollower(cfg.Game.LogPath, cfg.Game.SavePath, s.state, logger.Named("gamelog"))

	s.window.Subscribe(s.near)
	s.window.Subscribe(s.whole)
	return s, nil
}

// State exposes the folded game state.
func (s *Supervisor) State() *gamestate.Tracker { return s.state }

// Dispatcher exposes the UI dispatcher.
func (s *Supervisor) Dispatcher() *ui.Dispatcher { return s.dispatcher }

// Run starts every stage and blocks until shutdown. A fatal error is
// announced through blocking speech before Run returns it.
//
// Postcondition: every stage has stopped and every audio channel is
// silent. Returns nil on a requested shutdown.
func (s *Supervisor) Run(ctx context.Context) error {
	err := s.run(ctx)
	s.audio.StopAll()
	if err != nil {
		s.logger.Error("shutting down", zap.Error(err))
		s.announce(err)
	} else {
		s.logger.Info("shutting down")
	}
	return err
}

func (s *Supervisor) run(ctx context.Context) error {
	if err := s.window.Refresh(); err != nil {
		return err
	}
	fs, err := s.classifier.CastleFloorSet(ctx)
	if err != nil {
		return err
	}
	if err := realm.RebuildIndex(ctx, s.deps.Store, s.index, fs, nil); err != nil {
		return fmt.Errorf("building castle index: %w", err)
	}
	s.logger.Info("sprite index ready", zap.Int("hashes", s.index.Len()))

	timeout := s.cfg.Hang.StageTimeout
	lc := NewLifecycle(s.logger)
	lc.Add("hang-monitor", StageFunc(s.monitor.Run))
	lc.Add("hang-alerts", StageFunc(s.watchAlerts))
	lc.Add("window", s.pinged("window", timeout, func(ctx context.Context, p *hang.Pinger) error {
		return s.window.Run(ctx, s.cfg.Capture.WindowPollInterval, p)
	}))
	lc.Add("near-grabber", s.pinged("near-grabber", timeout, s.near.Run))
	lc.Add("window-grabber", s.pinged("window-grabber", timeout, s.whole.Run))
	lc.Add("nearby", s.pinged("nearby", timeout, s.nearbyStage))
	lc.Add("fanout", s.pinged("fanout", timeout, s.fanoutStage))
	lc.Add("ui", s.pinged("ui", timeout, s.uiStage))
	lc.Add("quest", s.pinged("quest", timeout, s.questStage))
	lc.Add("gamelog", s.pinged("gamelog", timeout, s.follower.Run))
	lc.Add("actions", StageFunc(s.actionStage))
	if s.deps.Hotkeys != nil {
		lc.Add("hotkeys", StageFunc(func(ctx context.Context) error {
			return s.deps.Hotkeys.Run(ctx, s.actions)
		}))
	}
	return lc.Run(ctx)
}

// pinged registers a hang-monitored component for the stage.
func (s *Supervisor) pinged(name string, timeout time.Duration, run func(context.Context, *hang.Pinger) error) Stage {
	p := s.monitor.Register(name, timeout)
	return StageFunc(func(ctx context.Context) error {
		return run(ctx, p)
	})
}

func (s *Supervisor) watchAlerts(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case h := <-s.monitor.Alerts():
		return fmt.Errorf("%w: %s silent for %s after %q", ErrHang, h.ComponentID, h.Silence, h.Annotation)
	}
}

// Act queues a user action.
//
// Postcondition: returns false when the action queue is full.
func (s *Supervisor) Act(a keys.Action) bool {
	select {
	case s.actions <- a:
		return true
	default:
		return false
	}
}

func (s *Supervisor) announce(err error) {
	ctx, cancel := context.WithTimeout(context.Background(), announceTimeout)
	defer cancel()
	if serr := s.deps.Voice.SpeakBlocking(ctx, Announcement(err)); serr != nil {
		s.logger.Warn("announcing shutdown", zap.Error(serr))
	}
}

// Announcement returns what the user is told when err ends the run.
func Announcement(err error) string {
	switch {
	case errors.Is(err, ErrHang):
		return MsgHang
	case errors.Is(err, capture.ErrGameNotOpen):
		return MsgGameNotOpen
	case errors.Is(err, capture.ErrGameFullscreen):
		return MsgFullscreen
	case errors.Is(err, ocr.ErrLanguageMissing):
		return MsgOCRLanguage
	default:
		return MsgFatal
	}
}

// ExitCode maps the error Run returned to the process exit code.
func ExitCode(err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}
	return 1
}

type silentMixer struct{}

func (silentMixer) Channel(scan.FoundType) (audio.Channel, bool) { return nil, false }

type noSave struct{}

func (noSave) CastleObjects(context.Context) (map[scan.FoundType][]geom.Point, error) {
	return map[scan.FoundType][]geom.Point{}, nil
}
