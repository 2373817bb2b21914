// Package main runs the accessibility overlay against a live Siralim
// Ultimate window.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/gurgalex/SiralimAccess-sub000/internal/assets"
	"github.com/gurgalex/SiralimAccess-sub000/internal/audio"
	"github.com/gurgalex/SiralimAccess-sub000/internal/config"
	"github.com/gurgalex/SiralimAccess-sub000/internal/observability"
	"github.com/gurgalex/SiralimAccess-sub000/internal/ocr"
	"github.com/gurgalex/SiralimAccess-sub000/internal/platform/x11"
	"github.com/gurgalex/SiralimAccess-sub000/internal/speech"
	"github.com/gurgalex/SiralimAccess-sub000/internal/storage/postgres"
	"github.com/gurgalex/SiralimAccess-sub000/internal/supervisor"
)

func main() {
	os.Exit(run())
}

func run() int {
	start := time.Now()

	configPath := flag.String("config", "configs/access.yaml", "path to configuration file")
	catalogPath := flag.String("catalog", "", "override assets.catalog_path")
	debug := flag.Bool("debug", false, "log every utterance and debug output")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("loading config: %v", err)
		return 1
	}
	if *catalogPath != "" {
		cfg.Assets.CatalogPath = *catalogPath
	}
	if *debug {
		cfg.Debug = true
		cfg.Logging.Level = "debug"
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Printf("initializing logger: %v", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	var voice speech.Voice
	espeak, err := speech.NewEspeak(cfg.Speech.Binary, cfg.Speech.Voice, cfg.Speech.Rate, logger.Named("speech"))
	if err != nil {
		logger.Warn("speech unavailable, narration disabled", zap.Error(err))
		voice = speech.Null{}
	} else {
		voice = espeak
	}
	if cfg.Debug {
		voice = speech.Logged{Voice: voice, Logger: logger.Named("speech")}
	}
	fatal := func(err error) int {
		logger.Error("startup failed", zap.Error(err))
		actx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = voice.SpeakBlocking(actx, supervisor.Announcement(err))
		return 1
	}

	logger.Info("starting siralim access",
		zap.String("config", *configPath),
		zap.String("assets", cfg.Assets.Source),
	)

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fatal(err)
	}
	defer closeStore()

	display, err := x11.Open()
	if err != nil {
		return fatal(fmt.Errorf("opening display: %w", err))
	}
	defer display.Close()

	engine := ocr.Disabled
	if cfg.OCR.Enabled {
		tess, err := ocr.NewTesseract(cfg.OCR.Language, cfg.OCR.MinConfidence)
		if err != nil {
			return fatal(err)
		}
		defer tess.Close()
		engine = tess
	}

	deps := supervisor.Deps{
		Platform: display,
		Store:    store,
		OCR:      engine,
		Voice:    voice,
	}
	if cfg.Audio.Enabled {
		mixer, err := audio.NewEbitenMixer(cfg.Audio.SoundsDir)
		if err != nil {
			return fatal(fmt.Errorf("loading sounds: %w", err))
		}
		defer mixer.Close()
		deps.Mixer = mixer
	}

	bindings, err := cfg.Keys.Bindings()
	if err != nil {
		return fatal(err)
	}
	hotkeys, err := x11.NewHotkeys(bindings, logger.Named("hotkeys"))
	if err != nil {
		logger.Warn("hotkeys unavailable", zap.Error(err))
	} else {
		deps.Hotkeys = hotkeys
	}

	sup, err := supervisor.New(ctx, cfg, deps, logger)
	if err != nil {
		return fatal(err)
	}
	logger.Info("overlay ready", zap.Duration("elapsed", time.Since(start)))

	err = sup.Run(ctx)
	code := supervisor.ExitCode(err)
	logger.Info("overlay stopped", zap.Int("exit_code", code), zap.Duration("uptime", time.Since(start)))
	return code
}

// openStore returns the configured asset store and its release function.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (assets.Store, func(), error) {
	switch cfg.Assets.Source {
	case "postgres":
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		if err := pool.RequireSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		return postgres.NewAssetRepository(pool.DB()), pool.Close, nil
	case "catalog":
		catStart := time.Now()
		cat, err := assets.LoadCatalogFromFile(cfg.Assets.CatalogPath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("catalog loaded",
			zap.String("path", cfg.Assets.CatalogPath),
			zap.Int("sprites", len(cat.Sprites())),
			zap.Duration("elapsed", time.Since(catStart)),
		)
		return cat, func() {}, nil
	default:
		return nil, nil, errors.New("unknown assets source " + cfg.Assets.Source)
	}
}
