// Package config provides Viper-based configuration loading for the overlay.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gurgalex/SiralimAccess-sub000/internal/geom"
	"github.com/gurgalex/SiralimAccess-sub000/internal/keys"
)

// MaxFrameTimeout bounds every blocking frame-channel read.
const MaxFrameTimeout = 10 * time.Second

// KeysConfig holds the user-action hotkeys, e.g. "ctrl+shift+s".
type KeysConfig struct {
	ReadSecondary string `mapstructure:"read_secondary_key"`
	ReadAllInfo   string `mapstructure:"read_all_info_key"`
	CopyAllInfo   string `mapstructure:"copy_all_info_key"`
	Screenshot    string `mapstructure:"screenshot_key"`
	ForceOCR      string `mapstructure:"force_ocr_key"`
}

// Bindings parses every hotkey.
//
// Postcondition: Returns the parsed bindings or an error naming every
// invalid or duplicated key.
func (k KeysConfig) Bindings() (keys.Bindings, error) {
	return keys.ParseAll(map[keys.Action]string{
		keys.ActionReadSecondary: k.ReadSecondary,
		keys.ActionReadAllInfo:   k.ReadAllInfo,
		keys.ActionCopyAllInfo:   k.CopyAllInfo,
		keys.ActionScreenshot:    k.Screenshot,
		keys.ActionForceOCR:      k.ForceOCR,
	})
}

// OCRConfig holds text recognition settings.
type OCRConfig struct {
	// Enabled turns on OCR of unrecognized screens and titles.
	Enabled bool `mapstructure:"enabled"`
	// Language is the Tesseract language code.
	Language string `mapstructure:"language"`
	// MinConfidence drops recognized lines below this confidence (0-100).
	MinConfidence float64 `mapstructure:"min_confidence"`
}

// CaptureConfig holds screen capture cadences.
type CaptureConfig struct {
	// TargetFPS is the near-player grab rate.
	TargetFPS int `mapstructure:"target_fps"`
	// NearbyRadius is the tile radius around the avatar that is scanned.
	NearbyRadius int `mapstructure:"nearby_radius"`
	// WholeWindowInterval is the whole-window grab period.
	WholeWindowInterval time.Duration `mapstructure:"whole_window_interval"`
	// WindowPollInterval is how often the window rectangle is re-queried.
	WindowPollInterval time.Duration `mapstructure:"window_poll_interval"`
	// FrameTimeout bounds each wait for a frame.
	FrameTimeout time.Duration `mapstructure:"frame_timeout"`
	// ScreenshotDir receives screenshots taken with the screenshot key.
	ScreenshotDir string `mapstructure:"screenshot_dir"`
}

// AudioConfig holds positional audio settings.
type AudioConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// SoundsDir holds the <kind>_<cue>.wav cue files.
	SoundsDir string `mapstructure:"sounds_dir"`
}

// SpeechConfig holds text-to-speech settings.
type SpeechConfig struct {
	Binary string `mapstructure:"binary"`
	Voice  string `mapstructure:"voice"`
	// Rate is in words per minute.
	Rate int `mapstructure:"rate"`
}

// PointConfig is a tile coordinate.
type PointConfig struct {
	X int `mapstructure:"x"`
	Y int `mapstructure:"y"`
}

// Point converts to geom.Point.
func (p PointConfig) Point() geom.Point { return geom.Pt(p.X, p.Y) }

// GameConfig locates the game window and files.
type GameConfig struct {
	WindowClass string      `mapstructure:"window_class"`
	WindowTitle string      `mapstructure:"window_title"`
	LogPath     string      `mapstructure:"log_path"`
	SavePath    string      `mapstructure:"save_path"`
	SaveKey     string      `mapstructure:"save_key"`
	CastleSpawn PointConfig `mapstructure:"castle_spawn"`
}

// AssetsConfig selects the asset store.
type AssetsConfig struct {
	// Source is "catalog" for the YAML catalog or "postgres" for the
	// database repository.
	Source      string `mapstructure:"source"`
	CatalogPath string `mapstructure:"catalog_path"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// HangConfig holds stall detection settings.
type HangConfig struct {
	ScanInterval time.Duration `mapstructure:"scan_interval"`
	StageTimeout time.Duration `mapstructure:"stage_timeout"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// File, when set, receives a copy of every log entry.
	File string `mapstructure:"file"`
}

// Config is the top-level application configuration.
type Config struct {
	Keys     KeysConfig     `mapstructure:"keys"`
	OCR      OCRConfig      `mapstructure:"ocr"`
	Capture  CaptureConfig  `mapstructure:"capture"`
	Audio    AudioConfig    `mapstructure:"audio"`
	Speech   SpeechConfig   `mapstructure:"speech"`
	Game     GameConfig     `mapstructure:"game"`
	Assets   AssetsConfig   `mapstructure:"assets"`
	Database DatabaseConfig `mapstructure:"database"`
	Hang     HangConfig     `mapstructure:"hang"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	// Debug forces debug logging and logs every utterance.
	Debug bool `mapstructure:"debug"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if _, err := c.Keys.Bindings(); err != nil {
		errs = append(errs, fmt.Sprintf("keys: %v", err))
	}
	if err := validateOCR(c.OCR); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateCapture(c.Capture); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Audio.Enabled && c.Audio.SoundsDir == "" {
		errs = append(errs, "audio.sounds_dir must not be empty when audio is enabled")
	}
	if c.Speech.Rate < 1 {
		errs = append(errs, fmt.Sprintf("speech.rate must be >= 1, got %d", c.Speech.Rate))
	}
	if err := validateGame(c.Game); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateAssets(c.Assets); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Assets.Source == "postgres" {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := validateHang(c.Hang); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateOCR(o OCRConfig) error {
	var errs []string
	if o.Enabled && o.Language == "" {
		errs = append(errs, "ocr.language must not be empty when ocr is enabled")
	}
	if o.MinConfidence < 0 || o.MinConfidence > 100 {
		errs = append(errs, fmt.Sprintf("ocr.min_confidence must be 0-100, got %g", o.MinConfidence))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateCapture(c CaptureConfig) error {
	var errs []string
	if c.TargetFPS < 1 || c.TargetFPS > 120 {
		errs = append(errs, fmt.Sprintf("capture.target_fps must be 1-120, got %d", c.TargetFPS))
	}
	if c.NearbyRadius < 1 {
		errs = append(errs, fmt.Sprintf("capture.nearby_radius must be >= 1, got %d", c.NearbyRadius))
	}
	if c.WholeWindowInterval <= 0 {
		errs = append(errs, "capture.whole_window_interval must be positive")
	}
	if c.WindowPollInterval <= 0 {
		errs = append(errs, "capture.window_poll_interval must be positive")
	}
	if c.FrameTimeout <= 0 || c.FrameTimeout > MaxFrameTimeout {
		errs = append(errs, fmt.Sprintf("capture.frame_timeout must be in (0, %s], got %s", MaxFrameTimeout, c.FrameTimeout))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateGame(g GameConfig) error {
	var errs []string
	if g.WindowClass == "" && g.WindowTitle == "" {
		errs = append(errs, "game.window_class or game.window_title must be set")
	}
	if g.LogPath == "" {
		errs = append(errs, "game.log_path must not be empty")
	}
	if g.SavePath != "" && g.SaveKey == "" {
		errs = append(errs, "game.save_key must not be empty when game.save_path is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateAssets(a AssetsConfig) error {
	switch a.Source {
	case "catalog":
		if a.CatalogPath == "" {
			return errors.New("assets.catalog_path must not be empty for the catalog source")
		}
		return nil
	case "postgres":
		return nil
	default:
		return fmt.Errorf("assets.source must be one of [catalog, postgres], got %q", a.Source)
	}
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateHang(h HangConfig) error {
	var errs []string
	if h.ScanInterval <= 0 {
		errs = append(errs, "hang.scan_interval must be positive")
	}
	if h.StageTimeout <= h.ScanInterval {
		errs = append(errs, "hang.stage_timeout must exceed hang.scan_interval")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with SIRALIM_ prefix
	v.SetEnvPrefix("SIRALIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if cfg.Debug {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a Viper instance holding only the default values.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("keys.read_secondary_key", "ctrl+shift+r")
	v.SetDefault("keys.read_all_info_key", "ctrl+shift+a")
	v.SetDefault("keys.copy_all_info_key", "ctrl+shift+c")
	v.SetDefault("keys.screenshot_key", "ctrl+shift+p")
	v.SetDefault("keys.force_ocr_key", "ctrl+shift+o")

	v.SetDefault("ocr.enabled", true)
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.min_confidence", 40)

	v.SetDefault("capture.target_fps", 30)
	v.SetDefault("capture.nearby_radius", 8)
	v.SetDefault("capture.whole_window_interval", "1s")
	v.SetDefault("capture.window_poll_interval", "1s")
	v.SetDefault("capture.frame_timeout", "10s")
	v.SetDefault("capture.screenshot_dir", "screenshots")

	v.SetDefault("audio.enabled", true)
	v.SetDefault("audio.sounds_dir", "assets/sounds")

	v.SetDefault("speech.binary", "espeak-ng")
	v.SetDefault("speech.voice", "")
	v.SetDefault("speech.rate", 200)

	v.SetDefault("game.window_class", "YYGameMakerYY")
	v.SetDefault("game.window_title", "Siralim Ultimate")
	v.SetDefault("game.log_path", "outputlog.txt")
	v.SetDefault("game.save_path", "")
	v.SetDefault("game.save_key", "")
	v.SetDefault("game.castle_spawn.x", 27)
	v.SetDefault("game.castle_spawn.y", 33)

	v.SetDefault("assets.source", "catalog")
	v.SetDefault("assets.catalog_path", "assets/catalog.yaml")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "siralim")
	v.SetDefault("database.password", "siralim")
	v.SetDefault("database.name", "siralim_assets")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("hang.scan_interval", "500ms")
	v.SetDefault("hang.stage_timeout", "15s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")

	v.SetDefault("debug", false)
}
