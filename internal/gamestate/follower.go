package gamestate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/gurgalex/SiralimAccess-sub000/internal/hang"
)

// pollInterval bounds how long an append can go unnoticed when the
// filesystem drops a notification.
const pollInterval = 2 * time.Second

// Follower feeds the game log and save-file changes into a Tracker.
type Follower struct {
	logPath  string
	savePath string
	tracker  *Tracker
	logger   *zap.Logger

	file    *os.File
	offset  int64
	partial []byte
}

// NewFollower returns a Follower for the given log and save paths.
//
// Precondition: tracker and logger must be non-nil. savePath may be empty.
func NewFollower(logPath, savePath string, tracker *Tracker, logger *zap.Logger) *Follower {
	return &Follower{logPath: filepath.Clean(logPath), savePath: cleanOptional(savePath), tracker: tracker, logger: logger}
}

func cleanOptional(p string) string {
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}

// Run replays the log from its last resumable anchor, then follows
// appended lines and save-file writes until ctx is cancelled.
//
// Precondition: pinger may be nil.
func (f *Follower) Run(ctx context.Context, pinger *hang.Pinger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()
	dirs := map[string]bool{filepath.Dir(f.logPath): true}
	if f.savePath != "" {
		dirs[filepath.Dir(f.savePath)] = true
	}
	for d := range dirs {
		if err := watcher.Add(d); err != nil {
			return fmt.Errorf("watching %s: %w", d, err)
		}
	}
	defer f.closeLog()

	events, err := f.readNew()
	if err != nil {
		return err
	}
	replay := Rewind(events)
	f.logger.Info("replaying game log",
		zap.Int("events", len(events)),
		zap.Int("replayed", len(replay)),
	)
	f.apply(ctx, replay)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if pinger != nil {
			pinger.NotifyWait()
		}
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("file watcher error", zap.Error(err))
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if err := f.handle(ctx, ev); err != nil {
				return err
			}
		case <-ticker.C:
			if err := f.follow(ctx); err != nil {
				return err
			}
		}
		if pinger != nil {
			pinger.NotifyActivity("game log")
		}
	}
}

func (f *Follower) handle(ctx context.Context, ev fsnotify.Event) error {
	name := filepath.Clean(ev.Name)
	switch {
	case name == f.logPath:
		if ev.Has(fsnotify.Create) {
			// The game recreates its log on start.
			f.closeLog()
		}
		return f.follow(ctx)
	case f.savePath != "" && name == f.savePath && (ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)):
		f.tracker.Apply(ctx, Event{Kind: EventSaveUpdated})
	}
	return nil
}

func (f *Follower) follow(ctx context.Context) error {
	events, err := f.readNew()
	if err != nil {
		return err
	}
	f.apply(ctx, events)
	return nil
}

func (f *Follower) apply(ctx context.Context, events []Event) {
	for _, ev := range events {
		f.tracker.Apply(ctx, ev)
	}
}

func (f *Follower) closeLog() {
	if f.file != nil {
		_ = f.file.Close()
		f.file = nil
	}
	f.offset = 0
	f.partial = nil
}

// readNew returns the events on complete lines appended since the last
// read. A missing log yields no events; a shrunken log is reread from
// the start.
func (f *Follower) readNew() ([]Event, error) {
	if f.file == nil {
		file, err := os.Open(f.logPath)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("opening game log: %w", err)
		}
		f.file = file
	}
	info, err := f.file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat game log: %w", err)
	}
	if info.Size() < f.offset {
		f.offset = 0
		f.partial = nil
	}
	if _, err := f.file.Seek(f.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking game log: %w", err)
	}
	data, err := io.ReadAll(f.file)
	if err != nil {
		return nil, fmt.Errorf("reading game log: %w", err)
	}
	f.offset += int64(len(data))
	data = append(f.partial, data...)

	var events []Event
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimRight(data[:i], "\r"))
		if ev, ok := ParseLine(line); ok {
			events = append(events, ev)
		}
		data = data[i+1:]
	}
	f.partial = append([]byte(nil), data...)
	return events, nil
}
