// Package speech narrates text through the system text-to-speech voice.
package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Voice speaks text to the user.
type Voice interface {
	// Speak starts an utterance without waiting. Any in-flight utterance
	// is cancelled first.
	Speak(text string)
	// SpeakBlocking purges, then speaks text and waits for it to finish.
	SpeakBlocking(ctx context.Context, text string) error
	// Silence cancels any in-flight utterance.
	Silence()
}

// Espeak drives an espeak-compatible command, one process per utterance.
type Espeak struct {
	binary string
	voice  string
	rate   int
	logger *zap.Logger

	mu      sync.Mutex
	current uuid.UUID
	cancel  context.CancelFunc
}

// NewEspeak returns a Voice that runs binary (e.g. "espeak-ng").
//
// Precondition: rate > 0 words per minute.
func NewEspeak(binary, voice string, rate int, logger *zap.Logger) (*Espeak, error) {
	if _, err := exec.LookPath(binary); err != nil {
		return nil, fmt.Errorf("locating speech binary %q: %w", binary, err)
	}
	return &Espeak{binary: binary, voice: voice, rate: rate, logger: logger}, nil
}

func (e *Espeak) command(ctx context.Context, text string) *exec.Cmd {
	args := []string{"-s", strconv.Itoa(e.rate)}
	if e.voice != "" {
		args = append(args, "-v", e.voice)
	}
	args = append(args, "--", text)
	return exec.CommandContext(ctx, e.binary, args...)
}

// Speak implements Voice.
func (e *Espeak) Speak(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New()

	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.current, e.cancel = id, cancel
	e.mu.Unlock()

	cmd := e.command(ctx, text)
	if err := cmd.Start(); err != nil {
		e.logger.Warn("starting speech", zap.Error(err))
		e.finish(id)
		return
	}
	e.logger.Debug("speaking", zap.Stringer("utterance", id), zap.String("text", text))
	go func() {
		_ = cmd.Wait()
		e.finish(id)
	}()
}

// finish clears the in-flight utterance if it is still id.
func (e *Espeak) finish(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == id && e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// SpeakBlocking implements Voice.
func (e *Espeak) SpeakBlocking(ctx context.Context, text string) error {
	e.Silence()
	if err := e.command(ctx, text).Run(); err != nil {
		return fmt.Errorf("speaking %q: %w", text, err)
	}
	return nil
}

// Silence implements Voice.
func (e *Espeak) Silence() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// Logged wraps a Voice so every utterance is also written to the log.
// Used with the debug flag to follow narration without audio.
type Logged struct {
	Voice
	Logger *zap.Logger
}

// Speak logs then delegates.
func (l Logged) Speak(text string) {
	l.Logger.Info("speech", zap.String("text", text))
	l.Voice.Speak(text)
}

// Null is a Voice that discards everything.
type Null struct{}

func (Null) Speak(string) {}
func (Null) SpeakBlocking(context.Context, string) error { return nil }
func (Null) Silence() {}
