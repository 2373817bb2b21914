package testutil

import (
	"context"
	"sync"
)

// Voice records utterances for assertions. Safe for concurrent use.
type Voice struct {
	mu       sync.Mutex
	spoken   []string
	blocking []string
	silences int
}

// Speak records text.
func (v *Voice) Speak(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.spoken = append(v.spoken, text)
}

// SpeakBlocking records text as a blocking utterance.
func (v *Voice) SpeakBlocking(_ context.Context, text string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.blocking = append(v.blocking, text)
	return nil
}

// Silence counts the call.
func (v *Voice) Silence() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.silences++
}

// Spoken returns a copy of the non-blocking utterances so far.
func (v *Voice) Spoken() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.spoken...)
}

// Blocking returns a copy of the blocking utterances so far.
func (v *Voice) Blocking() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.blocking...)
}

// Silences returns how many times Silence was called.
func (v *Voice) Silences() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.silences
}

// Reset forgets everything recorded.
func (v *Voice) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.spoken, v.blocking, v.silences = nil, nil, 0
}
