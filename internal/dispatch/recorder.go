package dispatch

import (
	"context"
	"sync"

	"firestige.xyz/vlanswitch/internal/core"
)

// Recorder keeps every command in memory. Used for dry runs and tests.
type Recorder struct {
	mu    sync.Mutex
	rules []core.InstallRule
	emits []core.Emit

	// Err, when set, is returned by every call after recording.
	Err error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) InstallRule(_ context.Context, rule core.InstallRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule)
	return r.Err
}

func (r *Recorder) Emit(_ context.Context, emit core.Emit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emits = append(r.emits, emit)
	return r.Err
}

func (r *Recorder) Name() string { return "recorder" }

func (r *Recorder) Close() error { return nil }

// Rules returns a copy of the recorded install-rule commands.
func (r *Recorder) Rules() []core.InstallRule {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.InstallRule(nil), r.rules...)
}

// Emits returns a copy of the recorded emit commands.
func (r *Recorder) Emits() []core.Emit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Emit(nil), r.emits...)
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = nil
	r.emits = nil
}
