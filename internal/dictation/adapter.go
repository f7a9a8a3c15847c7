// Package dictation wraps an optional speech-to-text capability behind a small
// start/stop state machine.
package dictation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

// State is the adapter's recording state.
type State string

const (
	// StateUnavailable means the runtime has no capability. Terminal.
	StateUnavailable State = "unavailable"
	StateIdle        State = "idle"
	StateRecording   State = "recording"
)

// ErrCapabilityUnavailable is reported when dictation is attempted without a capability.
var ErrCapabilityUnavailable = errors.New("speech recognition is not supported in this environment")

// RecognitionError is reported when the capability fails to start or emits an error.
type RecognitionError struct {
	Err error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("speech recognition error: %v", e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// transitions lists the legal moves out of each state.
var transitions = map[State][]State{
	StateUnavailable: {},
	StateIdle:        {StateRecording},
	StateRecording:   {StateIdle},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Callbacks receive the adapter's push output. Any of them may be nil.
// They are never invoked while the adapter holds its lock.
type Callbacks struct {
	OnTranscript  func(text string)
	OnError       func(err error)
	OnStateChange func(state State)
}

// Adapter owns a Capability and exposes it as a three-state machine.
type Adapter struct {
	mu         sync.Mutex
	capability Capability
	cb         Callbacks
	state      State
	generation uint64
	cancel     context.CancelFunc
	starting   bool
	reported   bool
	closed     bool
}

// New returns an adapter over capability. A nil capability yields an adapter that
// stays in StateUnavailable.
func New(capability Capability, cb Callbacks) *Adapter {
	state := StateIdle
	if capability == nil {
		state = StateUnavailable
	}
	return &Adapter{capability: capability, cb: cb, state: state}
}

// State returns the current state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Start begins a recording. It returns ErrCapabilityUnavailable (reported to
// OnError only the first time) when there is no capability, and is a no-op while
// already recording or starting.
//
// The lock is released while the capability starts, so Stop and Close never wait
// on a slow capability. Close cancels the start through its context.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.closed || a.starting {
		a.mu.Unlock()
		return nil
	}
	switch a.state {
	case StateUnavailable:
		first := !a.reported
		a.reported = true
		a.mu.Unlock()
		if first {
			a.emitError(ErrCapabilityUnavailable)
		}
		return ErrCapabilityUnavailable
	case StateRecording:
		a.mu.Unlock()
		return nil
	}

	a.starting = true
	a.generation++
	gen := a.generation
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	capability := a.capability
	a.mu.Unlock()

	events, err := capability.Start(runCtx)

	a.mu.Lock()
	a.starting = false
	if a.closed || gen != a.generation {
		// 启动期间已经 Stop 或 Close，丢弃这一路识别
		a.mu.Unlock()
		cancel()
		if err == nil && events != nil {
			_ = capability.Stop()
			go drain(events)
		}
		return nil
	}
	if err != nil {
		a.cancel = nil
		a.mu.Unlock()
		cancel()
		err = &RecognitionError{Err: err}
		a.emitError(err)
		return err
	}
	a.moveLocked(StateRecording)
	a.mu.Unlock()

	a.emitState(StateRecording)
	go a.pump(gen, events, cancel)
	return nil
}

func drain(events <-chan Event) {
	for range events {
	}
}

// Stop ends the current recording. A start still in progress is abandoned. It is
// a no-op otherwise.
func (a *Adapter) Stop() error {
	a.mu.Lock()
	if a.starting {
		a.generation++
		if a.cancel != nil {
			a.cancel()
			a.cancel = nil
		}
		a.mu.Unlock()
		return nil
	}
	if a.state != StateRecording {
		a.mu.Unlock()
		return nil
	}
	a.moveLocked(StateIdle)
	capability := a.capability
	a.mu.Unlock()

	a.emitState(StateIdle)
	if err := capability.Stop(); err != nil {
		log.Printf("[dictation] stop failed: %v", err)
		return err
	}
	return nil
}

// Toggle starts when idle and stops when recording or starting.
func (a *Adapter) Toggle(ctx context.Context) error {
	a.mu.Lock()
	active := a.state == StateRecording || a.starting
	a.mu.Unlock()
	if active {
		return a.Stop()
	}
	return a.Start(ctx)
}

// Close stops any recording and silences every callback that would follow.
func (a *Adapter) Close() {
	_ = a.Stop()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.generation++
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

func (a *Adapter) pump(gen uint64, events <-chan Event, cancel context.CancelFunc) {
	defer cancel()
	for ev := range events {
		switch {
		case ev.Err != nil:
			if a.finish(gen) {
				a.emitError(&RecognitionError{Err: ev.Err})
			}
		case ev.End:
			a.finish(gen)
		default:
			if a.current(gen) && a.cb.OnTranscript != nil {
				a.cb.OnTranscript(ev.Transcript)
			}
		}
	}
	a.finish(gen)
}

// current reports whether gen is still the live recording generation.
func (a *Adapter) current(gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.closed && gen == a.generation
}

// finish moves a live recording back to idle. It reports whether gen is current.
func (a *Adapter) finish(gen uint64) bool {
	a.mu.Lock()
	if a.closed || gen != a.generation {
		a.mu.Unlock()
		return false
	}
	moved := false
	if a.state == StateRecording {
		a.moveLocked(StateIdle)
		moved = true
	}
	a.mu.Unlock()

	if moved {
		a.emitState(StateIdle)
	}
	return true
}

func (a *Adapter) moveLocked(to State) {
	if !CanTransition(a.state, to) {
		log.Printf("[dictation] illegal transition %s -> %s ignored", a.state, to)
		return
	}
	a.state = to
}

func (a *Adapter) emitError(err error) {
	if a.cb.OnError != nil {
		a.cb.OnError(err)
	}
}

func (a *Adapter) emitState(s State) {
	if a.cb.OnStateChange != nil {
		a.cb.OnStateChange(s)
	}
}
