// Package analytics implements the rep counting, form feedback, fatigue,
// calorie and punch speed analysis of a live pose stream.
package analytics

import (
	"sync"
	"time"

	"github.com/ElectrobladeIsADev/fitnessguide/exercise"
	"github.com/ElectrobladeIsADev/fitnessguide/pose"
)

// SessionState is the full state pushed to dashboard clients.
type SessionState struct {
	Summary
	Feedback string        `json:"feedback"`
	Fatigue  bool          `json:"fatigue"`
	Angle    *float64      `json:"angle,omitempty"`
	Speed    *SpeedReading `json:"speed,omitempty"`
}

// StateHandler is called when session state changes.
type StateHandler func(state *SessionState)

// EventHandler is called for every announced event, in order.
type EventHandler func(ev Event)

// FrameHandler is called with the result of every processed frame.
type FrameHandler func(res FrameResult)

// Analyzer serialises frames and configuration changes from concurrent
// sources onto a single Session.
type Analyzer struct {
	mu      sync.Mutex
	session *Session
	last    FrameResult
	now     func() time.Time

	onState StateHandler
	onEvent EventHandler
	onFrame FrameHandler

	states stateDispatch
}

// stateDispatch delivers states to a StateHandler outside the analyzer lock.
// One goroutine runs at a time, so handlers see states in order; a state
// queued while the handler is busy replaces any older pending one.
type stateDispatch struct {
	mu      sync.Mutex
	handler StateHandler
	pending *SessionState
	running bool
}

func (d *stateDispatch) push(handler StateHandler, state *SessionState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler, d.pending = handler, state
	if !d.running {
		d.running = true
		go d.run()
	}
}

func (d *stateDispatch) run() {
	for {
		d.mu.Lock()
		handler, state := d.handler, d.pending
		d.pending = nil
		if state == nil {
			d.running = false
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()

		handler(state)
	}
}

// NewAnalyzer creates an Analyzer with a fresh session.
func NewAnalyzer(table exercise.Table, settings Settings) (*Analyzer, error) {
	return newAnalyzer(table, settings, time.Now)
}

func newAnalyzer(table exercise.Table, settings Settings, now func() time.Time) (*Analyzer, error) {
	session, err := NewSession(table, settings, now())
	if err != nil {
		return nil, err
	}
	return &Analyzer{
		session: session,
		now:     now,
	}, nil
}

// SetStateHandler sets the callback for state changes.
func (a *Analyzer) SetStateHandler(handler StateHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onState = handler
}

// SetEventHandler sets the callback for announced events.
func (a *Analyzer) SetEventHandler(handler EventHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onEvent = handler
}

// SetFrameHandler sets the callback for frame results.
func (a *Analyzer) SetFrameHandler(handler FrameHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onFrame = handler
}

// ProcessFrame runs one landmark frame (nil for no detection) observed at ts.
func (a *Analyzer) ProcessFrame(frame *pose.LandmarkFrame, ts time.Time) FrameResult {
	a.mu.Lock()
	res := a.session.ProcessFrame(frame, ts)
	changed := false
	if res.Skipped == SkipNone {
		changed = len(res.Events) > 0 || res.Speed != nil ||
			res.Phase != a.last.Phase || res.Feedback != a.last.Feedback
		a.last = res
	}
	onEvent, onFrame := a.onEvent, a.onFrame
	if changed {
		a.broadcastLocked()
	}
	a.mu.Unlock()

	if onFrame != nil {
		onFrame(res)
	}
	if onEvent != nil {
		for _, ev := range res.Events {
			onEvent(ev)
		}
	}
	return res
}

// SwitchExercise selects a new exercise by name and resets the session.
func (a *Analyzer) SwitchExercise(name string) error {
	e, err := exercise.Parse(name)
	if err != nil {
		return err
	}

	a.mu.Lock()
	ev, err := a.session.SwitchExercise(e, a.now())
	if err != nil {
		a.mu.Unlock()
		return err
	}
	a.last = FrameResult{}
	onEvent := a.onEvent
	a.broadcastLocked()
	a.mu.Unlock()

	if onEvent != nil {
		onEvent(ev)
	}
	return nil
}

// ApplySettings replaces the settings, rejecting invalid ones.
func (a *Analyzer) ApplySettings(next Settings) error {
	a.mu.Lock()
	ev, err := a.session.ApplySettings(next, a.now())
	if err != nil {
		a.mu.Unlock()
		return err
	}
	if ev != nil {
		a.last = FrameResult{}
	}
	onEvent := a.onEvent
	a.broadcastLocked()
	a.mu.Unlock()

	if ev != nil && onEvent != nil {
		onEvent(*ev)
	}
	return nil
}

// Settings returns the settings in effect.
func (a *Analyzer) Settings() Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session.Settings()
}

// ResetSession clears all counters and keeps the selected exercise.
func (a *Analyzer) ResetSession() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.session.Reset(a.now())
	a.last = FrameResult{}
	a.broadcastLocked()
}

// BroadcastTick sends periodic state updates (elapsed time).
func (a *Analyzer) BroadcastTick() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.broadcastLocked()
}

// GetState returns the current session state.
func (a *Analyzer) GetState() *SessionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buildStateLocked()
}

// buildStateLocked creates a SessionState snapshot.
// Must be called with a.mu held.
func (a *Analyzer) buildStateLocked() *SessionState {
	st := &SessionState{
		Summary:  a.session.Summary(a.now()),
		Feedback: a.last.Feedback,
		Fatigue:  a.last.Fatigue,
	}
	if a.last.HasAngle {
		angle := a.last.Angle
		st.Angle = &angle
	}
	if a.last.Speed != nil {
		speed := *a.last.Speed
		st.Speed = &speed
	}
	return st
}

// broadcastLocked sends state to the handler.
// Must be called with a.mu held.
func (a *Analyzer) broadcastLocked() {
	if a.onState != nil {
		a.states.push(a.onState, a.buildStateLocked())
	}
}
