package analytics

import (
	"errors"
	"fmt"
	"time"

	"github.com/ElectrobladeIsADev/fitnessguide/exercise"
	"github.com/ElectrobladeIsADev/fitnessguide/pose"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// SkipReason explains why a frame did not reach the rep logic.
type SkipReason string

const (
	SkipNone               SkipReason = ""
	SkipNoDetection        SkipReason = "no_detection"
	SkipDegenerateGeometry SkipReason = "degenerate_geometry"
	SkipMissingJoint       SkipReason = "missing_joint"
)

// FrameResult is the output bundle of one processed frame.
type FrameResult struct {
	Exercise      exercise.Exercise `json:"exercise"`
	Phase         exercise.Phase    `json:"phase"`
	Reps          int               `json:"reps"`
	Sets          int               `json:"sets"`
	TotalCalories float64           `json:"total_calories"`
	Feedback      string            `json:"feedback"`
	Fatigue       bool              `json:"fatigue"`
	// Angle is the tracked joint angle, valid when HasAngle is set.
	Angle    float64       `json:"angle"`
	HasAngle bool          `json:"has_angle"`
	Speed    *SpeedReading `json:"speed,omitempty"`
	Skipped  SkipReason    `json:"skipped,omitempty"`
	Events   []Event       `json:"events,omitempty"`
}

// Session owns all mutable state of one workout session. It is not safe for
// concurrent use; Analyzer serialises access for concurrent callers.
type Session struct {
	id        string
	table     exercise.Table
	profile   exercise.Profile
	settings  Settings
	state     RepState
	wrist     WristTracker
	startedAt time.Time
}

// NewSession validates settings and starts a session at now.
func NewSession(table exercise.Table, settings Settings, now time.Time) (*Session, error) {
	if err := settings.Validate(table); err != nil {
		return nil, err
	}
	profile, err := table.Lookup(settings.Exercise)
	if err != nil {
		return nil, err
	}

	s := &Session{
		table:    table,
		profile:  profile,
		settings: settings,
	}
	s.Reset(now)
	return s, nil
}

// ID identifies the current session; it changes on every reset.
func (s *Session) ID() string {
	return s.id
}

// Profile returns the profile of the selected exercise.
func (s *Session) Profile() exercise.Profile {
	return s.profile
}

// Settings returns the settings in effect.
func (s *Session) Settings() Settings {
	return s.settings
}

// State returns a copy of the repetition state.
func (s *Session) State() RepState {
	st := s.state
	st.RepDurations = append([]float64(nil), s.state.RepDurations...)
	return st
}

// Reset clears all session counters and the wrist sample.
func (s *Session) Reset(now time.Time) {
	s.id = uuid.NewString()
	s.state.Reset(now)
	s.wrist.Reset()
	s.startedAt = now
}

// SwitchExercise selects e, loads its default thresholds and resets the session.
func (s *Session) SwitchExercise(e exercise.Exercise, now time.Time) (Event, error) {
	profile, err := s.table.Lookup(e)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	next := s.settings
	next.Exercise = e
	if profile.AngleModel {
		next.MinAngle = profile.DefaultMinAngle
		next.MaxAngle = profile.DefaultMaxAngle
	}
	if err := next.Validate(s.table); err != nil {
		return Event{}, err
	}

	s.settings = next
	s.profile = profile
	s.Reset(now)

	log.WithField("exercise", e).Info("exercise switched")
	return switchEvent(e, now), nil
}

// ApplySettings replaces the settings if they are valid. A changed exercise
// resets the session and yields the switch event.
func (s *Session) ApplySettings(next Settings, now time.Time) (*Event, error) {
	if err := next.Validate(s.table); err != nil {
		log.WithError(err).Warn("settings update rejected")
		return nil, err
	}

	if next.Exercise == s.settings.Exercise {
		s.settings = next
		return nil, nil
	}

	profile, err := s.table.Lookup(next.Exercise)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	s.settings = next
	s.profile = profile
	s.Reset(now)
	ev := switchEvent(next.Exercise, now)
	log.WithField("exercise", next.Exercise).Info("exercise switched")
	return &ev, nil
}

// ProcessFrame runs one frame through the pipeline. A nil frame means no
// detection and leaves the state untouched.
func (s *Session) ProcessFrame(frame *pose.LandmarkFrame, now time.Time) FrameResult {
	if frame == nil {
		return s.result(SkipNoDetection)
	}
	if !s.profile.AngleModel {
		return s.processSpeed(frame, now)
	}

	angle, err := frame.Angle(s.profile.Joints)
	if err != nil {
		reason := SkipDegenerateGeometry
		if errors.Is(err, pose.ErrMissingJoint) {
			reason = SkipMissingJoint
		}
		log.WithError(err).Trace("frame skipped")
		return s.result(reason)
	}

	params := RepParams{
		MinAngle:         float64(s.settings.MinAngle),
		MaxAngle:         float64(s.settings.MaxAngle),
		TargetRepsPerSet: s.settings.TargetRepsPerSet,
		MET:              s.profile.MET,
		BodyWeightKg:     s.settings.BodyWeightKg,
	}
	out := s.state.Advance(angle, now, params)

	var events []Event
	if out.RepCompleted {
		events = append(events, repEvent(s.settings.Exercise, s.state.Reps, now))
		if out.SetCompleted {
			events = append(events, setEvent(s.settings.Exercise, s.state.Sets, now))
		}
		log.WithFields(log.Fields{
			"exercise": s.settings.Exercise,
			"rep":      s.state.Reps,
			"duration": out.Duration,
			"kcal":     s.state.TotalCalories,
		}).Info("rep completed")
	}

	feedback := EvaluateForm(s.profile, s.state.Phase, angle, params.MinAngle, params.MaxAngle, frame)
	if out.Fatigue {
		feedback = exercise.MsgFatigue
		events = append(events, fatigueEvent(s.settings.Exercise, now))
		log.WithField("rep", s.state.Reps).Info("fatigue detected")
	}

	res := s.result(SkipNone)
	res.Angle = angle
	res.HasAngle = true
	res.Feedback = feedback
	res.Fatigue = out.Fatigue
	res.Events = events
	return res
}

func (s *Session) processSpeed(frame *pose.LandmarkFrame, now time.Time) FrameResult {
	wrist, ok := frame.Point(s.profile.SpeedJoint)
	if !ok {
		return s.result(SkipMissingJoint)
	}

	reading, ok := s.wrist.Observe(wrist.Scale(s.settings.FrameWidth, s.settings.FrameHeight), now)
	res := s.result(SkipNone)
	if ok {
		res.Speed = &reading
	}
	return res
}

func (s *Session) result(skip SkipReason) FrameResult {
	return FrameResult{
		Exercise:      s.settings.Exercise,
		Phase:         s.state.Phase,
		Reps:          s.state.Reps,
		Sets:          s.state.Sets,
		TotalCalories: s.state.TotalCalories,
		Skipped:       skip,
	}
}

// Summary is the stats panel view of a session.
type Summary struct {
	ID              string            `json:"id"`
	Exercise        exercise.Exercise `json:"exercise"`
	Phase           exercise.Phase    `json:"phase"`
	Reps            int               `json:"reps"`
	Sets            int               `json:"sets"`
	TotalCalories   float64           `json:"total_calories"`
	LastRepDuration float64           `json:"last_rep_duration"`
	AvgRepDuration  float64           `json:"avg_rep_duration"`
	ElapsedSec      float64           `json:"elapsed_sec"`
	Settings        Settings          `json:"settings"`
}

// Summary reports the session totals as of now.
func (s *Session) Summary(now time.Time) Summary {
	sum := Summary{
		ID:            s.id,
		Exercise:      s.settings.Exercise,
		Phase:         s.state.Phase,
		Reps:          s.state.Reps,
		Sets:          s.state.Sets,
		TotalCalories: s.state.TotalCalories,
		Settings:      s.settings,
	}
	if elapsed := now.Sub(s.startedAt).Seconds(); elapsed > 0 {
		sum.ElapsedSec = elapsed
	}
	if n := len(s.state.RepDurations); n > 0 {
		var total float64
		for _, d := range s.state.RepDurations {
			total += d
		}
		sum.LastRepDuration = s.state.RepDurations[n-1]
		sum.AvgRepDuration = total / float64(n)
	}
	return sum
}
