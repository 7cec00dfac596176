// Package exercise is the single source of truth for per-exercise constants:
// the tracked joint triple, MET value, default angle thresholds and form rules.
package exercise

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ElectrobladeIsADev/fitnessguide/pose"
)

// ErrUnknownExercise is returned when an exercise has no profile.
var ErrUnknownExercise = errors.New("unknown exercise")

// Exercise names a supported exercise.
type Exercise string

const (
	Squat    Exercise = "squat"
	Pushup   Exercise = "pushup"
	Shoulder Exercise = "shoulder"
	Boxing   Exercise = "boxing"
)

// Parse resolves an exercise name (case-insensitive) against the default table.
func Parse(name string) (Exercise, error) {
	e := canonical(name)
	if _, ok := defaultProfiles[e]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownExercise, name)
	}
	return e, nil
}

// UnmarshalText accepts exercise names in any case. Unknown names decode
// as-is and are rejected by Table.Lookup.
func (e *Exercise) UnmarshalText(text []byte) error {
	*e = canonical(string(text))
	return nil
}

func canonical(name string) Exercise {
	return Exercise(strings.ToLower(strings.TrimSpace(name)))
}

// Default angle thresholds in degrees.
const (
	DefaultMinAngle = 70
	DefaultMaxAngle = 160
)

// RuleCheck selects the condition a form rule tests.
type RuleCheck int

const (
	// AngleAboveMin matches when the tracked angle is above the configured minimum.
	AngleAboveMin RuleCheck = iota
	// AngleBelowMax matches when the tracked angle is below the configured maximum.
	AngleBelowMax
	// AuxBelow matches when the auxiliary angle is below the rule's Limit.
	AuxBelow
)

// FormRule is one row of an exercise's feedback table.
type FormRule struct {
	Phase   Phase
	Check   RuleCheck
	Aux     pose.Triple // AuxBelow only
	Limit   float64     // AuxBelow only
	Message string
}

// Profile is the immutable description of one exercise.
type Profile struct {
	Exercise Exercise
	// AngleModel is false for exercises without a Down/Up phase model (boxing).
	AngleModel      bool
	Joints          pose.Triple
	SpeedJoint      pose.JointID
	MET             float64
	DefaultMinAngle int
	DefaultMaxAngle int
	Rules           []FormRule
}

// Feedback messages.
const (
	MsgGoLower          = "Go lower"
	MsgStandFully       = "Stand fully"
	MsgKeepChestUp      = "Keep chest up"
	MsgLowerMore        = "Lower more"
	MsgKeepBodyStraight = "Keep body straight"
	MsgPressUp          = "Press up"
	MsgFatigue          = "Fatigue detected"
)

var (
	torso = pose.Triple{pose.LeftShoulder, pose.LeftHip, pose.LeftKnee}
	back  = pose.Triple{pose.LeftShoulder, pose.LeftHip, pose.LeftAnkle}
)

var defaultProfiles = Table{
	Squat: {
		Exercise:        Squat,
		AngleModel:      true,
		Joints:          pose.Triple{pose.LeftHip, pose.LeftKnee, pose.LeftAnkle},
		MET:             5.0,
		DefaultMinAngle: DefaultMinAngle,
		DefaultMaxAngle: DefaultMaxAngle,
		Rules: []FormRule{
			{Phase: Down, Check: AngleAboveMin, Message: MsgGoLower},
			{Phase: Up, Check: AngleBelowMax, Message: MsgStandFully},
			{Phase: Down, Check: AuxBelow, Aux: torso, Limit: 155, Message: MsgKeepChestUp},
		},
	},
	Pushup: {
		Exercise:        Pushup,
		AngleModel:      true,
		Joints:          pose.Triple{pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist},
		MET:             7.0,
		DefaultMinAngle: DefaultMinAngle,
		DefaultMaxAngle: DefaultMaxAngle,
		Rules: []FormRule{
			{Phase: Down, Check: AngleAboveMin, Message: MsgLowerMore},
			{Phase: Down, Check: AuxBelow, Aux: back, Limit: 165, Message: MsgKeepBodyStraight},
			{Phase: Up, Check: AngleBelowMax, Message: MsgPressUp},
		},
	},
	Shoulder: {
		Exercise:        Shoulder,
		AngleModel:      true,
		Joints:          pose.Triple{pose.LeftElbow, pose.LeftShoulder, pose.LeftHip},
		MET:             4.5,
		DefaultMinAngle: DefaultMinAngle,
		DefaultMaxAngle: DefaultMaxAngle,
	},
	Boxing: {
		Exercise:   Boxing,
		SpeedJoint: pose.LeftWrist,
		MET:        8.0,
	},
}

// Table maps exercises to their profiles.
type Table map[Exercise]Profile

// DefaultTable returns a copy of the built-in profiles.
func DefaultTable() Table {
	t := make(Table, len(defaultProfiles))
	for e, p := range defaultProfiles {
		t[e] = p
	}
	return t
}

// Lookup returns the profile for e.
func (t Table) Lookup(e Exercise) (Profile, error) {
	p, ok := t[e]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownExercise, e)
	}
	return p, nil
}

// Exercises returns the table's exercises sorted by name.
func (t Table) Exercises() []Exercise {
	out := make([]Exercise, 0, len(t))
	for e := range t {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Override replaces selected profile constants. Zero fields are left unchanged.
type Override struct {
	MET      float64 `yaml:"met"`
	MinAngle int     `yaml:"min_angle"`
	MaxAngle int     `yaml:"max_angle"`
	// Joints replaces the tracked triple, vertex in the middle,
	// e.g. [right_elbow, right_shoulder, right_hip].
	Joints []string `yaml:"joints"`
}

// WithOverrides returns a copy of t with the overrides applied.
func (t Table) WithOverrides(overrides map[Exercise]Override) (Table, error) {
	out := make(Table, len(t))
	for e, p := range t {
		out[e] = p
	}

	for e, o := range overrides {
		p, err := out.Lookup(e)
		if err != nil {
			return nil, err
		}
		if o.MET < 0 {
			return nil, fmt.Errorf("%s: met must be positive, got %v", e, o.MET)
		}
		if o.MET > 0 {
			p.MET = o.MET
		}
		if o.MinAngle != 0 {
			p.DefaultMinAngle = o.MinAngle
		}
		if o.MaxAngle != 0 {
			p.DefaultMaxAngle = o.MaxAngle
		}
		if len(o.Joints) > 0 {
			if !p.AngleModel {
				return nil, fmt.Errorf("%s: joints override needs an angle-based exercise", e)
			}
			triple, err := parseTriple(o.Joints)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", e, err)
			}
			p.Joints = triple
		}
		if p.AngleModel && p.DefaultMinAngle >= p.DefaultMaxAngle {
			return nil, fmt.Errorf("%s: min_angle %d must be below max_angle %d",
				e, p.DefaultMinAngle, p.DefaultMaxAngle)
		}
		out[e] = p
	}
	return out, nil
}

func parseTriple(names []string) (pose.Triple, error) {
	var t pose.Triple
	if len(names) != len(t) {
		return t, fmt.Errorf("joints: need 3 names, got %d", len(names))
	}
	for i, name := range names {
		j, err := pose.ParseJoint(name)
		if err != nil {
			return t, fmt.Errorf("joints: %w", err)
		}
		t[i] = j
	}
	if t[0] == t[1] || t[1] == t[2] || t[0] == t[2] {
		return t, fmt.Errorf("joints: %s repeats a joint", t)
	}
	return t, nil
}
