package analytics

import (
	"errors"
	"fmt"
	"math"

	"github.com/ElectrobladeIsADev/fitnessguide/exercise"
)

// ErrInvalidConfiguration is returned when a settings update is rejected.
// The previously valid settings stay in effect.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Default session settings.
const (
	DefaultBodyWeightKg     = 70.0
	DefaultTargetRepsPerSet = 10
	DefaultFrameWidth       = 640.0
	DefaultFrameHeight      = 480.0
)

// Settings are the user-adjustable inputs read by the session on every frame.
type Settings struct {
	Exercise         exercise.Exercise `json:"exercise"`
	MinAngle         int               `json:"min_angle"`
	MaxAngle         int               `json:"max_angle"`
	BodyWeightKg     float64           `json:"body_weight_kg"`
	TargetRepsPerSet int               `json:"target_reps_per_set"`
	// FrameWidth and FrameHeight convert normalized landmarks to pixels for punch speed.
	FrameWidth  float64 `json:"frame_width"`
	FrameHeight float64 `json:"frame_height"`
}

// DefaultSettings returns settings for a squat session with default thresholds.
func DefaultSettings() Settings {
	return Settings{
		Exercise:         exercise.Squat,
		MinAngle:         exercise.DefaultMinAngle,
		MaxAngle:         exercise.DefaultMaxAngle,
		BodyWeightKg:     DefaultBodyWeightKg,
		TargetRepsPerSet: DefaultTargetRepsPerSet,
		FrameWidth:       DefaultFrameWidth,
		FrameHeight:      DefaultFrameHeight,
	}
}

// Validate checks s against the profile table.
func (s Settings) Validate(table exercise.Table) error {
	if _, err := table.Lookup(s.Exercise); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	if s.TargetRepsPerSet <= 0 {
		return fmt.Errorf("%w: target reps per set must be positive, got %d",
			ErrInvalidConfiguration, s.TargetRepsPerSet)
	}
	if !positive(s.BodyWeightKg) {
		return fmt.Errorf("%w: body weight must be positive, got %v",
			ErrInvalidConfiguration, s.BodyWeightKg)
	}
	if s.MinAngle >= s.MaxAngle {
		return fmt.Errorf("%w: min angle %d must be below max angle %d",
			ErrInvalidConfiguration, s.MinAngle, s.MaxAngle)
	}
	if !positive(s.FrameWidth) || !positive(s.FrameHeight) {
		return fmt.Errorf("%w: frame size must be positive, got %vx%v",
			ErrInvalidConfiguration, s.FrameWidth, s.FrameHeight)
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
