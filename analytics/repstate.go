package analytics

import (
	"time"

	"github.com/ElectrobladeIsADev/fitnessguide/exercise"
)

// RepState is the mutable per-session repetition state.
type RepState struct {
	Phase exercise.Phase
	Reps  int
	Sets  int
	// RepDurations holds one entry in seconds per completed rep, oldest first.
	RepDurations []float64
	// LastTransition is the time of the last rep completion, or of the session start.
	LastTransition time.Time
	// PhaseEnteredAt is the time the current phase was entered.
	PhaseEnteredAt time.Time
	TotalCalories  float64
}

// RepParams are the per-frame inputs of the state machine besides the angle.
type RepParams struct {
	MinAngle         float64
	MaxAngle         float64
	TargetRepsPerSet int
	MET              float64
	BodyWeightKg     float64
}

// RepOutcome describes what a single Advance did.
type RepOutcome struct {
	EnteredDown  bool
	RepCompleted bool
	SetCompleted bool
	// Duration and Calories are set for a completed rep.
	Duration float64
	Calories float64
	Fatigue  bool
}

// Reset clears the state; now becomes the start of the first rep.
func (s *RepState) Reset(now time.Time) {
	*s = RepState{
		Phase:          exercise.Idle,
		LastTransition: now,
		PhaseEnteredAt: now,
	}
}

// Advance runs one frame of the Down/Up state machine. At most one transition
// happens per call.
func (s *RepState) Advance(angle float64, now time.Time, p RepParams) RepOutcome {
	switch {
	case angle < p.MinAngle && s.Phase != exercise.Down:
		s.Phase = exercise.Down
		s.PhaseEnteredAt = now
		return RepOutcome{EnteredDown: true}

	case angle > p.MaxAngle && s.Phase == exercise.Down:
		s.Phase = exercise.Up
		s.PhaseEnteredAt = now

		duration := now.Sub(s.LastTransition).Seconds()
		if duration < 0 {
			// out of order timestamps; never subtract calories
			duration = 0
		}
		s.RepDurations = append(s.RepDurations, duration)
		s.Reps++

		out := RepOutcome{
			RepCompleted: true,
			Duration:     duration,
			Calories:     Calories(p.MET, p.BodyWeightKg, duration),
		}
		s.TotalCalories += out.Calories

		if p.TargetRepsPerSet > 0 && s.Reps%p.TargetRepsPerSet == 0 {
			s.Sets++
			out.SetCompleted = true
		}

		out.Fatigue = DetectFatigue(s.RepDurations)
		s.LastTransition = now
		return out
	}

	return RepOutcome{}
}
