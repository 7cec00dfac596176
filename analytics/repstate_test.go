package analytics

import (
	"testing"

	"github.com/ElectrobladeIsADev/fitnessguide/exercise"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var squatParams = RepParams{
	MinAngle:         70,
	MaxAngle:         160,
	TargetRepsPerSet: 3,
	MET:              5.0,
	BodyWeightKg:     70,
}

func TestRepState_IdleNeverCompletesRep(t *testing.T) {
	var s RepState
	s.Reset(t0)

	out := s.Advance(175, at(1), squatParams)
	assert.Equal(t, RepOutcome{}, out)
	assert.Equal(t, exercise.Idle, s.Phase)
	assert.Zero(t, s.Reps)
	assert.Empty(t, s.RepDurations)
}

func TestRepState_OneCrossingOneRep(t *testing.T) {
	var s RepState
	s.Reset(t0)

	out := s.Advance(60, at(1), squatParams)
	assert.True(t, out.EnteredDown)
	assert.Equal(t, exercise.Down, s.Phase)
	assert.Equal(t, at(1), s.PhaseEnteredAt)

	// inside the band: no transition
	for _, angle := range []float64{65, 90, 120, 155, 160} {
		out = s.Advance(angle, at(2), squatParams)
		assert.Equal(t, RepOutcome{}, out)
	}
	assert.Equal(t, exercise.Down, s.Phase)

	out = s.Advance(170, at(3), squatParams)
	require.True(t, out.RepCompleted)
	assert.InDelta(t, 3.0, out.Duration, 1e-9)
	assert.InDelta(t, 5.0*70*3/3600, out.Calories, 1e-9)
	assert.Equal(t, exercise.Up, s.Phase)
	assert.Equal(t, 1, s.Reps)
	assert.Equal(t, []float64{3}, s.RepDurations)
	assert.Equal(t, at(3), s.LastTransition)

	// staying up does not count again
	out = s.Advance(175, at(4), squatParams)
	assert.False(t, out.RepCompleted)
	assert.Equal(t, 1, s.Reps)
}

func TestRepState_Sets(t *testing.T) {
	var s RepState
	s.Reset(t0)

	var setAt []int
	for i := 1; i <= 7; i++ {
		s.Advance(50, at(float64(2*i)-1), squatParams)
		out := s.Advance(170, at(float64(2*i)), squatParams)
		require.True(t, out.RepCompleted)
		if out.SetCompleted {
			setAt = append(setAt, s.Reps)
		}
		assert.Equal(t, s.Reps/squatParams.TargetRepsPerSet, s.Sets)
		assert.Len(t, s.RepDurations, s.Reps)
	}
	assert.Equal(t, []int{3, 6}, setAt)
}

func TestRepState_Fatigue(t *testing.T) {
	var s RepState
	s.Reset(t0)

	end := 0.0
	for i, d := range []float64{2, 2, 2, 2, 4} {
		s.Advance(50, at(end+d/2), squatParams)
		end += d
		out := s.Advance(170, at(end), squatParams)
		assert.Equal(t, i == 4, out.Fatigue, "rep %d", i+1)
	}

	// not sticky
	s.Advance(50, at(end+1), squatParams)
	out := s.Advance(170, at(end+2), squatParams)
	assert.False(t, out.Fatigue)
}

func TestRepState_NegativeDurationClamped(t *testing.T) {
	var s RepState
	s.Reset(at(10))

	s.Advance(50, at(5), squatParams)
	out := s.Advance(170, at(6), squatParams)
	require.True(t, out.RepCompleted)
	assert.Zero(t, out.Duration)
	assert.Zero(t, s.TotalCalories)
}

func TestRepState_ThresholdChangeTakesEffectNextFrame(t *testing.T) {
	var s RepState
	s.Reset(t0)

	s.Advance(80, at(1), squatParams)
	assert.Equal(t, exercise.Idle, s.Phase)

	raised := squatParams
	raised.MinAngle = 90
	s.Advance(80, at(2), raised)
	assert.Equal(t, exercise.Down, s.Phase)
}
