package analytics

import (
	"sync"
	"testing"
	"time"

	"github.com/ElectrobladeIsADev/fitnessguide/exercise"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestAnalyzer(t *testing.T) (*Analyzer, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: t0}
	a, err := newAnalyzer(exercise.DefaultTable(), DefaultSettings(), clock.Now)
	require.NoError(t, err)
	return a, clock
}

func TestNewAnalyzer_InvalidSettings(t *testing.T) {
	settings := DefaultSettings()
	settings.TargetRepsPerSet = 0
	_, err := NewAnalyzer(exercise.DefaultTable(), settings)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestAnalyzer_EventsInOrder(t *testing.T) {
	a, clock := newTestAnalyzer(t)

	var events []Event
	var frames int
	a.SetEventHandler(func(ev Event) { events = append(events, ev) })
	a.SetFrameHandler(func(FrameResult) { frames++ })

	require.NoError(t, a.ApplySettings(func() Settings {
		s := a.Settings()
		s.TargetRepsPerSet = 1
		return s
	}()))

	a.ProcessFrame(squatFrame(60, 175), at(1))
	a.ProcessFrame(nil, at(1.5))
	a.ProcessFrame(squatFrame(170, 175), at(2))

	clock.Set(at(3))
	require.NoError(t, a.SwitchExercise("pushup"))

	assert.Equal(t, 3, frames)
	require.Len(t, events, 3)
	assert.Equal(t, "Rep 1", events[0].Message)
	assert.Equal(t, "Set 1 complete", events[1].Message)
	assert.Equal(t, "Switched to pushup", events[2].Message)

	st := a.GetState()
	assert.Equal(t, exercise.Pushup, st.Exercise)
	assert.Zero(t, st.Reps)
	assert.Nil(t, st.Angle)
}

func TestAnalyzer_SwitchExerciseUnknown(t *testing.T) {
	a, _ := newTestAnalyzer(t)

	err := a.SwitchExercise("lunge")
	assert.ErrorIs(t, err, exercise.ErrUnknownExercise)
	assert.Equal(t, exercise.Squat, a.Settings().Exercise)
}

func TestAnalyzer_RejectedSettingsKeepPrevious(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	before := a.Settings()

	next := before
	next.TargetRepsPerSet = -1
	assert.ErrorIs(t, a.ApplySettings(next), ErrInvalidConfiguration)
	assert.Equal(t, before, a.Settings())

	res := a.ProcessFrame(squatFrame(60, 175), at(1))
	assert.Equal(t, exercise.Down, res.Phase)
}

func TestAnalyzer_StateHandler(t *testing.T) {
	a, clock := newTestAnalyzer(t)

	states := make(chan *SessionState, 8)
	a.SetStateHandler(func(st *SessionState) { states <- st })

	a.ProcessFrame(squatFrame(60, 175), at(1))
	select {
	case st := <-states:
		assert.Equal(t, exercise.Down, st.Phase)
		require.NotNil(t, st.Angle)
		assert.InDelta(t, 60, *st.Angle, 1e-6)
	case <-time.After(time.Second):
		t.Fatal("no state broadcast")
	}

	clock.Set(at(5))
	a.ResetSession()
	select {
	case st := <-states:
		assert.Equal(t, exercise.Idle, st.Phase)
		assert.Nil(t, st.Angle)
		assert.InDelta(t, 0, st.ElapsedSec, 1e-9)
	case <-time.After(time.Second):
		t.Fatal("no state broadcast after reset")
	}
}

func TestAnalyzer_StatesDeliveredInOrder(t *testing.T) {
	a, _ := newTestAnalyzer(t)

	release := make(chan struct{})
	var (
		mu   sync.Mutex
		reps []int
	)
	a.SetStateHandler(func(st *SessionState) {
		<-release
		mu.Lock()
		defer mu.Unlock()
		reps = append(reps, st.Reps)
	})

	for i := 0; i < 10; i++ {
		a.ProcessFrame(squatFrame(60, 175), at(float64(2*i)))
		a.ProcessFrame(squatFrame(170, 175), at(float64(2*i+1)))
	}
	close(release)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reps) > 0 && reps[len(reps)-1] == 10
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.IsNonDecreasing(t, reps)
	assert.Less(t, len(reps), 20, "states queued behind a busy handler are coalesced")
}

func TestAnalyzer_ConcurrentUse(t *testing.T) {
	a, _ := newTestAnalyzer(t)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			angle := 60.0
			if i%2 == 1 {
				angle = 170
			}
			a.ProcessFrame(squatFrame(angle, 175), at(float64(i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			s := a.Settings()
			s.BodyWeightKg = float64(60 + i)
			_ = a.ApplySettings(s)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_ = a.GetState()
		}
	}()
	wg.Wait()

	st := a.GetState()
	assert.Equal(t, 100, st.Reps)
}
