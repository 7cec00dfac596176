package analytics

import (
	"fmt"
	"time"

	"github.com/ElectrobladeIsADev/fitnessguide/exercise"
)

// EventKind is one of the announced session events.
type EventKind string

const (
	EventRep              EventKind = "rep"
	EventSetComplete      EventKind = "set_complete"
	EventExerciseSwitched EventKind = "exercise_switched"
	EventFatigue          EventKind = "fatigue"
)

// Event is a notification for announcement and rendering collaborators.
type Event struct {
	Kind     EventKind         `json:"kind"`
	Count    int               `json:"count,omitempty"`
	Exercise exercise.Exercise `json:"exercise"`
	Message  string            `json:"message"`
	At       time.Time         `json:"at"`
}

func repEvent(e exercise.Exercise, n int, at time.Time) Event {
	return Event{Kind: EventRep, Count: n, Exercise: e, Message: fmt.Sprintf("Rep %d", n), At: at}
}

func setEvent(e exercise.Exercise, n int, at time.Time) Event {
	return Event{Kind: EventSetComplete, Count: n, Exercise: e, Message: fmt.Sprintf("Set %d complete", n), At: at}
}

func switchEvent(e exercise.Exercise, at time.Time) Event {
	return Event{Kind: EventExerciseSwitched, Exercise: e, Message: fmt.Sprintf("Switched to %s", e), At: at}
}

func fatigueEvent(e exercise.Exercise, at time.Time) Event {
	return Event{Kind: EventFatigue, Exercise: e, Message: exercise.MsgFatigue, At: at}
}
