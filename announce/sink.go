package announce

import (
	"context"
	"time"

	"github.com/ElectrobladeIsADev/fitnessguide/analytics"
	"github.com/ElectrobladeIsADev/fitnessguide/exercise"

	log "github.com/sirupsen/logrus"
)

// Announcement is the text spoken or displayed for one session event.
type Announcement struct {
	Kind     analytics.EventKind `json:"kind"`
	Text     string              `json:"text"`
	Exercise exercise.Exercise   `json:"exercise"`
	At       time.Time           `json:"at"`
}

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=announce_test

// Sink delivers announcements to one output (speech, dashboard, log).
type Sink interface {
	Announce(ctx context.Context, a Announcement) error
}

// LogSink writes announcements to the logger.
type LogSink struct{}

func (LogSink) Announce(_ context.Context, a Announcement) error {
	log.WithFields(log.Fields{
		"kind":     a.Kind,
		"exercise": a.Exercise,
	}).Info(a.Text)
	return nil
}

// FromEvent maps a session event to its announcement.
func FromEvent(ev analytics.Event) Announcement {
	return Announcement{
		Kind:     ev.Kind,
		Text:     ev.Message,
		Exercise: ev.Exercise,
		At:       ev.At,
	}
}
