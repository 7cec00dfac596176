// Package announce fans session events out to announcement sinks without
// blocking the frame pipeline.
package announce

import (
	"context"
	"sync/atomic"

	"github.com/ElectrobladeIsADev/fitnessguide/analytics"

	log "github.com/sirupsen/logrus"
)

// DefaultQueueSize bounds the announcements waiting for delivery.
const DefaultQueueSize = 16

// Announcer queues events from the analyzer and delivers them to every sink
// in order. When the queue is full new announcements are dropped.
type Announcer struct {
	sinks   []Sink
	queue   chan Announcement
	dropped atomic.Uint64
}

// NewAnnouncer creates an Announcer. A non-positive queueSize uses DefaultQueueSize.
func NewAnnouncer(queueSize int, sinks ...Sink) *Announcer {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Announcer{
		sinks: sinks,
		queue: make(chan Announcement, queueSize),
	}
}

// Notify enqueues the announcement for ev. It never blocks; it is suitable
// as an analytics.EventHandler.
func (a *Announcer) Notify(ev analytics.Event) {
	ann := FromEvent(ev)
	select {
	case a.queue <- ann:
	default:
		n := a.dropped.Add(1)
		log.WithFields(log.Fields{
			"kind":    ann.Kind,
			"dropped": n,
		}).Warn("announcement queue full, dropping")
	}
}

// Dropped returns how many announcements were discarded.
func (a *Announcer) Dropped() uint64 {
	return a.dropped.Load()
}

// Run delivers queued announcements until ctx is cancelled.
func (a *Announcer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ann := <-a.queue:
			a.deliver(ctx, ann)
		}
	}
}

func (a *Announcer) deliver(ctx context.Context, ann Announcement) {
	for _, s := range a.sinks {
		if err := s.Announce(ctx, ann); err != nil {
			log.WithError(err).WithField("text", ann.Text).Warn("announce failed")
		}
	}
}
