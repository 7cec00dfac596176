package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/ElectrobladeIsADev/fitnessguide/analytics"
	"github.com/ElectrobladeIsADev/fitnessguide/pose"

	log "github.com/sirupsen/logrus"
)

// FrameProcessor consumes frames. *analytics.Analyzer implements it.
type FrameProcessor interface {
	ProcessFrame(frame *pose.LandmarkFrame, ts time.Time) analytics.FrameResult
}

// Pump feeds mailbox samples to a FrameProcessor, stamping each with the
// wall-clock time it is processed.
type Pump struct {
	box  *Mailbox
	proc FrameProcessor
	now  func() time.Time
}

func NewPump(box *Mailbox, proc FrameProcessor) *Pump {
	return &Pump{box: box, proc: proc, now: time.Now}
}

// Run processes samples until ctx is cancelled or the mailbox is closed.
func (p *Pump) Run(ctx context.Context) error {
	for {
		s, err := p.box.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrMailboxClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		res := p.proc.ProcessFrame(s.Frame, p.now())
		if res.Skipped != analytics.SkipNone {
			log.WithFields(log.Fields{
				"source": s.Source,
				"reason": res.Skipped,
			}).Trace("frame skipped")
		}
	}
}
