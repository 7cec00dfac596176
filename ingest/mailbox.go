// Package ingest moves landmark frames from pose sources into the analyzer.
// Sources publish into a single-slot mailbox; a slow analyzer sees the most
// recent frame and older ones are dropped, never queued.
package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ElectrobladeIsADev/fitnessguide/pose"
)

var ErrMailboxClosed = errors.New("mailbox closed")

// Sample is one pose-model output. A nil Frame means no person was detected.
type Sample struct {
	Frame    *pose.LandmarkFrame
	Source   string
	Received time.Time
}

// Mailbox holds at most one unconsumed sample.
type Mailbox struct {
	mu      sync.Mutex
	slot    *Sample
	closed  bool
	ready   chan struct{}
	done    chan struct{}
	total   atomic.Uint64
	dropped atomic.Uint64
}

func NewMailbox() *Mailbox {
	return &Mailbox{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Publish stores s, replacing any sample not yet consumed.
// It returns false once the mailbox is closed.
func (m *Mailbox) Publish(s Sample) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	if m.slot != nil {
		m.dropped.Add(1)
	}
	m.slot = &s
	m.mu.Unlock()

	m.total.Add(1)
	select {
	case m.ready <- struct{}{}:
	default:
	}
	return true
}

// Next blocks until a sample is available, ctx is done or the mailbox is
// closed. A sample published before Close is still delivered.
func (m *Mailbox) Next(ctx context.Context) (Sample, error) {
	for {
		m.mu.Lock()
		if s := m.slot; s != nil {
			m.slot = nil
			m.mu.Unlock()
			return *s, nil
		}
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return Sample{}, ErrMailboxClosed
		}

		select {
		case <-ctx.Done():
			return Sample{}, ctx.Err()
		case <-m.done:
		case <-m.ready:
		}
	}
}

// Close wakes pending readers. Further publishes are rejected.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.done)
}

// Published returns the number of accepted samples.
func (m *Mailbox) Published() uint64 {
	return m.total.Load()
}

// Dropped returns the number of samples overwritten before being consumed.
func (m *Mailbox) Dropped() uint64 {
	return m.dropped.Load()
}
