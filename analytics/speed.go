package analytics

import (
	"time"

	"github.com/ElectrobladeIsADev/fitnessguide/pose"
)

// Efficiency is the qualitative punch speed label.
type Efficiency string

const (
	EfficiencyHigh     Efficiency = "High"
	EfficiencyModerate Efficiency = "Moderate"
	EfficiencyLow      Efficiency = "Low"
)

// Speed thresholds in pixels per second.
const (
	highSpeedThreshold     = 1200.0
	moderateSpeedThreshold = 800.0
)

// SpeedReading is one classified wrist speed sample.
type SpeedReading struct {
	Speed      float64    `json:"speed"` // px/s
	Efficiency Efficiency `json:"efficiency"`
}

// ClassifySpeed maps a wrist speed in px/s to an efficiency label.
func ClassifySpeed(speed float64) Efficiency {
	switch {
	case speed > highSpeedThreshold:
		return EfficiencyHigh
	case speed > moderateSpeedThreshold:
		return EfficiencyModerate
	default:
		return EfficiencyLow
	}
}

// WristTracker holds the previous wrist sample of boxing mode.
// The zero value has no sample.
type WristTracker struct {
	last   pose.Point2D
	lastTS time.Time
	primed bool
}

// Observe records the wrist position p (pixels) at ts and returns the speed
// since the previous sample. The first sample, and a sample whose timestamp
// does not advance, produce no reading.
func (w *WristTracker) Observe(p pose.Point2D, ts time.Time) (SpeedReading, bool) {
	prev, prevTS, primed := w.last, w.lastTS, w.primed
	w.last, w.lastTS, w.primed = p, ts, true

	if !primed {
		return SpeedReading{}, false
	}
	dt := ts.Sub(prevTS).Seconds()
	if dt <= 0 {
		return SpeedReading{}, false
	}

	speed := pose.Distance(p, prev) / dt
	return SpeedReading{
		Speed:      speed,
		Efficiency: ClassifySpeed(speed),
	}, true
}

// Reset drops the stored sample.
func (w *WristTracker) Reset() {
	*w = WristTracker{}
}
