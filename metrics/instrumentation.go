// Package metrics exposes Prometheus instrumentation of the analysis pipeline.
package metrics

import (
	"github.com/ElectrobladeIsADev/fitnessguide/analytics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Instrumentation struct {
	// counters
	CounterFrames           *prometheus.CounterVec
	CounterEvents           *prometheus.CounterVec
	CounterRejectedSettings prometheus.Counter
	CounterRequests         *prometheus.CounterVec

	// gauges
	GaugeReps     prometheus.Gauge
	GaugeSets     prometheus.Gauge
	GaugeCalories prometheus.Gauge

	// histograms
	HistPunchSpeed      prometheus.Histogram
	HistRequestDuration prometheus.Histogram

	factory   promauto.Factory
	namespace string
	subsystem string
}

func NewInstrumentation(namespace, subsystem string) *Instrumentation {
	return NewInstrumentationWithRegisterer(namespace, subsystem, prometheus.DefaultRegisterer)
}

func NewTestInstrumentation() *Instrumentation {
	return NewInstrumentationWithRegisterer("fitnessguide", "test", prometheus.NewRegistry())
}

func NewInstrumentationWithRegisterer(namespace, subsystem string, reg prometheus.Registerer) *Instrumentation {
	factory := promauto.With(reg)

	counterFrames := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "frames",
		Help:      "Landmark frames processed, by outcome",
	}, []string{"result"})
	counterEvents := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "events",
		Help:      "Announced session events, by kind",
	}, []string{"kind"})
	counterRejected := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "rejected_settings",
		Help:      "Configuration changes rejected as invalid",
	})
	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming API requests",
	}, []string{"method", "status"})

	gaugeReps := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "session_reps",
		Help:      "Reps counted in the current session",
	})
	gaugeSets := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "session_sets",
		Help:      "Sets completed in the current session",
	})
	gaugeCalories := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "session_calories",
		Help:      "Estimated kcal burned in the current session",
	})

	histPunchSpeed := factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "punch_speed_pixels_per_second",
		Help:      "Wrist speed samples in boxing mode",
		Buckets:   []float64{100, 200, 400, 600, 800, 1000, 1200, 1600, 2400, 3200},
	})
	histReqDuration := factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "Total duration of all API requests",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})

	return &Instrumentation{
		CounterFrames:           counterFrames,
		CounterEvents:           counterEvents,
		CounterRejectedSettings: counterRejected,
		CounterRequests:         counterRequests,
		GaugeReps:               gaugeReps,
		GaugeSets:               gaugeSets,
		GaugeCalories:           gaugeCalories,
		HistPunchSpeed:          histPunchSpeed,
		HistRequestDuration:     histReqDuration,
		factory:                 factory,
		namespace:               namespace,
		subsystem:               subsystem,
	}
}

// ObserveFrame records one frame result. It fits analytics.FrameHandler.
func (i *Instrumentation) ObserveFrame(res analytics.FrameResult) {
	if res.Skipped != analytics.SkipNone {
		i.CounterFrames.WithLabelValues(string(res.Skipped)).Inc()
		return
	}
	i.CounterFrames.WithLabelValues("processed").Inc()
	i.GaugeReps.Set(float64(res.Reps))
	i.GaugeSets.Set(float64(res.Sets))
	i.GaugeCalories.Set(res.TotalCalories)
	if res.Speed != nil {
		i.HistPunchSpeed.Observe(res.Speed.Speed)
	}
}

// ObserveEvent counts one session event. It fits analytics.EventHandler.
func (i *Instrumentation) ObserveEvent(ev analytics.Event) {
	i.CounterEvents.WithLabelValues(string(ev.Kind)).Inc()
	if ev.Kind == analytics.EventExerciseSwitched {
		i.GaugeReps.Set(0)
		i.GaugeSets.Set(0)
		i.GaugeCalories.Set(0)
	}
}

// ObserveRejection counts a rejected configuration change.
func (i *Instrumentation) ObserveRejection() {
	i.CounterRejectedSettings.Inc()
}

// ObserveReset zeroes the session gauges.
func (i *Instrumentation) ObserveReset() {
	i.GaugeReps.Set(0)
	i.GaugeSets.Set(0)
	i.GaugeCalories.Set(0)
}

// WatchDrops exports a drop counter maintained elsewhere (mailbox,
// announcement queue) under <namespace>_<subsystem>_<name>_dropped.
func (i *Instrumentation) WatchDrops(name, help string, dropped func() uint64) prometheus.CounterFunc {
	return i.factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: i.namespace,
		Subsystem: i.subsystem,
		Name:      name + "_dropped",
		Help:      help,
	}, func() float64 {
		return float64(dropped())
	})
}
