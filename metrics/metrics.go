// Package metrics exports reconstruction progress as Prometheus metrics.
package metrics

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	ptycho "github.com/cwbudde/algo-ptycho"
)

const namespace = "ptycho"

// Recorder turns iterations into metrics. It implements ptycho.Observer.
type Recorder struct {
	iterations *prometheus.CounterVec
	zeroSteps  *prometheus.CounterVec
	objective  *prometheus.GaugeVec
	gamma      *prometheus.HistogramVec
	partitions prometheus.Counter
	phaseWrap  prometheus.Counter
	stalled    prometheus.Counter

	probe bool
}

// NewRecorder registers the reconstruction metrics with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		return nil, fmt.Errorf("metrics: nil registerer")
	}
	f := promauto.With(reg)

	return &Recorder{
		iterations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cg",
			Name:      "iterations_total",
			Help:      "CG iterations run, per angle",
		}, []string{"angle"}),
		zeroSteps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cg",
			Name:      "zero_steps_total",
			Help:      "Line searches that found no decrease",
		}, []string{"field"}),
		objective: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cg",
			Name:      "objective",
			Help:      "Latest data mismatch per angle",
		}, []string{"angle"}),
		gamma: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cg",
			Name:      "step_size",
			Help:      "Accepted non-zero line search steps",
			Buckets:   prometheus.ExponentialBuckets(1e-8, 10, 12),
		}, []string{"field"}),
		partitions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partitions_total",
			Help:      "Angle partitions finished",
		}),
		phaseWrap: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_wrap_total",
			Help:      "Partitions flagged with a possible phase wrap",
		}),
		stalled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stalled_partitions_total",
			Help:      "Partitions stopped early by the stall limit",
		}),
	}, nil
}

// ObserveIteration implements ptycho.Observer.
func (r *Recorder) ObserveIteration(it ptycho.Iteration) {
	angle := strconv.Itoa(it.Angle)
	r.iterations.WithLabelValues(angle).Inc()
	r.objective.WithLabelValues(angle).Set(it.Objective)
	r.step("object", it.GammaObject)
	if r.probe {
		r.step("probe", it.GammaProbe)
	}
}

// TrackProbe makes the recorder count probe steps too. Leave it off when
// the probe is held fixed, where every probe step reads as zero.
func (r *Recorder) TrackProbe() {
	r.probe = true
}

func (r *Recorder) step(field string, gamma float64) {
	if gamma == 0 {
		r.zeroSteps.WithLabelValues(field).Inc()
		return
	}
	r.gamma.WithLabelValues(field).Observe(gamma)
}

// ObservePartitions records how the partitions of a result ended.
func (r *Recorder) ObservePartitions(parts []ptycho.PartitionSummary) {
	for _, p := range parts {
		r.partitions.Inc()
		if p.PhaseWrap {
			r.phaseWrap.Inc()
		}
		if p.Stalled {
			r.stalled.Inc()
		}
	}
}

// WriteTextfile writes everything g gathers to path in the text exposition
// format, for the node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
