// Package metrics exposes Prometheus metrics for absence runs.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pkordes/goat-attendance/internal/domain"
)

// Label values for the result label of runs_total.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
	ResultInvalid = "invalid"
)

const namespace = "goat_attendance"

// Metrics records the outcome of every absence run.
// It implements service.Observer.
type Metrics struct {
	runs          *prometheus.CounterVec
	absentTags    prometheus.Gauge
	redFlags      prometheus.Counter
	runDuration   prometheus.Histogram
	lastSuccessTS prometheus.Gauge
}

// New creates the run metrics and registers them with reg.
// A nil reg leaves them unregistered, which tests use to read values directly.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of absence runs by result.",
		}, []string{"result"}),
		absentTags: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "absent_tags",
			Help:      "Number of absent active tags found by the last successful run.",
		}),
		redFlags: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "red_flags_accrued_total",
			Help:      "Total red flags added to attendance records.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of absence runs.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		lastSuccessTS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the window end of the last successful run.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.runs, m.absentTags, m.redFlags, m.runDuration, m.lastSuccessTS} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

// ObserveRun records one finished run. Gauges and the red-flag counter only
// move on success.
func (m *Metrics) ObserveRun(r domain.AbsenceReport, err error, elapsed time.Duration) {
	m.runDuration.Observe(elapsed.Seconds())

	switch {
	case err == nil:
		m.runs.WithLabelValues(ResultSuccess).Inc()
	case errors.Is(err, domain.ErrInvalidArgument):
		m.runs.WithLabelValues(ResultInvalid).Inc()
		return
	default:
		m.runs.WithLabelValues(ResultFailed).Inc()
		return
	}

	m.absentTags.Set(float64(len(r.Absences)))
	m.redFlags.Add(float64(r.RedFlagsAccrued()))
	m.lastSuccessTS.Set(float64(r.Window.End.Unix()))
}
