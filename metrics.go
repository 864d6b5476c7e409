package executor

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess   = "success"
	outcomeFailure   = "failure"
	outcomeCancelled = "cancelled"
)

// Metrics exports pool activity to Prometheus. Every series carries a
// "pool" label holding the pool's name prefix.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	TasksSubmitted *prometheus.CounterVec
	TasksCompleted *prometheus.CounterVec
	TasksRejected  *prometheus.CounterVec
	CallerRuns     *prometheus.CounterVec
	WorkersLive    *prometheus.GaugeVec
	WorkersRunning *prometheus.GaugeVec
	QueueLength    *prometheus.GaugeVec
	TaskDuration   *prometheus.HistogramVec
	QueueWait      *prometheus.HistogramVec
}

// NewMetrics registers the pool collectors on reg. A nil reg falls back to
// prometheus.DefaultRegisterer. Registering twice on the same registry
// returns the AlreadyRegisteredError from the client library.
func NewMetrics(reg prometheus.Registerer, namespace string) (m *Metrics, err error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	// promauto panics on a registration conflict
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()

	labels := []string{"pool"}
	factory := promauto.With(reg)
	m = &Metrics{
		TasksSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_submitted_total",
			Help:      "Total number of tasks accepted by the pool",
		}, labels),
		TasksCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_completed_total",
			Help:      "Total number of tasks that reached an outcome",
		}, []string{"pool", "outcome"}),
		TasksRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_rejected_total",
			Help:      "Total number of submissions rejected for capacity",
		}, labels),
		CallerRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "caller_runs_total",
			Help:      "Total number of tasks executed on the submitting goroutine",
		}, labels),
		WorkersLive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_live",
			Help:      "Current number of live workers",
		}, labels),
		WorkersRunning: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_running",
			Help:      "Current number of workers executing a task",
		}, labels),
		QueueLength: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Current number of tasks waiting for a worker",
		}, labels),
		TaskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Histogram of task execution time",
			Buckets:   prometheus.DefBuckets,
		}, labels),
		QueueWait: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_wait_seconds",
			Help:      "Histogram of time tasks spent in the queue",
			Buckets:   prometheus.DefBuckets,
		}, labels),
	}
	return m, nil
}

func (m *Metrics) submitted(pool string) {
	if m == nil {
		return
	}
	m.TasksSubmitted.WithLabelValues(pool).Inc()
}

func (m *Metrics) rejected(pool string) {
	if m == nil {
		return
	}
	m.TasksRejected.WithLabelValues(pool).Inc()
}

func (m *Metrics) callerRan(pool string) {
	if m == nil {
		return
	}
	m.CallerRuns.WithLabelValues(pool).Inc()
}

func (m *Metrics) completed(pool, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.TasksCompleted.WithLabelValues(pool, outcome).Inc()
	m.TaskDuration.WithLabelValues(pool).Observe(took.Seconds())
}

// discarded counts a task that was resolved without ever running.
func (m *Metrics) discarded(pool string) {
	if m == nil {
		return
	}
	m.TasksCompleted.WithLabelValues(pool, outcomeCancelled).Inc()
}

func (m *Metrics) waited(pool string, d time.Duration) {
	if m == nil {
		return
	}
	m.QueueWait.WithLabelValues(pool).Observe(d.Seconds())
}

func (m *Metrics) gauges(pool string, live, running, queued int) {
	if m == nil {
		return
	}
	m.WorkersLive.WithLabelValues(pool).Set(float64(live))
	m.WorkersRunning.WithLabelValues(pool).Set(float64(running))
	m.QueueLength.WithLabelValues(pool).Set(float64(queued))
}

func outcomeOf(r *GPResult) string {
	switch {
	case r == nil || r.Err == nil:
		return outcomeSuccess
	case errors.Is(r.Err, ErrTaskCanceled):
		return outcomeCancelled
	default:
		return outcomeFailure
	}
}
