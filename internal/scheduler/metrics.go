package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var tasksSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "postboard_reply_tasks_submitted_total",
	Help: "Auto-reply tasks accepted by the scheduler",
}, []string{"scheduler"})

var tasksRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "postboard_reply_tasks_rejected_total",
	Help: "Auto-reply tasks refused at submission",
}, []string{"scheduler", "reason"})

var tasksFinished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "postboard_reply_tasks_finished_total",
	Help: "Auto-reply tasks that reached a terminal state",
}, []string{"scheduler", "outcome"})

var tasksInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "postboard_reply_tasks_in_flight",
	Help: "Auto-reply tasks queued, waiting or executing",
}, []string{"scheduler"})

var workersBusy = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "postboard_reply_workers_busy",
	Help: "Workers currently running an auto-reply",
}, []string{"scheduler"})

var dispatchLag = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "postboard_reply_dispatch_lag_seconds",
	Help:    "Delay between a task's due time and the start of its execution",
	Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30},
}, []string{"scheduler"})

type metrics struct {
	submitted  prometheus.Counter
	rejectFull prometheus.Counter
	rejectArg  prometheus.Counter
	finished   *prometheus.CounterVec
	inFlight   prometheus.Gauge
	busy       prometheus.Gauge
	lag        prometheus.Observer
}

func newMetrics(name string) metrics {
	return metrics{
		submitted:  tasksSubmitted.WithLabelValues(name),
		rejectFull: tasksRejected.WithLabelValues(name, "queue_full"),
		rejectArg:  tasksRejected.WithLabelValues(name, "invalid_delay"),
		finished:   tasksFinished.MustCurryWith(prometheus.Labels{"scheduler": name}),
		inFlight:   tasksInFlight.WithLabelValues(name),
		busy:       workersBusy.WithLabelValues(name),
		lag:        dispatchLag.WithLabelValues(name),
	}
}
