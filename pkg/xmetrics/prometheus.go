package xmetrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var defaultBuckets = []float64{
	.0001, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5,
}

// Prometheus实现, 同时满足Actor/Executor/Scheduler
type Prometheus struct {
	messageDuration *prometheus.HistogramVec
	messagesTotal   *prometheus.CounterVec
	timeoutsTotal   *prometheus.CounterVec
	restartsTotal   *prometheus.CounterVec
	mailboxDepth    *prometheus.GaugeVec
	rejectedTotal   *prometheus.CounterVec

	taskWait      prometheus.Histogram
	taskDuration  prometheus.Histogram
	tasksTotal    *prometheus.CounterVec
	stealsTotal   *prometheus.CounterVec
	taskRejected  prometheus.Counter
	activeWorkers prometheus.Gauge
	globalQueue   prometheus.Gauge

	spawnedTotal prometheus.Counter
	stoppedTotal prometheus.Counter
	activeActors prometheus.Gauge
}

func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	m := &Prometheus{
		messageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vela_actor_message_duration_seconds",
			Help:    "Message handling time in seconds",
			Buckets: defaultBuckets,
		}, []string{"actor"}),
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vela_actor_messages_total",
			Help: "Total number of messages processed",
		}, []string{"actor", "success"}),
		timeoutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vela_actor_timeouts_total",
			Help: "Total number of handler timeouts",
		}, []string{"actor"}),
		restartsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vela_actor_restarts_total",
			Help: "Total number of handler failures followed by restart hooks",
		}, []string{"actor"}),
		mailboxDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vela_actor_mailbox_depth",
			Help: "Current mailbox queue depth",
		}, []string{"actor"}),
		rejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vela_actor_mailbox_rejected_total",
			Help: "Total number of sends rejected by a full mailbox",
		}, []string{"actor"}),

		taskWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vela_executor_task_wait_seconds",
			Help:    "Time between submit and execution in seconds",
			Buckets: defaultBuckets,
		}),
		taskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vela_executor_task_duration_seconds",
			Help:    "Task execution time in seconds",
			Buckets: defaultBuckets,
		}),
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vela_executor_tasks_total",
			Help: "Total number of tasks executed",
		}, []string{"worker", "success"}),
		stealsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vela_executor_steals_total",
			Help: "Total number of tasks stolen, by thief",
		}, []string{"worker"}),
		taskRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vela_executor_tasks_rejected_total",
			Help: "Total number of submissions rejected",
		}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vela_executor_active_workers",
			Help: "Number of live worker goroutines",
		}),
		globalQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vela_executor_global_queue_depth",
			Help: "Current global queue depth",
		}),

		spawnedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vela_scheduler_actors_spawned_total",
			Help: "Total number of actors spawned",
		}),
		stoppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vela_scheduler_actors_stopped_total",
			Help: "Total number of actors stopped",
		}),
		activeActors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vela_scheduler_active_actors",
			Help: "Number of registered actors",
		}),
	}

	reg.MustRegister(
		m.messageDuration,
		m.messagesTotal,
		m.timeoutsTotal,
		m.restartsTotal,
		m.mailboxDepth,
		m.rejectedTotal,
		m.taskWait,
		m.taskDuration,
		m.tasksTotal,
		m.stealsTotal,
		m.taskRejected,
		m.activeWorkers,
		m.globalQueue,
		m.spawnedTotal,
		m.stoppedTotal,
		m.activeActors,
	)
	return m
}

func (m *Prometheus) MessageProcessed(actor string, cost time.Duration, success bool) {
	m.messageDuration.WithLabelValues(actor).Observe(cost.Seconds())
	m.messagesTotal.WithLabelValues(actor, strconv.FormatBool(success)).Inc()
}

func (m *Prometheus) MessageTimeout(actor string) {
	m.timeoutsTotal.WithLabelValues(actor).Inc()
}

func (m *Prometheus) ActorRestarted(actor string) {
	m.restartsTotal.WithLabelValues(actor).Inc()
}

func (m *Prometheus) MailboxDepth(actor string, depth int) {
	m.mailboxDepth.WithLabelValues(actor).Set(float64(depth))
}

func (m *Prometheus) MailboxRejected(actor string) {
	m.rejectedTotal.WithLabelValues(actor).Inc()
}

func (m *Prometheus) Forget(actor string) {
	labels := prometheus.Labels{"actor": actor}
	m.messageDuration.DeletePartialMatch(labels)
	m.messagesTotal.DeletePartialMatch(labels)
	m.timeoutsTotal.DeletePartialMatch(labels)
	m.restartsTotal.DeletePartialMatch(labels)
	m.mailboxDepth.DeletePartialMatch(labels)
	m.rejectedTotal.DeletePartialMatch(labels)
}

func (m *Prometheus) TaskExecuted(worker int, wait, cost time.Duration, success bool) {
	m.taskWait.Observe(wait.Seconds())
	m.taskDuration.Observe(cost.Seconds())
	m.tasksTotal.WithLabelValues(strconv.Itoa(worker), strconv.FormatBool(success)).Inc()
}

func (m *Prometheus) TaskStolen(thief, victim int) {
	m.stealsTotal.WithLabelValues(strconv.Itoa(thief)).Inc()
}

func (m *Prometheus) TaskRejected() {
	m.taskRejected.Inc()
}

func (m *Prometheus) ActiveWorkers(n int) {
	m.activeWorkers.Set(float64(n))
}

func (m *Prometheus) GlobalQueueDepth(n int) {
	m.globalQueue.Set(float64(n))
}

func (m *Prometheus) ActorSpawned() {
	m.spawnedTotal.Inc()
}

func (m *Prometheus) ActorStopped() {
	m.stoppedTotal.Inc()
}

func (m *Prometheus) ActiveActors(n int) {
	m.activeActors.Set(float64(n))
}

var _ Recorder = (*Prometheus)(nil)
