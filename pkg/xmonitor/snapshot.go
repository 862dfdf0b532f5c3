package xmonitor

import (
	"time"

	"github.com/camilohaze/vela-sub010/pkg/xactor"
	"github.com/camilohaze/vela-sub010/pkg/xscheduler"
)

// 监控数据来源, *xscheduler.Scheduler实现了该接口
type Source interface {
	Metrics() xscheduler.SchedulerMetrics
	AllActorMetrics() []xactor.ActorMetrics
	PriorityDistribution() xscheduler.PriorityDistribution
}

var _ Source = (*xscheduler.Scheduler)(nil)

type WorkerView struct {
	ID       int    `json:"id"`
	Executed uint64 `json:"executed"`
	Stolen   uint64 `json:"stolen"`
	QueueLen int    `json:"queue_len"`
}

type ExecutorView struct {
	State          string       `json:"state"`
	ActiveWorkers  int          `json:"active_workers"`
	ParkedWorkers  int          `json:"parked_workers"`
	Submitted      uint64       `json:"submitted"`
	Completed      uint64       `json:"completed"`
	Stolen         uint64       `json:"stolen"`
	Pending        int64        `json:"pending"`
	GlobalQueueLen int          `json:"global_queue_len"`
	AvgWaitMs      float64      `json:"avg_wait_ms"`
	AvgExecMs      float64      `json:"avg_exec_ms"`
	Workers        []WorkerView `json:"workers"`
}

type SchedulerView struct {
	State         string                          `json:"state"`
	Policy        string                          `json:"policy"`
	ActiveActors  int                             `json:"active_actors"`
	TotalSpawned  uint64                          `json:"total_spawned"`
	TotalStopped  uint64                          `json:"total_stopped"`
	TotalMessages uint64                          `json:"total_messages"`
	UptimeSec     float64                         `json:"uptime_sec"`
	Priorities    xscheduler.PriorityDistribution `json:"priorities"`
	Executor      ExecutorView                    `json:"executor"`
}

type ActorView struct {
	Name          string  `json:"name"`
	Path          string  `json:"path"`
	State         string  `json:"state"`
	Paused        bool    `json:"paused"`
	Processed     uint64  `json:"processed"`
	Errors        uint64  `json:"errors"`
	Restarts      uint64  `json:"restarts"`
	Timeouts      uint64  `json:"timeouts"`
	MailboxLen    int     `json:"mailbox_len"`
	MessageRate   float64 `json:"message_rate"`
	AvgProcessing float64 `json:"avg_processing_ms"`
}

type Snapshot struct {
	Timestamp time.Time     `json:"timestamp"`
	Scheduler SchedulerView `json:"scheduler"`
	Actors    []ActorView   `json:"actors"`
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func TakeSnapshot(src Source) Snapshot {
	m := src.Metrics()
	es := m.Executor
	ev := ExecutorView{
		State:          es.State.String(),
		ActiveWorkers:  es.ActiveWorkers,
		ParkedWorkers:  es.ParkedWorkers,
		Submitted:      es.Submitted,
		Completed:      es.Completed,
		Stolen:         es.Stolen,
		Pending:        es.Pending,
		GlobalQueueLen: es.GlobalQueueLen,
		AvgWaitMs:      ms(es.AvgWait),
		AvgExecMs:      ms(es.AvgExec),
		Workers:        make([]WorkerView, 0, len(es.Workers)),
	}
	for _, w := range es.Workers {
		ev.Workers = append(ev.Workers, WorkerView{ID: w.ID, Executed: w.Executed, Stolen: w.Stolen, QueueLen: w.QueueLen})
	}

	actors := src.AllActorMetrics()
	snap := Snapshot{
		Timestamp: time.Now(),
		Scheduler: SchedulerView{
			State:         m.State.String(),
			Policy:        m.Policy.String(),
			ActiveActors:  m.ActiveActors,
			TotalSpawned:  m.TotalSpawned,
			TotalStopped:  m.TotalStopped,
			TotalMessages: m.TotalMessages,
			UptimeSec:     m.Uptime.Seconds(),
			Priorities:    src.PriorityDistribution(),
			Executor:      ev,
		},
		Actors: make([]ActorView, 0, len(actors)),
	}
	for _, a := range actors {
		snap.Actors = append(snap.Actors, ActorView{
			Name:          a.Name,
			Path:          a.Path,
			State:         a.State.String(),
			Paused:        a.Paused,
			Processed:     a.Processed,
			Errors:        a.Errors,
			Restarts:      a.Restarts,
			Timeouts:      a.Timeouts,
			MailboxLen:    a.MailboxLen,
			MessageRate:   a.MessageRate,
			AvgProcessing: ms(a.AvgProcessing),
		})
	}
	return snap
}
