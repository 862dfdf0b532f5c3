package xexecutor

import (
	"time"

	"github.com/camilohaze/vela-sub010/pkg/xcommon"
)

type WorkerStats struct {
	ID       int
	Executed uint64
	Stolen   uint64
	Lost     uint64
	Failed   uint64
	Idle     time.Duration
	QueueLen int
}

type Stats struct {
	State          State
	ActiveWorkers  int
	ParkedWorkers  int
	RetiredWorkers uint64
	Submitted      uint64
	Completed      uint64
	Rejected       uint64
	Failed         uint64
	Stolen         uint64
	Pending        int64
	GlobalQueueLen int
	AvgWait        time.Duration
	AvgExec        time.Duration
	Uptime         time.Duration
	Workers        []WorkerStats
}

func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		ID:       w.id,
		Executed: w.executed.Load(),
		Stolen:   w.stolen.Load(),
		Lost:     w.lost.Load(),
		Failed:   w.failed.Load(),
		Idle:     time.Duration(w.idleNanos.Load()),
		QueueLen: w.local.len(),
	}
}

func (e *Executor) Stats() Stats {
	peers := *e.peers.Load()
	e.mu.Lock()
	parked := len(e.parked)
	e.mu.Unlock()

	completed := e.completed.Load()
	st := Stats{
		State:          e.State(),
		ActiveWorkers:  len(peers),
		ParkedWorkers:  parked,
		RetiredWorkers: e.retired.Load(),
		Submitted:      e.submitted.Load(),
		Completed:      completed,
		Rejected:       e.rejected.Load(),
		Failed:         e.failed.Load(),
		Stolen:         e.stolen.Load(),
		Pending:        e.pending.Load(),
		GlobalQueueLen: e.global.len(),
		AvgWait:        time.Duration(xcommon.SafeDivision(uint64(e.waitNanos.Load()), completed)),
		AvgExec:        time.Duration(xcommon.SafeDivision(uint64(e.execNanos.Load()), completed)),
		Workers:        make([]WorkerStats, 0, len(peers)),
	}
	if started := e.startedAt.Load(); !started.IsZero() {
		st.Uptime = time.Since(started)
	}
	for _, w := range peers {
		st.Workers = append(st.Workers, w.Stats())
	}
	return st
}

func (e *Executor) WorkerCount() int {
	return len(*e.peers.Load())
}

func (e *Executor) GlobalQueueLen() int {
	return e.global.len()
}
