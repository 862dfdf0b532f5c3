package xexecutor

import (
	"context"
	"math/rand"
	"time"

	"github.com/camilohaze/vela-sub010/pkg/xcommon"
	"github.com/camilohaze/vela-sub010/pkg/xlog"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// 工作线程, 身份通过Task.Run显式传入
type Worker struct {
	id    int
	e     *Executor
	ctx   context.Context
	local *deque
	wake  chan struct{}
	timer *time.Timer

	rr  int
	rnd *rand.Rand

	executed  atomic.Uint64
	stolen    atomic.Uint64 // 作为thief
	lost      atomic.Uint64 // 作为victim
	failed    atomic.Uint64
	idleNanos atomic.Int64
	idleRun   time.Duration // 连续空闲时长
}

func newWorker(e *Executor, id int) *Worker {
	return &Worker{
		id:    id,
		e:     e,
		ctx:   xlog.NewContext(e.ctx, xlog.Worker(id)),
		local: newDeque(),
		wake:  make(chan struct{}, 1),
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano() + int64(id))),
	}
}

func (w *Worker) ID() int {
	return w.id
}

func (w *Worker) Executor() *Executor {
	return w.e
}

// 提交到本地队列
// 关闭过程中仍允许, 保证执行中的task可以续上
func (w *Worker) Submit(t Task) error {
	if st := w.e.State(); st == Terminated || st == Idle {
		w.e.reject()
		return ErrExecutorShutdown
	}
	if t.Run == nil {
		return ErrInvalidTask
	}
	if t.SubmittedAt.IsZero() {
		t.SubmittedAt = time.Now()
	}
	w.e.pending.Inc()
	w.e.submitted.Inc()
	w.local.pushBottom(t)
	w.e.notify()
	return nil
}

// 从worker内部提交到全局队列
func (w *Worker) SubmitGlobal(t Task) error {
	if st := w.e.State(); st == Terminated || st == Idle {
		w.e.reject()
		return ErrExecutorShutdown
	}
	return w.e.submitGlobal(t)
}

func (w *Worker) loop() {
	defer w.e.wg.Done(w.ctx)

	for {
		select {
		case <-w.e.quit:
			return
		default:
		}

		if t, ok := w.next(); ok {
			w.idleRun = 0
			w.run(t)
			continue
		}
		if !w.park() {
			return
		}
	}
}

// 本地队列 -> 全局队列 -> 窃取
func (w *Worker) next() (Task, bool) {
	if t, ok := w.local.popBottom(); ok {
		return t, true
	}
	if t, ok := w.e.global.popTop(); ok {
		return t, true
	}
	return w.steal()
}

func (w *Worker) steal() (Task, bool) {
	peers := *w.e.peers.Load()
	n := len(peers)
	if n <= 1 {
		return Task{}, false
	}

	var start int
	if w.e.opts.Steal == StealRoundRobin {
		start = w.rr % n
		w.rr++
	} else {
		start = w.rnd.Intn(n)
	}
	for i := 0; i < n; i++ {
		victim := peers[(start+i)%n]
		if victim == w {
			continue
		}
		if t, ok := victim.local.popTop(); ok {
			w.stolen.Inc()
			victim.lost.Inc()
			w.e.stolen.Inc()
			w.e.opts.Metrics.TaskStolen(w.id, victim.id)
			return t, true
		}
	}
	return Task{}, false
}

func (w *Worker) run(t Task) {
	wait := time.Since(t.SubmittedAt)
	start := time.Now()
	r, stack := xcommon.CatchPanic(func() { t.Run(w) })
	cost := time.Since(start)

	w.executed.Inc()
	success := r == nil
	if !success {
		w.failed.Inc()
		w.e.failed.Inc()
		xlog.Get(w.ctx).Error("Task panic.", xlog.Task(t.Name), zap.Any("panic", r), zap.ByteString("stack", stack))
	}
	w.e.opts.Metrics.TaskExecuted(w.id, wait, cost, success)
	w.e.done(t, wait, cost)
}

// 无task时挂起, 返回false表示worker退出
func (w *Worker) park() bool {
	e := w.e
	e.mu.Lock()
	if e.global.len() > 0 {
		e.mu.Unlock()
		return true
	}
	if w.idleRun >= e.opts.KeepAlive && e.retireLocked(w) {
		e.mu.Unlock()
		xlog.Get(w.ctx).Debug("Worker retire.", zap.Duration("idle", w.idleRun))
		return false
	}
	e.parkLocked(w)
	e.mu.Unlock()

	start := time.Now()
	if w.timer == nil {
		w.timer = time.NewTimer(e.opts.ParkTimeout)
	} else {
		w.timer.Reset(e.opts.ParkTimeout)
	}
	quit := false
	select {
	case <-w.wake:
		if !w.timer.Stop() {
			<-w.timer.C
		}
	case <-w.timer.C:
	case <-e.quit:
		if !w.timer.Stop() {
			<-w.timer.C
		}
		quit = true
	}

	e.mu.Lock()
	e.unparkLocked(w)
	e.mu.Unlock()

	d := time.Since(start)
	w.idleNanos.Add(int64(d))
	w.idleRun += d
	return !quit
}
