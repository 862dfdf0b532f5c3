// Package xexecutor 工作窃取线程池
// 每个worker持有一个本地双端队列, 共享一个全局队列
// worker内部提交进本地队列, 外部提交进全局队列
package xexecutor

import (
	"context"
	"sync"
	"time"

	"github.com/camilohaze/vela-sub010/pkg/xcommon"
	"github.com/camilohaze/vela-sub010/pkg/xlog"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	ErrExecutorShutdown = errors.New("executor shutdown")
	ErrNotStarted       = errors.New("executor not started")
	ErrAlreadyStarted   = errors.New("executor already started")
	ErrQueueFull        = errors.New("executor global queue full")
	ErrShutdownTimeout  = errors.New("executor shutdown timeout")
	ErrInvalidTask      = errors.New("task without run func")
)

// 可调度的任务, Run在某个worker上执行, w即当前worker
type Task struct {
	Name        string
	Run         func(w *Worker)
	Priority    int
	SubmittedAt time.Time
}

// 任务提交者
// *Executor提交到全局队列, *Worker提交到自身本地队列
type Submitter interface {
	Submit(t Task) error
}

type State int32

const (
	Idle State = iota
	Running
	ShuttingDown
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting_down"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}

type Executor struct {
	opts  Options
	ctx   context.Context
	state atomic.Int32

	mu      sync.Mutex
	global  *deque
	workers []*Worker // 存活worker
	parked  []*Worker // 空闲等待中的worker
	nextID  int
	parkedN atomic.Int32

	peers atomic.Pointer[[]*Worker] // workers快照, 窃取时无锁读取

	pending  atomic.Int64 // 已提交未完成
	drained  chan struct{}
	quit     chan struct{}
	quitOnce sync.Once
	wg       xcommon.WaitGroup

	submitted atomic.Uint64
	completed atomic.Uint64
	rejected  atomic.Uint64
	failed    atomic.Uint64
	stolen    atomic.Uint64
	waitNanos atomic.Int64
	execNanos atomic.Int64
	retired   atomic.Uint64

	startedAt atomic.Time
}

func New(ctx context.Context, opts Options) (*Executor, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	e := &Executor{
		opts:    opts,
		ctx:     xlog.WithModule(ctx, "executor"),
		global:  newDeque(),
		drained: make(chan struct{}, 1),
		quit:    make(chan struct{}),
	}
	e.peers.Store(&[]*Worker{})
	return e, nil
}

// 启动MinThreads个worker
func (e *Executor) Start() error {
	if !e.state.CompareAndSwap(int32(Idle), int32(Running)) {
		if e.State() == Running {
			return ErrAlreadyStarted
		}
		return ErrExecutorShutdown
	}
	e.startedAt.Store(time.Now())

	e.mu.Lock()
	for i := 0; i < e.opts.MinThreads; i++ {
		e.spawnLocked()
	}
	e.mu.Unlock()

	xlog.Get(e.ctx).Info("Executor start success.",
		zap.Int("min", e.opts.MinThreads), zap.Int("max", e.opts.MaxThreads), zap.Stringer("steal", e.opts.Steal))
	return nil
}

func (e *Executor) State() State {
	return State(e.state.Load())
}

func (e *Executor) Options() Options {
	return e.opts
}

// 外部提交, 进入全局队列
func (e *Executor) Submit(t Task) error {
	switch e.State() {
	case Running:
	case Idle:
		e.reject()
		return ErrNotStarted
	default:
		e.reject()
		return ErrExecutorShutdown
	}
	return e.submitGlobal(t)
}

func (e *Executor) SubmitFunc(name string, fn func()) error {
	return e.Submit(Task{Name: name, Run: func(*Worker) { fn() }})
}

func (e *Executor) reject() {
	e.rejected.Inc()
	e.opts.Metrics.TaskRejected()
}

func (e *Executor) submitGlobal(t Task) error {
	if t.Run == nil {
		return ErrInvalidTask
	}
	if t.SubmittedAt.IsZero() {
		t.SubmittedAt = time.Now()
	}

	e.mu.Lock()
	if e.opts.GlobalQueueSize > 0 && e.global.len() >= e.opts.GlobalQueueSize {
		e.mu.Unlock()
		e.reject()
		return ErrQueueFull
	}
	e.pending.Inc()
	e.submitted.Inc()
	if t.Priority > 0 {
		e.global.pushTop(t)
	} else {
		e.global.pushBottom(t)
	}
	backlog := e.global.len()
	if !e.wakeLocked() && backlog > e.opts.ScaleUpThreshold && len(e.workers) < e.opts.MaxThreads {
		w := e.spawnLocked()
		if l := xlog.Get(e.ctx); l.Enabled(zapcore.DebugLevel) {
			l.Debug("Executor scale up.", xlog.Worker(w.id), zap.Int("backlog", backlog), zap.Int("workers", len(e.workers)))
		}
	}
	e.mu.Unlock()

	e.opts.Metrics.GlobalQueueDepth(backlog)
	return nil
}

// 唤醒一个空闲worker
func (e *Executor) wakeLocked() bool {
	n := len(e.parked)
	if n == 0 {
		return false
	}
	w := e.parked[n-1]
	e.parked[n-1] = nil
	e.parked = e.parked[:n-1]
	e.parkedN.Store(int32(len(e.parked)))
	signal(w.wake)
	return true
}

// 有空闲worker时唤醒, 让其窃取
func (e *Executor) notify() {
	if e.parkedN.Load() == 0 {
		return
	}
	e.mu.Lock()
	e.wakeLocked()
	e.mu.Unlock()
}

func (e *Executor) spawnLocked() *Worker {
	w := newWorker(e, e.nextID)
	e.nextID++
	e.workers = append(e.workers, w)
	e.publishLocked()

	e.wg.Add(1)
	go w.loop()
	return w
}

func (e *Executor) publishLocked() {
	peers := make([]*Worker, len(e.workers))
	copy(peers, e.workers)
	e.peers.Store(&peers)
	e.opts.Metrics.ActiveWorkers(len(peers))
}

// 回收worker, 剩余本地task转入全局队列
func (e *Executor) retireLocked(w *Worker) bool {
	if len(e.workers) <= e.opts.MinThreads {
		return false
	}
	for i, o := range e.workers {
		if o == w {
			e.workers = append(e.workers[:i], e.workers[i+1:]...)
			break
		}
	}
	e.unparkLocked(w)
	e.publishLocked()
	for _, t := range w.local.drain() {
		e.global.pushBottom(t)
		e.wakeLocked()
	}
	e.retired.Inc()
	return true
}

func (e *Executor) parkLocked(w *Worker) {
	e.parked = append(e.parked, w)
	e.parkedN.Store(int32(len(e.parked)))
}

func (e *Executor) unparkLocked(w *Worker) {
	for i, o := range e.parked {
		if o == w {
			e.parked = append(e.parked[:i], e.parked[i+1:]...)
			e.parkedN.Store(int32(len(e.parked)))
			return
		}
	}
}

func (e *Executor) done(t Task, wait, cost time.Duration) {
	e.completed.Inc()
	e.waitNanos.Add(int64(wait))
	e.execNanos.Add(int64(cost))
	if e.pending.Dec() == 0 {
		signal(e.drained)
	}
}

// 停止接收外部task, 等待已提交task完成(最多timeout), 然后停止worker
// 超时未完成的task被放弃, 返回ErrShutdownTimeout
// 可重复调用
func (e *Executor) Shutdown(timeout time.Duration) error {
	if e.state.CompareAndSwap(int32(Idle), int32(Terminated)) {
		return nil
	}
	if !e.state.CompareAndSwap(int32(Running), int32(ShuttingDown)) {
		return nil
	}
	start := time.Now()
	xlog.Get(e.ctx).Info("Executor shutdown begin.", zap.Int64("pending", e.pending.Load()), zap.Duration("timeout", timeout))

	// 唤醒全部worker尽快消化积压
	e.mu.Lock()
	for e.wakeLocked() {
	}
	e.mu.Unlock()

	var err error
	timer := time.NewTimer(timeout)
	defer timer.Stop()
wait:
	for e.pending.Load() > 0 {
		select {
		case <-e.drained:
		case <-timer.C:
			abandoned := e.pending.Load()
			if abandoned > 0 {
				err = errors.Wrapf(ErrShutdownTimeout, "%d tasks abandoned", abandoned)
			}
			break wait
		}
	}

	e.quitOnce.Do(func() { close(e.quit) })
	if err == nil {
		e.wg.Wait()
	}
	e.state.Store(int32(Terminated))

	if err != nil {
		xlog.Get(e.ctx).Warn("Executor shutdown forced.", zap.Error(err), xlog.Cost(time.Since(start)))
	} else {
		xlog.Get(e.ctx).Info("Executor shutdown success.", xlog.Cost(time.Since(start)))
	}
	return err
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
