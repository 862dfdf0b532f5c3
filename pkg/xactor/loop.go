package xactor

import (
	"context"
	"fmt"
	"time"

	"github.com/camilohaze/vela-sub010/pkg/xcommon"
	"github.com/camilohaze/vela-sub010/pkg/xexecutor"
	"github.com/camilohaze/vela-sub010/pkg/xlog"
	"github.com/camilohaze/vela-sub010/pkg/xmetrics"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type Signal int

const (
	Continue   Signal = iota // 继续处理
	Terminated               // 收到终止消息, actor已停止
)

func (s Signal) String() string {
	if s == Terminated {
		return "terminated"
	}
	return "continue"
}

type LoopOptions struct {
	System         string        // path中的系统名
	Throughput     int           // 每轮最多处理消息数, 0表示处理到邮箱为空
	YieldLocal     bool          // 让出时进入当前worker本地队列, 否则进入全局队列
	TaskPriority   int           // 提交到全局队列时的task优先级
	MessageTimeout time.Duration // 单条消息处理超时, 0表示不限
	MaxRetries     int           // 超时重试次数
	RetryBackoff   time.Duration // 首次重试等待, 之后翻倍
	MaxBackoff     time.Duration // 重试等待上限
	MaxRestarts    int           // RestartWindow内失败超过该次数则停止actor, 0表示只记录继续
	RestartWindow  time.Duration // 0表示不限窗口
	Allocator      Allocator
	Metrics        xmetrics.Actor
}

func DefaultLoopOptions() LoopOptions {
	return LoopOptions{
		System:        "vela",
		Throughput:    32,
		MaxRetries:    3,
		RetryBackoff:  10 * time.Millisecond,
		MaxBackoff:    time.Second,
		RestartWindow: time.Minute,
	}
}

func (o LoopOptions) withDefaults() LoopOptions {
	if o.System == "" {
		o.System = "vela"
	}
	if o.Allocator == nil {
		o.Allocator = NopAllocator{}
	}
	if o.Metrics == nil {
		o.Metrics = xmetrics.Nop
	}
	return o
}

// 让出接口, *xexecutor.Worker实现
type Yielder interface {
	Submit(t xexecutor.Task) error
	SubmitGlobal(t xexecutor.Task) error
}

type outcome int

const (
	outcomeContinue outcome = iota
	outcomeRetry
	outcomeTerminated
)

// 绑定一个Actor和一个Mailbox, 顺序处理消息
// 调度标记sched保证同一时刻最多一个worker在执行该loop
type Loop struct {
	name    string
	actor   Actor
	box     *Mailbox
	ref     *Ref
	life    *lifecycle
	opts    LoopOptions
	ctx     context.Context
	backoff xcommon.Backoff

	exec        xexecutor.Submitter
	sched       atomic.Bool
	paused      atomic.Bool
	parked      *Envelope // 等待退避重试的消息, 仅持有sched时访问
	stateRoot   Ptr
	failures    []time.Time
	onTerminate []func()

	spawnedAt    atomic.Time
	lastActivity atomic.Time
	processed    atomic.Uint64
	errs         atomic.Uint64
	restarts     atomic.Uint64
	timeouts     atomic.Uint64
	cycles       atomic.Uint64
	busyNanos    atomic.Int64
}

func NewLoop(ctx context.Context, name string, actor Actor, box *Mailbox, opts LoopOptions) *Loop {
	opts = opts.withDefaults()
	l := &Loop{
		name:    name,
		actor:   actor,
		box:     box,
		life:    newLifecycle(),
		opts:    opts,
		ctx:     xlog.NewContext(ctx, xlog.Actor(name)),
		backoff: xcommon.Backoff{Base: opts.RetryBackoff, Max: opts.MaxBackoff, Factor: 2},
	}
	uid := gonanoid.Must(10)
	l.ref = &Ref{
		name:    name,
		path:    fmt.Sprintf("local://%s/%s#%s", opts.System, name, uid),
		uid:     uid,
		box:     box,
		life:    l.life,
		wake:    l.schedule,
		alloc:   opts.Allocator,
		metrics: opts.Metrics,
	}
	return l
}

func (l *Loop) Name() string {
	return l.name
}

func (l *Loop) Ref() *Ref {
	return l.ref
}

func (l *Loop) Options() LoopOptions {
	return l.opts
}

func (l *Loop) Done() <-chan struct{} {
	return l.life.done
}

// 停止后回调, 需在Start前设置
func (l *Loop) OnTerminate(fn func()) {
	l.onTerminate = append(l.onTerminate, fn)
}

// 挂到线程池, 之后由Send驱动调度
// 未挂载时只能通过RunOnce驱动
func (l *Loop) Attach(exec xexecutor.Submitter) {
	l.exec = exec
}

// Uninitialized -> Starting -> PreStart -> Running
func (l *Loop) Start() error {
	if !l.life.transition(Uninitialized, Starting) {
		return errors.Errorf("actor %s already started", l.name)
	}
	now := time.Now()
	l.spawnedAt.Store(now)
	l.lastActivity.Store(now)

	if err := l.allocState(); err != nil {
		l.abort()
		return errors.Wrapf(err, "actor %s alloc state", l.name)
	}
	if err := l.preStart(); err != nil {
		l.abort()
		return errors.Wrapf(err, "actor %s pre start", l.name)
	}
	l.life.transition(Starting, Running)
	xlog.Get(l.ctx).Debug("Actor start success.", zap.String("path", l.ref.path))
	return nil
}

func (l *Loop) allocState() error {
	sizer, ok := l.actor.(StateSizer)
	if !ok {
		return nil
	}
	size := sizer.StateSize()
	if size <= 0 {
		return nil
	}
	ptr, err := l.opts.Allocator.Alloc(size)
	if err != nil {
		return err
	}
	if ptr != nil {
		l.opts.Allocator.AddRoot(ptr)
		l.stateRoot = ptr
	}
	return nil
}

func (l *Loop) preStart() (err error) {
	ps, ok := l.actor.(PreStarter)
	if !ok {
		return nil
	}
	r, stack := xcommon.CatchPanic(func() { err = ps.PreStart(l.ctx) })
	if r != nil {
		return newPanicError(l.name, nil, 0, r, stack)
	}
	return err
}

// 启动失败, 直接进入Stopped
func (l *Loop) abort() {
	l.releaseState()
	l.box.Close()
	l.sched.Store(true)
	l.life.stopped()
}

func (l *Loop) releaseState() {
	if l.stateRoot != nil {
		l.opts.Allocator.RemoveRoot(l.stateRoot)
		l.stateRoot = nil
	}
}

func (l *Loop) Pause() {
	l.paused.Store(true)
}

func (l *Loop) Resume() {
	if l.paused.CompareAndSwap(true, false) {
		l.schedule(nil)
	}
}

func (l *Loop) Paused() bool {
	return l.paused.Load()
}

// 暂停中且未在停止, 不处理消息
func (l *Loop) holding() bool {
	return l.paused.Load() && l.life.load() != Stopping
}

func (l *Loop) task() xexecutor.Task {
	return xexecutor.Task{Name: l.name, Run: l.run, Priority: l.opts.TaskPriority}
}

func (l *Loop) run(w *xexecutor.Worker) {
	l.Run(w)
}

// Send/Stop/Resume后调用, idle -> scheduled
// via非空时提交到via的本地队列, 否则提交到全局队列
func (l *Loop) schedule(via Yielder) {
	if l.exec == nil || l.holding() {
		return
	}
	if !l.sched.CompareAndSwap(false, true) {
		return
	}
	if w, ok := via.(*xexecutor.Worker); via == nil || (ok && xexecutor.Submitter(w.Executor()) != l.exec) {
		l.submit()
		return
	}
	if err := via.Submit(l.task()); err != nil {
		l.submit()
	}
}

func (l *Loop) submit() {
	if err := l.exec.Submit(l.task()); err != nil {
		l.sched.Store(false)
		xlog.Get(l.ctx).Warn("Actor loop submit failed.", zap.Error(err))
	}
}

func (l *Loop) yield(w Yielder) {
	var err error
	if l.opts.YieldLocal {
		err = w.Submit(l.task())
	} else {
		err = w.SubmitGlobal(l.task())
	}
	if err != nil {
		l.sched.Store(false)
		xlog.Get(l.ctx).Warn("Actor loop yield failed.", zap.Error(err))
	}
}

// 线程池中执行一轮: 最多处理Throughput条消息, 有剩余则重新提交, 否则进入idle
func (l *Loop) Run(w Yielder) {
	n := 0
	for l.opts.Throughput <= 0 || n < l.opts.Throughput {
		if l.holding() {
			break
		}
		env, ok := l.next()
		if !ok {
			break
		}
		n++
		switch l.process(env, w) {
		case outcomeTerminated:
			l.cycles.Inc()
			l.terminate()
			return
		case outcomeRetry:
			// 保持sched, 由定时器重新提交, 保证后续消息不越过重试中的消息
			l.cycles.Inc()
			l.retryLater(env)
			return
		}
	}
	l.cycles.Inc()
	l.opts.Metrics.MailboxDepth(l.name, l.box.Len())

	if !l.holding() && !l.box.IsEmpty() {
		l.yield(w)
		return
	}
	l.sched.Store(false)
	// 防止丢失唤醒: 置idle后再检查一次
	if !l.holding() && !l.box.IsEmpty() && l.sched.CompareAndSwap(false, true) {
		l.yield(w)
	}
}

func (l *Loop) next() (*Envelope, bool) {
	if env := l.parked; env != nil {
		l.parked = nil
		return env, true
	}
	return l.box.TryGet()
}

func (l *Loop) retryLater(env *Envelope) {
	env.attempt++
	l.parked = env
	delay := l.backoff.Next(env.attempt - 1)
	time.AfterFunc(delay, func() {
		if l.exec != nil {
			l.submit()
		}
	})
}

// 阻塞处理一条消息, 用于未挂载线程池的loop
// 超时重试在当前goroutine中等待退避
func (l *Loop) RunOnce(ctx context.Context) (Signal, error) {
	if l.life.load() == Stopped {
		return Terminated, ErrActorNotRunning
	}
	for {
		env, err := l.nextBlocking(ctx)
		if err != nil {
			return Continue, err
		}
		switch l.process(env, nil) {
		case outcomeTerminated:
			l.cycles.Inc()
			l.terminate()
			return Terminated, nil
		case outcomeRetry:
			env.attempt++
			l.parked = env
			timer := time.NewTimer(l.backoff.Next(env.attempt - 1))
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return Continue, ctx.Err()
			}
		default:
			l.cycles.Inc()
			return Continue, nil
		}
	}
}

func (l *Loop) nextBlocking(ctx context.Context) (*Envelope, error) {
	if env := l.parked; env != nil {
		l.parked = nil
		return env, nil
	}
	return l.box.Get(ctx)
}

func (l *Loop) process(env *Envelope, w Yielder) outcome {
	if env.poison {
		return outcomeTerminated
	}
	start := time.Now()
	err := l.invoke(env, w)
	cost := time.Since(start)
	l.busyNanos.Add(int64(cost))
	l.lastActivity.Store(time.Now())

	if err == nil {
		l.processed.Inc()
		l.opts.Metrics.MessageProcessed(l.name, cost, true)
		l.release(env)
		return outcomeContinue
	}

	var perr *ProcessingError
	if errors.Is(err, ErrProcessingTimeout) {
		l.timeouts.Inc()
		l.opts.Metrics.MessageTimeout(l.name)
		if env.attempt < l.opts.MaxRetries {
			xlog.Get(l.ctx).Warn("Actor receive timeout, retry later.", zap.Int("attempt", env.attempt), zap.Error(err))
			return outcomeRetry
		}
		perr = &ProcessingError{Actor: l.name, Message: env.Payload, Attempt: env.attempt, Cause: err}
	} else if !errors.As(err, &perr) {
		perr = &ProcessingError{Actor: l.name, Message: env.Payload, Attempt: env.attempt, Cause: err}
	}

	l.processed.Inc()
	l.opts.Metrics.MessageProcessed(l.name, cost, false)
	l.fail(env, perr)
	l.release(env)
	return outcomeContinue
}

func (l *Loop) invoke(env *Envelope, w Yielder) error {
	ctx := l.ctx
	if l.opts.MessageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.MessageTimeout)
		defer cancel()
	}
	rc := &Context{ctx: ctx, self: l.ref, env: env, worker: w}

	var err error
	r, stack := xcommon.CatchPanic(func() { err = l.actor.Receive(rc) })
	if r != nil {
		return newPanicError(l.name, env.Payload, env.attempt, r, stack)
	}
	if err != nil {
		if l.opts.MessageTimeout > 0 && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrProcessingTimeout) || ctx.Err() == context.DeadlineExceeded) {
			return errors.Wrapf(ErrProcessingTimeout, "exceeded %v: %v", l.opts.MessageTimeout, err)
		}
		return err
	}
	if env.reply != nil && !rc.replied {
		env.respond(nil, ErrNoResponse)
	}
	return nil
}

// 处理失败: PreRestart -> Restarting -> PostRestart -> Running, 记录后继续
func (l *Loop) fail(env *Envelope, perr *ProcessingError) {
	l.errs.Inc()
	env.respond(nil, perr)

	fields := []zap.Field{zap.Error(perr), zap.Int("attempt", perr.Attempt)}
	if perr.Stack != nil {
		fields = append(fields, zap.ByteString("stack", perr.Stack))
	}
	xlog.Get(l.ctx).Error("Actor receive failed.", fields...)

	restarting := l.life.transition(Running, Restarting)
	l.hook("pre_restart", func() {
		if h, ok := l.actor.(PreRestarter); ok {
			h.PreRestart(l.ctx, perr)
		}
	})
	l.restarts.Inc()
	l.opts.Metrics.ActorRestarted(l.name)
	l.hook("post_restart", func() {
		if h, ok := l.actor.(PostRestarter); ok {
			h.PostRestart(l.ctx, perr)
		}
	})
	if restarting {
		l.life.transition(Restarting, Running)
	}

	if l.exceeded(time.Now()) && l.life.beginStop() {
		xlog.Get(l.ctx).Warn("Actor restart limit reached, stopping.",
			zap.Int("max_restarts", l.opts.MaxRestarts), zap.Duration("window", l.opts.RestartWindow))
		if err := l.box.Seal(poisonEnvelope()); err != nil {
			xlog.Get(l.ctx).Warn("Actor seal mailbox failed.", zap.Error(err))
		}
	}
}

func (l *Loop) exceeded(now time.Time) bool {
	if l.opts.MaxRestarts <= 0 {
		return false
	}
	if l.opts.RestartWindow > 0 {
		cut := now.Add(-l.opts.RestartWindow)
		kept := l.failures[:0]
		for _, t := range l.failures {
			if t.After(cut) {
				kept = append(kept, t)
			}
		}
		l.failures = kept
	}
	l.failures = append(l.failures, now)
	return len(l.failures) > l.opts.MaxRestarts
}

func (l *Loop) hook(name string, fn func()) {
	if r, stack := xcommon.CatchPanic(fn); r != nil {
		xlog.Get(l.ctx).Error("Actor hook panic.", zap.String("hook", name), zap.Any("panic", r), zap.ByteString("stack", stack))
	}
}

func (l *Loop) release(env *Envelope) {
	if p, ok := env.Payload.(Rooted); ok {
		if ptr := p.RootPtr(); ptr != nil {
			l.opts.Allocator.RemoveRoot(ptr)
		}
	}
}

// 终止消息: PostStop -> Stopped
func (l *Loop) terminate() {
	l.hook("post_stop", func() {
		if h, ok := l.actor.(PostStopper); ok {
			h.PostStop(l.ctx)
		}
	})
	l.releaseState()
	l.box.Close()
	l.opts.Metrics.Forget(l.name)
	for _, fn := range l.onTerminate {
		fn()
	}
	l.life.stopped()

	xlog.Get(l.ctx).Debug("Actor stopped.",
		zap.Uint64("processed", l.processed.Load()), zap.Uint64("errors", l.errs.Load()), zap.Duration("uptime", time.Since(l.spawnedAt.Load())))
}
