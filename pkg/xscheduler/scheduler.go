// Package xscheduler actor调度器
// 负责spawn(装配Actor+Mailbox+Ref+Loop并挂到线程池), 维护注册表, 汇总指标, 关闭
package xscheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/camilohaze/vela-sub010/pkg/xactor"
	"github.com/camilohaze/vela-sub010/pkg/xexecutor"
	"github.com/camilohaze/vela-sub010/pkg/xlog"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrSchedulerNotRunning = errors.New("scheduler not running")
	ErrActorNotFound       = errors.New("actor not found")
	ErrDuplicateName       = errors.New("actor name already registered")
	ErrTooManyActors       = errors.New("too many actors")
	ErrNilActor            = errors.New("factory returned nil actor")
)

type State int32

const (
	Running State = iota
	ShuttingDown
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting_down"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// 注册表项, 以名称为键持有actor
type entry struct {
	ref      *xactor.Ref
	loop     *xactor.Loop
	priority int
}

type Scheduler struct {
	opts  Options
	ctx   context.Context
	exec  *xexecutor.Executor
	state atomic.Int32

	mu     sync.RWMutex
	actors map[string]*entry

	seq          atomic.Uint64 // 名称生成器
	totalSpawned atomic.Uint64
	totalStopped atomic.Uint64
	stoppedMsgs  atomic.Uint64 // 已停止actor处理的消息数
	startedAt    time.Time
}

// 创建并启动线程池, 启动失败直接返回
func New(ctx context.Context, opts Options) (*Scheduler, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	ctx = xlog.NewContext(ctx, zap.String("system", opts.Name))

	exec, err := xexecutor.New(ctx, opts.Executor)
	if err != nil {
		return nil, errors.WithMessage(err, "new executor")
	}
	if err := exec.Start(); err != nil {
		return nil, errors.WithMessage(err, "start executor")
	}

	s := &Scheduler{
		opts:      opts,
		ctx:       ctx,
		exec:      exec,
		actors:    make(map[string]*entry),
		startedAt: time.Now(),
	}
	xlog.Get(ctx).Info("Scheduler start success.", zap.Stringer("policy", opts.Policy), zap.Int("max_actors", opts.MaxActors))
	return s, nil
}

func (s *Scheduler) State() State {
	return State(s.state.Load())
}

func (s *Scheduler) Policy() Policy {
	return s.opts.Policy
}

func (s *Scheduler) Executor() *xexecutor.Executor {
	return s.exec
}

// 生成"{Type}-{n}"
func (s *Scheduler) nextName(a xactor.Actor) string {
	return fmt.Sprintf("%s-%d", xactor.TypeName(a), s.seq.Inc())
}

func (s *Scheduler) Spawn(factory xactor.Factory, opts ...xactor.SpawnOption) (*xactor.Ref, error) {
	if s.State() != Running {
		return nil, ErrSchedulerNotRunning
	}
	cfg := xactor.NewSpawnConfig(opts...)
	actor := factory()
	if actor == nil {
		return nil, ErrNilActor
	}
	name := cfg.Name
	if name == "" {
		name = s.nextName(actor)
	}

	mbOpts := s.opts.Mailbox
	if cfg.Mailbox != nil {
		mbOpts = *cfg.Mailbox
	}
	box, err := xactor.NewMailbox(mbOpts)
	if err != nil {
		return nil, errors.WithMessagef(err, "spawn %s", name)
	}

	lo := s.opts.loopOptions(cfg.Priority)
	for _, fn := range cfg.Loop {
		fn(&lo)
	}
	loop := xactor.NewLoop(s.ctx, name, actor, box, lo)
	loop.Attach(s.exec)
	loop.OnTerminate(func() { s.deregister(name, loop) })

	e := &entry{ref: loop.Ref(), loop: loop, priority: cfg.Priority}
	if err := s.reserve(name, e); err != nil {
		return nil, err
	}
	if err := loop.Start(); err != nil {
		s.release(name, e)
		xlog.Get(s.ctx).Warn("Actor spawn failed.", xlog.Actor(name), zap.Error(err))
		return nil, err
	}
	if s.State() != Running {
		// 启动期间开始关闭
		_ = e.ref.Stop()
		return nil, ErrSchedulerNotRunning
	}

	s.totalSpawned.Inc()
	s.opts.Metrics.ActorSpawned()
	s.opts.Metrics.ActiveActors(s.ActorCount())
	xlog.Get(s.ctx).Debug("Actor spawn success.", xlog.Actor(name), zap.Int("priority", cfg.Priority), zap.Stringer("mailbox", mbOpts.Kind))
	return e.ref, nil
}

// 预占名称, 同名并发spawn只有一个成功
func (s *Scheduler) reserve(name string, e *entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() != Running {
		return ErrSchedulerNotRunning
	}
	if _, ok := s.actors[name]; ok {
		return errors.Wrapf(ErrDuplicateName, "actor %s", name)
	}
	if s.opts.MaxActors > 0 && len(s.actors) >= s.opts.MaxActors {
		return errors.Wrapf(ErrTooManyActors, "limit %d", s.opts.MaxActors)
	}
	s.actors[name] = e
	return nil
}

func (s *Scheduler) release(name string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.actors[name] == e {
		delete(s.actors, name)
	}
}

// loop终止回调
func (s *Scheduler) deregister(name string, loop *xactor.Loop) {
	s.mu.Lock()
	e := s.actors[name]
	if e == nil || e.loop != loop {
		s.mu.Unlock()
		return
	}
	delete(s.actors, name)
	n := len(s.actors)
	s.mu.Unlock()

	s.stoppedMsgs.Add(loop.Metrics().Processed)
	s.totalStopped.Inc()
	s.opts.Metrics.ActorStopped()
	s.opts.Metrics.ActiveActors(n)
}

func (s *Scheduler) lookup(name string) (*entry, error) {
	s.mu.RLock()
	e := s.actors[name]
	s.mu.RUnlock()
	if e == nil {
		return nil, errors.Wrapf(ErrActorNotFound, "actor %s", name)
	}
	return e, nil
}

func (s *Scheduler) Lookup(name string) (*xactor.Ref, bool) {
	e, err := s.lookup(name)
	if err != nil {
		return nil, false
	}
	return e.ref, true
}

// 优雅停止, 邮箱中已有消息处理完后从注册表移除
func (s *Scheduler) StopActor(name string) error {
	e, err := s.lookup(name)
	if err != nil {
		return err
	}
	return e.ref.Stop()
}

func (s *Scheduler) PauseActor(name string) error {
	e, err := s.lookup(name)
	if err != nil {
		return err
	}
	e.loop.Pause()
	return nil
}

func (s *Scheduler) ResumeActor(name string) error {
	e, err := s.lookup(name)
	if err != nil {
		return err
	}
	e.loop.Resume()
	return nil
}

func (s *Scheduler) ActorNames() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.actors))
	for name := range s.actors {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (s *Scheduler) ActorCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.actors)
}

func (s *Scheduler) entries() []*entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	es := make([]*entry, 0, len(s.actors))
	for _, e := range s.actors {
		es = append(es, e)
	}
	return es
}

// 停止全部actor并等待排空(并行), 剩余时间用于关闭线程池
// 重复调用无副作用
func (s *Scheduler) Shutdown(timeout time.Duration) error {
	// 与reserve互斥, 之后不会再有新actor注册
	s.mu.Lock()
	ok := s.state.CompareAndSwap(int32(Running), int32(ShuttingDown))
	s.mu.Unlock()
	if !ok {
		return nil
	}

	start := time.Now()
	es := s.entries()
	xlog.Get(s.ctx).Info("Scheduler shutdown begin.", zap.Int("actors", len(es)), zap.Duration("timeout", timeout))

	for _, e := range es {
		if err := e.ref.Stop(); err != nil && !errors.Is(err, xactor.ErrActorNotRunning) {
			xlog.Get(s.ctx).Warn("Actor stop failed.", xlog.Actor(e.ref.Name()), zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	for _, e := range es {
		ref := e.ref
		g.Go(func() error {
			select {
			case <-ref.Done():
				return nil
			case <-gctx.Done():
				return errors.Wrapf(gctx.Err(), "actor %s drain", ref.Name())
			}
		})
	}
	drainErr := g.Wait()

	remaining := timeout - time.Since(start)
	if remaining < 0 {
		remaining = 0
	}
	execErr := s.exec.Shutdown(remaining)
	s.state.Store(int32(Stopped))

	err := multierr.Combine(drainErr, execErr)
	if err != nil {
		xlog.Get(s.ctx).Warn("Scheduler shutdown forced.", zap.Error(err), xlog.Cost(time.Since(start)))
	} else {
		xlog.Get(s.ctx).Info("Scheduler shutdown success.", xlog.Cost(time.Since(start)))
	}
	return err
}

var _ xactor.Runtime = (*Scheduler)(nil)
