package xactor

import (
	"sync"

	"go.uber.org/atomic"
)

type State int32

const (
	Uninitialized State = iota
	Starting
	Running
	Restarting
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Restarting:
		return "restarting"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// 生命周期状态机, Ref和Loop共享
type lifecycle struct {
	state    atomic.Int32
	done     chan struct{}
	doneOnce sync.Once
}

func newLifecycle() *lifecycle {
	return &lifecycle{done: make(chan struct{})}
}

func (lc *lifecycle) load() State {
	return State(lc.state.Load())
}

func (lc *lifecycle) transition(from, to State) bool {
	return lc.state.CompareAndSwap(int32(from), int32(to))
}

// 开始停止: Running/Restarting -> Stopping
// 与Running<->Restarting切换并发时按当前值重试
func (lc *lifecycle) beginStop() bool {
	for {
		s := lc.load()
		if s != Running && s != Restarting {
			return false
		}
		if lc.transition(s, Stopping) {
			return true
		}
	}
}

func (lc *lifecycle) stopped() {
	lc.state.Store(int32(Stopped))
	lc.doneOnce.Do(func() { close(lc.done) })
}

// 可接收消息
func (lc *lifecycle) accepting() bool {
	s := lc.load()
	return s == Running || s == Restarting
}
