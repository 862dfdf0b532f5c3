package xscheduler

import (
	"strings"

	"github.com/camilohaze/vela-sub010/pkg/xactor"
	"github.com/camilohaze/vela-sub010/pkg/xcommon"
	"github.com/camilohaze/vela-sub010/pkg/xexecutor"
	"github.com/camilohaze/vela-sub010/pkg/xmailbox"
	"github.com/camilohaze/vela-sub010/pkg/xmetrics"
	"github.com/pkg/errors"
)

var ErrInvalidOptions = errors.New("invalid scheduler options")

// 调度策略
type Policy int

const (
	Fair     Policy = iota // 小时间片, 经全局队列轮转
	Priority               // 时间片和本地性按优先级放大
	FIFO                   // 处理到邮箱为空, 本地续跑
)

func (p Policy) String() string {
	switch p {
	case Fair:
		return "fair"
	case Priority:
		return "priority"
	case FIFO:
		return "fifo"
	}
	return "unknown"
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "fair":
		return Fair, nil
	case "priority":
		return Priority, nil
	case "fifo":
		return FIFO, nil
	}
	return Fair, errors.Wrapf(ErrInvalidOptions, "policy %q", s)
}

type Options struct {
	Name      string // actor path中的系统名
	Policy    Policy
	MaxActors int // 0表示不限
	Quantum   int // Fair/Priority策略的基础时间片(消息数)
	Executor  xexecutor.Options
	Mailbox   xmailbox.Options   // 默认邮箱
	Loop      xactor.LoopOptions // 默认loop参数, Throughput/YieldLocal由策略决定
	Allocator xactor.Allocator
	Metrics   xmetrics.Recorder
}

func DefaultOptions() Options {
	return Options{
		Name:     "vela",
		Policy:   Fair,
		Quantum:  8,
		Executor: xexecutor.DefaultOptions(),
		Loop:     xactor.DefaultLoopOptions(),
	}
}

func (o Options) Validate() error {
	if o.MaxActors < 0 {
		return errors.Wrapf(ErrInvalidOptions, "max actors %d", o.MaxActors)
	}
	if o.Quantum < 0 {
		return errors.Wrapf(ErrInvalidOptions, "quantum %d", o.Quantum)
	}
	if o.Policy < Fair || o.Policy > FIFO {
		return errors.Wrapf(ErrInvalidOptions, "policy %d", o.Policy)
	}
	if err := o.Mailbox.Validate(); err != nil {
		return err
	}
	return o.Executor.Validate()
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = "vela"
	}
	if o.Quantum == 0 {
		o.Quantum = 8
	}
	if o.Allocator == nil {
		o.Allocator = xactor.NopAllocator{}
	}
	if o.Metrics == nil {
		o.Metrics = xmetrics.Nop
	}
	o.Executor.Metrics = o.Metrics
	return o
}

// 按策略生成loop参数
func (o Options) loopOptions(priority int) xactor.LoopOptions {
	lo := o.Loop
	lo.System = o.Name
	lo.Allocator = o.Allocator
	lo.Metrics = o.Metrics
	switch o.Policy {
	case Fair:
		lo.Throughput = o.Quantum
		lo.YieldLocal = false
		lo.TaskPriority = 0
	case Priority:
		lo.Throughput = quantumFor(o.Quantum, priority)
		lo.YieldLocal = priority > 0
		lo.TaskPriority = priority
	case FIFO:
		lo.Throughput = 0
		lo.YieldLocal = true
		lo.TaskPriority = 0
	}
	return lo
}

// 高优先级时间片按倍数放大, 低优先级减半
func quantumFor(base, priority int) int {
	if priority < 0 {
		return xcommon.Clamp(base/2, 1, base)
	}
	return xcommon.Clamp(base*(priority+1), base, base*8)
}
