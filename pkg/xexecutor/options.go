package xexecutor

import (
	"runtime"
	"strings"
	"time"

	"github.com/camilohaze/vela-sub010/pkg/xmetrics"
	"github.com/pkg/errors"
)

var ErrInvalidOptions = errors.New("invalid executor options")

// 窃取时选择受害者的方式
type StealStrategy int

const (
	StealRandom StealStrategy = iota
	StealRoundRobin
)

func (s StealStrategy) String() string {
	if s == StealRoundRobin {
		return "round_robin"
	}
	return "random"
}

func ParseStealStrategy(s string) (StealStrategy, error) {
	switch strings.ToLower(s) {
	case "", "random":
		return StealRandom, nil
	case "round_robin", "roundrobin":
		return StealRoundRobin, nil
	}
	return StealRandom, errors.Wrapf(ErrInvalidOptions, "steal strategy %q", s)
}

type Options struct {
	MinThreads       int           // 常驻worker数
	MaxThreads       int           // 最大worker数
	GlobalQueueSize  int           // 全局队列上限, 0表示无上限
	ScaleUpThreshold int           // 全局队列积压超过该值时扩容
	KeepAlive        time.Duration // 超过MinThreads的worker空闲多久后回收
	ParkTimeout      time.Duration // 空闲worker重新尝试窃取的间隔
	Steal            StealStrategy
	Metrics          xmetrics.Executor
}

func DefaultOptions() Options {
	n := runtime.NumCPU()
	return Options{
		MinThreads:       n,
		MaxThreads:       n * 2,
		ScaleUpThreshold: 64,
		KeepAlive:        30 * time.Second,
		ParkTimeout:      10 * time.Millisecond,
		Steal:            StealRandom,
	}
}

func (o Options) Validate() error {
	if o.MinThreads < 1 {
		return errors.Wrapf(ErrInvalidOptions, "min threads %d", o.MinThreads)
	}
	if o.MaxThreads < o.MinThreads {
		return errors.Wrapf(ErrInvalidOptions, "max threads %d < min threads %d", o.MaxThreads, o.MinThreads)
	}
	if o.GlobalQueueSize < 0 {
		return errors.Wrapf(ErrInvalidOptions, "global queue size %d", o.GlobalQueueSize)
	}
	if o.ScaleUpThreshold < 0 {
		return errors.Wrapf(ErrInvalidOptions, "scale up threshold %d", o.ScaleUpThreshold)
	}
	if o.KeepAlive < 0 || o.ParkTimeout < 0 {
		return errors.Wrap(ErrInvalidOptions, "negative duration")
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.ParkTimeout == 0 {
		o.ParkTimeout = 10 * time.Millisecond
	}
	if o.KeepAlive == 0 {
		o.KeepAlive = 30 * time.Second
	}
	if o.Metrics == nil {
		o.Metrics = xmetrics.Nop
	}
	return o
}
