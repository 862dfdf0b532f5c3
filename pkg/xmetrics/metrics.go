// Package xmetrics 运行时指标上报
// 各模块只依赖这里的接口, 默认Nop, 需要时注入Prometheus实现
package xmetrics

import "time"

// actor消息处理指标
type Actor interface {
	MessageProcessed(actor string, cost time.Duration, success bool)
	MessageTimeout(actor string)
	ActorRestarted(actor string)
	MailboxDepth(actor string, depth int)
	MailboxRejected(actor string)
	Forget(actor string) // actor停止后清理标签
}

// 线程池指标
type Executor interface {
	TaskExecuted(worker int, wait, cost time.Duration, success bool)
	TaskStolen(thief, victim int)
	TaskRejected()
	ActiveWorkers(n int)
	GlobalQueueDepth(n int)
}

// 调度器指标
type Scheduler interface {
	ActorSpawned()
	ActorStopped()
	ActiveActors(n int)
}

// 全部指标
type Recorder interface {
	Actor
	Executor
	Scheduler
}

type nop struct{}

func (nop) MessageProcessed(string, time.Duration, bool) {}
func (nop) MessageTimeout(string) {}
func (nop) ActorRestarted(string) {}
func (nop) MailboxDepth(string, int) {}
func (nop) MailboxRejected(string) {}
func (nop) Forget(string) {}
func (nop) TaskExecuted(int, time.Duration, time.Duration, bool) {}
func (nop) TaskStolen(int, int) {}
func (nop) TaskRejected() {}
func (nop) ActiveWorkers(int) {}
func (nop) GlobalQueueDepth(int) {}
func (nop) ActorSpawned() {}
func (nop) ActorStopped() {}
func (nop) ActiveActors(int) {}

// 空实现
var Nop = nop{}

var _ Recorder = Nop
