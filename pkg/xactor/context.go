package xactor

import (
	"context"

	"github.com/camilohaze/vela-sub010/pkg/xlog"
)

// 单次Receive的上下文, 只在本次处理中有效
type Context struct {
	ctx     context.Context
	self    *Ref
	env     *Envelope
	worker  Yielder // 线程池中执行时为当前worker
	replied bool
}

func (rc *Context) Message() any {
	return rc.env.Payload
}

func (rc *Context) Sender() *Ref {
	return rc.env.Sender
}

func (rc *Context) Self() *Ref {
	return rc.self
}

func (rc *Context) Priority() int {
	return rc.env.Priority
}

// 第几次尝试, 从0开始, 超时重试时递增
func (rc *Context) Attempt() int {
	return rc.env.attempt
}

// 带单条消息超时的ctx
func (rc *Context) Context() context.Context {
	return rc.ctx
}

func (rc *Context) Logger() xlog.Logger {
	return xlog.Get(rc.ctx)
}

// 以自身为sender发送, 线程池中执行时目标loop进入当前worker本地队列
func (rc *Context) Send(to *Ref, payload any) error {
	return to.deliverOn(newEnvelope(payload, rc.self, 0), rc.worker)
}

// 应答Ask请求
func (rc *Context) Reply(v any) error {
	if rc.env.reply == nil {
		return ErrNoReply
	}
	if rc.replied {
		return ErrAlreadyReplied
	}
	rc.replied = true
	rc.env.respond(v, nil)
	return nil
}
