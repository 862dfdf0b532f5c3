package xactor

import (
	"github.com/camilohaze/vela-sub010/pkg/xmailbox"
	"github.com/camilohaze/vela-sub010/pkg/xmetrics"
	"github.com/pkg/errors"
)

type Mailbox = xmailbox.Mailbox[*Envelope]

// actor句柄, 可被任意发送者共享
// 只持有邮箱和生命周期, 不持有actor状态, 不反向引用调度器
type Ref struct {
	name string
	path string
	uid  string

	box     *Mailbox
	life    *lifecycle
	wake    func(via Yielder)
	alloc   Allocator
	metrics xmetrics.Actor
}

func (r *Ref) Name() string {
	return r.name
}

// local://<system>/<name>#<uid>
func (r *Ref) Path() string {
	return r.path
}

func (r *Ref) UID() string {
	return r.uid
}

func (r *Ref) String() string {
	return r.path
}

// 按名称比较
func (r *Ref) Equal(other *Ref) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.name == other.name
}

func (r *Ref) State() State {
	return r.life.load()
}

func (r *Ref) IsStopped() bool {
	return r.life.load() == Stopped
}

// actor进入Stopped后关闭
func (r *Ref) Done() <-chan struct{} {
	return r.life.done
}

func (r *Ref) MailboxLen() int {
	return r.box.Len()
}

// 异步发送, 不等待处理
func (r *Ref) Send(payload any) error {
	return r.deliver(newEnvelope(payload, nil, 0))
}

func (r *Ref) SendFrom(payload any, sender *Ref) error {
	return r.deliver(newEnvelope(payload, sender, 0))
}

// 优先级仅对Priority邮箱生效, 值越大越先处理
func (r *Ref) SendPriority(payload any, priority int, sender *Ref) error {
	return r.deliver(newEnvelope(payload, sender, priority))
}

func (r *Ref) deliver(env *Envelope) error {
	return r.deliverOn(env, nil)
}

// via非空时目标loop进入via所在worker的本地队列
func (r *Ref) deliverOn(env *Envelope, via Yielder) error {
	if !r.life.accepting() {
		return errors.Wrapf(ErrActorNotRunning, "send to %s", r.name)
	}
	rooted := r.root(env.Payload)
	if err := r.box.Put(env); err != nil {
		if rooted != nil {
			r.alloc.RemoveRoot(rooted)
		}
		if errors.Is(err, xmailbox.ErrMailboxClosed) {
			return errors.Wrapf(ErrActorNotRunning, "send to %s", r.name)
		}
		if errors.Is(err, xmailbox.ErrMailboxFull) {
			r.metrics.MailboxRejected(r.name)
		}
		return errors.WithMessagef(err, "send to %s", r.name)
	}
	r.wake(via)
	return nil
}

func (r *Ref) root(payload any) Ptr {
	if p, ok := payload.(Rooted); ok {
		if ptr := p.RootPtr(); ptr != nil {
			r.alloc.AddRoot(ptr)
			return ptr
		}
	}
	return nil
}

// 优雅停止: 已投递的消息处理完后再停止
// 重复调用返回ErrActorNotRunning
func (r *Ref) Stop() error {
	if !r.life.beginStop() {
		return errors.Wrapf(ErrActorNotRunning, "stop %s", r.name)
	}
	if err := r.box.Seal(poisonEnvelope()); err != nil {
		return errors.WithMessagef(err, "stop %s", r.name)
	}
	r.wake(nil)
	return nil
}
