package xactor

import (
	"time"

	"github.com/camilohaze/vela-sub010/pkg/xmailbox"
)

// 邮箱中的消息
type Envelope struct {
	Payload  any
	Sender   *Ref
	Priority int

	poison  bool
	attempt int
	reply   chan result
	sentAt  time.Time
}

type result struct {
	resp any
	err  error
}

func newEnvelope(payload any, sender *Ref, priority int) *Envelope {
	return &Envelope{Payload: payload, Sender: sender, Priority: priority, sentAt: time.Now()}
}

func poisonEnvelope() *Envelope {
	return &Envelope{poison: true, sentAt: time.Now()}
}

func envelopePriority(env *Envelope) int {
	return env.Priority
}

// actor邮箱, Priority类型按Envelope.Priority排序
func NewMailbox(opts xmailbox.Options) (*Mailbox, error) {
	return xmailbox.New[*Envelope](opts, envelopePriority)
}

func (env *Envelope) IsPoison() bool {
	return env.poison
}

func (env *Envelope) respond(resp any, err error) bool {
	if env.reply == nil {
		return false
	}
	select {
	case env.reply <- result{resp: resp, err: err}:
		return true
	default:
		return false
	}
}
