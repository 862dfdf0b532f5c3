package xmailbox

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

type Kind int

const (
	Unbounded Kind = iota
	Bounded
	Priority
)

func (k Kind) String() string {
	switch k {
	case Unbounded:
		return "unbounded"
	case Bounded:
		return "bounded"
	case Priority:
		return "priority"
	}
	return "unknown"
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "", "unbounded":
		return Unbounded, nil
	case "bounded":
		return Bounded, nil
	case "priority":
		return Priority, nil
	}
	return Unbounded, errors.Wrapf(ErrInvalidOptions, "mailbox kind %q", s)
}

// 满时策略
type OverflowPolicy int

const (
	Reject OverflowPolicy = iota // 直接拒绝(默认, send不阻塞)
	Block                        // 阻塞等待空位
)

func (p OverflowPolicy) String() string {
	if p == Block {
		return "block"
	}
	return "reject"
}

func ParseOverflow(s string) (OverflowPolicy, error) {
	switch strings.ToLower(s) {
	case "", "reject":
		return Reject, nil
	case "block":
		return Block, nil
	}
	return Reject, errors.Wrapf(ErrInvalidOptions, "overflow policy %q", s)
}

// 优先级, 值越大越先取出
type PriorityFunc[T any] func(T) int

type Options struct {
	Kind         Kind
	Capacity     int            // Bounded必须>0, Priority可选, 0表示无上限
	Overflow     OverflowPolicy // 满时策略
	BlockTimeout time.Duration  // Block策略最长等待, 0表示只受ctx控制
}

func (o Options) Validate() error {
	if o.Capacity < 0 {
		return errors.Wrapf(ErrInvalidOptions, "capacity %d", o.Capacity)
	}
	switch o.Kind {
	case Unbounded:
		if o.Capacity != 0 {
			return errors.Wrap(ErrInvalidOptions, "unbounded mailbox with capacity")
		}
	case Bounded:
		if o.Capacity == 0 {
			return errors.Wrap(ErrInvalidOptions, "bounded mailbox needs capacity")
		}
	case Priority:
	default:
		return errors.Wrapf(ErrInvalidOptions, "kind %d", o.Kind)
	}
	if o.BlockTimeout < 0 {
		return errors.Wrapf(ErrInvalidOptions, "block timeout %v", o.BlockTimeout)
	}
	return nil
}
