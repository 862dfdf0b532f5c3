package xmailbox

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

var (
	ErrMailboxFull    = errors.New("mailbox full")
	ErrMailboxClosed  = errors.New("mailbox closed")
	ErrInvalidOptions = errors.New("invalid mailbox options")
)

// 邮箱统计
type Stats struct {
	Sent     uint64 // 成功投递
	Received uint64 // 成功取出
	Rejected uint64 // 容量不足被拒绝
}

// 线程安全的消息队列
// 多个发送者并发Put, 单个消费者Get
// 同一发送者的消息保证FIFO
type Mailbox[T any] struct {
	opts Options

	mu       sync.Mutex
	q        queue[T]
	closed   bool
	last     T    // Seal投递的终止消息
	hasLast  bool // last尚未被取出
	doneOnce sync.Once

	notEmpty chan struct{} // 有消息可取
	notFull  chan struct{} // 有空位可放
	done     chan struct{} // 关闭

	sent     atomic.Uint64
	received atomic.Uint64
	rejected atomic.Uint64
}

// 创建邮箱, Priority类型必须提供prio
func New[T any](opts Options, prio PriorityFunc[T]) (*Mailbox[T], error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	box := &Mailbox[T]{
		opts:     opts,
		notEmpty: make(chan struct{}, 1),
		notFull:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	switch opts.Kind {
	case Priority:
		if prio == nil {
			return nil, errors.Wrap(ErrInvalidOptions, "priority mailbox needs a priority func")
		}
		box.q = newPriorityQueue(prio)
	default:
		box.q = newRing[T](opts.Capacity)
	}
	return box, nil
}

func NewUnbounded[T any]() *Mailbox[T] {
	box, _ := New[T](Options{Kind: Unbounded}, nil)
	return box
}

func NewBounded[T any](capacity int) (*Mailbox[T], error) {
	return New[T](Options{Kind: Bounded, Capacity: capacity}, nil)
}

func NewPriority[T any](prio PriorityFunc[T]) (*Mailbox[T], error) {
	return New(Options{Kind: Priority}, prio)
}

func (box *Mailbox[T]) Kind() Kind {
	return box.opts.Kind
}

// 0表示无上限
func (box *Mailbox[T]) Capacity() int {
	return box.opts.Capacity
}

func (box *Mailbox[T]) Len() int {
	box.mu.Lock()
	defer box.mu.Unlock()
	return box.q.len()
}

func (box *Mailbox[T]) IsEmpty() bool {
	box.mu.Lock()
	defer box.mu.Unlock()
	return box.q.len() == 0 && !box.hasLast
}

func (box *Mailbox[T]) IsFull() bool {
	box.mu.Lock()
	defer box.mu.Unlock()
	return box.fullLocked()
}

func (box *Mailbox[T]) IsClosed() bool {
	box.mu.Lock()
	defer box.mu.Unlock()
	return box.closed
}

func (box *Mailbox[T]) Stats() Stats {
	return Stats{
		Sent:     box.sent.Load(),
		Received: box.received.Load(),
		Rejected: box.rejected.Load(),
	}
}

func (box *Mailbox[T]) fullLocked() bool {
	return box.opts.Capacity > 0 && box.q.len() >= box.opts.Capacity
}

// 投递消息, 不等待处理
// Reject策略下满了直接返回ErrMailboxFull, Block策略下最多等待BlockTimeout
func (box *Mailbox[T]) Put(msg T) error {
	return box.PutContext(context.Background(), msg)
}

func (box *Mailbox[T]) PutContext(ctx context.Context, msg T) error {
	var timeout <-chan time.Time
	for {
		box.mu.Lock()
		if box.closed {
			box.mu.Unlock()
			return ErrMailboxClosed
		}
		if !box.fullLocked() {
			box.q.push(msg)
			more := !box.fullLocked()
			box.mu.Unlock()

			box.sent.Inc()
			signal(box.notEmpty)
			if more {
				// 唤醒其他等待中的发送者
				signal(box.notFull)
			}
			return nil
		}
		box.mu.Unlock()

		if box.opts.Overflow != Block {
			box.rejected.Inc()
			return ErrMailboxFull
		}

		if timeout == nil && box.opts.BlockTimeout > 0 {
			timer := time.NewTimer(box.opts.BlockTimeout)
			defer timer.Stop()
			timeout = timer.C
		}
		select {
		case <-box.notFull:
		case <-box.done:
		case <-timeout:
			box.rejected.Inc()
			return errors.Wrapf(ErrMailboxFull, "blocked for %v", box.opts.BlockTimeout)
		case <-ctx.Done():
			box.rejected.Inc()
			return errors.Wrap(ErrMailboxFull, ctx.Err().Error())
		}
	}
}

// 取出一条消息, 为空时挂起直到有消息/关闭/ctx结束
func (box *Mailbox[T]) Get(ctx context.Context) (T, error) {
	for {
		msg, ok, closed := box.take()
		if ok {
			return msg, nil
		}
		if closed {
			return msg, ErrMailboxClosed
		}
		select {
		case <-box.notEmpty:
		case <-box.done:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// 非阻塞取出
func (box *Mailbox[T]) TryGet() (T, bool) {
	msg, ok, _ := box.take()
	return msg, ok
}

func (box *Mailbox[T]) take() (msg T, ok bool, closed bool) {
	box.mu.Lock()
	if v, has := box.q.pop(); has {
		more := box.q.len() > 0 || box.hasLast
		box.mu.Unlock()

		box.received.Inc()
		signal(box.notFull)
		if more {
			signal(box.notEmpty)
		}
		return v, true, false
	}
	if box.hasLast {
		// 终止消息最后取出
		v := box.last
		var zero T
		box.last = zero
		box.hasLast = false
		box.mu.Unlock()
		return v, true, false
	}
	closed = box.closed
	box.mu.Unlock()
	return msg, false, closed
}

// 关闭邮箱并投递终止消息
// 关闭前已接受的消息全部先于last被取出, 不受容量和优先级影响
func (box *Mailbox[T]) Seal(last T) error {
	box.mu.Lock()
	if box.closed {
		box.mu.Unlock()
		return ErrMailboxClosed
	}
	box.closed = true
	box.last = last
	box.hasLast = true
	box.mu.Unlock()

	signal(box.notEmpty)
	box.closeDone()
	return nil
}

// 关闭邮箱, 已有消息仍可取出
func (box *Mailbox[T]) Close() {
	box.mu.Lock()
	box.closed = true
	box.mu.Unlock()
	box.closeDone()
}

func (box *Mailbox[T]) closeDone() {
	box.doneOnce.Do(func() { close(box.done) })
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
