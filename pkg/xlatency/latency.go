// Package xlatency 延迟/丢包模拟actor, 放在两个actor之间转发消息
package xlatency

import (
	"context"
	"math/rand"
	"time"

	"github.com/camilohaze/vela-sub010/pkg/xactor"
	"github.com/camilohaze/vela-sub010/pkg/xlog"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var ErrNoTarget = errors.New("latency target is nil")

type LatencyMockArgs struct {
	Target  *xactor.Ref // 可为空, 通过SetTargetReq设置
	Loss    uint32      // 丢失率 0~100
	Latency time.Duration
	Seed    int64 // 0表示按时间
}

// 替换转发目标
type SetTargetReq struct {
	Target *xactor.Ref
}

// Ask获取统计
type StatsReq struct{}

type Stats struct {
	Packets   uint64
	Lost      uint64
	Forwarded uint64
	Pending   int64
	AllDelay  time.Duration
}

func (s Stats) AverageDelay() time.Duration {
	transfer := s.Packets - s.Lost
	if transfer == 0 {
		return 0
	}
	return s.AllDelay / time.Duration(transfer)
}

type LatencyActor struct {
	loss    uint32
	latency time.Duration
	rnd     *rand.Rand
	target  *xactor.Ref
	seq     uint64
	timers  map[uint64]*time.Timer

	packets   atomic.Uint64
	lost      atomic.Uint64
	forwarded atomic.Uint64
	pending   atomic.Int64
	allDelay  atomic.Duration
}

func NewLatencyActor(arg LatencyMockArgs) *LatencyActor {
	seed := arg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &LatencyActor{
		loss:    arg.Loss,
		latency: arg.Latency,
		rnd:     rand.New(rand.NewSource(seed)),
		target:  arg.Target,
		timers:  make(map[uint64]*time.Timer),
	}
}

func Factory(arg LatencyMockArgs) xactor.Factory {
	return func() xactor.Actor { return NewLatencyActor(arg) }
}

func (l *LatencyActor) Receive(rc *xactor.Context) error {
	switch m := rc.Message().(type) {
	case *SetTargetReq:
		l.target = m.Target
		return nil
	case *StatsReq:
		return rc.Reply(l.Stats())
	case fired:
		// 计时器回调内不访问actor状态, 到期通知通过消息回到loop
		delete(l.timers, m.seq)
		return nil
	}

	if l.target == nil {
		return ErrNoTarget
	}
	if l.isLoss() {
		return nil
	}
	l.extend(rc, l.target, rc.Message(), rc.Sender())
	return nil
}

type fired struct {
	seq uint64
}

func (l *LatencyActor) isLoss() bool {
	l.packets.Inc()
	if l.loss > 0 && l.rnd.Int31n(100) < int32(l.loss) {
		l.lost.Inc()
		return true
	}
	return false
}

func (l *LatencyActor) randLatency() time.Duration {
	if l.latency <= 0 {
		return 0
	}
	d := time.Duration(l.rnd.Int63n(int64(l.latency)))
	l.allDelay.Add(d)
	return d
}

// 延迟到期后直接投递到目标, 不经过本actor的loop
func (l *LatencyActor) extend(rc *xactor.Context, target *xactor.Ref, payload any, sender *xactor.Ref) {
	delay := l.randLatency()
	if delay == 0 {
		l.forward(rc.Context(), target, payload, sender)
		return
	}
	self := rc.Self()
	ctx := rc.Context()
	l.seq++
	seq := l.seq
	l.pending.Inc()
	l.timers[seq] = time.AfterFunc(delay, func() {
		l.forward(ctx, target, payload, sender)
		l.pending.Dec()
		_ = self.Send(fired{seq: seq})
	})
}

func (l *LatencyActor) forward(ctx context.Context, target *xactor.Ref, payload any, sender *xactor.Ref) {
	if err := target.SendFrom(payload, sender); err != nil {
		xlog.Get(ctx).Debug("Latency forward failed.", zap.Error(err), zap.String("target", target.Name()))
		return
	}
	l.forwarded.Inc()
}

func (l *LatencyActor) Stats() Stats {
	return Stats{
		Packets:   l.packets.Load(),
		Lost:      l.lost.Load(),
		Forwarded: l.forwarded.Load(),
		Pending:   l.pending.Load(),
		AllDelay:  l.allDelay.Load(),
	}
}

// 未到期的消息直接丢弃
func (l *LatencyActor) PostStop(ctx context.Context) {
	for _, t := range l.timers {
		if t.Stop() {
			l.pending.Dec()
			l.lost.Inc()
		}
	}
	s := l.Stats()
	xlog.Get(ctx).Info("Latency actor stop.",
		zap.Uint64("packets", s.Packets),
		zap.Uint64("lost", s.Lost),
		zap.Uint64("forwarded", s.Forwarded),
		zap.Duration("all delay", s.AllDelay),
		zap.Duration("average delay", s.AverageDelay()))
}
