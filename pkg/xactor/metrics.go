package xactor

import (
	"time"

	"github.com/camilohaze/vela-sub010/pkg/xcommon"
	"github.com/camilohaze/vela-sub010/pkg/xmailbox"
)

// actor运行指标, 只由loop写入
type ActorMetrics struct {
	Name          string
	Path          string
	State         State
	Paused        bool
	Processed     uint64 // 已完成处理(含失败)
	Errors        uint64
	Restarts      uint64
	Timeouts      uint64
	Cycles        uint64 // 调度轮次
	MailboxLen    int
	Mailbox       xmailbox.Stats
	SpawnedAt     time.Time
	LastActivity  time.Time
	Uptime        time.Duration
	MessageRate   float64 // 条/秒
	AvgProcessing time.Duration
}

func (l *Loop) Metrics() ActorMetrics {
	processed := l.processed.Load()
	spawnedAt := l.spawnedAt.Load()
	m := ActorMetrics{
		Name:          l.name,
		Path:          l.ref.path,
		State:         l.life.load(),
		Paused:        l.paused.Load(),
		Processed:     processed,
		Errors:        l.errs.Load(),
		Restarts:      l.restarts.Load(),
		Timeouts:      l.timeouts.Load(),
		Cycles:        l.cycles.Load(),
		MailboxLen:    l.box.Len(),
		Mailbox:       l.box.Stats(),
		SpawnedAt:     spawnedAt,
		LastActivity:  l.lastActivity.Load(),
		AvgProcessing: time.Duration(xcommon.SafeDivision(l.busyNanos.Load(), int64(processed))),
	}
	if !spawnedAt.IsZero() {
		m.Uptime = time.Since(spawnedAt)
		m.MessageRate = xcommon.SafeDivision(float64(processed), m.Uptime.Seconds())
	}
	return m
}
