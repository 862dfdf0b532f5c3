package xscheduler

import (
	"sort"
	"time"

	"github.com/camilohaze/vela-sub010/pkg/xactor"
	"github.com/camilohaze/vela-sub010/pkg/xexecutor"
)

type SchedulerMetrics struct {
	State         State
	Policy        Policy
	ActiveActors  int
	TotalSpawned  uint64
	TotalStopped  uint64
	TotalMessages uint64
	MaxActors     int
	Uptime        time.Duration
	Executor      xexecutor.Stats
}

// 按优先级分布: >0 high, 0 normal, <0 low
type PriorityDistribution struct {
	High   int `json:"high"`
	Normal int `json:"normal"`
	Low    int `json:"low"`
}

func (s *Scheduler) Metrics() SchedulerMetrics {
	es := s.entries()
	total := s.stoppedMsgs.Load()
	for _, e := range es {
		total += e.loop.Metrics().Processed
	}
	return SchedulerMetrics{
		State:         s.State(),
		Policy:        s.opts.Policy,
		ActiveActors:  len(es),
		TotalSpawned:  s.totalSpawned.Load(),
		TotalStopped:  s.totalStopped.Load(),
		TotalMessages: total,
		MaxActors:     s.opts.MaxActors,
		Uptime:        time.Since(s.startedAt),
		Executor:      s.exec.Stats(),
	}
}

func (s *Scheduler) ActorMetrics(name string) (xactor.ActorMetrics, error) {
	e, err := s.lookup(name)
	if err != nil {
		return xactor.ActorMetrics{}, err
	}
	return e.loop.Metrics(), nil
}

// 按名称排序
func (s *Scheduler) AllActorMetrics() []xactor.ActorMetrics {
	es := s.entries()
	ms := make([]xactor.ActorMetrics, 0, len(es))
	for _, e := range es {
		ms = append(ms, e.loop.Metrics())
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i].Name < ms[j].Name })
	return ms
}

func (s *Scheduler) PriorityDistribution() PriorityDistribution {
	var d PriorityDistribution
	for _, e := range s.entries() {
		switch {
		case e.priority > 0:
			d.High++
		case e.priority < 0:
			d.Low++
		default:
			d.Normal++
		}
	}
	return d
}
