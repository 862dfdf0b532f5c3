package main

import (
	"context"
	"fmt"
	"time"

	"github.com/camilohaze/vela-sub010/pkg/xactor"
	"github.com/camilohaze/vela-sub010/pkg/xcommon"
	"github.com/camilohaze/vela-sub010/pkg/xexecutor"
	"github.com/camilohaze/vela-sub010/pkg/xlog"
	"github.com/camilohaze/vela-sub010/pkg/xscheduler"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type BenchArgs struct {
	Actors   int
	Messages int
	Work     int // 每条消息的计算量
	Workers  []int
	Policy   xscheduler.Policy
	Steal    xexecutor.StealStrategy
	Timeout  time.Duration
}

type BenchResult struct {
	Workers    int
	Elapsed    time.Duration
	Messages   int64
	Stolen     uint64
	Throughput float64
}

type Bench struct {
	arg *BenchArgs
}

func NewBench(ctx context.Context, arg BenchArgs) *Bench {
	return &Bench{arg: &arg}
}

// 模拟计算
type worker struct {
	work int
	done *atomic.Int64
	sum  uint64
}

func (w *worker) Receive(rc *xactor.Context) error {
	n, _ := rc.Message().(int)
	x := uint64(n)
	for i := 0; i < w.work; i++ {
		x = x*6364136223846793005 + 1442695040888963407
	}
	w.sum += x
	w.done.Inc()
	return nil
}

func (b *Bench) runOnce(ctx context.Context, workers int) (BenchResult, error) {
	opts := xscheduler.DefaultOptions()
	opts.Policy = b.arg.Policy
	opts.Executor.MinThreads, opts.Executor.MaxThreads = workers, workers
	opts.Executor.Steal = b.arg.Steal
	sched, err := xscheduler.New(ctx, opts)
	if err != nil {
		return BenchResult{}, err
	}
	defer func() { _ = sched.Shutdown(b.arg.Timeout) }()

	var done atomic.Int64
	refs := make([]*xactor.Ref, 0, b.arg.Actors)
	for i := 0; i < b.arg.Actors; i++ {
		ref, err := sched.Spawn(func() xactor.Actor { return &worker{work: b.arg.Work, done: &done} })
		if err != nil {
			return BenchResult{}, err
		}
		refs = append(refs, ref)
	}

	total := int64(b.arg.Actors * b.arg.Messages)
	start := time.Now()
	for m := 0; m < b.arg.Messages; m++ {
		for _, ref := range refs {
			if err := ref.Send(m); err != nil {
				return BenchResult{}, err
			}
		}
	}
	deadline := time.Now().Add(b.arg.Timeout)
	for done.Load() < total {
		if time.Now().After(deadline) {
			return BenchResult{}, errors.Errorf("bench timeout, done %d/%d", done.Load(), total)
		}
		time.Sleep(time.Millisecond)
	}
	elapsed := time.Since(start)
	stats := sched.Executor().Stats()
	return BenchResult{
		Workers:    workers,
		Elapsed:    elapsed,
		Messages:   total,
		Stolen:     stats.Stolen,
		Throughput: float64(total) / elapsed.Seconds(),
	}, nil
}

func (b *Bench) Start(ctx context.Context) []BenchResult {
	results := make([]BenchResult, 0, len(b.arg.Workers))
	for _, n := range b.arg.Workers {
		r, err := b.runOnce(ctx, n)
		if err != nil {
			xlog.Get(ctx).Warn("Bench run failed.", zap.Int("workers", n), zap.Error(err))
			continue
		}
		xlog.Get(ctx).Info("Bench run success.", zap.Int("workers", n), zap.Duration("elapsed", r.Elapsed))
		results = append(results, r)
	}
	b.print(ctx, results)
	return results
}

func (b *Bench) print(ctx context.Context, results []BenchResult) {
	if len(results) == 0 {
		return
	}
	base := results[0].Elapsed
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			fmt.Sprint(r.Workers),
			fmt.Sprint(r.Messages),
			r.Elapsed.Truncate(time.Microsecond).String(),
			fmt.Sprintf("%.0f", r.Throughput),
			fmt.Sprint(r.Stolen),
			fmt.Sprintf("%.2fx", xcommon.SafeDivision(float64(base), float64(r.Elapsed))),
		})
	}
	xcommon.PrintTable(ctx, []string{"workers", "messages", "elapsed", "msg/s", "stolen", "speedup"}, rows)
}
