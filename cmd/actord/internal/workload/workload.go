// Package workload actord的演示负载
// producer -> latency -> accumulator, 定期Ask汇总
package workload

import (
	"context"
	"fmt"
	"time"

	"github.com/camilohaze/vela-sub010/pkg/xactor"
	"github.com/camilohaze/vela-sub010/pkg/xcommon"
	"github.com/camilohaze/vela-sub010/pkg/xlatency"
	"github.com/camilohaze/vela-sub010/pkg/xlog"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Args struct {
	Producers   int
	Accounts    int
	Interval    time.Duration // 每个producer的发送间隔
	Loss        uint32
	Latency     time.Duration
	ReportEvery time.Duration
}

type Workload struct {
	args     Args
	rt       xactor.Runtime
	accounts []*xactor.Ref
	proxies  []*xactor.Ref

	cancel context.CancelFunc
	group  *errgroup.Group
}

// 账户actor, 按类型分发
type Accumulator struct {
	*xactor.Router
	count    int64
	total    int64
	allDelay time.Duration
}

func NewAccumulator() xactor.Actor {
	a := &Accumulator{}
	router, err := xactor.NewRouter(
		xactor.HandlerWrap(a.Add),
		xactor.RequestWrap(a.Sum),
	)
	if err != nil {
		panic(err)
	}
	a.Router = router
	return a
}

func (a *Accumulator) Add(rc *xactor.Context, req *AddReq) error {
	if req.Amount < 0 {
		return errors.Errorf("producer %d negative amount %d", req.Producer, req.Amount)
	}
	a.count++
	a.total += req.Amount
	a.allDelay += time.Since(req.SentAt)
	return nil
}

func (a *Accumulator) Sum(rc *xactor.Context, req *SumReq) (*SumResp, error) {
	resp := &SumResp{Count: a.count, Total: a.total}
	if a.count > 0 {
		resp.AvgDelay = a.allDelay / time.Duration(a.count)
	}
	return resp, nil
}

func New(rt xactor.Runtime, args Args) (*Workload, error) {
	if args.Producers <= 0 || args.Accounts <= 0 {
		return nil, errors.Errorf("invalid workload producers %d accounts %d", args.Producers, args.Accounts)
	}
	if args.Interval <= 0 {
		args.Interval = 10 * time.Millisecond
	}
	w := &Workload{args: args, rt: rt}
	for i := 0; i < args.Accounts; i++ {
		// 账户优先级高于转发层
		acc, err := rt.Spawn(NewAccumulator, xactor.WithName(fmt.Sprintf("account-%d", i)), xactor.WithPriority(1))
		if err != nil {
			return nil, err
		}
		proxy, err := rt.Spawn(xlatency.Factory(xlatency.LatencyMockArgs{
			Target:  acc,
			Loss:    args.Loss,
			Latency: args.Latency,
		}), xactor.WithName(fmt.Sprintf("latency-%d", i)))
		if err != nil {
			return nil, err
		}
		w.accounts = append(w.accounts, acc)
		w.proxies = append(w.proxies, proxy)
	}
	return w, nil
}

func (w *Workload) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.group, ctx = errgroup.WithContext(ctx)
	for i := 0; i < w.args.Producers; i++ {
		id := i
		w.group.Go(func() error {
			defer xcommon.Recover(ctx)
			return w.produce(ctx, id)
		})
	}
	if w.args.ReportEvery > 0 {
		w.group.Go(func() error {
			defer xcommon.Recover(ctx)
			w.reportLoop(ctx)
			return nil
		})
	}
	xlog.Get(ctx).Info("Workload start success.", zap.Int("producers", w.args.Producers), zap.Int("accounts", len(w.accounts)))
}

func (w *Workload) produce(ctx context.Context, id int) error {
	ticker := time.NewTicker(w.args.Interval)
	defer ticker.Stop()
	var n int64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		n++
		proxy := w.proxies[int(n)%len(w.proxies)]
		if err := proxy.Send(&AddReq{Producer: id, Amount: n, SentAt: time.Now()}); err != nil {
			if errors.Is(err, xactor.ErrActorNotRunning) {
				return nil
			}
			xlog.Get(ctx).Warn("Producer send failed.", zap.Int("producer", id), zap.Error(err))
		}
	}
}

func (w *Workload) reportLoop(ctx context.Context) {
	ticker := time.NewTicker(w.args.ReportEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		sums, err := w.Sums(ctx)
		if err != nil {
			xlog.Get(ctx).Warn("Workload report failed.", zap.Error(err))
			continue
		}
		var count, total int64
		for _, s := range sums {
			count += s.Count
			total += s.Total
		}
		xlog.Get(ctx).Info("Workload report.", zap.Int64("count", count), zap.Int64("total", total))
	}
}

// 按账户顺序返回汇总
func (w *Workload) Sums(ctx context.Context) ([]*SumResp, error) {
	sums := make([]*SumResp, 0, len(w.accounts))
	for _, acc := range w.accounts {
		ctx, cancel := context.WithTimeout(ctx, time.Second)
		resp, err := xactor.AskAs[*SumResp](ctx, acc, &SumReq{})
		cancel()
		if err != nil {
			return nil, errors.WithMessagef(err, "ask %s", acc.Name())
		}
		sums = append(sums, resp)
	}
	return sums, nil
}

func (w *Workload) Accounts() []*xactor.Ref {
	return w.accounts
}

// 停止producer, actor由scheduler统一关闭
func (w *Workload) Stop() error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	return w.group.Wait()
}
