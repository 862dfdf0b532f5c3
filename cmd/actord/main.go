package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/camilohaze/vela-sub010/cmd/actord/internal/workload"
	"github.com/camilohaze/vela-sub010/pkg/xactor"
	"github.com/camilohaze/vela-sub010/pkg/xcommon"
	"github.com/camilohaze/vela-sub010/pkg/xenv"
	"github.com/camilohaze/vela-sub010/pkg/xlog"
	"github.com/camilohaze/vela-sub010/pkg/xmetrics"
	"github.com/camilohaze/vela-sub010/pkg/xmonitor"
	"github.com/camilohaze/vela-sub010/pkg/xscheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

var configPath = flag.String("config", "", "yaml config path (optional, env VELA_* overrides)")
var producers = flag.Int("producers", 4, "workload producers")
var accounts = flag.Int("accounts", 8, "workload accounts")
var interval = flag.Duration("interval", 10*time.Millisecond, "producer send interval")
var loss = flag.Int("loss", 0, "latency actor loss packet 0~100")
var latency = flag.Duration("latency", 0, "latency actor max rand latency")
var report = flag.Duration("report", 5*time.Second, "workload report interval")

func main() {
	flag.Parse()

	ctx := context.Background()
	defer xcommon.Recover(ctx)

	cfg, err := xenv.Load(*configPath)
	if err != nil {
		panic(err)
	}
	if err := xlog.Init(cfg.LogOptions()); err != nil {
		panic(err)
	}
	defer func() { _ = xlog.Sync() }()
	opts, err := cfg.SchedulerOptions()
	if err != nil {
		panic(err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	opts.Metrics = xmetrics.NewPrometheus(reg)

	sched, err := xscheduler.New(ctx, opts)
	if err != nil {
		panic(err)
	}

	w, err := workload.New(sched, workload.Args{
		Producers:   *producers,
		Accounts:    *accounts,
		Interval:    *interval,
		Loss:        uint32(*loss),
		Latency:     *latency,
		ReportEvery: *report,
	})
	if err != nil {
		panic(err)
	}
	w.Start(ctx)

	if cfg.Monitor.Enable {
		mon, err := xmonitor.New(ctx, xmonitor.Args{
			Addr:     cfg.Monitor.Addr,
			Interval: cfg.Monitor.Interval,
			Source:   sched,
			Gatherer: reg,
		})
		if err != nil {
			panic(err)
		}
		defer func() { _ = mon.Close(ctx) }()
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if *configPath != "" {
		// 只有日志级别支持热更新, 其余配置需重启
		err := xenv.Watch(watchCtx, *configPath, func(ctx context.Context, c *xenv.Config) {
			if err := xlog.SetLevel(c.Log.Level); err != nil {
				xlog.Get(ctx).Warn("Set log level failed.", zap.Error(err))
				return
			}
			xlog.Get(ctx).Info("Log level changed.", zap.String("level", xlog.GetLevel()))
		})
		if err != nil {
			xlog.Get(ctx).Warn("Watch config failed.", zap.Error(err))
		}
	}

	xcommon.UntilSignal(ctx)

	if err := w.Stop(); err != nil {
		xlog.Get(ctx).Warn("Workload stop failed.", zap.Error(err))
	}
	sums, err := w.Sums(ctx)
	if err != nil {
		xlog.Get(ctx).Warn("Workload sums failed.", zap.Error(err))
	}
	actors := sched.AllActorMetrics()
	if err := sched.Shutdown(cfg.Scheduler.ShutdownTimeout); err != nil {
		xlog.Get(ctx).Warn("Scheduler shutdown failed.", zap.Error(err))
	}

	printReport(ctx, sched.Metrics(), actors, sums)
}

func printReport(ctx context.Context, m xscheduler.SchedulerMetrics, actors []xactor.ActorMetrics, sums []*workload.SumResp) {
	xcommon.PrintTable(ctx,
		[]string{"policy", "spawned", "stopped", "messages", "tasks", "stolen", "avg wait", "uptime"},
		[][]string{{
			m.Policy.String(),
			fmt.Sprint(m.TotalSpawned),
			fmt.Sprint(m.TotalStopped),
			fmt.Sprint(m.TotalMessages),
			fmt.Sprint(m.Executor.Completed),
			fmt.Sprint(m.Executor.Stolen),
			m.Executor.AvgWait.String(),
			m.Uptime.Truncate(time.Millisecond).String(),
		}})

	rows := make([][]string, 0, len(actors))
	for _, a := range actors {
		rows = append(rows, []string{
			a.Name,
			fmt.Sprint(a.Processed),
			fmt.Sprint(a.Errors),
			fmt.Sprintf("%.1f", a.MessageRate),
			a.AvgProcessing.String(),
		})
	}
	xcommon.PrintTable(ctx, []string{"actor", "processed", "errors", "rate/s", "avg processing"}, rows)

	rows = rows[:0]
	for i, s := range sums {
		rows = append(rows, []string{fmt.Sprintf("account-%d", i), fmt.Sprint(s.Count), fmt.Sprint(s.Total), s.AvgDelay.String()})
	}
	xcommon.PrintTable(ctx, []string{"account", "count", "total", "avg delay"}, rows)
}
