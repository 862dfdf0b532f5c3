package main

import (
	"context"
	"flag"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/camilohaze/vela-sub010/pkg/xcommon"
	"github.com/camilohaze/vela-sub010/pkg/xexecutor"
	"github.com/camilohaze/vela-sub010/pkg/xlog"
	"github.com/camilohaze/vela-sub010/pkg/xscheduler"
)

var actors = flag.Int("actors", 100, "actor num")
var messages = flag.Int("messages", 1000, "messages per actor")
var work = flag.Int("work", 2000, "compute loop per message")
var workers = flag.String("workers", "1,"+strconv.Itoa(runtime.NumCPU()), "worker counts, comma separated")
var policy = flag.String("policy", "fair", "scheduling policy (fair|priority|fifo)")
var steal = flag.String("steal", "random", "steal strategy (random|round_robin)")
var timeout = flag.Duration("timeout", time.Minute, "timeout per run")
var level = flag.String("level", "info", "log level")

func parseWorkers(s string) ([]int, error) {
	var ns []int
	for _, f := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, err
		}
		ns = append(ns, n)
	}
	return ns, nil
}

func main() {
	flag.Parse()

	ctx := context.Background()
	defer xcommon.Recover(ctx)

	if err := xlog.SetLevel(*level); err != nil {
		panic(err)
	}
	ns, err := parseWorkers(*workers)
	if err != nil {
		panic(err)
	}
	p, err := xscheduler.ParsePolicy(*policy)
	if err != nil {
		panic(err)
	}
	st, err := xexecutor.ParseStealStrategy(*steal)
	if err != nil {
		panic(err)
	}

	NewBench(ctx, BenchArgs{
		Actors:   *actors,
		Messages: *messages,
		Work:     *work,
		Workers:  ns,
		Policy:   p,
		Steal:    st,
		Timeout:  *timeout,
	}).Start(ctx)
}
