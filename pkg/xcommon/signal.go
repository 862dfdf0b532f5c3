package xcommon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/camilohaze/vela-sub010/pkg/xlog"
	"go.uber.org/zap"
)

// 阻塞直到收到退出信号或ctx结束, ctx结束时返回nil
func UntilSignal(ctx context.Context, sigs ...os.Signal) os.Signal {
	if len(sigs) == 0 {
		sigs = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	defer signal.Stop(ch)

	select {
	case sig := <-ch:
		xlog.Get(ctx).Info("Recv exit signal.", zap.Stringer("signal", sig))
		return sig
	case <-ctx.Done():
		return nil
	}
}
