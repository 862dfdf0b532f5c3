package xlog_test

import (
	"context"
	"testing"

	"github.com/camilohaze/vela-sub010/pkg/xlog"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestXLOG(t *testing.T) {
	ctx := context.Background()

	ctx = xlog.NewContext(ctx, xlog.Actor("Counter-1"))
	xlog.Get(ctx).Debug("日志测试")
	ctx = xlog.NewContext(ctx, xlog.Worker(3))
	xlog.Get(ctx).Info("日志测试")
	xlog.Get(ctx).With(zap.String("k", "v")).Warn("日志测试")
	xlog.Get(context.TODO()).Error("日志测试")
}

func TestSetLevel(t *testing.T) {
	defer func() { require.NoError(t, xlog.SetLevel("debug")) }()

	require.NoError(t, xlog.SetLevel("WARN"))
	require.Equal(t, "warn", xlog.GetLevel())

	require.Error(t, xlog.SetLevel("loud"))
	require.Equal(t, "warn", xlog.GetLevel())
}

func TestInit(t *testing.T) {
	defer func() { require.NoError(t, xlog.Init(xlog.Options{Level: "debug", Stdout: true})) }()

	require.NoError(t, xlog.Init(xlog.Options{Level: "info", JSON: true, Stdout: false}))
	require.Equal(t, "info", xlog.GetLevel())
	xlog.Get(context.Background()).Info("json encoder", zap.Int("n", 1))

	require.Error(t, xlog.Init(xlog.Options{Level: "nope"}))
}

func TestModuleEnabled(t *testing.T) {
	defer func() { require.NoError(t, xlog.SetLevel("debug")) }()

	ctx := xlog.WithModule(context.Background(), "executor")
	ctx = xlog.WithModule(ctx, "worker")
	l := xlog.Get(ctx)
	l.Info("named logger")

	require.NoError(t, xlog.SetLevel("warn"))
	require.False(t, l.Enabled(zapcore.InfoLevel))
	require.True(t, l.Enabled(zapcore.ErrorLevel))
	require.NoError(t, xlog.SetLevel("debug"))
	require.True(t, l.Enabled(zapcore.DebugLevel))
}
