package xlog

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 日志配置
type Options struct {
	Level  string // debug|info|warn|error
	JSON   bool   // true: json格式(prod), false: 带颜色的终端格式(dev)
	Stdout bool   // false: 关闭标准输出
}

var (
	gLevel  = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	gLogger Logger
)

func init() {
	gLogger = initLogger(Options{Level: "debug", Stdout: true})
}

// 初始化全局logger, 需在业务启动前调用
func Init(opts Options) error {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}
	gLevel.SetLevel(lvl)
	gLogger = initLogger(opts)
	return nil
}

// 运行时修改日志级别(热更新)
func SetLevel(level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	gLevel.SetLevel(lvl)
	return nil
}

func GetLevel() string {
	return gLevel.Level().String()
}

// 空字符串视为info
func ParseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return lvl, errors.Wrapf(err, "invalid log level %q", level)
	}
	return lvl, nil
}

func defaultOptions() []zap.Option {
	return []zap.Option{
		zap.WithCaller(true),
		// DPanic时自动增加Stacktrace
		zap.AddStacktrace(zap.NewAtomicLevelAt(zap.DPanicLevel)),
	}
}

func initLogger(opts Options) Logger {
	writerSinker := zapcore.Lock(os.Stdout)
	if !opts.Stdout {
		// 关闭日志标准输出
		writerSinker = zapcore.Lock(zapcore.NewMultiWriteSyncer())
	}
	core := zapcore.NewCore(newEncoder(opts.JSON), writerSinker, gLevel)
	return newLogger(zap.New(core, defaultOptions()...))
}

// 退出前刷新缓冲
func Sync() error {
	return gLogger.Raw().Sync()
}
