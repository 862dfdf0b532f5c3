package xlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field) // 严重错误, 需要告警

	With(fields ...zap.Field) Logger
	Named(name string) Logger

	// 热路径上先判断级别, 避免构造字段
	Enabled(lvl zapcore.Level) bool

	Raw() *zap.Logger
}

type xlogger struct {
	*zap.Logger
}

func newLogger(l *zap.Logger) Logger {
	return &xlogger{Logger: l}
}

func (log *xlogger) With(fields ...zap.Field) Logger {
	return newLogger(log.Logger.With(fields...))
}

func (log *xlogger) Named(name string) Logger {
	return newLogger(log.Logger.Named(name))
}

func (log *xlogger) Enabled(lvl zapcore.Level) bool {
	return log.Core().Enabled(lvl)
}

func (log *xlogger) Raw() *zap.Logger { return log.Logger }
