package xlog

import (
	"context"

	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

// 派生子logger并绑定到新的context
func NewContext(ctx context.Context, fields ...zapcore.Field) context.Context {
	return context.WithValue(ctx, ctxKey{}, Get(ctx).With(fields...))
}

// 按模块派生, logger名称为 parent.module
func WithModule(ctx context.Context, module string) context.Context {
	return context.WithValue(ctx, ctxKey{}, Get(ctx).Named(module))
}

func Get(ctx context.Context) Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(Logger); ok {
			return l
		}
	}
	return gLogger
}

