package xcommon

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/camilohaze/vela-sub010/pkg/xlog"
	"go.uber.org/zap"
)

// 通过waitGroup控制协程
// defer wg.Done(), 不可在套一层func, recover不可跳过多层defer函数
type WaitGroup struct {
	sync.WaitGroup
}

func (wg *WaitGroup) Add(n int) {
	wg.WaitGroup.Add(n)
}

func (wg *WaitGroup) Done(ctx context.Context) {
	if r := recover(); r != nil {
		xlog.Get(ctx).Error("Goroutine panic", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		panic(r)
	}
	wg.WaitGroup.Done()
}

func (wg *WaitGroup) Wait() {
	wg.WaitGroup.Wait()
}

// 带超时的Wait, 超时返回false
func (wg *WaitGroup) WaitContext(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		wg.WaitGroup.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// defer Recover(), 不可在套一层func, recover不可跳过多层defer函数
func Recover(ctx context.Context) {
	if r := recover(); r != nil {
		xlog.Get(ctx).Error("Goroutine panic", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		panic(r)
	}
}

// 执行fn并捕获panic, 不再向上抛出
// recovered为nil表示fn正常返回
func CatchPanic(fn func()) (recovered any, stack []byte) {
	defer func() {
		if r := recover(); r != nil {
			recovered = r
			stack = debug.Stack()
		}
	}()
	fn()
	return nil, nil
}
