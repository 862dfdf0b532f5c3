// Package xactor actor模型
// 特性:
//   1.actor私有状态只在Receive中访问, 同一actor不会并发执行
//   2.Ref只持有路由能力(邮箱+生命周期), 不暴露状态
//   3.MessageLoop运行在共享线程池之上, 处理一批消息后让出
package xactor

import (
	"context"
	"reflect"
)

// 唯一必须实现的方法
// 返回error或panic视为ProcessingError
type Actor interface {
	Receive(rc *Context) error
}

// 可选生命周期钩子, 未实现视为空操作
type (
	PreStarter interface {
		PreStart(ctx context.Context) error
	}
	PostStopper interface {
		PostStop(ctx context.Context)
	}
	PreRestarter interface {
		PreRestart(ctx context.Context, err error)
	}
	PostRestarter interface {
		PostRestart(ctx context.Context, err error)
	}
)

type Factory func() Actor

// 函数形式的actor
type ReceiveFunc func(rc *Context) error

func (fn ReceiveFunc) Receive(rc *Context) error {
	return fn(rc)
}

// actor类型名, 用于生成默认名称
func TypeName(a Actor) string {
	t := reflect.TypeOf(a)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "Actor"
	}
	return t.Name()
}
