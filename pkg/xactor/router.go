package xactor

import (
	"reflect"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// 按消息类型分发
type Handler func(rc *Context, msg any) error

type HandlerArgs struct {
	H Handler
	T reflect.Type
}

// M 消息
func HandlerWrap[M any](fn func(rc *Context, m *M) error) HandlerArgs {
	return HandlerArgs{func(rc *Context, msg any) error {
		m, ok := msg.(*M)
		if !ok {
			return errors.Errorf("handler msg[%v] not type %v", reflect.TypeOf(msg), reflect.TypeOf(new(M)))
		}
		return fn(rc, m)
	}, reflect.TypeOf(new(M))}
}

// M1 request
// M2 response, 自动应答Ask
func RequestWrap[M1 any, M2 any](fn func(rc *Context, r *M1) (*M2, error)) HandlerArgs {
	return HandlerArgs{func(rc *Context, msg any) error {
		r, ok := msg.(*M1)
		if !ok {
			return errors.Errorf("request handler req[%v] not type %v", reflect.TypeOf(msg), reflect.TypeOf(new(M1)))
		}
		resp, err := fn(rc, r)
		if err != nil {
			return err
		}
		if err := rc.Reply(resp); err != nil && !errors.Is(err, ErrNoReply) {
			return err
		}
		return nil
	}, reflect.TypeOf(new(M1))}
}

// 按类型分发消息的Actor实现, 可嵌入业务actor
type Router struct {
	handlers map[reflect.Type]Handler
}

func NewRouter(args ...HandlerArgs) (*Router, error) {
	r := &Router{handlers: make(map[reflect.Type]Handler, len(args))}
	for _, arg := range args {
		if r.handlers[arg.T] != nil {
			return nil, errors.Wrapf(ErrDuplicateHandler, "message[%v] is repeated", arg.T)
		}
		r.handlers[arg.T] = arg.H
	}
	return r, nil
}

func (r *Router) Receive(rc *Context) error {
	t := reflect.TypeOf(rc.Message())
	h := r.handlers[t]
	if h == nil {
		rc.Logger().Warn("Handler is nil", zap.Any("msg", t))
		if rc.env.reply != nil {
			rc.replied = true
			rc.env.respond(nil, errors.Wrapf(ErrUnhandledMessage, "%v", t))
		}
		return nil
	}
	return h(rc, rc.Message())
}
