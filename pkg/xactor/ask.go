package xactor

import (
	"context"
	"reflect"

	"github.com/pkg/errors"
)

// 同步请求, 阻塞等待actor通过Context.Reply应答
// 处理失败时返回ProcessingError
func Ask(ctx context.Context, ref *Ref, payload any) (any, error) {
	env := newEnvelope(payload, nil, 0)
	env.reply = make(chan result, 1)
	if err := ref.deliver(env); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "cancel request")
	case r := <-env.reply:
		return r.resp, r.err
	}
}

// 同步请求(模板)
func AskAs[M any](ctx context.Context, ref *Ref, payload any) (M, error) {
	var zero M
	resp, err := Ask(ctx, ref, payload)
	if err != nil {
		return zero, err
	}
	m, ok := resp.(M)
	if !ok {
		return zero, errors.Wrapf(ErrUnexpectedResponse, "result [%v] not type [%v]", reflect.TypeOf(resp), reflect.TypeOf(zero))
	}
	return m, nil
}
