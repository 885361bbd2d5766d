package ctxcall

import "context"

// Do 在 ctx 截止前等待 fn 返回
// 用于不接受 context 的 SDK 调用；超时后 fn 仍在后台运行至结束
func Do[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
