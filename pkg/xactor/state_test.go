package xactor

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

// 失败处理不断在Running和Restarting之间切换时, 停止必须成功
func TestBeginStopDuringRestart(t *testing.T) {
	for i := 0; i < 200; i++ {
		lc := newLifecycle()
		lc.state.Store(int32(Running))

		var quit atomic.Bool
		flipped := make(chan struct{})
		go func() {
			defer close(flipped)
			for !quit.Load() {
				if lc.transition(Running, Restarting) {
					lc.transition(Restarting, Running)
				}
				if s := lc.load(); s != Running && s != Restarting {
					return
				}
			}
		}()

		ok := lc.beginStop()
		quit.Store(true)
		<-flipped
		require.True(t, ok)
		require.Equal(t, Stopping, lc.load())
		require.False(t, lc.beginStop())
	}
}

func TestBeginStopStates(t *testing.T) {
	for _, s := range []State{Uninitialized, Starting, Stopping, Stopped} {
		lc := newLifecycle()
		lc.state.Store(int32(s))
		require.False(t, lc.beginStop(), s.String())
		require.Equal(t, s, lc.load())
	}
	lc := newLifecycle()
	lc.state.Store(int32(Restarting))
	require.True(t, lc.beginStop())
}
