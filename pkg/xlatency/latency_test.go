package xlatency_test

import (
	"context"
	"testing"
	"time"

	"github.com/camilohaze/vela-sub010/pkg/xactor"
	"github.com/camilohaze/vela-sub010/pkg/xlatency"
	"github.com/camilohaze/vela-sub010/pkg/xscheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func newScheduler(t *testing.T) *xscheduler.Scheduler {
	t.Helper()
	opts := xscheduler.DefaultOptions()
	opts.Executor.MinThreads, opts.Executor.MaxThreads = 2, 2
	s, err := xscheduler.New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(time.Second) })
	return s
}

func spawnSink(t *testing.T, s *xscheduler.Scheduler, count *atomic.Int64) *xactor.Ref {
	t.Helper()
	ref, err := s.Spawn(func() xactor.Actor {
		return xactor.ReceiveFunc(func(rc *xactor.Context) error {
			if _, ok := rc.Message().(int); ok {
				count.Inc()
			}
			return nil
		})
	}, xactor.WithName("sink"))
	require.NoError(t, err)
	return ref
}

func stats(t *testing.T, ref *xactor.Ref) xlatency.Stats {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	st, err := xactor.AskAs[xlatency.Stats](ctx, ref, &xlatency.StatsReq{})
	require.NoError(t, err)
	return st
}

func TestForwardWithLatency(t *testing.T) {
	s := newScheduler(t)
	var count atomic.Int64
	sink := spawnSink(t, s, &count)

	ref, err := s.Spawn(xlatency.Factory(xlatency.LatencyMockArgs{
		Target:  sink,
		Latency: 20 * time.Millisecond,
		Seed:    1,
	}), xactor.WithName("latency"))
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, ref.Send(i))
	}
	require.Eventually(t, func() bool { return count.Load() == 50 }, 2*time.Second, 2*time.Millisecond)
	assert.Less(t, time.Since(start), time.Second)

	require.Eventually(t, func() bool { return stats(t, ref).Pending == 0 }, time.Second, 5*time.Millisecond)
	st := stats(t, ref)
	assert.Equal(t, uint64(50), st.Packets)
	assert.Equal(t, uint64(0), st.Lost)
	assert.Equal(t, uint64(50), st.Forwarded)
	assert.Greater(t, st.AllDelay, time.Duration(0))
	assert.Less(t, st.AverageDelay(), 20*time.Millisecond)
}

func TestLoss(t *testing.T) {
	s := newScheduler(t)
	var count atomic.Int64
	sink := spawnSink(t, s, &count)

	ref, err := s.Spawn(xlatency.Factory(xlatency.LatencyMockArgs{Target: sink, Loss: 100}))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		require.NoError(t, ref.Send(i))
	}
	st := stats(t, ref)
	assert.Equal(t, uint64(20), st.Packets)
	assert.Equal(t, uint64(20), st.Lost)
	assert.Equal(t, time.Duration(0), st.AverageDelay())
	assert.Equal(t, int64(0), count.Load())
}

func TestSetTarget(t *testing.T) {
	s := newScheduler(t)
	var count atomic.Int64
	sink := spawnSink(t, s, &count)

	ref, err := s.Spawn(xlatency.Factory(xlatency.LatencyMockArgs{}))
	require.NoError(t, err)

	// 没有目标时处理失败, actor继续运行
	require.NoError(t, ref.Send(1))
	require.Eventually(t, func() bool {
		m, err := s.ActorMetrics(ref.Name())
		return err == nil && m.Errors == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, ref.Send(&xlatency.SetTargetReq{Target: sink}))
	require.NoError(t, ref.Send(2))
	require.Eventually(t, func() bool { return count.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestStopDropsPending(t *testing.T) {
	s := newScheduler(t)
	var count atomic.Int64
	sink := spawnSink(t, s, &count)

	ref, err := s.Spawn(xlatency.Factory(xlatency.LatencyMockArgs{Target: sink, Latency: time.Hour}))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, ref.Send(i))
	}
	require.Equal(t, int64(5), stats(t, ref).Pending)

	require.NoError(t, ref.Stop())
	<-ref.Done()
	assert.Equal(t, int64(0), count.Load())
}
