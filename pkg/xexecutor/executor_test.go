package xexecutor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/camilohaze/vela-sub010/pkg/xexecutor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func newExecutor(t *testing.T, opts xexecutor.Options) *xexecutor.Executor {
	t.Helper()
	e, err := xexecutor.New(context.Background(), opts)
	require.NoError(t, err)
	require.NoError(t, e.Start())
	t.Cleanup(func() { _ = e.Shutdown(time.Second) })
	return e
}

func fixed(n int) xexecutor.Options {
	opts := xexecutor.DefaultOptions()
	opts.MinThreads = n
	opts.MaxThreads = n
	return opts
}

func TestSubmit(t *testing.T) {
	e := newExecutor(t, fixed(4))

	var n atomic.Int64
	for i := 0; i < 1000; i++ {
		require.NoError(t, e.SubmitFunc("inc", func() { n.Inc() }))
	}
	require.Eventually(t, func() bool { return n.Load() == 1000 }, 5*time.Second, time.Millisecond)

	require.Eventually(t, func() bool { return e.Stats().Completed == 1000 }, time.Second, time.Millisecond)
	st := e.Stats()
	require.EqualValues(t, 1000, st.Submitted)
	require.Equal(t, xexecutor.Running, st.State)
	require.Equal(t, 4, st.ActiveWorkers)

	var executed uint64
	for _, ws := range st.Workers {
		executed += ws.Executed
	}
	require.EqualValues(t, 1000, executed)
}

func TestLocalResubmit(t *testing.T) {
	e := newExecutor(t, fixed(2))

	var n atomic.Int64
	done := make(chan struct{})
	var step func(w *xexecutor.Worker)
	step = func(w *xexecutor.Worker) {
		if n.Inc() == 100 {
			close(done)
			return
		}
		assert.NoError(t, w.Submit(xexecutor.Task{Name: "step", Run: step}))
	}
	require.NoError(t, e.Submit(xexecutor.Task{Name: "step", Run: step}))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("continuation chain not finished")
	}
}

func TestWorkStealing(t *testing.T) {
	run := func(workers int) (time.Duration, uint64) {
		opts := fixed(workers)
		opts.ParkTimeout = time.Millisecond
		e := newExecutor(t, opts)

		var wg sync.WaitGroup
		wg.Add(201)
		start := time.Now()
		// 一个task向本地队列压入200个子task, 另一个只有1个
		require.NoError(t, e.Submit(xexecutor.Task{Name: "heavy", Run: func(w *xexecutor.Worker) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				assert.NoError(t, w.Submit(xexecutor.Task{Name: "slice", Run: func(*xexecutor.Worker) {
					defer wg.Done()
					time.Sleep(time.Millisecond)
				}}))
			}
		}}))
		require.NoError(t, e.SubmitFunc("light", func() {}))
		wg.Wait()
		cost := time.Since(start)

		var stolen uint64
		for _, ws := range e.Stats().Workers {
			stolen += ws.Stolen
		}
		require.NoError(t, e.Shutdown(time.Second))
		return cost, stolen
	}

	single, stolen := run(1)
	require.Zero(t, stolen)

	multi, stolen := run(4)
	require.Greater(t, stolen, uint64(0))
	require.Less(t, multi, single)
}

func TestStealRoundRobin(t *testing.T) {
	opts := fixed(3)
	opts.Steal = xexecutor.StealRoundRobin
	opts.ParkTimeout = time.Millisecond
	e := newExecutor(t, opts)

	var wg sync.WaitGroup
	wg.Add(100)
	require.NoError(t, e.Submit(xexecutor.Task{Name: "fan", Run: func(w *xexecutor.Worker) {
		for i := 0; i < 100; i++ {
			assert.NoError(t, w.Submit(xexecutor.Task{Name: "leaf", Run: func(*xexecutor.Worker) {
				defer wg.Done()
				time.Sleep(500 * time.Microsecond)
			}}))
		}
	}}))
	wg.Wait()

	st := e.Stats()
	var lost uint64
	for _, ws := range st.Workers {
		lost += ws.Lost
	}
	require.Equal(t, st.Stolen, lost)
}

func TestPanicIsolation(t *testing.T) {
	e := newExecutor(t, fixed(1))

	require.NoError(t, e.SubmitFunc("boom", func() { panic("boom") }))
	ok := make(chan struct{})
	require.NoError(t, e.SubmitFunc("after", func() { close(ok) }))

	select {
	case <-ok:
	case <-time.After(time.Second):
		t.Fatal("worker died after panic")
	}
	require.Eventually(t, func() bool { return e.Stats().Failed == 1 }, time.Second, time.Millisecond)
	require.EqualValues(t, 1, e.Stats().Workers[0].Failed)
}

func TestShutdownDrains(t *testing.T) {
	e, err := xexecutor.New(context.Background(), fixed(2))
	require.NoError(t, err)
	require.NoError(t, e.Start())

	var n atomic.Int64
	for i := 0; i < 100; i++ {
		require.NoError(t, e.SubmitFunc("work", func() {
			time.Sleep(100 * time.Microsecond)
			n.Inc()
		}))
	}
	require.NoError(t, e.Shutdown(5*time.Second))
	require.EqualValues(t, 100, n.Load())
	require.Equal(t, xexecutor.Terminated, e.State())

	require.ErrorIs(t, e.SubmitFunc("late", func() {}), xexecutor.ErrExecutorShutdown)
	require.EqualValues(t, 1, e.Stats().Rejected)

	// 重复关闭无副作用
	require.NoError(t, e.Shutdown(time.Second))
}

func TestShutdownTimeout(t *testing.T) {
	e, err := xexecutor.New(context.Background(), fixed(1))
	require.NoError(t, err)
	require.NoError(t, e.Start())

	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	require.NoError(t, e.SubmitFunc("stuck", func() {
		close(started)
		<-release
	}))
	<-started
	require.NoError(t, e.SubmitFunc("queued", func() {}))

	err = e.Shutdown(20 * time.Millisecond)
	require.ErrorIs(t, err, xexecutor.ErrShutdownTimeout)
	require.Equal(t, xexecutor.Terminated, e.State())
}

func TestShutdownIdle(t *testing.T) {
	e, err := xexecutor.New(context.Background(), fixed(1))
	require.NoError(t, err)
	require.ErrorIs(t, e.SubmitFunc("x", func() {}), xexecutor.ErrNotStarted)
	require.NoError(t, e.Shutdown(time.Second))
	require.Equal(t, xexecutor.Terminated, e.State())
	require.ErrorIs(t, e.Start(), xexecutor.ErrExecutorShutdown)
}

func TestStartTwice(t *testing.T) {
	e := newExecutor(t, fixed(1))
	require.ErrorIs(t, e.Start(), xexecutor.ErrAlreadyStarted)
}

func TestScaleUpAndRetire(t *testing.T) {
	opts := xexecutor.Options{
		MinThreads:       1,
		MaxThreads:       4,
		ScaleUpThreshold: 2,
		KeepAlive:        50 * time.Millisecond,
		ParkTimeout:      5 * time.Millisecond,
	}
	e := newExecutor(t, opts)

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, e.SubmitFunc("block", func() {
		close(started)
		<-release
	}))
	<-started

	var n atomic.Int64
	for i := 0; i < 20; i++ {
		require.NoError(t, e.SubmitFunc("work", func() {
			time.Sleep(time.Millisecond)
			n.Inc()
		}))
	}
	require.Eventually(t, func() bool { return e.WorkerCount() > 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return n.Load() == 20 }, 5*time.Second, time.Millisecond)
	require.LessOrEqual(t, e.WorkerCount(), 4)

	close(release)
	require.Eventually(t, func() bool { return e.WorkerCount() == 1 }, 5*time.Second, 5*time.Millisecond)
	require.Greater(t, e.Stats().RetiredWorkers, uint64(0))
}

func TestGlobalQueueFull(t *testing.T) {
	opts := fixed(1)
	opts.GlobalQueueSize = 1
	e := newExecutor(t, opts)

	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	require.NoError(t, e.SubmitFunc("block", func() {
		close(started)
		<-release
	}))
	<-started

	require.NoError(t, e.SubmitFunc("one", func() {}))
	require.ErrorIs(t, e.SubmitFunc("two", func() {}), xexecutor.ErrQueueFull)
	require.Equal(t, 1, e.GlobalQueueLen())
}

func TestPriorityTaskFirst(t *testing.T) {
	e := newExecutor(t, fixed(1))

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, e.SubmitFunc("block", func() {
		close(started)
		<-release
	}))
	<-started

	var mu sync.Mutex
	var order []string
	record := func(name string) xexecutor.Task {
		return xexecutor.Task{Name: name, Run: func(*xexecutor.Worker) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}}
	}
	require.NoError(t, e.Submit(record("normal")))
	urgent := record("urgent")
	urgent.Priority = 1
	require.NoError(t, e.Submit(urgent))
	close(release)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, time.Second, time.Millisecond)
	require.Equal(t, []string{"urgent", "normal"}, order)
}

func TestOptionsValidate(t *testing.T) {
	_, err := xexecutor.New(context.Background(), xexecutor.Options{MinThreads: 0, MaxThreads: 1})
	require.ErrorIs(t, err, xexecutor.ErrInvalidOptions)
	_, err = xexecutor.New(context.Background(), xexecutor.Options{MinThreads: 2, MaxThreads: 1})
	require.ErrorIs(t, err, xexecutor.ErrInvalidOptions)

	s, err := xexecutor.ParseStealStrategy("round_robin")
	require.NoError(t, err)
	require.Equal(t, xexecutor.StealRoundRobin, s)
	_, err = xexecutor.ParseStealStrategy("nearest")
	require.Error(t, err)
}
