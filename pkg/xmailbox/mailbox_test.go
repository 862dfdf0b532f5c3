package xmailbox_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/camilohaze/vela-sub010/pkg/xmailbox"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type msg struct {
	sender int
	seq    int
	prio   int
}

func TestFIFOPerSender(t *testing.T) {
	box := xmailbox.NewUnbounded[msg]()

	const senders, per = 8, 500
	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				assert.NoError(t, box.Put(msg{sender: s, seq: i}))
			}
		}(s)
	}

	last := make(map[int]int)
	for s := 0; s < senders; s++ {
		last[s] = -1
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < senders*per; i++ {
		m, err := box.Get(ctx)
		require.NoError(t, err)
		require.Greater(t, m.seq, last[m.sender], "sender %d out of order", m.sender)
		last[m.sender] = m.seq
	}
	wg.Wait()

	require.True(t, box.IsEmpty())
	stats := box.Stats()
	require.EqualValues(t, senders*per, stats.Sent)
	require.EqualValues(t, senders*per, stats.Received)
}

func TestBoundedReject(t *testing.T) {
	box, err := xmailbox.NewBounded[int](2)
	require.NoError(t, err)
	require.Equal(t, 2, box.Capacity())

	require.NoError(t, box.Put(1))
	require.NoError(t, box.Put(2))
	require.True(t, box.IsFull())
	require.ErrorIs(t, box.Put(3), xmailbox.ErrMailboxFull)
	require.Equal(t, 2, box.Len())

	v, ok := box.TryGet()
	require.True(t, ok)
	require.Equal(t, 1, v)
	require.NoError(t, box.Put(3))

	stats := box.Stats()
	require.EqualValues(t, 3, stats.Sent)
	require.EqualValues(t, 1, stats.Received)
	require.EqualValues(t, 1, stats.Rejected)
}

func TestBoundedBlock(t *testing.T) {
	box, err := xmailbox.New[int](xmailbox.Options{
		Kind:         xmailbox.Bounded,
		Capacity:     2,
		Overflow:     xmailbox.Block,
		BlockTimeout: 5 * time.Second,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, box.Put(1))
	require.NoError(t, box.Put(2))

	putDone := make(chan error, 1)
	go func() { putDone <- box.Put(3) }()

	select {
	case <-putDone:
		t.Fatal("put should block while full")
	case <-time.After(50 * time.Millisecond):
	}

	v, err := box.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, v)

	select {
	case err := <-putDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("blocked put not resumed")
	}
	require.Equal(t, 2, box.Len())
}

func TestBoundedBlockTimeout(t *testing.T) {
	box, err := xmailbox.New[int](xmailbox.Options{
		Kind:         xmailbox.Bounded,
		Capacity:     1,
		Overflow:     xmailbox.Block,
		BlockTimeout: 20 * time.Millisecond,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, box.Put(1))
	require.ErrorIs(t, box.Put(2), xmailbox.ErrMailboxFull)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, box.PutContext(ctx, 2), xmailbox.ErrMailboxFull)
	require.EqualValues(t, 2, box.Stats().Rejected)
}

func TestPriorityOrder(t *testing.T) {
	box, err := xmailbox.NewPriority(func(m msg) int { return m.prio })
	require.NoError(t, err)

	for _, p := range []int{1, 5, 3} {
		require.NoError(t, box.Put(msg{prio: p}))
	}
	var got []int
	for !box.IsEmpty() {
		m, ok := box.TryGet()
		require.True(t, ok)
		got = append(got, m.prio)
	}
	require.Equal(t, []int{5, 3, 1}, got)
}

func TestPriorityTies(t *testing.T) {
	box, err := xmailbox.NewPriority(func(m msg) int { return m.prio })
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, box.Put(msg{seq: i, prio: i % 2}))
	}
	var odd, even []int
	for i := 0; i < 10; i++ {
		m, ok := box.TryGet()
		require.True(t, ok)
		if i < 5 {
			odd = append(odd, m.seq)
		} else {
			even = append(even, m.seq)
		}
	}
	require.Equal(t, []int{1, 3, 5, 7, 9}, odd)
	require.Equal(t, []int{0, 2, 4, 6, 8}, even)
}

func TestPriorityCapacity(t *testing.T) {
	box, err := xmailbox.New(xmailbox.Options{Kind: xmailbox.Priority, Capacity: 1}, func(v int) int { return v })
	require.NoError(t, err)
	require.NoError(t, box.Put(1))
	require.ErrorIs(t, box.Put(2), xmailbox.ErrMailboxFull)
}

func TestSeal(t *testing.T) {
	box, err := xmailbox.NewPriority(func(m msg) int { return m.prio })
	require.NoError(t, err)

	require.NoError(t, box.Put(msg{seq: 1, prio: 1}))
	require.NoError(t, box.Put(msg{seq: 2, prio: 9}))
	require.NoError(t, box.Seal(msg{seq: -1, prio: -100}))

	require.ErrorIs(t, box.Put(msg{seq: 3}), xmailbox.ErrMailboxClosed)
	require.ErrorIs(t, box.Seal(msg{}), xmailbox.ErrMailboxClosed)
	require.True(t, box.IsClosed())

	ctx := context.Background()
	var got []int
	for {
		m, err := box.Get(ctx)
		if errors.Is(err, xmailbox.ErrMailboxClosed) {
			break
		}
		require.NoError(t, err)
		got = append(got, m.seq)
	}
	require.Equal(t, []int{2, 1, -1}, got)
}

func TestSealBypassesCapacity(t *testing.T) {
	box, err := xmailbox.NewBounded[int](1)
	require.NoError(t, err)
	require.NoError(t, box.Put(1))
	require.NoError(t, box.Seal(0))
	require.Equal(t, 1, box.Len())

	v, _ := box.TryGet()
	require.Equal(t, 1, v)
	v, ok := box.TryGet()
	require.True(t, ok)
	require.Equal(t, 0, v)
	_, ok = box.TryGet()
	require.False(t, ok)
}

func TestGetCancel(t *testing.T) {
	box := xmailbox.NewUnbounded[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := box.Get(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetWakesOnPut(t *testing.T) {
	box := xmailbox.NewUnbounded[int]()
	got := make(chan int, 1)
	go func() {
		v, err := box.Get(context.Background())
		if err == nil {
			got <- v
		}
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, box.Put(7))
	select {
	case v := <-got:
		require.Equal(t, 7, v)
	case <-time.After(time.Second):
		t.Fatal("getter not woken")
	}
}

func TestCloseWakesGetter(t *testing.T) {
	box := xmailbox.NewUnbounded[int]()
	errCh := make(chan error, 1)
	go func() {
		_, err := box.Get(context.Background())
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	box.Close()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, xmailbox.ErrMailboxClosed)
	case <-time.After(time.Second):
		t.Fatal("getter not woken by close")
	}
}

func TestOptionsValidate(t *testing.T) {
	_, err := xmailbox.NewBounded[int](0)
	require.ErrorIs(t, err, xmailbox.ErrInvalidOptions)

	_, err = xmailbox.New[int](xmailbox.Options{Kind: xmailbox.Priority}, nil)
	require.ErrorIs(t, err, xmailbox.ErrInvalidOptions)

	_, err = xmailbox.New[int](xmailbox.Options{Kind: xmailbox.Unbounded, Capacity: 3}, nil)
	require.ErrorIs(t, err, xmailbox.ErrInvalidOptions)

	k, err := xmailbox.ParseKind("Priority")
	require.NoError(t, err)
	require.Equal(t, xmailbox.Priority, k)
	_, err = xmailbox.ParseKind("lifo")
	require.Error(t, err)

	p, err := xmailbox.ParseOverflow("block")
	require.NoError(t, err)
	require.Equal(t, xmailbox.Block, p)
}

func TestRingGrow(t *testing.T) {
	box := xmailbox.NewUnbounded[int]()
	for round := 0; round < 3; round++ {
		for i := 0; i < 100; i++ {
			require.NoError(t, box.Put(i))
		}
		for i := 0; i < 60; i++ {
			v, ok := box.TryGet()
			require.True(t, ok)
			require.Equal(t, i, v)
		}
		for i := 60; i < 100; i++ {
			v, ok := box.TryGet()
			require.True(t, ok)
			require.Equal(t, i, v)
		}
	}
}
