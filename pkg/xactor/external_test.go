package xactor_test

import (
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/camilohaze/vela-sub010/pkg/xactor"
	"github.com/camilohaze/vela-sub010/pkg/xmailbox"
	"github.com/stretchr/testify/require"
)

// 记录根对象的分配器
type rootAllocator struct {
	mu     sync.Mutex
	roots  map[xactor.Ptr]int
	allocs int
}

func newRootAllocator() *rootAllocator {
	return &rootAllocator{roots: make(map[xactor.Ptr]int)}
}

func (a *rootAllocator) Alloc(size int) (xactor.Ptr, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.allocs++
	buf := make([]byte, size)
	return unsafe.Pointer(&buf[0]), nil
}

func (a *rootAllocator) AddRoot(p xactor.Ptr) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.roots[p]++
}

func (a *rootAllocator) RemoveRoot(p xactor.Ptr) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.roots[p]--; a.roots[p] <= 0 {
		delete(a.roots, p)
	}
}

func (a *rootAllocator) Collect() {}

func (a *rootAllocator) live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.roots)
}

type sizedActor struct {
	recorder
}

func (s *sizedActor) StateSize() int {
	return 64
}

type heapPayload struct {
	buf []byte
}

func (h *heapPayload) RootPtr() xactor.Ptr {
	return unsafe.Pointer(&h.buf[0])
}

func TestAllocatorRoots(t *testing.T) {
	exec := newExec(t)
	alloc := newRootAllocator()
	opts := xactor.DefaultLoopOptions()
	opts.Allocator = alloc
	l := newLoop(t, exec, "sized", &sizedActor{}, opts, xmailbox.Options{})

	require.Equal(t, 1, alloc.allocs)
	require.Equal(t, 1, alloc.live())

	l.Pause()
	require.NoError(t, l.Ref().Send(&heapPayload{buf: make([]byte, 8)}))
	require.Equal(t, 2, alloc.live())
	l.Resume()
	require.Eventually(t, func() bool { return alloc.live() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, l.Ref().Stop())
	waitDone(t, l.Ref())
	require.Zero(t, alloc.live())
}

func TestNopAllocator(t *testing.T) {
	var a xactor.Allocator = xactor.NopAllocator{}
	p, err := a.Alloc(16)
	require.NoError(t, err)
	require.Nil(t, p)
	a.AddRoot(p)
	a.RemoveRoot(p)
	a.Collect()
}
