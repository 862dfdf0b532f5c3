package xmailbox

import "container/heap"

type queue[T any] interface {
	push(v T)
	pop() (T, bool)
	len() int
}

// 环形缓冲, 满了自动扩容
type ring[T any] struct {
	buf  []T
	head int
	n    int
}

func newRing[T any](hint int) *ring[T] {
	if hint <= 0 || hint > 1024 {
		hint = 16
	}
	return &ring[T]{buf: make([]T, hint)}
}

func (r *ring[T]) push(v T) {
	if r.n == len(r.buf) {
		buf := make([]T, len(r.buf)*2)
		for i := 0; i < r.n; i++ {
			buf[i] = r.buf[(r.head+i)%len(r.buf)]
		}
		r.buf = buf
		r.head = 0
	}
	r.buf[(r.head+r.n)%len(r.buf)] = v
	r.n++
}

func (r *ring[T]) pop() (T, bool) {
	var zero T
	if r.n == 0 {
		return zero, false
	}
	v := r.buf[r.head]
	r.buf[r.head] = zero
	r.head = (r.head + 1) % len(r.buf)
	r.n--
	return v, true
}

func (r *ring[T]) len() int {
	return r.n
}

type prioItem[T any] struct {
	v    T
	prio int
	seq  uint64
}

type prioHeap[T any] []prioItem[T]

func (h prioHeap[T]) Len() int { return len(h) }

// 优先级高的在前, 相同优先级按插入顺序
func (h prioHeap[T]) Less(i, j int) bool {
	if h[i].prio != h[j].prio {
		return h[i].prio > h[j].prio
	}
	return h[i].seq < h[j].seq
}

func (h prioHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *prioHeap[T]) Push(x any) { *h = append(*h, x.(prioItem[T])) }

func (h *prioHeap[T]) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = prioItem[T]{}
	*h = old[:n-1]
	return it
}

type priorityQueue[T any] struct {
	h   prioHeap[T]
	fn  PriorityFunc[T]
	seq uint64
}

func newPriorityQueue[T any](fn PriorityFunc[T]) *priorityQueue[T] {
	return &priorityQueue[T]{fn: fn}
}

func (q *priorityQueue[T]) push(v T) {
	q.seq++
	heap.Push(&q.h, prioItem[T]{v: v, prio: q.fn(v), seq: q.seq})
}

func (q *priorityQueue[T]) pop() (T, bool) {
	if len(q.h) == 0 {
		var zero T
		return zero, false
	}
	return heap.Pop(&q.h).(prioItem[T]).v, true
}

func (q *priorityQueue[T]) len() int {
	return len(q.h)
}
