package xexecutor

import "sync"

// 双端队列
// 本地队列: owner在bottom端push/pop(LIFO), thief在top端steal(FIFO)
// 全局队列: bottom端push, top端pop(FIFO), 高优先级task插入top端
type deque struct {
	mu   sync.Mutex
	buf  []Task
	head int
	n    int
}

func newDeque() *deque {
	return &deque{buf: make([]Task, 32)}
}

func (d *deque) grow() {
	buf := make([]Task, len(d.buf)*2)
	for i := 0; i < d.n; i++ {
		buf[i] = d.buf[(d.head+i)%len(d.buf)]
	}
	d.buf = buf
	d.head = 0
}

func (d *deque) pushBottom(t Task) {
	d.mu.Lock()
	if d.n == len(d.buf) {
		d.grow()
	}
	d.buf[(d.head+d.n)%len(d.buf)] = t
	d.n++
	d.mu.Unlock()
}

func (d *deque) pushTop(t Task) {
	d.mu.Lock()
	if d.n == len(d.buf) {
		d.grow()
	}
	d.head = (d.head - 1 + len(d.buf)) % len(d.buf)
	d.buf[d.head] = t
	d.n++
	d.mu.Unlock()
}

func (d *deque) popBottom() (Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.n == 0 {
		return Task{}, false
	}
	idx := (d.head + d.n - 1) % len(d.buf)
	t := d.buf[idx]
	d.buf[idx] = Task{}
	d.n--
	return t, true
}

func (d *deque) popTop() (Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.n == 0 {
		return Task{}, false
	}
	t := d.buf[d.head]
	d.buf[d.head] = Task{}
	d.head = (d.head + 1) % len(d.buf)
	d.n--
	return t, true
}

func (d *deque) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.n
}

// 取出全部task, 按top到bottom顺序
func (d *deque) drain() []Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	ts := make([]Task, 0, d.n)
	for d.n > 0 {
		ts = append(ts, d.buf[d.head])
		d.buf[d.head] = Task{}
		d.head = (d.head + 1) % len(d.buf)
		d.n--
	}
	return ts
}
