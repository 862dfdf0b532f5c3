package xcommon

import (
	"math"
	"math/rand"
	"time"
)

// 指数退避: Base * Factor^attempt, 上限Max
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64 // [0, 1), 0表示不抖动
}

func NewBackoff(base, max time.Duration) Backoff {
	return Backoff{Base: base, Max: max, Factor: 2}
}

// attempt从0开始
func (b Backoff) Next(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	factor := b.Factor
	if factor < 1 {
		factor = 1
	}
	d := float64(b.Base) * math.Pow(factor, float64(attempt))
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		d -= d * b.Jitter * rand.Float64()
	}
	return time.Duration(d)
}
