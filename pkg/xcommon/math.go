package xcommon

type number interface {
	~int | ~int16 | ~int32 | ~int64 | ~uint16 | ~uint32 | ~uint64 | ~float64
}

func SafeDivision[T number](a T, b T) T {
	if b == 0 {
		return 0
	}
	return a / b
}

func Clamp[T number](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
