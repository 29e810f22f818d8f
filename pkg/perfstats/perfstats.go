package perfstats

import "time"

type Number interface {
	~int64 | ~float64
}

// Accumulator holds a sample count and a running total, which together give an average.
// time.Duration works too, since it is an int64.
type Accumulator[T Number] struct {
	Samples int64 `json:"samples"`
	Total   T     `json:"total"`
}

func (a *Accumulator[T]) Reset() {
	a.Samples = 0
	a.Total = 0
}

func (a *Accumulator[T]) AddSample(v T) {
	a.Samples++
	a.Total += v
}

func (a *Accumulator[T]) Average() T {
	if a.Samples == 0 {
		return 0
	}
	return a.Total / T(a.Samples)
}

// Time a function, and add the elapsed time to the accumulator
func (a *Accumulator[T]) Time(f func()) time.Duration {
	start := time.Now()
	f()
	elapsed := time.Since(start)
	a.AddSample(T(elapsed))
	return elapsed
}
