package player

import (
	"math"
	"sync/atomic"
)

type atomicFloat64 struct {
	v atomic.Uint64
}

func (f *atomicFloat64) load() float64 {
	return math.Float64frombits(f.v.Load())
}

func (f *atomicFloat64) store(v float64) {
	f.v.Store(math.Float64bits(v))
}

func (f *atomicFloat64) update(cb func(float64) float64) {
	for {
		old := f.v.Load()
		next := math.Float64bits(cb(math.Float64frombits(old)))
		if f.v.CompareAndSwap(old, next) {
			return
		}
	}
}
