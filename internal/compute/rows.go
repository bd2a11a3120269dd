// Package compute runs per-row grid passes across goroutines.
package compute

import (
	"runtime"
	"sync"
)

// Workers returns n when positive, otherwise GOMAXPROCS.
func Workers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}

// Rows calls fn over [0, height) split into contiguous row bands, one band
// per worker, and returns once every band is done. fn must only write cells
// inside its own band; reads of the previous pass's buffers are shared.
func Rows(workers, height int, fn func(y0, y1 int)) {
	workers = Workers(workers)
	if workers > height {
		workers = height
	}
	if workers <= 1 {
		if height > 0 {
			fn(0, height)
		}
		return
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		y0 := w * height / workers
		y1 := (w + 1) * height / workers
		go func() {
			defer wg.Done()
			fn(y0, y1)
		}()
	}
	wg.Wait()
}

// Band collects a per-worker partial result, such as a maximum or the first
// failing cell, to be merged after Rows returns.
type Band[T any] struct {
	mu    sync.Mutex
	parts []T
}

// Add records one worker's partial result.
func (b *Band[T]) Add(v T) {
	b.mu.Lock()
	b.parts = append(b.parts, v)
	b.mu.Unlock()
}

// Parts returns the recorded partial results.
func (b *Band[T]) Parts() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.parts
}
