package concurrency

import (
	"context"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// Pool bounds the number of goroutines running sub-query retrieval,
// decomposition branches, and web-augmentation fan-out to
// maxParallelSubQueries. It wraps ants so the goroutine pool itself is
// reused across turns instead of spawned and torn down each time.
type Pool struct {
	p *ants.Pool
}

// NewPool creates a Pool with the given worker cap.
func NewPool(size int) (*Pool, error) {
	if size <= 0 {
		size = 1
	}
	p, err := ants.NewPool(size, ants.WithNonblocking(false))
	if err != nil {
		return nil, err
	}
	return &Pool{p: p}, nil
}

// Release tears down the underlying worker pool.
func (p *Pool) Release() {
	p.p.Release()
}

// Run submits fn(i) for each i in [0, n) to the pool and waits for all
// of them to finish or ctx to be cancelled, returning every error
// encountered in index order (nil entries mean success). It's the
// fan-out primitive behind parallel sub-query execution and the
// retrieval∥web-augmentation race.
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		submitErr := p.p.Submit(func() {
			defer wg.Done()
			select {
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			default:
			}
			errs[i] = fn(ctx, i)
		})
		if submitErr != nil {
			errs[i] = submitErr
			wg.Done()
		}
	}
	wg.Wait()
	return errs
}
