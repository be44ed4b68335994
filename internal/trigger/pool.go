package trigger

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Options bounds fan-out against the substrate.
type Options struct {
	Concurrency int
	// RatePerSec caps substrate calls per second. Zero or less disables the limit.
	RatePerSec float64
	// CallTimeout bounds each call. In-flight calls run to completion even
	// after the caller's context is cancelled, so this is their only deadline.
	CallTimeout time.Duration
}

type pool struct {
	size        int
	limiter     *rate.Limiter
	callTimeout time.Duration
}

func newPool(opts Options) *pool {
	size := opts.Concurrency
	if size <= 0 {
		size = 1
	}
	limit := rate.Inf
	burst := size
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
		if int(opts.RatePerSec) < burst {
			burst = int(opts.RatePerSec)
		}
		if burst < 1 {
			burst = 1
		}
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &pool{size: size, limiter: rate.NewLimiter(limit, burst), callTimeout: timeout}
}

// run calls fn for items 0..n-1 with bounded concurrency. Once ctx is done
// no new call is started; the indexes that were never started are returned
// in order.
func (p *pool) run(ctx context.Context, n int, fn func(ctx context.Context, i int)) []int {
	sem := make(chan struct{}, p.size)
	var wg sync.WaitGroup
	var notStarted []int

	for i := 0; i < n; i++ {
		if ctx.Err() != nil || p.limiter.Wait(ctx) != nil {
			notStarted = remaining(i, n)
			break
		}
		select {
		case sem <- struct{}{}:
			if ctx.Err() != nil {
				<-sem
				notStarted = remaining(i, n)
			}
		case <-ctx.Done():
			notStarted = remaining(i, n)
		}
		if notStarted != nil {
			break
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.callTimeout)
			defer cancel()
			fn(callCtx, i)
		}(i)
	}
	wg.Wait()
	return notStarted
}

func remaining(from, n int) []int {
	out := make([]int, 0, n-from)
	for i := from; i < n; i++ {
		out = append(out, i)
	}
	return out
}
