package source

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ThrottledSource limits the throughput and concurrency of reads from
// another source.
type ThrottledSource struct {
	inner   Source
	limiter *rate.Limiter       // nil when unlimited
	slots   *semaphore.Weighted // nil when unlimited
	burst   int
}

// Throttled wraps src. bytesPerSec caps throughput and inflight caps
// concurrent reads; zero leaves either unlimited.
func Throttled(src Source, bytesPerSec, inflight int64) *ThrottledSource {
	t := &ThrottledSource{inner: src}
	if bytesPerSec > 0 {
		t.burst = int(min(bytesPerSec, 1<<30))
		t.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), t.burst)
	}
	if inflight > 0 {
		t.slots = semaphore.NewWeighted(inflight)
	}
	return t
}

func (t *ThrottledSource) Size() int64 { return t.inner.Size() }

func (t *ThrottledSource) Close() error { return t.inner.Close() }

func (t *ThrottledSource) ReadAt(p []byte, off int64) (int, error) {
	ctx := context.Background()
	if t.slots != nil {
		if err := t.slots.Acquire(ctx, 1); err != nil {
			return 0, err
		}
		defer t.slots.Release(1)
	}
	if t.limiter != nil {
		n := int(min(int64(len(p)), max(t.inner.Size()-off, 0)))
		for n > 0 {
			step := min(n, t.burst)
			if err := t.limiter.WaitN(ctx, step); err != nil {
				return 0, err
			}
			n -= step
		}
	}
	return t.inner.ReadAt(p, off)
}
