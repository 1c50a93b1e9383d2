package batch

import (
	"context"

	"golang.org/x/time/rate"
)

// renderThrottle caps the pool-wide render rate. A nil limiter means
// unlimited; the zero-config path costs nothing per render.
type renderThrottle struct {
	limiter *rate.Limiter
}

func newRenderThrottle(rendersPerMinute, burst int) *renderThrottle {
	if rendersPerMinute <= 0 {
		return &renderThrottle{}
	}
	if burst <= 0 {
		burst = 1
	}
	rps := float64(rendersPerMinute) / 60.0
	return &renderThrottle{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (t *renderThrottle) wait(ctx context.Context) error {
	if t.limiter == nil {
		return nil
	}
	return t.limiter.Wait(ctx)
}
