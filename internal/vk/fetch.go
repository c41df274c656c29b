package vk

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/avoronov/saved-sorter/internal/shared"
)

// retryBackoff is how long to wait after VK reports quota exhaustion before
// trying again.
const retryBackoff = 200 * time.Millisecond

// Fetcher invokes remote calls with client-side pacing and transparent
// retries on quota exhaustion. VK's per-second limit is transient and clears
// on its own, so a rate-limited call is retried without a cap; every other
// error propagates unchanged.
type Fetcher struct {
	limiter *rate.Limiter
	backoff time.Duration
	logger  *log.Logger
}

// NewFetcher creates a Fetcher pacing calls at rps requests per second.
// rps <= 0 disables pacing, retries still apply.
func NewFetcher(rps float64, logger *log.Logger) *Fetcher {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &Fetcher{
		limiter: limiter,
		backoff: retryBackoff,
		logger:  logger,
	}
}

// Do runs call until it succeeds or fails with something other than
// [shared.ErrRateLimited]. Cancelling ctx stops the loop between attempts.
func (f *Fetcher) Do(ctx context.Context, call func(context.Context) error) error {
	for {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		err := call(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, shared.ErrRateLimited) {
			return err
		}

		if f.logger != nil {
			f.logger.Debug("rate limited, retrying", "backoff", f.backoff)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.backoff):
		}
	}
}
