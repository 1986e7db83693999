package collector

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/time/rate"

	"MarketSync/internal/model"
)

// Options bounds how a Collector talks to upstream.
type Options struct {
	Timeout           time.Duration // per attempt
	MaxRetries        int
	Backoff           time.Duration // first retry delay, doubled each attempt
	RequestsPerSecond float64       // 0 disables rate limiting
}

// DefaultOptions returns a 20s timeout with two retries.
func DefaultOptions() Options {
	return Options{
		Timeout:           20 * time.Second,
		MaxRetries:        2,
		Backoff:           time.Second,
		RequestsPerSecond: 2,
	}
}

// Collector wraps a Fetcher with per-attempt timeouts, bounded retries and a
// shared rate limit. It is safe for concurrent use.
type Collector struct {
	Fetcher Fetcher
	Options Options
	limiter *rate.Limiter
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, opts Options) *Collector {
	c := &Collector{Fetcher: fetcher, Options: opts}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return c
}

func (c *Collector) Name() string { return c.Fetcher.Name() }

// Fetch calls the underlying fetcher until it succeeds or retries run out.
// Failures are returned as *FetchError.
func (c *Collector) Fetch(ctx context.Context, symbol string, window model.SyncWindow, g model.Granularity) ([]model.Bar, error) {
	attempts := 0
	var lastErr error
	for i := 0; i <= c.Options.MaxRetries; i++ {
		if err := ctx.Err(); err != nil {
			return nil, &FetchError{Symbol: symbol, Attempts: attempts, Err: err}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, &FetchError{Symbol: symbol, Attempts: attempts, Err: err}
			}
		}
		attempts++
		bars, err := c.attempt(ctx, symbol, window, g)
		if err == nil {
			return bars, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, &FetchError{Symbol: symbol, Attempts: attempts, Err: ctx.Err()}
		}
		if errors.Is(err, context.Canceled) {
			break
		}
		if i == c.Options.MaxRetries {
			break
		}

		backoff := c.Options.Backoff * time.Duration(1<<uint(i))
		log.Printf("[WARN] %s fetch %s %s failed (attempt %d/%d): %v, retrying in %v",
			c.Fetcher.Name(), symbol, g, i+1, c.Options.MaxRetries+1, err, backoff)
		select {
		case <-ctx.Done():
			return nil, &FetchError{Symbol: symbol, Attempts: attempts, Err: ctx.Err()}
		case <-time.After(backoff):
		}
	}
	return nil, &FetchError{Symbol: symbol, Attempts: attempts, Err: lastErr}
}

func (c *Collector) attempt(ctx context.Context, symbol string, window model.SyncWindow, g model.Granularity) ([]model.Bar, error) {
	if c.Options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Options.Timeout)
		defer cancel()
	}
	return c.Fetcher.Fetch(ctx, symbol, window, g)
}
