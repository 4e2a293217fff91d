package fpl

import (
	"context"

	"golang.org/x/time/rate"
	"golang.org/x/xerrors"

	"github.com/tonglam/letletme-data-sub005/internal/config"
)

type rateLimitedClient struct {
	inner   Client
	limiter *rate.Limiter
}

var _ Client = (*rateLimitedClient)(nil)

// WithRateLimit decorates a Client with a token-bucket rate limiter.
// The provider enforces request quotas; blocking here keeps the scheduler
// from tripping them during high-frequency polling windows.
func WithRateLimit(inner Client, cfg *config.Config) Client {
	if cfg.Provider.RateLimit <= 0 {
		return inner
	}

	burst := cfg.Provider.RateBurst
	if burst < 1 {
		burst = 1
	}

	return &rateLimitedClient{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(cfg.Provider.RateLimit), burst),
	}
}

func (c *rateLimitedClient) GetCurrentRound(ctx context.Context) (*Round, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, xerrors.Errorf("failed to acquire rate limit token: %w", err)
	}
	return c.inner.GetCurrentRound(ctx)
}

func (c *rateLimitedClient) GetFixtures(ctx context.Context, roundID RoundID) ([]Fixture, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, xerrors.Errorf("failed to acquire rate limit token: %w", err)
	}
	return c.inner.GetFixtures(ctx, roundID)
}
