// Package ratelimit wraps a provider with token-bucket rate limiting so
// fan-out runs cannot exceed a backend's request budget.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/promptlab/workbench/internal/domain"
	"github.com/promptlab/workbench/internal/observability"
)

// Config configures the token-bucket rate limiter.
type Config struct {
	// RequestsPerMinute is the sustained request rate.
	RequestsPerMinute float64 `env:"RUN_REQUESTS_PER_MINUTE" envDefault:"60"`
	// Burst is the maximum burst size above the sustained rate. A burst of
	// at least the typical model-row count keeps fan-out dispatch parallel.
	Burst int `env:"RUN_BURST" envDefault:"10"`
	// MaxRetries is the number of retry attempts on transient errors.
	MaxRetries int `env:"RUN_MAX_RETRIES" envDefault:"2"`
	// InitialBackoff is the starting backoff duration.
	InitialBackoff time.Duration `env:"RUN_INITIAL_BACKOFF" envDefault:"500ms"`
	// MaxBackoff caps the exponential backoff.
	MaxBackoff time.Duration `env:"RUN_MAX_BACKOFF" envDefault:"15s"`
}

// Provider wraps a domain.Provider with rate limiting and bounded retry.
type Provider struct {
	inner   domain.Provider
	limiter *rate.Limiter
	cfg     Config
}

// Wrap wraps inner with rate limiting using cfg.
func Wrap(inner domain.Provider, cfg Config) (*Provider, error) {
	if cfg.RequestsPerMinute <= 0 {
		return nil, errors.New("rate limiter: RequestsPerMinute must be > 0")
	}
	if cfg.Burst <= 0 {
		return nil, errors.New("rate limiter: Burst must be > 0")
	}

	perSecond := rate.Limit(cfg.RequestsPerMinute / 60.0)

	return &Provider{
		inner:   inner,
		limiter: rate.NewLimiter(perSecond, cfg.Burst),
		cfg:     cfg,
	}, nil
}

// Name delegates to the inner provider.
func (p *Provider) Name() string { return p.inner.Name() }

// SupportedModels delegates to the inner provider.
func (p *Provider) SupportedModels(ctx context.Context) []string {
	return p.inner.SupportedModels(ctx)
}

// IsModelSupported delegates to the inner provider.
func (p *Provider) IsModelSupported(ctx context.Context, model string) bool {
	return p.inner.IsModelSupported(ctx, model)
}

// Complete waits for a rate limit token then calls the inner provider,
// retrying with exponential backoff on failure. Context cancellation (the
// per-call deadline included) always wins over a pending retry.
func (p *Provider) Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			observability.FromContext(ctx).Warn("retrying provider call",
				observability.Int("attempt", attempt),
				observability.Error(lastErr),
			)
			select {
			case <-time.After(p.backoff(attempt)):
			case <-ctx.Done():
				return nil, fmt.Errorf("cancelled during backoff: %w", ctx.Err())
			}
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		resp, err := p.inner.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, lastErr
		}
	}

	return nil, fmt.Errorf("exhausted %d retries: %w", p.cfg.MaxRetries, lastErr)
}

func (p *Provider) backoff(attempt int) time.Duration {
	d := time.Duration(float64(p.cfg.InitialBackoff) * math.Pow(2, float64(attempt-1)))
	if d > p.cfg.MaxBackoff {
		d = p.cfg.MaxBackoff
	}
	return d
}
