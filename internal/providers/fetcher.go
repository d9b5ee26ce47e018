// Package providers fetches and parses pair listings from the supported exchanges.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/pinevolume/internal/config"
	"github.com/sawpanic/pinevolume/internal/exchange"
	"github.com/sawpanic/pinevolume/internal/net/ratelimit"
	"github.com/sawpanic/pinevolume/internal/pairs"
)

// Fetcher retrieves pair listings with per-host rate limiting, retries and a circuit
// breaker per exchange
type Fetcher struct {
	httpClient *http.Client
	config     *config.ProvidersConfig
	limiter    *ratelimit.Limiter
	breakers   [exchange.Count]*gobreaker.CircuitBreaker
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewFetcher creates a fetcher for the given provider configuration
func NewFetcher(cfg *config.ProvidersConfig) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout(),
			Transport: &http.Transport{
				MaxIdleConns:    exchange.Count,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		config:  cfg,
		limiter: ratelimit.NewLimiter(1, 1),
		sleep:   sleepContext,
	}

	for _, ex := range exchange.All() {
		p := cfg.Provider(ex)
		f.limiter.Configure(p.Host(), p.RPS, p.Burst)
		f.breakers[ex] = newBreaker(ex, p)
	}

	return f
}

func newBreaker(ex exchange.Exchange, p config.ProviderConfig) *gobreaker.CircuitBreaker {
	threshold := uint32(p.Circuit.FailureThreshold)
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        ex.String(),
		MaxRequests: 1,
		Timeout:     p.GetOpenTimeout(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("exchange", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker changed state")
		},
	})
}

// FetchExchangePairs downloads and parses the pair listing of ex. A non-2xx response yields
// a *FetchError and a malformed body a *ParseError.
func (f *Fetcher) FetchExchangePairs(ctx context.Context, ex exchange.Exchange) (pairs.Table, error) {
	if !ex.Valid() {
		return nil, fmt.Errorf("unsupported exchange %s", ex)
	}
	p := f.config.Provider(ex)

	log.Info().Str("exchange", ex.String()).Msgf("Fetching %s pairs...", ex.Title())

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoff(p, attempt)
			log.Debug().
				Str("exchange", ex.String()).
				Int("attempt", attempt+1).
				Dur("delay", delay).
				Err(lastErr).
				Msg("Retrying pair listing request")
			if err := f.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		body, err := f.attempt(ctx, ex, p)
		if err == nil {
			log.Debug().Str("exchange", ex.String()).Msgf("Parsing response and sorting %s pairs...", ex.Title())
			return Parse(ex, body)
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}

	return nil, lastErr
}

func (f *Fetcher) attempt(ctx context.Context, ex exchange.Exchange, p config.ProviderConfig) ([]byte, error) {
	host := p.Host()
	if !f.limiter.Allow(host) {
		stats := f.limiter.Stats()[host]
		log.Debug().
			Str("exchange", ex.String()).
			Str("host", host).
			Float64("rps", stats.RPS).
			Float64("tokens_available", stats.TokensAvailable).
			Msg("Rate limited, waiting for a token")
		if err := f.limiter.Wait(ctx, host); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}
	}

	result, err := f.breakers[ex].Execute(func() (interface{}, error) {
		return f.get(ctx, ex, p.URL)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (f *Fetcher) get(ctx context.Context, ex exchange.Exchange, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", f.config.Global.UserAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{Exchange: ex, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func retryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.IsRetryable()
	}
	return true
}

// backoff doubles the base delay per attempt, capped at the configured maximum
func backoff(p config.ProviderConfig, attempt int) time.Duration {
	limit := p.GetMaxBackoff()
	if attempt > 20 {
		return limit
	}
	delay := p.GetBaseBackoff() << (attempt - 1)
	if delay > limit {
		return limit
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
