package database

import (
	"context"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/apperrors"
	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerConfig configures the storage circuit breaker.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "storage",
		MaxRequests:      1,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}

// Breaker stops calling storage after consecutive storage failures.
// Only storage-unavailable errors count against it.
type Breaker struct {
	cb     *gobreaker.CircuitBreaker[struct{}]
	logger ectologger.Logger
}

func NewBreaker(cfg BreakerConfig, logger ectologger.Logger) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	threshold := cfg.FailureThreshold

	return &Breaker{
		logger: logger,
		cb: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: cfg.MaxRequests,
			Interval:    cfg.Interval,
			Timeout:     cfg.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				return err == nil || !apperrors.IsStorage(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.WithFields(map[string]any{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warnf("circuit breaker %s changed state from %s to %s", name, from, to)
			},
		}),
	}
}

// Do runs fn through the breaker. An open breaker returns a storage-unavailable error without calling fn.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.Storage(err, "storage circuit %s is %s", b.cb.Name(), b.cb.State())
	}
	return err
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
