package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// Func is an operation that may be attempted more than once.
type Func func(ctx context.Context) error

type Config struct {
	MaxRetries int              // attempts after the first one
	BaseDelay  time.Duration    // delay before the first retry
	MaxDelay   time.Duration    // upper bound for any single delay
	Multiplier float64          // growth factor between delays
	Jitter     bool             // randomize delays to spread out retry bursts
	Retryable  func(error) bool // nil means every error is retryable
}

func DefaultConfig() Config {
	return Config{
		MaxRetries: 2,
		BaseDelay:  50 * time.Millisecond,
		MaxDelay:   time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

type Retrier struct {
	config Config
	log    logrus.FieldLogger
}

func New(config Config, log logrus.FieldLogger) *Retrier {
	if config.Multiplier < 1 {
		config.Multiplier = 1
	}
	return &Retrier{config: config, log: log}
}

// Do runs fn until it succeeds, returns a non-retryable error, the retries run out, or
// ctx is done. The last error from fn is returned unchanged.
func (r *Retrier) Do(ctx context.Context, fn Func) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				r.log.WithField("attempts", attempt+1).Debug("operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if r.config.Retryable != nil && !r.config.Retryable(err) {
			return err
		}
		if attempt == r.config.MaxRetries {
			break
		}

		delay := r.delay(attempt)
		r.log.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"delay":   delay.String(),
			"error":   err.Error(),
		}).Warn("operation failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}

	return lastErr
}

func (r *Retrier) delay(attempt int) time.Duration {
	d := float64(r.config.BaseDelay) * math.Pow(r.config.Multiplier, float64(attempt))
	if r.config.MaxDelay > 0 && d > float64(r.config.MaxDelay) {
		d = float64(r.config.MaxDelay)
	}
	if r.config.Jitter && d > 0 {
		// full jitter in [d/2, d)
		d = d/2 + rand.Float64()*d/2
	}
	return time.Duration(d)
}
