package retry

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/havenmind/havend/internal/backend"
	"github.com/havenmind/havend/internal/config"
)

// Policy bounds one retried call. Immutable per call site.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the wait before the second attempt.
	BaseDelay time.Duration

	// Multiplier grows the delay between attempts. 1.0 gives a fixed
	// inter-attempt delay.
	Multiplier float64

	// MaxDelay caps the grown delay.
	MaxDelay time.Duration
}

// DefaultPolicy returns the policy used by resource services unless
// configured otherwise.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2.0,
		MaxDelay:    10 * time.Second,
	}
}

// PolicyFromConfig builds a Policy from daemon configuration.
func PolicyFromConfig(cfg config.RetryConfig) Policy {
	p := Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay.Duration(),
		Multiplier:  cfg.Multiplier,
		MaxDelay:    cfg.MaxDelay.Duration(),
	}
	p.applyDefaults()
	return p
}

func (p *Policy) applyDefaults() {
	def := DefaultPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = def.Multiplier
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
}

// delay returns the wait after the given 1-based attempt number.
func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
		if time.Duration(d) >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if time.Duration(d) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Do runs op up to p.MaxAttempts times, waiting the policy's backoff
// between attempts. On success the value is returned immediately; on
// exhaustion the LAST error is returned unchanged so callers can still
// classify it. Non-retryable errors propagate on first occurrence.
//
// Calls are independent: the only shared state is a consecutive-failure
// gauge used for telemetry, never for control flow.
func Do[T any](ctx context.Context, p Policy, logger *zap.Logger, op func(context.Context) (T, error)) (T, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p.applyDefaults()

	var zero T
	var lastErr error
	start := time.Now()

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		value, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("operation recovered after retries",
					zap.Int("attempts", attempt),
					zap.Duration("total_time", time.Since(start)),
				)
			}
			metrics().consecutiveFailures.Set(0)
			return value, nil
		}

		lastErr = err
		metrics().consecutiveFailures.Inc()

		if !Retryable(err) {
			metrics().nonRetryableTotal.Inc()
			return zero, err
		}

		if attempt == p.MaxAttempts {
			break
		}

		wait := p.delay(attempt)
		logger.Debug("retrying operation after failure",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.MaxAttempts),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		metrics().retriesTotal.Inc()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
	}

	metrics().exhaustedTotal.Inc()
	return zero, lastErr
}

// nonRetryableSignatures mark errors that retrying cannot fix even when
// the status code alone is ambiguous.
var nonRetryableSignatures = []string{
	"jwt",
	"refresh_token",
	"invalid api key",
}

// Retryable classifies an error as worth another attempt. Auth and
// permission failures are not: the backend gave a definitive answer.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if apiErr, ok := backend.AsAPIError(err); ok {
		if apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden {
			return false
		}
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range nonRetryableSignatures {
		if strings.Contains(msg, sig) {
			return false
		}
	}
	return true
}
