package retry

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/GPTx-global/rngoracle/oracle/log"
)

// Config describes an exponential backoff schedule.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
	}
}

// NetworkConfig is used for idempotent HTTP reads against the executor.
func NetworkConfig() Config {
	return Config{
		MaxAttempts: 4,
		BaseDelay:   2 * time.Second,
		MaxDelay:    20 * time.Second,
		Multiplier:  1.5,
	}
}

// ConfirmationConfig drives confirmation polling. MaxAttempts is unused there;
// the poller stops on its own timeout.
func ConfirmationConfig() Config {
	return Config{
		MaxAttempts: 0,
		BaseDelay:   10 * time.Second,
		MaxDelay:    60 * time.Second,
		Multiplier:  1.5,
	}
}

type Func func() error

type IsRetryable func(error) bool

var transientErrors = []string{
	"connection refused",
	"timeout",
	"temporary failure",
	"network is unreachable",
	"no such host",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"EOF",
	"status 502",
	"status 503",
	"status 504",
}

// DefaultIsRetryable treats transport-level failures as transient.
func DefaultIsRetryable(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	for _, transient := range transientErrors {
		if strings.Contains(msg, transient) {
			return true
		}
	}

	return false
}

// Do runs fn until it succeeds, a non-retryable error occurs, attempts run
// out, or ctx is done.
func Do(ctx context.Context, cfg Config, fn Func, isRetryable IsRetryable) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == cfg.MaxAttempts {
			break
		}

		if !isRetryable(err) {
			return err
		}

		delay := Delay(cfg, attempt)
		log.Debugf("attempt %d/%d failed, retrying in %v: %v", attempt, cfg.MaxAttempts, delay, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("all %d attempts failed, last error: %w", cfg.MaxAttempts, lastErr)
}

// Delay returns the wait before the attempt following the given one.
func Delay(cfg Config, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	return time.Duration(delay)
}
