package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = time.Second
	maxJitter           = time.Second
)

var retryableStatus = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

var retryableMessages = []string{
	"rate limit",
	"too many requests",
	"resource_exhausted",
	"resource exhausted",
	"quota",
	"overloaded",
	"unavailable",
	"bad gateway",
	"gateway",
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection reset",
	"connection refused",
	"unexpected eof",
	"internal error",
}

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var fatal *FatalProviderError
	var parseErr *ParseError
	var validationErr *ValidationError
	if errors.As(err, &fatal) || errors.As(err, &parseErr) || errors.As(err, &validationErr) {
		return false
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return retryableStatus[statusErr.Code]
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "not found") || containsCode(msg, 404) {
		return false
	}
	for code := range retryableStatus {
		if containsCode(msg, code) {
			return true
		}
	}
	for _, m := range retryableMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// Retrier configures WithRetry. The zero value retries DefaultMaxAttempts
// times starting at DefaultInitialDelay.
type Retrier struct {
	MaxAttempts  int
	InitialDelay time.Duration
	// Jitter returns the random extra delay added after each failure.
	Jitter func() time.Duration
	// Sleep waits for d or until ctx is done.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *zap.Logger
}

func (r Retrier) withDefaults() Retrier {
	if r.MaxAttempts < 1 {
		r.MaxAttempts = DefaultMaxAttempts
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = DefaultInitialDelay
	}
	if r.Jitter == nil {
		r.Jitter = func() time.Duration { return rand.N(maxJitter) }
	}
	if r.Sleep == nil {
		r.Sleep = sleepContext
	}
	if r.Logger == nil {
		r.Logger = zap.NewNop()
	}
	return r
}

// WithRetry runs op until it succeeds, fails with a non-retryable error, or
// MaxAttempts is reached. After each retryable failure the delay doubles and
// gains up to a second of jitter. The last error is returned unchanged.
func WithRetry[T any](ctx context.Context, r Retrier, action string, obs domain.Observer, op func(context.Context) (T, error)) (T, error) {
	r = r.withDefaults()
	delay := r.InitialDelay

	var zero T
	var lastErr error
	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == r.MaxAttempts {
			break
		}

		r.Logger.Warn("retrying provider call",
			zap.String("action", action),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err))
		domain.Notify(obs, fmt.Sprintf("%s failed, retrying (attempt %d of %d)...", action, attempt+1, r.MaxAttempts))

		if err := r.Sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("%s: %w", action, err)
		}
		delay = delay*2 + r.Jitter()
	}
	return zero, lastErr
}

// containsCode reports whether msg mentions code as a standalone number.
func containsCode(msg string, code int) bool {
	needle := strconv.Itoa(code)
	for i := 0; i+len(needle) <= len(msg); i++ {
		j := strings.Index(msg[i:], needle)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(needle)
		if (start == 0 || !isDigit(msg[start-1])) && (end == len(msg) || !isDigit(msg[end])) {
			return true
		}
		i = start
	}
	return false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
