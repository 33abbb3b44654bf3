package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// instantRetrier records requested delays instead of sleeping.
func instantRetrier(maxAttempts int, delays *[]time.Duration) Retrier {
	return Retrier{
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Second,
		Jitter:       func() time.Duration { return 250 * time.Millisecond },
		Sleep: func(ctx context.Context, d time.Duration) error {
			if delays != nil {
				*delays = append(*delays, d)
			}
			return nil
		},
	}
}

func TestWithRetry_ExhaustsOnServiceUnavailable(t *testing.T) {
	for _, maxAttempts := range []int{3, 4, 5} {
		t.Run(fmt.Sprintf("max=%d", maxAttempts), func(t *testing.T) {
			unavailable := &HTTPStatusError{Provider: "openai", Code: 503, Status: "Service Unavailable"}
			calls := 0
			_, err := WithRetry(context.Background(), instantRetrier(maxAttempts, nil), "Graph", nil,
				func(ctx context.Context) (string, error) {
					calls++
					return "", unavailable
				})

			assert.Equal(t, maxAttempts, calls)
			assert.Same(t, unavailable, err)
		})
	}
}

func TestWithRetry_NotFoundIsAttemptedOnce(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"fatal status", statusError("gemini", 404, "NOT_FOUND", "models/foo is not found")},
		{"plain message", errors.New("rpc error: entity not found")},
		{"bare code", errors.New("request failed with 404")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			_, err := WithRetry(context.Background(), instantRetrier(5, nil), "Graph", nil,
				func(ctx context.Context) (int, error) {
					calls++
					return 0, tt.err
				})
			assert.Equal(t, 1, calls)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestWithRetry_ParseErrorNotRetried(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), instantRetrier(3, nil), "Graph", nil,
		func(ctx context.Context) (string, error) {
			calls++
			return "", &ParseError{Text: "nope", Err: errors.New("bad json")}
		})
	assert.Equal(t, 1, calls)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	var delays []time.Duration
	var events []string
	obs := domain.ObserverFunc(func(msg string) { events = append(events, msg) })

	calls := 0
	got, err := WithRetry(context.Background(), instantRetrier(5, &delays), "Belief graph generation", obs,
		func(ctx context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", &HTTPStatusError{Provider: "cerebras", Code: 429}
			}
			return "ok", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	// 1s, then 1s*2 + 250ms jitter.
	assert.Equal(t, []time.Duration{time.Second, 2250 * time.Millisecond}, delays)
	assert.Equal(t, []string{
		"Belief graph generation failed, retrying (attempt 2 of 5)...",
		"Belief graph generation failed, retrying (attempt 3 of 5)...",
	}, events)
}

func TestWithRetry_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := Retrier{
		MaxAttempts:  3,
		InitialDelay: time.Hour,
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}

	calls := 0
	_, err := WithRetry(ctx, r, "Graph", nil, func(ctx context.Context) (string, error) {
		calls++
		return "", &HTTPStatusError{Code: 502}
	})
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429", &HTTPStatusError{Code: 429}, true},
		{"500", &HTTPStatusError{Code: 500}, true},
		{"504", &HTTPStatusError{Code: 504}, true},
		{"400", &HTTPStatusError{Code: 400}, false},
		{"401", &HTTPStatusError{Code: 401}, false},
		{"fatal 404", statusError("gemini", 404, "", ""), false},
		{"transport timeout", &TransportError{Err: errors.New("dial tcp: i/o timeout")}, true},
		{"transport refused", &TransportError{Err: errors.New("connection refused")}, true},
		{"rate limit text", errors.New("Rate limit reached for requests"), true},
		{"resource exhausted", errors.New("rpc error: code = ResourceExhausted desc = RESOURCE_EXHAUSTED"), true},
		{"code in text", errors.New("upstream replied 503"), true},
		{"code inside number", errors.New("request id 15030 failed"), false},
		{"validation", &ValidationError{Field: "prompt"}, false},
		{"parse", &ParseError{Err: errors.New("x")}, false},
		{"cancelled", context.Canceled, false},
		{"wrapped 502", fmt.Errorf("generate: %w", &HTTPStatusError{Code: 502}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestHTTPStatusError_Message(t *testing.T) {
	withMsg := &HTTPStatusError{Provider: "openai", Code: 401, Status: "Unauthorized", ProviderMessage: "Incorrect API key"}
	assert.Equal(t, "openai API returned status 401: Incorrect API key", withMsg.Error())

	bare := &HTTPStatusError{Provider: "openai", Code: 502}
	assert.Equal(t, "openai API returned status 502: Bad Gateway", bare.Error())
}
