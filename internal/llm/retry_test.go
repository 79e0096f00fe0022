package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetrySingleAttemptIsPassthrough(t *testing.T) {
	inner := CompleterFunc(func(ctx context.Context, req Request) (string, error) {
		return "ok", nil
	})

	wrapped := WithRetry(inner, RetryPolicy{Attempts: 1})

	_, isRetrying := wrapped.(*Retrying)
	assert.False(t, isRetrying)
}

func TestWithRetryRetriesRateLimits(t *testing.T) {
	calls := 0
	inner := CompleterFunc(func(ctx context.Context, req Request) (string, error) {
		calls++
		if calls < 3 {
			return "", &ProviderError{Provider: "stub", Kind: KindRateLimited, StatusCode: 429}
		}
		return `{"ok":true}`, nil
	})

	wrapped := WithRetry(inner, RetryPolicy{Attempts: 3, Delay: time.Millisecond})
	out, err := wrapped.Complete(context.Background(), Request{})

	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, 3, calls)
}

func TestWithRetryStopsOnOtherFailures(t *testing.T) {
	calls := 0
	inner := CompleterFunc(func(ctx context.Context, req Request) (string, error) {
		calls++
		return "", &ProviderError{Provider: "stub", Kind: KindProvider, Message: "invalid model"}
	})

	wrapped := WithRetry(inner, RetryPolicy{Attempts: 5, Delay: time.Millisecond})
	_, err := wrapped.Complete(context.Background(), Request{})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, KindProvider, KindOf(err))
	assert.Equal(t, "invalid model", MessageOf(err))
}

func TestWithRetryExhausted(t *testing.T) {
	calls := 0
	inner := CompleterFunc(func(ctx context.Context, req Request) (string, error) {
		calls++
		return "", &ProviderError{Provider: "stub", Kind: KindRateLimited}
	})

	wrapped := WithRetry(inner, RetryPolicy{Attempts: 2, Delay: time.Millisecond})
	_, err := wrapped.Complete(context.Background(), Request{})

	assert.Equal(t, 2, calls)
	assert.Equal(t, KindRateLimited, KindOf(err))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Empty(t, MessageOf(errors.New("boom")))
}
