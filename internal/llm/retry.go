package llm

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
	"invoiceapi/internal/logger"
)

// RetryPolicy controls the Retrying decorator.
type RetryPolicy struct {
	Attempts uint
	Delay    time.Duration
}

// Retrying wraps a Completer and repeats calls that failed with
// KindRateLimited. Other failures are returned after the first attempt.
type Retrying struct {
	next   Completer
	policy RetryPolicy
	log    zerolog.Logger
}

// WithRetry decorates next. Policies with fewer than two attempts return next
// unchanged.
func WithRetry(next Completer, policy RetryPolicy) Completer {
	if policy.Attempts < 2 {
		return next
	}
	return &Retrying{
		next:   next,
		policy: policy,
		log:    logger.WithComponent("llm-retry"),
	}
}

func (r *Retrying) Complete(ctx context.Context, req Request) (string, error) {
	return retry.DoWithData(
		func() (string, error) {
			return r.next.Complete(ctx, req)
		},
		retry.Context(ctx),
		retry.Attempts(r.policy.Attempts),
		retry.Delay(r.policy.Delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return KindOf(err) == KindRateLimited
		}),
		retry.OnRetry(func(n uint, err error) {
			r.log.Warn().
				Err(err).
				Uint("attempt", n+1).
				Uint("max_attempts", r.policy.Attempts).
				Msg("Rate limited by provider, retrying")
		}),
	)
}
