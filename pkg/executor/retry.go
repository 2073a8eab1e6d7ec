package executor

import (
	"math"
	"time"

	"conveyor/pkg/util/context"
)

// RetryPolicy bounds the automatic re-execution of idempotent stages on
// transient execution errors. Backoff is exponential, base * 2^attempt,
// capped. The shape follows go-retryablehttp's DefaultBackoff.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration
}

// DefaultRetryPolicy allows two retries after the first attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Base:        500 * time.Millisecond,
		Cap:         8 * time.Second,
	}
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := time.Duration(float64(p.Base) * math.Pow(2, float64(attempt)))
	if d > p.Cap {
		return p.Cap
	}
	return d
}

// Do invokes f until it succeeds, the attempt budget is exhausted, or the
// error is not retryable. Only idempotent stages retry, and only on
// transient execution errors; timeouts and cancellations are final.
// Returns the outputs of the last attempt and the number of attempts made.
func Do(ctx context.Context, policy RetryPolicy, idempotent bool, f func() (Outputs, error)) (Outputs, int, error) {
	max := policy.MaxAttempts
	if max < 1 || !idempotent {
		max = 1
	}

	var out Outputs
	var err error
	for attempt := 0; attempt < max; attempt++ {
		out, err = f()
		if err == nil {
			return out, attempt + 1, nil
		}
		if !idempotent || !IsTransient(err) || attempt == max-1 {
			return nil, attempt + 1, err
		}
		select {
		case <-time.After(policy.backoff(attempt)):
		case <-ctx.Done():
			return nil, attempt + 1, err
		}
	}
	return nil, max, err
}
