package cdp

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
)

// DefaultMaxAttempts is the number of discovery requests made before giving up.
const DefaultMaxAttempts = 5

// DiscoverWithRetry calls fetcher until it succeeds or maxAttempts requests
// have failed. Between attempts it waits for the next interval of b, which
// defaults to a Schedule. The loop is bounded by maxAttempts regardless of b;
// if b returns backoff.Stop earlier, the run ends there.
//
// On exhaustion the error is a *RetryExhaustedError carrying the last
// discovery failure. If ctx ends during a wait, the context error is joined
// with the last failure.
func DiscoverWithRetry(
	ctx context.Context,
	log logr.Logger,
	fetcher TargetFetcher,
	command string,
	maxAttempts int,
	b backoff.BackOff,
) (*DiscoveryResult, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if b == nil {
		b = NewSchedule()
	}
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	policy := backoff.WithMaxRetries(b, uint64(maxAttempts-1))
	policy.Reset()

	var lastErr error
	attempts := 0
	for attempt := 0; attempt < maxAttempts; attempt++ {
		log.V(1).Info("Running JSON command", "command", command, "attempt", attempt+1, "maxAttempts", maxAttempts)

		result, err := fetcher.FetchTarget(ctx, command)
		attempts++
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Join(lastErr, ctxErr)
		}

		pause := policy.NextBackOff()
		if pause == backoff.Stop {
			break
		}

		log.V(1).Info("JSON command failed, waiting before retry", "attempt", attempt+1, "wait", pause, "error", err.Error())
		if err := sleep(ctx, pause); err != nil {
			return nil, errors.Join(lastErr, err)
		}
	}

	log.Info("Giving up on discovery endpoint", "command", command, "attempts", attempts)
	return nil, &RetryExhaustedError{Attempts: attempts, Last: lastErr}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
