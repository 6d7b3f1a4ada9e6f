package client

import (
	"context"
	"errors"
	"log"
	"time"
)

// RetryPolicy is the one retry behavior shared by board fetches and pixel
// writes: fixed backoff, bounded attempts, transient failures only.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration

	// Sleep is ctx-aware and injectable for tests. Nil means real sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 10,
		Backoff:     2 * time.Minute,
	}
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// refresher is the slice of auth.Manager the retry loop needs.
type refresher interface {
	Refresh(ctx context.Context) error
}

// run drives one logical call through the retry policy. attempt performs a
// single raw request and returns a classified error.
//
// Transient failures burn an attempt each and back off in between; auth
// failures get exactly one refresh-and-retry that does not touch the
// transient budget; everything else surfaces immediately.
func (p RetryPolicy) run(ctx context.Context, logger *log.Logger, creds refresher, op string, attempt func(context.Context) error) error {
	attempts := 0
	authRetried := false
	for {
		err := attempt(ctx)
		if err == nil {
			return nil
		}

		var te *TransientError
		if errors.As(err, &te) {
			attempts++
			if attempts >= p.MaxAttempts {
				logger.Printf("%s: max retries (%d) reached", op, p.MaxAttempts)
				return &RetryExhausted{Op: op, Attempts: attempts, Last: err}
			}
			logger.Printf("%s: %v (attempt %d/%d), waiting %s before retry", op, err, attempts, p.MaxAttempts, p.Backoff)
			if serr := p.sleep(ctx, p.Backoff); serr != nil {
				return serr
			}
			continue
		}

		var ae *AuthError
		if errors.As(err, &ae) && !authRetried {
			authRetried = true
			if ae.TokensRotated {
				logger.Printf("%s: tokens rotated by authority, retrying", op)
				continue
			}
			logger.Printf("%s: credentials rejected, refreshing", op)
			if rerr := creds.Refresh(ctx); rerr != nil {
				logger.Printf("%s: refresh failed: %v", op, rerr)
				return err
			}
			continue
		}

		return err
	}
}
