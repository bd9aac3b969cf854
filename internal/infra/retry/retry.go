// internal/infra/retry/retry.go
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultRetries is the number of retries after the first attempt.
const DefaultRetries = 3

// linearBackOff waits attempt × unit before each retry.
type linearBackOff struct {
	unit    time.Duration
	attempt int
}

func (l *linearBackOff) NextBackOff() time.Duration {
	l.attempt++
	return time.Duration(l.attempt) * l.unit
}

func (l *linearBackOff) Reset() { l.attempt = 0 }

// Policy runs a call up to Retries+1 times.
type Policy struct {
	Retries int
	Unit    time.Duration
}

func Default() Policy {
	return Policy{Retries: DefaultRetries, Unit: time.Second}
}

// WithRetries returns a copy of the policy with a different retry count.
func (p Policy) WithRetries(n int) Policy {
	p.Retries = n
	return p
}

// Do calls fn until it succeeds, returns a permanent error, the retries are
// exhausted or ctx is done. The last error is returned.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	var b backoff.BackOff = &linearBackOff{unit: p.Unit}
	b = backoff.WithMaxRetries(b, uint64(max(p.Retries, 0)))
	return backoff.Retry(fn, backoff.WithContext(b, ctx))
}

// Permanent marks err so Do stops retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *backoff.PermanentError
	return errors.As(err, &p)
}
