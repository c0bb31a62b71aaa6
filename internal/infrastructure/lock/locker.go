// Package lock provides the key lockers used by the ledger coordinator: an
// in-process locker for single-instance deployments and tests, and a Redis
// locker for deployments with several instances.
package lock

import (
	"fmt"
	"time"

	"github.com/erp/retailops/internal/domain/shared"
)

// Options bound how long a locker keeps trying to obtain a busy key.
type Options struct {
	// Retries is the number of attempts after the first one.
	Retries int
	// MinBackoff is the wait before the first retry; it doubles per retry.
	MinBackoff time.Duration
	// MaxBackoff caps a single wait.
	MaxBackoff time.Duration
	// TTL is how long a distributed lock is held before it expires on its
	// own. The in-process locker ignores it.
	TTL time.Duration
}

// DefaultOptions retries eight times between 2ms and 200ms and holds
// distributed locks for 30s.
func DefaultOptions() Options {
	return Options{
		Retries:    8,
		MinBackoff: 2 * time.Millisecond,
		MaxBackoff: 200 * time.Millisecond,
		TTL:        30 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.MinBackoff <= 0 {
		o.MinBackoff = d.MinBackoff
	}
	if o.MaxBackoff < o.MinBackoff {
		o.MaxBackoff = o.MinBackoff
	}
	if o.TTL <= 0 {
		o.TTL = d.TTL
	}
	return o
}

// backoff returns the wait before retry n (0-based).
func (o Options) backoff(n int) time.Duration {
	d := o.MinBackoff << uint(n)
	if d <= 0 || d > o.MaxBackoff {
		return o.MaxBackoff
	}
	return d
}

func busy(key string) error {
	return shared.NewDomainError(shared.CodeConflict, fmt.Sprintf("lock %s is held by another operation", key))
}
