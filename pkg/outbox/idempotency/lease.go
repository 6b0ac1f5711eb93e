package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/gigflow-dispatch/pkg/redis"
)

// Lease is a short-lived exclusive claim on one record's side effect. It keeps
// two concurrent redeliveries from both reaching the external channel; the
// conditional status write stays the final arbiter.
// Keys look like gf:lease:<event_kind>:<record_id>.
type Lease struct {
	store redis.Store
	ttl   time.Duration
}

// NewLease builds a lease guard. The TTL must be positive so a crashed holder
// never blocks a record forever.
func NewLease(store redis.Store, ttl time.Duration) (*Lease, error) {
	if store == nil {
		return nil, errors.New("lease store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("lease ttl must be positive")
	}
	return &Lease{store: store, ttl: ttl}, nil
}

// Claim acquires the lease for scope/id on behalf of holder. It returns false
// while another holder owns it.
func (l *Lease) Claim(ctx context.Context, scope, id, holder string) (bool, error) {
	key, err := leaseKey(scope, id)
	if err != nil {
		return false, err
	}
	if holder == "" {
		return false, errors.New("lease holder is required")
	}
	return l.store.SetNX(ctx, key, holder, l.ttl)
}

// Release drops the lease if holder still owns it. Releasing a lease that
// expired or moved to another holder is a no-op.
func (l *Lease) Release(ctx context.Context, scope, id, holder string) error {
	key, err := leaseKey(scope, id)
	if err != nil {
		return err
	}
	_, err = l.store.DeleteIfValue(ctx, key, holder)
	return err
}

func leaseKey(scope, id string) (string, error) {
	if strings.TrimSpace(scope) == "" {
		return "", errors.New("lease scope is required")
	}
	if strings.TrimSpace(id) == "" {
		return "", errors.New("lease id is required")
	}
	return redis.Key(redis.KindLease, scope, id), nil
}
