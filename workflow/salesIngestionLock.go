package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/lealcafe/ventas_backend/models"
)

const (
	periodLockTTL  = 2 * time.Minute
	periodLockWait = 15 * time.Second
)

// PeriodLocker serializes uploads that target the same period. It is an optimization only:
// the unique keys keep the tables correct without it.
type PeriodLocker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// RedisPeriodLocker waits up to periodLockWait for a concurrent upload of the same period.
type RedisPeriodLocker struct {
	Client *redislock.Client
}

func (l RedisPeriodLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	if l.Client == nil {
		return nil, fmt.Errorf("redis lock not ready")
	}
	waitCtx, cancel := context.WithTimeout(ctx, periodLockWait)
	defer cancel()
	lock, err := l.Client.Obtain(waitCtx, key, ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(250 * time.Millisecond),
	})
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}

func periodLockKey(p models.Period) string {
	return fmt.Sprintf("lock:ventas:%s:%d:%d:%d", p.Sucursal, p.Anio, p.Mes, p.Semana)
}
