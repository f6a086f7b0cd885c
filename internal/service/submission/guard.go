package submission

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/krobus00/order-entry/internal/entity"
	"github.com/sirupsen/logrus"
)

const defaultGuardTTL = time.Minute

// Guard allows at most one in-flight submission per key. Acquire returns
// entity.ErrSubmissionInFlight when the key is already held.
type Guard interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type MemoryGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{inFlight: make(map[string]struct{})}
}

func (g *MemoryGuard) Acquire(_ context.Context, key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.inFlight[key]; ok {
		return nil, entity.ErrSubmissionInFlight
	}
	g.inFlight[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, key)
			g.mu.Unlock()
		})
	}, nil
}

// Locker is an owner-checked lock with expiry, as provided by the redis
// draft store.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration, owner string) (bool, error)
	ReleaseLock(ctx context.Context, key string, owner string) error
}

// LockGuard shares the in-flight guard between gateway replicas. The TTL
// must outlive the placement timeout.
type LockGuard struct {
	locker Locker
	ttl    time.Duration
}

func NewLockGuard(locker Locker, ttl time.Duration) *LockGuard {
	if ttl <= 0 {
		ttl = defaultGuardTTL
	}

	return &LockGuard{locker: locker, ttl: ttl}
}

func (g *LockGuard) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := "order-entry:submit:" + key
	owner := uuid.NewString()

	acquired, err := g.locker.AcquireLock(ctx, lockKey, g.ttl, owner)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, entity.ErrSubmissionInFlight
	}

	return func() {
		if err := g.locker.ReleaseLock(context.Background(), lockKey, owner); err != nil {
			logrus.WithFields(logrus.Fields{
				"key":   lockKey,
				"owner": owner,
			}).Errorf("failed to release submission guard: %v", err)
		}
	}, nil
}
