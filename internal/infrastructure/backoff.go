package infrastructure

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

type backoffSettings struct {
	factor    float64
	minJitter time.Duration
	maxJitter time.Duration
}

// retryPolicy is exponential backoff with jitter, shared by every
// connection this package opens.
type retryPolicy struct {
	backoffSettings

	mu  sync.Mutex
	rng *rand.Rand
}

func newRetryPolicy(factor float64, minJitter, maxJitter time.Duration, defaults backoffSettings) *retryPolicy {
	if factor < 1 {
		factor = defaults.factor
	}
	if minJitter <= 0 {
		minJitter = defaults.minJitter
	}
	if maxJitter <= 0 {
		maxJitter = defaults.maxJitter
	}
	if maxJitter < minJitter {
		maxJitter = minJitter
	}

	return &retryPolicy{
		backoffSettings: backoffSettings{
			factor:    factor,
			minJitter: minJitter,
			maxJitter: maxJitter,
		},
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *retryPolicy) delay(attempt int) time.Duration {
	backoff := float64(p.minJitter) * math.Pow(p.factor, float64(attempt))
	if backoff > float64(p.maxJitter) {
		backoff = float64(p.maxJitter)
	}

	base := time.Duration(backoff)
	if p.maxJitter <= p.minJitter {
		return base
	}

	p.mu.Lock()
	jitter := time.Duration(p.rng.Int63n(int64(p.maxJitter-p.minJitter) + 1))
	p.mu.Unlock()

	result := base + jitter
	if result > p.maxJitter {
		return p.maxJitter
	}

	return result
}
