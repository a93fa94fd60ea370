package dispatch

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// AccountLimiters manages one rate limiter per mail account, enforcing
// a minimum inter-send interval. Concurrent sends for the same account
// queue on the limiter instead of racing the provider's limits.
type AccountLimiters struct {
	limiters map[uint]*rate.Limiter
	mu       sync.Mutex
	interval time.Duration
}

// NewAccountLimiters creates a limiter registry with the given minimum
// interval between sends per account.
func NewAccountLimiters(minInterval time.Duration) *AccountLimiters {
	return &AccountLimiters{
		limiters: make(map[uint]*rate.Limiter),
		interval: minInterval,
	}
}

// Get returns the rate limiter for the given account
func (l *AccountLimiters) Get(accountID uint) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.limiters[accountID]
	if !exists {
		limiter = rate.NewLimiter(rate.Every(l.interval), 1)
		l.limiters[accountID] = limiter
	}

	return limiter
}

// Forget drops an account's limiter, e.g. after deactivation.
func (l *AccountLimiters) Forget(accountID uint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, accountID)
}
