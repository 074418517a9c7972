package sweeper

import (
	"sync"

	"golang.org/x/time/rate"
)

// LimitConfig defines per-department sweep behaviour such as rate limiting
// and concurrency.
type LimitConfig struct {
	// Department is the department identifier. Empty configures the global
	// queue.
	Department string

	// MaxConcurrent limits how many inquiries from this department may be
	// advanced simultaneously. Zero means no department-specific limit.
	MaxConcurrent int

	// RateLimit is the maximum sustained delegations per second for this
	// department. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// limitState tracks runtime state for a single department.
type limitState struct {
	config  LimitConfig
	limiter *rate.Limiter
	active  int
}

// Limiter controls per-department rate limiting and concurrency for queue
// sweeps. It is safe for concurrent use.
type Limiter struct {
	mu          sync.Mutex
	departments map[string]*limitState
}

// NewLimiter creates a Limiter with the given department configurations.
// Departments not listed here have no limits.
func NewLimiter(configs ...LimitConfig) *Limiter {
	l := &Limiter{departments: make(map[string]*limitState, len(configs))}
	for _, cfg := range configs {
		l.departments[cfg.Department] = newLimitState(cfg)
	}
	return l
}

func newLimitState(cfg LimitConfig) *limitState {
	ls := &limitState{config: cfg}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		ls.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return ls
}

// Acquire checks rate limits and concurrency for the department. If the
// inquiry may be advanced it increments the active counter and returns
// true. The caller MUST call Release when the advance completes.
func (l *Limiter) Acquire(department string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	ls := l.departments[department]
	if ls == nil {
		return true
	}
	if ls.limiter != nil && !ls.limiter.Allow() {
		return false
	}
	if ls.config.MaxConcurrent > 0 && ls.active >= ls.config.MaxConcurrent {
		return false
	}
	ls.active++
	return true
}

// Release decrements the active count for the department.
func (l *Limiter) Release(department string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ls := l.departments[department]; ls != nil && ls.active > 0 {
		ls.active--
	}
}

// SetConfig dynamically updates (or creates) a department configuration.
func (l *Limiter) SetConfig(cfg LimitConfig) {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing := l.departments[cfg.Department]
	ls := newLimitState(cfg)
	if existing != nil {
		ls.active = existing.active
	}
	l.departments[cfg.Department] = ls
}

// ActiveCount returns the current number of in-flight advances for a
// department.
func (l *Limiter) ActiveCount(department string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ls := l.departments[department]; ls != nil {
		return ls.active
	}
	return 0
}
