package core

import (
	"fmt"
	"sync"
)

// RoundLimiter caps the number of reasoning round trips within one turn.
type RoundLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewRoundLimiter creates a limiter with a maximum number of rounds.
// If max == 0, unlimited rounds are allowed.
func NewRoundLimiter(max int) *RoundLimiter {
	return &RoundLimiter{max: max}
}

// Increment increases the round counter and returns ErrLoopBudgetExceeded
// once the limit is exceeded.
func (rl *RoundLimiter) Increment() error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.count++
	if rl.max > 0 && rl.count > rl.max {
		return fmt.Errorf("%w: %d rounds", ErrLoopBudgetExceeded, rl.max)
	}
	return nil
}

// Count returns the number of rounds consumed so far.
func (rl *RoundLimiter) Count() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.count
}

// Remaining returns how many rounds are left before hitting the limit,
// or -1 when unlimited.
func (rl *RoundLimiter) Remaining() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.max == 0 {
		return -1
	}
	return rl.max - rl.count
}
