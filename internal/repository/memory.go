package repository

import (
	"context"
	"sync"

	"outreach/internal/domain"
)

// MemoryLease only excludes runs inside one process. Used when Redis is not
// configured; cross-process exclusion is then left to the scheduler.
type MemoryLease struct {
	mu   sync.Mutex
	held bool
}

func NewMemoryLease() *MemoryLease {
	return &MemoryLease{}
}

func (l *MemoryLease) Acquire(ctx context.Context) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, domain.ErrLeaseHeld
	}
	l.held = true

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			l.held = false
			l.mu.Unlock()
		})
		return nil
	}, nil
}
