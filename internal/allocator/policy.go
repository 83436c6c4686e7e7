package allocator

import (
	"errors"
	"fmt"

	"outreach/internal/models"
)

var (
	ErrInvalidPolicy   = errors.New("invalid sizing policy")
	ErrInvalidProgress = errors.New("invalid progress marker")
	ErrNoDestinations  = errors.New("no destinations")
)

// Kind selects how many rows a run hands out.
type Kind int

const (
	// Fixed gives every destination Size rows on every run.
	Fixed Kind = iota
	// Incremental gives every destination Base + (day-1)*Increment rows.
	Incremental
	// FixedPool takes Size rows per run in total and splits them across destinations.
	FixedPool
)

func (k Kind) String() string {
	switch k {
	case Fixed:
		return models.AssignFixed
	case Incremental:
		return models.AssignIncremental
	case FixedPool:
		return models.AssignPool
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Policy is a sizing rule. Size is the per-destination count for Fixed and the
// per-run pool for FixedPool.
type Policy struct {
	Kind      Kind
	Size      int
	Base      int
	Increment int
}

func FixedPolicy(size int) Policy { return Policy{Kind: Fixed, Size: size} }

func IncrementalPolicy(base, increment int) Policy {
	return Policy{Kind: Incremental, Base: base, Increment: increment}
}

func PoolPolicy(pool int) Policy { return Policy{Kind: FixedPool, Size: pool} }

// ParseKind maps a configured assign type to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case models.AssignFixed:
		return Fixed, nil
	case models.AssignIncremental:
		return Incremental, nil
	case models.AssignPool:
		return FixedPool, nil
	default:
		return 0, fmt.Errorf("%w: unknown assign type %q", ErrInvalidPolicy, s)
	}
}

func (p Policy) Validate() error {
	switch p.Kind {
	case Fixed, FixedPool:
		if p.Size < 0 {
			return fmt.Errorf("%w: size %d is negative", ErrInvalidPolicy, p.Size)
		}
	case Incremental:
		if p.Base < 0 || p.Increment < 0 {
			return fmt.Errorf("%w: base %d / increment %d must not be negative", ErrInvalidPolicy, p.Base, p.Increment)
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidPolicy, p.Kind)
	}
	return nil
}

// PerDestination is the chunk width on the given 1-based day for n destinations.
func (p Policy) PerDestination(day, n int) int {
	if day < 1 {
		day = 1
	}
	switch p.Kind {
	case Fixed:
		return p.Size
	case Incremental:
		return p.Base + (day-1)*p.Increment
	case FixedPool:
		if n <= 0 {
			return 0
		}
		return (p.Size + n - 1) / n
	}
	return 0
}

// Total is the number of rows requested on the given day for n destinations.
func (p Policy) Total(day, n int) int {
	if p.Kind == FixedPool {
		return p.Size
	}
	return p.PerDestination(day, n) * n
}
