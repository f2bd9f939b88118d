package sim

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDomain is matched by DomainError via errors.Is.
	ErrDomain = errors.New("domain error")
	// ErrCausality is matched by CausalityError via errors.Is.
	ErrCausality = errors.New("causality violation")
	// ErrInvalidParameter reports a run-control parameter outside its range.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// DomainError reports a distribution parameter outside its domain,
// e.g. a non-positive exponential rate.
type DomainError struct {
	Stream string
	Rate   float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("stream %q: exponential rate must be > 0, got %v", e.Stream, e.Rate)
}

// Is makes errors.Is(err, ErrDomain) true.
func (e *DomainError) Is(target error) bool { return target == ErrDomain }

// CausalityError reports an attempt to schedule an event before the current clock.
// It always indicates an engine bug.
type CausalityError struct {
	Clock float64
	At    float64
	Kind  EventKind
}

func (e *CausalityError) Error() string {
	return fmt.Sprintf("%s event scheduled at %v, before clock %v", e.Kind, e.At, e.Clock)
}

// Is makes errors.Is(err, ErrCausality) true.
func (e *CausalityError) Is(target error) bool { return target == ErrCausality }

// ValidationError aggregates every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration (%d problems): %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

func (e *ValidationError) addf(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// errOrNil returns e only if it recorded at least one problem.
func (e *ValidationError) errOrNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}
