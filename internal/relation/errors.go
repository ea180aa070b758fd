package relation

import (
	"errors"
	"fmt"
)

var (
	ErrHeading             = errors.New("novarel: bad heading")
	ErrConstraintViolation = errors.New("novarel: constraint violation")
	ErrInvalidOperation    = errors.New("novarel: invalid operation")
	ErrOperandMismatch     = errors.New("novarel: operand mismatch")
	ErrArity               = errors.New("novarel: bad constraint parameter")

	// ErrStopScan ends a scan early; Scan returns nil for it.
	ErrStopScan = errors.New("novarel: stop scan")
)

// ConstraintError names the relation and constraint that failed. The
// mutation that triggered it has already been reverted.
type ConstraintError struct {
	Relation   string
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	rel := e.Relation
	if rel == "" {
		rel = "<anonymous>"
	}
	if e.Err != nil {
		return fmt.Sprintf("novarel: constraint %s on %s: %v", e.Constraint, rel, e.Err)
	}
	return fmt.Sprintf("novarel: constraint %s on %s violated", e.Constraint, rel)
}

func (e *ConstraintError) Is(target error) bool { return target == ErrConstraintViolation }

func (e *ConstraintError) Unwrap() error { return e.Err }
