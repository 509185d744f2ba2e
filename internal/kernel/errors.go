package kernel

import (
	"errors"
	"fmt"
)

// ProtocolError represents a rejected kernel operation.
//
// Protocol errors fall into three categories:
//   - Integrity violation: the seal or state record is corrupt
//   - Phase order violation: the operation was called out of protocol order
//   - Precondition failure: the operation's state-field guard is unmet
//
// Every rejection is fail-closed: the kernel mutates nothing.
type ProtocolError struct {
	// Code identifies the error category.
	Code ProtocolErrorCode

	// Message is a human-readable description.
	Message string

	// Op identifies the rejected operation (empty for checks performed
	// outside an operation, such as manifest verification).
	Op Op

	// Want describes the required condition.
	Want string

	// Got describes the observed condition.
	Got string
}

// ProtocolErrorCode categorizes protocol errors.
type ProtocolErrorCode string

const (
	// ErrCodeIntegrity indicates the seal or state record failed an
	// integrity check.
	ErrCodeIntegrity ProtocolErrorCode = "INTEGRITY_VIOLATION"

	// ErrCodePhaseOrder indicates an operation was called outside its
	// protocol position.
	ErrCodePhaseOrder ProtocolErrorCode = "PHASE_ORDER_VIOLATION"

	// ErrCodePrecondition indicates an operation's state-field guard
	// was not satisfied.
	ErrCodePrecondition ProtocolErrorCode = "PRECONDITION_FAILED"
)

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Op != "" && e.Want != "" {
		return fmt.Sprintf("%s: %s (op=%s, want=%s, got=%s)", e.Code, e.Message, e.Op, e.Want, e.Got)
	}
	if e.Want != "" {
		return fmt.Sprintf("%s: %s (want=%s, got=%s)", e.Code, e.Message, e.Want, e.Got)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s (op=%s)", e.Code, e.Message, e.Op)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsIntegrityError returns true if the error is an integrity violation.
// Uses errors.As to handle wrapped errors.
func IsIntegrityError(err error) bool {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeIntegrity
	}
	return false
}

// IsPhaseOrderError returns true if the error is a phase order violation.
// Uses errors.As to handle wrapped errors.
func IsPhaseOrderError(err error) bool {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodePhaseOrder
	}
	return false
}

// IsPreconditionError returns true if the error is a precondition failure.
// Uses errors.As to handle wrapped errors.
func IsPreconditionError(err error) bool {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodePrecondition
	}
	return false
}

// NewIntegrityError creates a ProtocolError for a failed integrity check.
func NewIntegrityError(check, want, got string) *ProtocolError {
	return &ProtocolError{
		Code:    ErrCodeIntegrity,
		Message: fmt.Sprintf("integrity check failed: %s", check),
		Want:    want,
		Got:     got,
	}
}

// NewPhaseOrderError creates a ProtocolError for an out-of-order operation.
func NewPhaseOrderError(op Op, want, got string) *ProtocolError {
	return &ProtocolError{
		Code:    ErrCodePhaseOrder,
		Message: "operation called out of protocol order",
		Op:      op,
		Want:    want,
		Got:     got,
	}
}

// NewPreconditionError creates a ProtocolError for an unmet state guard.
func NewPreconditionError(op Op, want, got string) *ProtocolError {
	return &ProtocolError{
		Code:    ErrCodePrecondition,
		Message: "operation precondition not satisfied",
		Op:      op,
		Want:    want,
		Got:     got,
	}
}
