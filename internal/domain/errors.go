package domain

import (
	"errors"
	"fmt"
)

// Category sentinels shared across subsystems.
var (
	ErrNotFound         = fmt.Errorf("not found")
	ErrTimeout          = fmt.Errorf("operation timed out")
	ErrPermissionDenied = fmt.Errorf("permission denied")
	ErrInvalidInput     = fmt.Errorf("invalid input")
	ErrUnavailable      = fmt.Errorf("unavailable")
)

// Sentinel errors for the node layer.
var (
	ErrIdentityNotInitialized = fmt.Errorf("identity not initialized")
	ErrCommandUnknown         = fmt.Errorf("unknown command")
	ErrCommandClaimed         = fmt.Errorf("command already claimed")
	ErrPairingRejected        = fmt.Errorf("pairing rejected by gateway")
	ErrAuthInvalid            = fmt.Errorf("authentication failed")
	ErrGatewayUnreachable     = fmt.Errorf("gateway unreachable")
	ErrNotConnected           = fmt.Errorf("not connected")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "IdentityStore.Sign")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsPermissionDenied reports whether err stems from an OS-level access denial.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}
