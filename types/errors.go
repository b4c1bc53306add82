package types

import (
	"errors"
	"fmt"
)

// Error categories. Every specific error in the module wraps exactly one of these.
var (
	// ErrValidation is bad input shape or range, caught before any network call.
	ErrValidation = errors.New("validation error")
	// ErrNetwork is a transport failure. Queries may be retried, submissions may not.
	ErrNetwork = errors.New("network error")
	// ErrRejected means the node refused the transaction; the nonce was not consumed.
	ErrRejected = errors.New("transaction rejected")
	// ErrReverted means execution failed; for included transactions the nonce was consumed.
	ErrReverted = errors.New("execution reverted")
	// ErrTimeout means a receipt was not observed in time; the outcome is unknown.
	ErrTimeout = errors.New("timed out")
)

// Validation errors shared by several packages.
var (
	ErrInvalidTransactionParameters = fmt.Errorf("%w: invalid transaction parameters", ErrValidation)
	ErrUnknownFunction              = fmt.Errorf("%w: unknown function", ErrValidation)
	ErrArgumentTypeMismatch         = fmt.Errorf("%w: argument type mismatch", ErrValidation)
	ErrArtifactNotFound             = fmt.Errorf("%w: artifact not found", ErrValidation)
)
