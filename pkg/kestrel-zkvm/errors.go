package kestrelzkvm

import (
	"errors"
	"fmt"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/executor"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/groth16wrap"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/prove"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/receipt"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/recursion"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/verify"
)

// ErrorCode classifies pipeline failures for callers that switch on
// failure class rather than on wrapped sentinel errors.
type ErrorCode int

const (
	// ErrUnknown represents an unclassified error
	ErrUnknown ErrorCode = iota

	// ErrInvalidConfig represents an invalid configuration error
	ErrInvalidConfig

	// ErrGuestFault represents an illegal guest operation
	ErrGuestFault

	// ErrGuestPanic represents an explicit guest abort
	ErrGuestPanic

	// ErrCycleLimitExceeded represents a session that exhausted its
	// segment budget
	ErrCycleLimitExceeded

	// ErrProofGenerationFailure represents a segment proving error
	ErrProofGenerationFailure

	// ErrCompositionFailure represents a lift, join or resolve error
	ErrCompositionFailure

	// ErrWrappingFailure represents a Groth16 wrapping error
	ErrWrappingFailure

	// ErrInvalidProof represents cryptographic material that failed
	// verification
	ErrInvalidProof

	// ErrClaimMismatch represents a sound proof over the wrong claim
	ErrClaimMismatch

	// ErrUnknownControlID represents a receipt from an untrusted
	// recursion program
	ErrUnknownControlID

	// ErrUnresolvedAssumption represents a conditional receipt
	ErrUnresolvedAssumption

	// ErrVersionMismatch represents an unsupported receipt container
	ErrVersionMismatch
)

// Error wraps a pipeline failure with its classification.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("kestrel-zkvm error [%d]: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("kestrel-zkvm error [%d]: %s", e.Code, e.Message)
}

// Unwrap returns the cause of the error
func (e *Error) Unwrap() error { return e.Cause }

// Is checks if the error matches the target error
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// classify maps an internal pipeline error onto its public code.
func classify(err error) ErrorCode {
	var verr *verify.Error
	if errors.As(err, &verr) {
		switch verr.Code {
		case verify.CodeInvalidProof:
			return ErrInvalidProof
		case verify.CodeClaimMismatch:
			return ErrClaimMismatch
		case verify.CodeUnknownControlID:
			return ErrUnknownControlID
		case verify.CodeUnresolvedAssumption:
			return ErrUnresolvedAssumption
		case verify.CodeVersionMismatch:
			return ErrVersionMismatch
		}
	}

	switch {
	case errors.Is(err, executor.ErrGuestFault):
		return ErrGuestFault
	case errors.Is(err, executor.ErrGuestPanic):
		return ErrGuestPanic
	case errors.Is(err, executor.ErrCycleLimitExceeded):
		return ErrCycleLimitExceeded
	case errors.Is(err, recursion.ErrComposition):
		return ErrCompositionFailure
	case errors.Is(err, recursion.ErrUnknownControlID):
		return ErrUnknownControlID
	case errors.Is(err, recursion.ErrInvalidSeal):
		return ErrInvalidProof
	case errors.Is(err, prove.ErrProofGeneration):
		return ErrProofGenerationFailure
	case errors.Is(err, prove.ErrInvalidSeal):
		return ErrInvalidProof
	case errors.Is(err, groth16wrap.ErrWrapping):
		return ErrWrappingFailure
	case errors.Is(err, groth16wrap.ErrInvalidWrap):
		return ErrInvalidProof
	case errors.Is(err, receipt.ErrVersionMismatch):
		return ErrVersionMismatch
	default:
		return ErrUnknown
	}
}

// wrapError lifts an internal error into the public taxonomy. Callers can
// match with errors.Is against an &Error{Code: ...} target or reach the
// wrapped cause through errors.As.
func wrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: classify(err), Message: message, Cause: err}
}
