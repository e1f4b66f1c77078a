package verify

import "fmt"

// Code classifies why verification failed.
type Code int

const (
	// CodeInvalidProof means cryptographic material failed to check out.
	CodeInvalidProof Code = iota + 1

	// CodeClaimMismatch means the proof is sound but attests to a
	// different claim than the caller expected.
	CodeClaimMismatch

	// CodeUnknownControlID means the receipt was produced by a recursion
	// program outside the verifier's trusted set.
	CodeUnknownControlID

	// CodeUnresolvedAssumption means the receipt is conditional on
	// assumptions that were never discharged.
	CodeUnresolvedAssumption

	// CodeVersionMismatch means the receipt container format is not one
	// this verifier understands.
	CodeVersionMismatch
)

// String returns the code name.
func (c Code) String() string {
	switch c {
	case CodeInvalidProof:
		return "invalid proof"
	case CodeClaimMismatch:
		return "claim mismatch"
	case CodeUnknownControlID:
		return "unknown control ID"
	case CodeUnresolvedAssumption:
		return "unresolved assumption"
	case CodeVersionMismatch:
		return "version mismatch"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// Error is a classified verification failure.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements error.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("verify: %s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("verify: %s: %s", e.Code, e.Message)
}

// Unwrap returns the cause of the error.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newError(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}
