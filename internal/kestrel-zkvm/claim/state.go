package claim

import "fmt"

// SystemState is the public state of the machine at a segment boundary:
// the program counter and the root digest of the memory image. Its digest
// is what continuation chaining compares across adjacent segments, and the
// digest of the initial state doubles as the program's image ID.
type SystemState struct {
	// PC is the program counter.
	PC uint32 `json:"pc"`

	// MemoryRoot is the root digest committing to the full memory image.
	MemoryRoot Digest `json:"memory_root"`
}

// Digest hashes the system state into a commitment.
func (s SystemState) Digest() Digest {
	return taggedStruct("kestrel.SystemState", []Digest{s.MemoryRoot}, []uint32{s.PC})
}

// ExitKind classifies how a segment or session's execution terminated.
type ExitKind int

const (
	// ExitHalted is normal termination with a guest-supplied exit code.
	ExitHalted ExitKind = iota

	// ExitPaused is a guest-initiated pause; the session can be resumed
	// later with the user code preserved.
	ExitPaused

	// ExitSystemSplit is a host-forced segment boundary caused by the
	// cycle limit being reached. Only segments, never whole sessions,
	// carry this exit kind.
	ExitSystemSplit

	// ExitSessionLimit is reported by the host when the segment budget is
	// exhausted. It encodes to the same pair as ExitSystemSplit.
	ExitSessionLimit

	// ExitFault is termination at an instruction that would trap (e.g. an
	// out-of-bounds memory access). It encodes to the same pair as
	// ExitSystemSplit.
	ExitFault
)

// String returns the exit kind name.
func (k ExitKind) String() string {
	switch k {
	case ExitHalted:
		return "Halted"
	case ExitPaused:
		return "Paused"
	case ExitSystemSplit:
		return "SystemSplit"
	case ExitSessionLimit:
		return "SessionLimit"
	case ExitFault:
		return "Fault"
	default:
		return "Unknown"
	}
}

// ExitCode is how an execution ended, together with the guest-visible user
// code for halts and pauses.
type ExitCode struct {
	Kind ExitKind `json:"kind"`
	User uint32   `json:"user"`
}

// Halted returns the exit code for normal termination.
func Halted(user uint32) ExitCode { return ExitCode{Kind: ExitHalted, User: user} }

// Paused returns the exit code for a guest-initiated pause.
func Paused(user uint32) ExitCode { return ExitCode{Kind: ExitPaused, User: user} }

// SystemSplit returns the exit code for a host-forced segment boundary.
func SystemSplit() ExitCode { return ExitCode{Kind: ExitSystemSplit} }

// IntoPair encodes the exit code as a (system, user) pair.
//
// SessionLimit and Fault share SystemSplit's encoding: the circuit cannot
// distinguish them, so the conversion is deliberately lossy and all three
// produce the same claim digest.
func (e ExitCode) IntoPair() (uint32, uint32) {
	switch e.Kind {
	case ExitHalted:
		return 0, e.User
	case ExitPaused:
		return 1, e.User
	default:
		return 2, 0
	}
}

// ExitCodeFromPair decodes a (system, user) pair back into an ExitCode.
func ExitCodeFromPair(sys, user uint32) (ExitCode, error) {
	switch sys {
	case 0:
		return ExitCode{Kind: ExitHalted, User: user}, nil
	case 1:
		return ExitCode{Kind: ExitPaused, User: user}, nil
	case 2:
		return ExitCode{Kind: ExitSystemSplit}, nil
	default:
		return ExitCode{}, &InvalidExitCodeError{Sys: sys, User: user}
	}
}

// ExpectsOutput reports whether a claim with this exit code carries an
// output (journal and assumptions). Split segments do not.
func (e ExitCode) ExpectsOutput() bool {
	return e.Kind == ExitHalted || e.Kind == ExitPaused
}

// InvalidExitCodeError is returned when a (system, user) pair does not
// correspond to any exit code.
type InvalidExitCodeError struct {
	Sys  uint32
	User uint32
}

// Error returns the error message.
func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("invalid exit code pair (%d, %d)", e.Sys, e.User)
}
