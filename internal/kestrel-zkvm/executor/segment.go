// Package executor drives a guest core to completion, slicing the run into
// independently provable segments and collecting them into a Session.
package executor

import (
	"fmt"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/claim"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/isa"
)

// SyscallRecord is one host-visible syscall recorded inside a segment.
type SyscallRecord struct {
	// Cycle is the cycle counter at which the syscall executed, relative
	// to the start of the segment.
	Cycle uint64 `json:"cycle"`

	// Kind names the syscall.
	Kind isa.EventKind `json:"kind"`
}

// Segment is one provable slice of an execution. It is owned by the
// Session that created it and read-only after the session is sealed.
type Segment struct {
	// Index is the position of the segment within its session.
	Index int `json:"index"`

	// PreState and PostState bracket the slice.
	PreState  claim.SystemState `json:"pre_state"`
	PostState claim.SystemState `json:"post_state"`

	// CycleCount is the number of cycles the slice consumed.
	CycleCount uint64 `json:"cycle_count"`

	// ExitCode records how the slice ended: SystemSplit for a forced
	// boundary, Halted/Paused for the final slice.
	ExitCode claim.ExitCode `json:"exit_code"`

	// Trace is the recorded execution transcript the prover consumes.
	Trace []isa.TraceRow `json:"trace"`

	// Syscalls are the host-visible calls made during the slice.
	Syscalls []SyscallRecord `json:"syscalls,omitempty"`

	// InputDigest commits to the session input, shared by every segment.
	InputDigest claim.Digest `json:"input_digest"`

	// Output is set on the final segment only; it carries the session's
	// journal commitment and assumption list.
	Output *claim.Output `json:"output,omitempty"`
}

// Claim returns the claim a proof of this segment attests to.
func (s *Segment) Claim() *claim.Claim {
	return &claim.Claim{
		PreStateDigest:  s.PreState.Digest(),
		PostStateDigest: s.PostState.Digest(),
		ExitCode:        s.ExitCode,
		InputDigest:     s.InputDigest,
		Output:          s.Output.Clone(),
	}
}

// Validate checks the segment is well-formed on its own.
func (s *Segment) Validate() error {
	if s.CycleCount == 0 {
		return fmt.Errorf("segment %d has zero cycles", s.Index)
	}
	if len(s.Trace) == 0 {
		return fmt.Errorf("segment %d has an empty trace", s.Index)
	}
	return s.Claim().Validate()
}
