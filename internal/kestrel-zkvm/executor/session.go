package executor

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/claim"
)

// Session is the result of one guest execution: the ordered segments, the
// committed journal and how the run terminated. Sessions exist only while
// proving; receipts derived from them outlive the process.
type Session struct {
	// ID correlates logs and persisted receipts for this execution.
	ID uuid.UUID `json:"id"`

	// Segments are the provable slices in execution order.
	Segments []*Segment `json:"segments"`

	// Journal is the guest's committed public output.
	Journal []byte `json:"journal"`

	// ExitCode records how the session terminated.
	ExitCode claim.ExitCode `json:"exit_code"`

	// Assumptions are the deferred external claims the guest embedded.
	Assumptions claim.Assumptions `json:"assumptions,omitempty"`

	// ImageID is the digest of the program's initial state; what external
	// verifiers check receipts against.
	ImageID claim.Digest `json:"image_id"`

	// InputDigest commits to the input bytes.
	InputDigest claim.Digest `json:"input_digest"`
}

// TotalCycles sums the cycle counts of every segment.
func (s *Session) TotalCycles() uint64 {
	var total uint64
	for _, seg := range s.Segments {
		total += seg.CycleCount
	}
	return total
}

// Claim returns the session-level claim: the state transition spanning the
// whole execution with the committed journal and assumption list.
func (s *Session) Claim() *claim.Claim {
	first := s.Segments[0]
	last := s.Segments[len(s.Segments)-1]
	return &claim.Claim{
		PreStateDigest:  first.PreState.Digest(),
		PostStateDigest: last.PostState.Digest(),
		ExitCode:        s.ExitCode,
		InputDigest:     s.InputDigest,
		Output:          last.Output.Clone(),
	}
}

// Validate checks the continuation chaining invariant: every adjacent pair
// of segments shares a boundary state, the first segment starts at the
// image ID and only the final segment terminates.
func (s *Session) Validate() error {
	if len(s.Segments) == 0 {
		return fmt.Errorf("session %s has no segments", s.ID)
	}
	if got := s.Segments[0].PreState.Digest(); got != s.ImageID {
		return fmt.Errorf("session %s: first segment pre-state %s does not match image ID %s",
			s.ID, got, s.ImageID)
	}
	for i, seg := range s.Segments {
		if seg.Index != i {
			return fmt.Errorf("session %s: segment %d carries index %d", s.ID, i, seg.Index)
		}
		if err := seg.Validate(); err != nil {
			return fmt.Errorf("session %s: %w", s.ID, err)
		}
		last := i == len(s.Segments)-1
		if !last {
			if seg.ExitCode.Kind != claim.ExitSystemSplit {
				return fmt.Errorf("session %s: interior segment %d ended with %s",
					s.ID, i, seg.ExitCode.Kind)
			}
			next := s.Segments[i+1]
			if seg.PostState.Digest() != next.PreState.Digest() {
				return fmt.Errorf("session %s: segments %d and %d do not chain", s.ID, i, i+1)
			}
		} else if seg.ExitCode != s.ExitCode {
			return fmt.Errorf("session %s: final segment exit %s does not match session exit %s",
				s.ID, seg.ExitCode.Kind, s.ExitCode.Kind)
		}
	}
	return nil
}
