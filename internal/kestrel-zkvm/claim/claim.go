package claim

import "fmt"

// Output commits to what a terminated execution made public: the journal
// and the list of assumptions the guest made along the way.
type Output struct {
	// JournalDigest commits to the journal bytes the guest wrote.
	JournalDigest Digest `json:"journal_digest"`

	// Assumptions are the deferred external claims embedded by the guest.
	Assumptions Assumptions `json:"assumptions,omitempty"`
}

// Digest hashes the output into a commitment.
func (o *Output) Digest() Digest {
	if o == nil {
		return ZeroDigest
	}
	return taggedStruct("kestrel.Output",
		[]Digest{o.JournalDigest, o.Assumptions.Digest()}, nil)
}

// Clone returns a deep copy of the output.
func (o *Output) Clone() *Output {
	if o == nil {
		return nil
	}
	return &Output{
		JournalDigest: o.JournalDigest,
		Assumptions:   o.Assumptions.Clone(),
	}
}

// Claim is the atomic fact a proof attests to: a state transition from
// PreStateDigest to PostStateDigest with the given exit code, input and
// committed output. Claims are immutable once created; every operation that
// would change a claim produces a fresh one.
type Claim struct {
	// PreStateDigest commits to the system state before execution began.
	// For a whole session this is the program's image ID.
	PreStateDigest Digest `json:"pre_state_digest"`

	// PostStateDigest commits to the system state after execution ended.
	PostStateDigest Digest `json:"post_state_digest"`

	// ExitCode records how execution terminated.
	ExitCode ExitCode `json:"exit_code"`

	// InputDigest commits to the input bytes fed to the guest.
	InputDigest Digest `json:"input_digest"`

	// Output is the committed public output, nil for split segments whose
	// execution has not terminated yet.
	Output *Output `json:"output,omitempty"`
}

// Digest hashes the claim into the commitment every proof binds to.
func (c *Claim) Digest() Digest {
	sys, user := c.ExitCode.IntoPair()
	return taggedStruct("kestrel.Claim",
		[]Digest{c.InputDigest, c.PreStateDigest, c.PostStateDigest, c.Output.Digest()},
		[]uint32{sys, user})
}

// JournalDigest returns the committed journal digest, or the zero digest
// when the claim carries no output.
func (c *Claim) JournalDigest() Digest {
	if c.Output == nil {
		return ZeroDigest
	}
	return c.Output.JournalDigest
}

// Assumptions returns the claim's assumption list, nil when there is no
// output.
func (c *Claim) Assumptions() Assumptions {
	if c.Output == nil {
		return nil
	}
	return c.Output.Assumptions
}

// Clone returns a deep copy of the claim.
func (c *Claim) Clone() *Claim {
	out := *c
	out.Output = c.Output.Clone()
	return &out
}

// Validate checks the claim is internally consistent: terminated claims
// carry an output, split claims do not.
func (c *Claim) Validate() error {
	if c.ExitCode.ExpectsOutput() && c.Output == nil {
		return fmt.Errorf("claim with exit code %s must carry an output", c.ExitCode.Kind)
	}
	if !c.ExitCode.ExpectsOutput() && c.Output != nil {
		return fmt.Errorf("claim with exit code %s must not carry an output", c.ExitCode.Kind)
	}
	return nil
}
