package recursion

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/claim"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/prove"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/receipt"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/utils"
)

// ErrComposition is the root of all composition failures: malformed
// inputs, non-adjacent joins, unknown assumptions.
var ErrComposition = errors.New("recursion: composition failed")

// Composer runs the recursion programs. Lift turns a verified segment
// receipt into a succinct one, Join merges two adjacent succinct receipts,
// ResolveAssumption discharges an assumption on a conditional receipt, and
// IdentityFinalize re-seals a receipt for wrapping.
type Composer struct {
	set    *ControlIDSet
	system prove.ProofSystem
	log    zerolog.Logger
}

// NewComposer creates a composer over the given trusted set. A nil set
// selects the default built-in set; a nil system selects the built-in
// hash transcript backend.
func NewComposer(set *ControlIDSet, system prove.ProofSystem) *Composer {
	if set == nil {
		set = DefaultControlIDSet()
	}
	if system == nil {
		system = prove.NewHashProofSystem()
	}
	return &Composer{
		set:    set,
		system: system,
		log:    utils.NewLogger("recursion"),
	}
}

// Set returns the composer's trusted control ID set.
func (c *Composer) Set() *ControlIDSet { return c.set }

// Lift verifies a segment receipt and re-seals its claim, unchanged, as a
// succinct receipt.
func (c *Composer) Lift(sr *receipt.SegmentReceipt) (*receipt.SuccinctReceipt, error) {
	if err := c.system.VerifySegment(sr); err != nil {
		return nil, fmt.Errorf("%w: lift segment %d: %v", ErrComposition, sr.Index, err)
	}
	cl := sr.Claim.Clone()
	return c.seal(cl, ProgramLift), nil
}

// Join merges two succinct receipts over adjacent execution spans. The
// left receipt must have split (its execution continues), its post state
// must be the right receipt's pre state, and both must attest to the same
// input. The joined claim spans left's pre state to right's post state and
// inherits right's exit code and output.
func (c *Composer) Join(left, right *receipt.SuccinctReceipt) (*receipt.SuccinctReceipt, error) {
	if err := VerifySuccinct(left, c.set); err != nil {
		return nil, fmt.Errorf("%w: join left: %v", ErrComposition, err)
	}
	if err := VerifySuccinct(right, c.set); err != nil {
		return nil, fmt.Errorf("%w: join right: %v", ErrComposition, err)
	}
	if left.Claim.ExitCode.Kind != claim.ExitSystemSplit {
		return nil, fmt.Errorf("%w: join left exit code is %s, want %s",
			ErrComposition, left.Claim.ExitCode.Kind, claim.ExitSystemSplit)
	}
	if left.Claim.PostStateDigest != right.Claim.PreStateDigest {
		return nil, fmt.Errorf("%w: join spans are not adjacent", ErrComposition)
	}
	if left.Claim.InputDigest != right.Claim.InputDigest {
		return nil, fmt.Errorf("%w: join spans disagree on input", ErrComposition)
	}

	joined := &claim.Claim{
		PreStateDigest:  left.Claim.PreStateDigest,
		PostStateDigest: right.Claim.PostStateDigest,
		ExitCode:        right.Claim.ExitCode,
		InputDigest:     left.Claim.InputDigest,
		Output:          right.Claim.Output.Clone(),
	}
	return c.seal(joined, ProgramJoin), nil
}

// ResolveAssumption discharges one assumption on a conditional receipt
// using a succinct receipt proving the assumed claim. The result carries
// the conditional's claim with that assumption marked resolved, which
// changes the output digest and therefore the claim digest.
func (c *Composer) ResolveAssumption(cond, assumption *receipt.SuccinctReceipt) (*receipt.SuccinctReceipt, error) {
	if err := VerifySuccinct(cond, c.set); err != nil {
		return nil, fmt.Errorf("%w: resolve conditional: %v", ErrComposition, err)
	}
	if err := VerifySuccinct(assumption, c.set); err != nil {
		return nil, fmt.Errorf("%w: resolve assumption: %v", ErrComposition, err)
	}
	if cond.Claim.Output == nil {
		return nil, fmt.Errorf("%w: conditional receipt has no output", ErrComposition)
	}

	assumed := assumption.Claim.Digest()
	cl := cond.Claim.Clone()
	if err := cl.Output.Assumptions.Resolve(assumed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrComposition, err)
	}
	c.log.Debug().
		Str("assumed_claim", assumed.String()).
		Msg("assumption resolved")
	return c.seal(cl, ProgramResolve), nil
}

// IdentityFinalize re-seals a succinct receipt under the identity program.
// The Groth16 wrapper only accepts identity-sealed receipts, so every
// composition path funnels through this one program before leaving the
// recursion system.
func (c *Composer) IdentityFinalize(sr *receipt.SuccinctReceipt) (*receipt.SuccinctReceipt, error) {
	if err := VerifySuccinct(sr, c.set); err != nil {
		return nil, fmt.Errorf("%w: finalize: %v", ErrComposition, err)
	}
	return c.seal(sr.Claim.Clone(), ProgramIdentity), nil
}
