// Package verify checks every receipt variant against a root of trust:
// the control ID set for recursion receipts, the segment proof system for
// segment and composite receipts, and the Groth16 verifying key for
// wrapped receipts.
package verify

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/claim"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/groth16wrap"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/prove"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/receipt"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/recursion"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/utils"
)

// Verifier checks receipts. Dev-mode receipts are rejected unless the
// verifier was built with AllowDevMode, so unproven receipts can never
// slip into a production trust boundary by accident.
type Verifier struct {
	set          *recursion.ControlIDSet
	system       prove.ProofSystem
	wrappedVK    []byte
	allowDevMode bool
	log          zerolog.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// AllowDevMode opts in to accepting unproven dev-mode receipts.
func AllowDevMode() Option {
	return func(v *Verifier) { v.allowDevMode = true }
}

// WithProofSystem overrides the segment proof system.
func WithProofSystem(system prove.ProofSystem) Option {
	return func(v *Verifier) { v.system = system }
}

// WithWrappedVerifyingKey pins the Groth16 verifying key for wrapped
// receipts. Without it the receipt's embedded key is trusted.
func WithWrappedVerifyingKey(vk []byte) Option {
	return func(v *Verifier) { v.wrappedVK = append([]byte(nil), vk...) }
}

// NewVerifier creates a verifier over the given trusted control ID set. A
// nil set selects the default built-in set.
func NewVerifier(set *recursion.ControlIDSet, opts ...Option) *Verifier {
	v := &Verifier{
		set:    set,
		system: prove.NewHashProofSystem(),
		log:    utils.NewLogger("verifier"),
	}
	if v.set == nil {
		v.set = recursion.DefaultControlIDSet()
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify fully checks a receipt: proof material, then that the claim is
// the one the caller expects. The receipt must attest to an execution of
// imageID that terminated normally and committed exactly journal.
func (v *Verifier) Verify(r *receipt.Receipt, imageID claim.Digest, journal []byte) error {
	if err := v.VerifyIntegrity(r); err != nil {
		return err
	}
	c, err := r.Claim()
	if err != nil {
		return newError(CodeInvalidProof, err, "unreadable claim")
	}

	if c.PreStateDigest != imageID {
		return newError(CodeClaimMismatch, nil,
			"receipt attests to image %s, want %s", c.PreStateDigest, imageID)
	}
	if c.ExitCode.Kind != claim.ExitHalted {
		return newError(CodeClaimMismatch, nil,
			"execution exited with %s, want %s", c.ExitCode.Kind, claim.ExitHalted)
	}
	if got, want := c.JournalDigest(), claim.DigestOf(journal); got != want {
		return newError(CodeClaimMismatch, nil,
			"committed journal digest %s does not match expected %s", got, want)
	}
	if unresolved := c.Assumptions().Unresolved(); len(unresolved) > 0 {
		return newError(CodeUnresolvedAssumption, nil,
			"%d assumptions remain unresolved", len(unresolved))
	}
	return nil
}

// VerifyEncoded decodes a receipt container and verifies it.
func (v *Verifier) VerifyEncoded(data []byte, imageID claim.Digest, journal []byte) error {
	r, err := receipt.Decode(data)
	if err != nil {
		if errors.Is(err, receipt.ErrVersionMismatch) {
			return newError(CodeVersionMismatch, err, "unsupported container")
		}
		return newError(CodeInvalidProof, err, "malformed container")
	}
	return v.Verify(r, imageID, journal)
}

// VerifyIntegrity checks a receipt's proof material without pinning the
// claim to an expected image or journal. Conditional receipts pass; use
// Verify to enforce full resolution.
func (v *Verifier) VerifyIntegrity(r *receipt.Receipt) error {
	if err := r.Validate(); err != nil {
		return newError(CodeInvalidProof, err, "malformed receipt")
	}

	switch r.Kind {
	case receipt.KindSegment:
		if err := v.system.VerifySegment(r.Segment); err != nil {
			return newError(CodeInvalidProof, err, "segment seal")
		}
		return nil

	case receipt.KindComposite:
		return v.verifyComposite(r.Composite)

	case receipt.KindSuccinct:
		return v.verifySuccinct(r.Succinct)

	case receipt.KindWrapped:
		return v.verifyWrapped(r.Wrapped)

	case receipt.KindDevMode:
		if !v.allowDevMode {
			return newError(CodeInvalidProof, nil,
				"dev-mode receipt rejected outside dev mode")
		}
		v.log.Warn().Msg("accepting unproven dev-mode receipt")
		return nil

	default:
		return newError(CodeInvalidProof, nil, "unknown receipt kind %d", uint8(r.Kind))
	}
}

// verifyComposite checks every segment seal and the chaining between
// segments, then that the composite claim matches the chain's endpoints.
func (v *Verifier) verifyComposite(cr *receipt.CompositeReceipt) error {
	if len(cr.Segments) == 0 {
		return newError(CodeInvalidProof, nil, "composite receipt has no segments")
	}
	for i, sr := range cr.Segments {
		if err := v.system.VerifySegment(sr); err != nil {
			return newError(CodeInvalidProof, err, "segment %d seal", i)
		}
		if i == len(cr.Segments)-1 {
			continue
		}
		if sr.Claim.ExitCode.Kind != claim.ExitSystemSplit {
			return newError(CodeClaimMismatch, nil,
				"interior segment %d exited with %s", i, sr.Claim.ExitCode.Kind)
		}
		next := cr.Segments[i+1]
		if sr.Claim.PostStateDigest != next.Claim.PreStateDigest {
			return newError(CodeClaimMismatch, nil,
				"segment %d post state does not chain into segment %d", i, i+1)
		}
		if sr.Claim.InputDigest != next.Claim.InputDigest {
			return newError(CodeClaimMismatch, nil,
				"segments %d and %d disagree on input", i, i+1)
		}
	}

	first, last := cr.Segments[0], cr.Segments[len(cr.Segments)-1]
	if cr.Claim.PreStateDigest != first.Claim.PreStateDigest ||
		cr.Claim.PostStateDigest != last.Claim.PostStateDigest ||
		cr.Claim.ExitCode != last.Claim.ExitCode ||
		cr.Claim.Output.Digest() != last.Claim.Output.Digest() {
		return newError(CodeClaimMismatch, nil,
			"composite claim does not match its segment chain")
	}
	return nil
}

func (v *Verifier) verifySuccinct(sr *receipt.SuccinctReceipt) error {
	if err := recursion.VerifySuccinct(sr, v.set); err != nil {
		if errors.Is(err, recursion.ErrUnknownControlID) {
			return newError(CodeUnknownControlID, err, "control ID %s", sr.ControlID)
		}
		return newError(CodeInvalidProof, err, "succinct seal")
	}
	return nil
}

func (v *Verifier) verifyWrapped(wr *receipt.WrappedReceipt) error {
	if wr.ControlRoot != v.set.Root() {
		return newError(CodeUnknownControlID, nil,
			"wrapped receipt binds control root %s, trusted root is %s",
			wr.ControlRoot, v.set.Root())
	}
	if err := groth16wrap.VerifyWrapped(wr, v.wrappedVK); err != nil {
		return newError(CodeInvalidProof, err, "groth16 proof")
	}
	return nil
}
