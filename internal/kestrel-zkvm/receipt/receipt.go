// Package receipt defines the proof-carrying receipt variants produced by
// the proving pipeline and their portable binary container.
//
// Every variant pairs a claim with cryptographic material whose shape
// depends on where in the pipeline the receipt was produced: segment
// receipts come straight off the segment prover, composite receipts bundle
// a whole session, succinct receipts are the recursion circuit's output,
// wrapped receipts carry a Groth16 proof, and dev-mode receipts carry
// nothing at all.
package receipt

import (
	"encoding/json"
	"fmt"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/claim"
)

// FormatVersion is the container format emitted by Encode. Decode rejects
// any other version.
const FormatVersion uint16 = 1

// Kind discriminates the receipt variants.
type Kind uint8

const (
	KindSegment Kind = iota + 1
	KindComposite
	KindSuccinct
	KindWrapped
	KindDevMode
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindSegment:
		return "segment"
	case KindComposite:
		return "composite"
	case KindSuccinct:
		return "succinct"
	case KindWrapped:
		return "wrapped"
	case KindDevMode:
		return "dev-mode"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// SegmentReceipt proves a single segment's claim. Its seal is an opaque
// blob interpreted by the proof system named in ProofSystem.
type SegmentReceipt struct {
	Claim       claim.Claim  `json:"claim"`
	Index       int          `json:"index"`
	ProofSystem string       `json:"proof_system"`
	Seal        []byte       `json:"seal"`
	Hashfn      string       `json:"hashfn"`
	InputDigest claim.Digest `json:"input_digest"`
}

// CompositeReceipt proves a full session as the ordered list of its
// segment receipts plus the receipts discharging any assumptions. Its
// claim is the session claim.
type CompositeReceipt struct {
	Claim       claim.Claim       `json:"claim"`
	Segments    []*SegmentReceipt `json:"segments"`
	Assumptions []*Receipt        `json:"assumption_receipts,omitempty"`
}

// SuccinctReceipt is the recursion circuit's constant-size output: one
// seal regardless of how many segments were folded into it.
type SuccinctReceipt struct {
	Claim       claim.Claim  `json:"claim"`
	ControlID   claim.Digest `json:"control_id"`
	ControlRoot claim.Digest `json:"control_root"`
	Seal        []byte       `json:"seal"`
}

// WrappedReceipt carries a Groth16 proof over the succinct seal,
// sized for on-chain verification. Proof and VerifyingKey hold the
// gnark-serialized objects; PublicWitness the serialized public inputs.
type WrappedReceipt struct {
	Claim          claim.Claim  `json:"claim"`
	ControlRoot    claim.Digest `json:"control_root"`
	SealCommitment claim.Digest `json:"seal_commitment"`
	Proof          []byte       `json:"proof"`
	VerifyingKey   []byte       `json:"verifying_key"`
	PublicWitness  []byte       `json:"public_witness"`
}

// DevModeReceipt is a claim with no proof. It only ever verifies against
// a verifier that explicitly opted in to dev mode.
type DevModeReceipt struct {
	Claim claim.Claim `json:"claim"`
}

// Receipt is the tagged union handed to the verifier. Exactly one variant
// field is set, matching Kind.
type Receipt struct {
	Kind      Kind              `json:"kind"`
	Segment   *SegmentReceipt   `json:"segment,omitempty"`
	Composite *CompositeReceipt `json:"composite,omitempty"`
	Succinct  *SuccinctReceipt  `json:"succinct,omitempty"`
	Wrapped   *WrappedReceipt   `json:"wrapped,omitempty"`
	DevMode   *DevModeReceipt   `json:"dev_mode,omitempty"`
}

// NewSegment wraps a segment receipt in the union.
func NewSegment(r *SegmentReceipt) *Receipt { return &Receipt{Kind: KindSegment, Segment: r} }

// NewComposite wraps a composite receipt in the union.
func NewComposite(r *CompositeReceipt) *Receipt { return &Receipt{Kind: KindComposite, Composite: r} }

// NewSuccinct wraps a succinct receipt in the union.
func NewSuccinct(r *SuccinctReceipt) *Receipt { return &Receipt{Kind: KindSuccinct, Succinct: r} }

// NewWrapped wraps a Groth16 receipt in the union.
func NewWrapped(r *WrappedReceipt) *Receipt { return &Receipt{Kind: KindWrapped, Wrapped: r} }

// NewDevMode wraps a dev-mode receipt in the union.
func NewDevMode(r *DevModeReceipt) *Receipt { return &Receipt{Kind: KindDevMode, DevMode: r} }

// Claim returns the claim of whichever variant is set.
func (r *Receipt) Claim() (claim.Claim, error) {
	switch r.Kind {
	case KindSegment:
		if r.Segment != nil {
			return r.Segment.Claim, nil
		}
	case KindComposite:
		if r.Composite != nil {
			return r.Composite.Claim, nil
		}
	case KindSuccinct:
		if r.Succinct != nil {
			return r.Succinct.Claim, nil
		}
	case KindWrapped:
		if r.Wrapped != nil {
			return r.Wrapped.Claim, nil
		}
	case KindDevMode:
		if r.DevMode != nil {
			return r.DevMode.Claim, nil
		}
	}
	return claim.Claim{}, fmt.Errorf("receipt kind %s has no variant payload", r.Kind)
}

// JournalDigest returns the committed journal digest, or the zero digest
// when the receipt has no output.
func (r *Receipt) JournalDigest() (claim.Digest, error) {
	c, err := r.Claim()
	if err != nil {
		return claim.ZeroDigest, err
	}
	return c.JournalDigest(), nil
}

// Validate checks that exactly the variant named by Kind is populated and
// that its claim is well formed.
func (r *Receipt) Validate() error {
	set := 0
	for _, p := range []bool{
		r.Segment != nil, r.Composite != nil, r.Succinct != nil,
		r.Wrapped != nil, r.DevMode != nil,
	} {
		if p {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("receipt must carry exactly one variant, has %d", set)
	}
	c, err := r.Claim()
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("receipt claim: %w", err)
	}
	return nil
}

// variantPayload returns the JSON encoding of the active variant.
func (r *Receipt) variantPayload() ([]byte, error) {
	switch r.Kind {
	case KindSegment:
		return json.Marshal(r.Segment)
	case KindComposite:
		return json.Marshal(r.Composite)
	case KindSuccinct:
		return json.Marshal(r.Succinct)
	case KindWrapped:
		return json.Marshal(r.Wrapped)
	case KindDevMode:
		return json.Marshal(r.DevMode)
	default:
		return nil, fmt.Errorf("unknown receipt kind %d", uint8(r.Kind))
	}
}
