package recursion

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/claim"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/receipt"
)

// ErrInvalidSeal is returned when a succinct seal fails verification.
var ErrInvalidSeal = errors.New("recursion: invalid succinct seal")

// ErrUnknownControlID is returned when a receipt's control ID is not in
// the trusted set.
var ErrUnknownControlID = errors.New("recursion: unknown control ID")

// succinctSealLen is the fixed succinct seal size: the control root
// followed by the Poseidon binding.
const succinctSealLen = 64

// sealBinding folds the claim digest, control ID and control root into the
// recursion field. Everything enters as 16-bit digest halves so each
// element stays far below the field modulus.
func sealBinding(claimDigest, controlID, controlRoot claim.Digest) claim.Digest {
	elems := bytesToElements([]byte("kestrel.SuccinctSeal"))
	elems = append(elems, digestToElements(claimDigest)...)
	elems = append(elems, digestToElements(controlID)...)
	elems = append(elems, digestToElements(controlRoot)...)
	// pad to the sponge rate like the trace hasher does
	for len(elems)%10 != 0 {
		elems = append(elems, field.Zero)
	}
	return poseidonDigest(elems)
}

// seal produces the succinct receipt for a claim under the given recursion
// program.
func (c *Composer) seal(cl *claim.Claim, program string) *receipt.SuccinctReceipt {
	controlID := ControlIDFor(program)
	root := c.set.Root()
	binding := sealBinding(cl.Digest(), controlID, root)

	sealBytes := make([]byte, 0, succinctSealLen)
	sealBytes = append(sealBytes, root[:]...)
	sealBytes = append(sealBytes, binding[:]...)

	return &receipt.SuccinctReceipt{
		Claim:       *cl,
		ControlID:   controlID,
		ControlRoot: root,
		Seal:        sealBytes,
	}
}

// VerifySuccinct checks a succinct receipt against a trusted control ID
// set: the control ID must be a member, the seal must bind to the set's
// root, and the binding must match the claim.
func VerifySuccinct(sr *receipt.SuccinctReceipt, set *ControlIDSet) error {
	if len(sr.Seal) != succinctSealLen {
		return fmt.Errorf("%w: seal is %d bytes, want %d", ErrInvalidSeal, len(sr.Seal), succinctSealLen)
	}
	if !set.Contains(sr.ControlID) {
		return fmt.Errorf("%w: %s", ErrUnknownControlID, sr.ControlID)
	}
	root := set.Root()
	if sr.ControlRoot != root || !bytes.Equal(sr.Seal[:32], root[:]) {
		return fmt.Errorf("%w: control root mismatch", ErrInvalidSeal)
	}
	binding := sealBinding(sr.Claim.Digest(), sr.ControlID, root)
	if !bytes.Equal(sr.Seal[32:], binding[:]) {
		return fmt.Errorf("%w: claim binding mismatch", ErrInvalidSeal)
	}
	return nil
}
