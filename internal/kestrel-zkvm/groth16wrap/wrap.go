package groth16wrap

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/logger"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/receipt"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/recursion"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/utils"
)

// ErrWrapping is the root of all Groth16 wrapping failures.
var ErrWrapping = errors.New("groth16wrap: wrapping failed")

// ErrInvalidWrap is returned when a wrapped receipt fails verification.
var ErrInvalidWrap = errors.New("groth16wrap: invalid wrapped receipt")

// Wrapper compiles the wrap circuit once and proves against it. The setup
// here is per-process; a production deployment would load keys from a
// trusted ceremony instead of running Setup locally.
type Wrapper struct {
	set     *recursion.ControlIDSet
	ccs     constraint.ConstraintSystem
	pk      groth16.ProvingKey
	vk      groth16.VerifyingKey
	vkBytes []byte
}

// NewWrapper compiles the wrap circuit and runs the Groth16 setup. A nil
// set selects the default control ID set.
func NewWrapper(set *recursion.ControlIDSet) (*Wrapper, error) {
	if set == nil {
		set = recursion.DefaultControlIDSet()
	}
	logger.Set(utils.NewLogger("groth16"))

	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &WrapCircuit{})
	if err != nil {
		return nil, fmt.Errorf("%w: compile circuit: %v", ErrWrapping, err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("%w: setup: %v", ErrWrapping, err)
	}
	var vkBuf bytes.Buffer
	if _, err := vk.WriteTo(&vkBuf); err != nil {
		return nil, fmt.Errorf("%w: serialize verifying key: %v", ErrWrapping, err)
	}
	return &Wrapper{set: set, ccs: ccs, pk: pk, vk: vk, vkBytes: vkBuf.Bytes()}, nil
}

// VerifyingKey returns the serialized Groth16 verifying key. Verifiers
// that pin it accept only receipts wrapped under this setup.
func (w *Wrapper) VerifyingKey() []byte {
	return append([]byte(nil), w.vkBytes...)
}

// Wrap proves the wrap circuit over an identity-finalized succinct
// receipt and returns the wrapped receipt.
func (w *Wrapper) Wrap(sr *receipt.SuccinctReceipt) (*receipt.WrappedReceipt, error) {
	if err := recursion.VerifySuccinct(sr, w.set); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrapping, err)
	}
	if sr.ControlID != recursion.ControlIDFor(recursion.ProgramIdentity) {
		return nil, fmt.Errorf("%w: receipt is not identity finalized", ErrWrapping)
	}

	claimDigest := sr.Claim.Digest()
	commitment := sealCommitment(claimDigest, sr.ControlRoot, sr.Seal)

	full, err := frontend.NewWitness(
		assignment(claimDigest, sr.ControlRoot, sr.Seal, commitment),
		ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("%w: build witness: %v", ErrWrapping, err)
	}
	proof, err := groth16.Prove(w.ccs, w.pk, full)
	if err != nil {
		return nil, fmt.Errorf("%w: prove: %v", ErrWrapping, err)
	}

	public, err := full.Public()
	if err != nil {
		return nil, fmt.Errorf("%w: extract public witness: %v", ErrWrapping, err)
	}
	publicBytes, err := public.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: serialize public witness: %v", ErrWrapping, err)
	}

	var proofBuf bytes.Buffer
	if _, err := proof.WriteTo(&proofBuf); err != nil {
		return nil, fmt.Errorf("%w: serialize proof: %v", ErrWrapping, err)
	}

	return &receipt.WrappedReceipt{
		Claim:          sr.Claim,
		ControlRoot:    sr.ControlRoot,
		SealCommitment: commitment,
		Proof:          proofBuf.Bytes(),
		VerifyingKey:   w.VerifyingKey(),
		PublicWitness:  publicBytes,
	}, nil
}

// VerifyWrapped checks a wrapped receipt: the embedded public witness must
// be exactly the one its claim, control root and seal commitment dictate,
// and the Groth16 proof must verify against it. A non-nil trustedVK pins
// the verifying key; receipts wrapped under a different setup are then
// rejected even if self-consistent. With a nil trustedVK the receipt's
// embedded key is used, so no proving key or circuit compilation is
// needed and verification runs anywhere the receipt travels.
func VerifyWrapped(wr *receipt.WrappedReceipt, trustedVK []byte) error {
	expected, err := frontend.NewWitness(
		publicAssignment(wr.Claim.Digest(), wr.ControlRoot, wr.SealCommitment),
		ecc.BN254.ScalarField(),
		frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("%w: build expected witness: %v", ErrInvalidWrap, err)
	}
	expectedBytes, err := expected.MarshalBinary()
	if err != nil {
		return fmt.Errorf("%w: serialize expected witness: %v", ErrInvalidWrap, err)
	}
	if !bytes.Equal(expectedBytes, wr.PublicWitness) {
		return fmt.Errorf("%w: public witness does not match claim", ErrInvalidWrap)
	}

	public, err := witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWrap, err)
	}
	if err := public.UnmarshalBinary(wr.PublicWitness); err != nil {
		return fmt.Errorf("%w: decode public witness: %v", ErrInvalidWrap, err)
	}

	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(wr.Proof)); err != nil {
		return fmt.Errorf("%w: decode proof: %v", ErrInvalidWrap, err)
	}
	vkBytes := wr.VerifyingKey
	if trustedVK != nil {
		if !bytes.Equal(trustedVK, wr.VerifyingKey) {
			return fmt.Errorf("%w: verifying key does not match the pinned key", ErrInvalidWrap)
		}
		vkBytes = trustedVK
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(bytes.NewReader(vkBytes)); err != nil {
		return fmt.Errorf("%w: decode verifying key: %v", ErrInvalidWrap, err)
	}

	if err := groth16.Verify(proof, vk, public); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWrap, err)
	}
	return nil
}
