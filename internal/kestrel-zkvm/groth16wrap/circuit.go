// Package groth16wrap compresses an identity-finalized succinct receipt
// into a Groth16 proof over BN254, the shape on-chain verifiers consume.
//
// The wrap circuit proves knowledge of a succinct seal whose MiMC
// commitment, together with the claim digest and control root, matches the
// public inputs. The claim digest and control root ride along as public
// inputs so a verifier contract can pin them.
package groth16wrap

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	native "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/claim"
)

// sealWords is the succinct seal length in 8-byte words.
const sealWords = 8

// WrapCircuit binds the succinct seal to the claim it attests to. The
// seal stays private; everything a downstream verifier needs is public.
type WrapCircuit struct {
	ClaimDigestLow  frontend.Variable `gnark:",public"`
	ClaimDigestHigh frontend.Variable `gnark:",public"`
	ControlRootLow  frontend.Variable `gnark:",public"`
	ControlRootHigh frontend.Variable `gnark:",public"`
	SealCommitment  frontend.Variable `gnark:",public"`

	Seal [sealWords]frontend.Variable
}

// Define implements frontend.Circuit.
func (c *WrapCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(c.ClaimDigestLow, c.ClaimDigestHigh)
	h.Write(c.ControlRootLow, c.ControlRootHigh)
	h.Write(c.Seal[:]...)
	api.AssertIsEqual(c.SealCommitment, h.Sum())
	return nil
}

// digestHalves splits a 32-byte digest into two 128-bit integers, each
// well inside the BN254 scalar field.
func digestHalves(d claim.Digest) (low, high *big.Int) {
	low = new(big.Int).SetBytes(d[16:])
	high = new(big.Int).SetBytes(d[:16])
	return low, high
}

// sealToWords splits the 64-byte seal into big-endian 8-byte words.
func sealToWords(seal []byte) [sealWords]*big.Int {
	var words [sealWords]*big.Int
	for i := range words {
		words[i] = new(big.Int).SetBytes(seal[i*8 : i*8+8])
	}
	return words
}

// sealCommitment computes, natively, the same MiMC commitment the circuit
// enforces.
func sealCommitment(claimDigest, controlRoot claim.Digest, seal []byte) claim.Digest {
	h := native.NewMiMC()
	write := func(v *big.Int) {
		var e fr.Element
		e.SetBigInt(v)
		b := e.Bytes()
		h.Write(b[:])
	}
	cl, ch := digestHalves(claimDigest)
	rl, rh := digestHalves(controlRoot)
	write(cl)
	write(ch)
	write(rl)
	write(rh)
	for _, w := range sealToWords(seal) {
		write(w)
	}

	var out claim.Digest
	copy(out[:], h.Sum(nil))
	return out
}

// assignment builds the full witness assignment for a seal.
func assignment(claimDigest, controlRoot claim.Digest, seal []byte, commitment claim.Digest) *WrapCircuit {
	cl, ch := digestHalves(claimDigest)
	rl, rh := digestHalves(controlRoot)
	w := &WrapCircuit{
		ClaimDigestLow:  cl,
		ClaimDigestHigh: ch,
		ControlRootLow:  rl,
		ControlRootHigh: rh,
		SealCommitment:  new(big.Int).SetBytes(commitment[:]),
	}
	for i, word := range sealToWords(seal) {
		w.Seal[i] = word
	}
	return w
}

// publicAssignment builds an assignment with zeroed secrets, used to
// reconstruct the expected public witness during verification.
func publicAssignment(claimDigest, controlRoot, commitment claim.Digest) *WrapCircuit {
	zero := make([]byte, sealWords*8)
	return assignment(claimDigest, controlRoot, zero, commitment)
}
