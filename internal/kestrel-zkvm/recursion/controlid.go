// Package recursion implements the composition engine: it folds segment
// receipts into constant-size succinct receipts through the lift, join and
// resolve recursion programs, scheduled over a task graph.
//
// Each recursion program has a control ID, a Poseidon commitment to the
// program itself. The set of control IDs a verifier accepts is its root of
// trust for everything recursion produces.
package recursion

import (
	"encoding/binary"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/claim"
)

// Recursion program names. The control ID of each is derived from the
// name, standing in for a commitment to the actual recursion circuit.
const (
	ProgramLift     = "kestrel.recursion.lift"
	ProgramJoin     = "kestrel.recursion.join"
	ProgramResolve  = "kestrel.recursion.resolve"
	ProgramIdentity = "kestrel.recursion.identity"
)

// ControlIDFor derives the 32-byte control ID of a recursion program.
func ControlIDFor(program string) claim.Digest {
	return poseidonDigest(bytesToElements([]byte(program)))
}

// poseidonDigest hashes field elements with the variable-length Poseidon
// sponge and packs the first four digest elements into 32 bytes.
func poseidonDigest(elems []field.Element) claim.Digest {
	hd := hash.HashVarlen(elems)
	var out claim.Digest
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint64(out[i*8:i*8+8], hd[i].Value())
	}
	return out
}

// bytesToElements packs bytes four at a time into field elements, with a
// final length element so distinct strings never pack identically.
func bytesToElements(data []byte) []field.Element {
	elems := make([]field.Element, 0, len(data)/4+2)
	for i := 0; i < len(data); i += 4 {
		end := i + 4
		if end > len(data) {
			end = len(data)
		}
		var word [4]byte
		copy(word[:], data[i:end])
		elems = append(elems, field.New(uint64(binary.LittleEndian.Uint32(word[:]))))
	}
	elems = append(elems, field.New(uint64(len(data))))
	return elems
}

// digestToElements lifts a digest into the recursion field as its sixteen
// 16-bit halves, each well below the field modulus.
func digestToElements(d claim.Digest) []field.Element {
	halves := d.Halves()
	elems := make([]field.Element, len(halves))
	for i, h := range halves {
		elems[i] = field.New(uint64(h))
	}
	return elems
}

// ControlIDSet is the ordered set of control IDs a deployment trusts.
type ControlIDSet struct {
	ids  []claim.Digest
	root claim.Digest
}

// NewControlIDSet builds a set from explicit IDs. The root commits to the
// IDs in order.
func NewControlIDSet(ids []claim.Digest) *ControlIDSet {
	set := &ControlIDSet{ids: append([]claim.Digest(nil), ids...)}

	elems := []field.Element{field.New(uint64(len(set.ids)))}
	for _, id := range set.ids {
		elems = append(elems, digestToElements(id)...)
	}
	set.root = poseidonDigest(elems)
	return set
}

// DefaultControlIDSet trusts the four built-in recursion programs.
func DefaultControlIDSet() *ControlIDSet {
	return NewControlIDSet([]claim.Digest{
		ControlIDFor(ProgramLift),
		ControlIDFor(ProgramJoin),
		ControlIDFor(ProgramResolve),
		ControlIDFor(ProgramIdentity),
	})
}

// Contains reports whether the set trusts the given control ID.
func (s *ControlIDSet) Contains(id claim.Digest) bool {
	for _, known := range s.ids {
		if known == id {
			return true
		}
	}
	return false
}

// Root returns the commitment to the whole set. Succinct seals bind to
// this root, so receipts from a foreign set fail verification outright.
func (s *ControlIDSet) Root() claim.Digest { return s.root }

// IDs returns a copy of the member IDs.
func (s *ControlIDSet) IDs() []claim.Digest {
	return append([]claim.Digest(nil), s.ids...)
}
