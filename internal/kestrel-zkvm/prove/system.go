// Package prove turns executed segments into segment receipts and whole
// sessions into composite receipts.
//
// The ProofSystem interface is the pluggable boundary to the actual
// argument system. The built-in hash transcript backend commits to the
// execution trace and binds the commitment to the claim digest through a
// Fiat-Shamir transcript; it makes every tamper-detection path in the
// pipeline real while a production deployment would slot a zkSTARK
// backend behind the same interface.
package prove

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/claim"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/executor"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/isa"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/receipt"
)

// ErrProofGeneration is the root of all segment proving failures.
var ErrProofGeneration = errors.New("prove: proof generation failed")

// ErrInvalidSeal is returned by VerifySegment when a seal does not check
// out against its claim.
var ErrInvalidSeal = errors.New("prove: invalid segment seal")

// ProofSystem generates and checks segment seals. Implementations must be
// safe for concurrent use; the session prover calls ProveSegment from
// multiple workers.
type ProofSystem interface {
	// Name identifies the system inside receipts.
	Name() string

	// ProveSegment produces a seal attesting to the segment's claim.
	ProveSegment(seg *executor.Segment) (*receipt.SegmentReceipt, error)

	// VerifySegment checks a seal against the receipt's claim.
	VerifySegment(r *receipt.SegmentReceipt) error
}

const (
	hashSystemName = "hash-transcript"
	hashFnName     = "sha3-256"
	sealLen        = 64
)

// HashProofSystem is the built-in deterministic backend. The seal is the
// Merkle root of the trace followed by a transcript binding of claim and
// root.
type HashProofSystem struct{}

// NewHashProofSystem returns the built-in backend.
func NewHashProofSystem() *HashProofSystem { return &HashProofSystem{} }

// Name implements ProofSystem.
func (s *HashProofSystem) Name() string { return hashSystemName }

// ProveSegment implements ProofSystem.
func (s *HashProofSystem) ProveSegment(seg *executor.Segment) (*receipt.SegmentReceipt, error) {
	if err := seg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofGeneration, err)
	}
	c := seg.Claim()
	root := traceRoot(seg.Trace, seg.Syscalls)

	var seal [sealLen]byte
	copy(seal[:32], root[:])
	binding := sealBinding(c.Digest(), root)
	copy(seal[32:], binding[:])

	return &receipt.SegmentReceipt{
		Claim:       *c,
		Index:       seg.Index,
		ProofSystem: hashSystemName,
		Seal:        seal[:],
		Hashfn:      hashFnName,
		InputDigest: seg.InputDigest,
	}, nil
}

// VerifySegment implements ProofSystem.
func (s *HashProofSystem) VerifySegment(r *receipt.SegmentReceipt) error {
	if r.ProofSystem != hashSystemName {
		return fmt.Errorf("%w: foreign proof system %q", ErrInvalidSeal, r.ProofSystem)
	}
	if len(r.Seal) != sealLen {
		return fmt.Errorf("%w: seal is %d bytes, want %d", ErrInvalidSeal, len(r.Seal), sealLen)
	}
	var root claim.Digest
	copy(root[:], r.Seal[:32])
	binding := sealBinding(r.Claim.Digest(), root)
	if !bytes.Equal(binding[:], r.Seal[32:]) {
		return fmt.Errorf("%w: transcript binding mismatch", ErrInvalidSeal)
	}
	return nil
}

func sealBinding(claimDigest, root claim.Digest) [32]byte {
	tr := NewTranscript("kestrel.SegmentSeal")
	tr.AbsorbDigest("claim", claimDigest)
	tr.AbsorbDigest("trace_root", root)
	return tr.Challenge("seal")
}

// traceRoot Merkle-commits to the trace rows and syscall records. An empty
// trace commits to the zero digest.
func traceRoot(rows []isa.TraceRow, sys []executor.SyscallRecord) claim.Digest {
	leaves := make([]claim.Digest, 0, len(rows)+len(sys))
	var buf [21]byte
	for _, row := range rows {
		binary.LittleEndian.PutUint64(buf[0:8], row.Cycle)
		binary.LittleEndian.PutUint32(buf[8:12], row.PC)
		buf[12] = row.Op
		binary.LittleEndian.PutUint64(buf[13:21], row.Arg)
		leaves = append(leaves, leafHash("kestrel.TraceRow", buf[:]))
	}
	for _, rec := range sys {
		binary.LittleEndian.PutUint64(buf[0:8], rec.Cycle)
		buf[8] = byte(rec.Kind)
		leaves = append(leaves, leafHash("kestrel.Syscall", buf[:9]))
	}
	return merkleRoot(leaves)
}

func leafHash(tag string, data []byte) claim.Digest {
	h := sha3.New256()
	h.Write([]byte(tag))
	h.Write(data)
	var out claim.Digest
	h.Sum(out[:0])
	return out
}

func merkleRoot(leaves []claim.Digest) claim.Digest {
	if len(leaves) == 0 {
		return claim.ZeroDigest
	}
	level := leaves
	for len(level) > 1 {
		next := make([]claim.Digest, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				// odd node promotes unchanged
				next = append(next, level[i])
				continue
			}
			h := sha3.New256()
			h.Write([]byte("kestrel.MerkleNode"))
			h.Write(level[i][:])
			h.Write(level[i+1][:])
			var d claim.Digest
			h.Sum(d[:0])
			next = append(next, d)
		}
		level = next
	}
	return level[0]
}
