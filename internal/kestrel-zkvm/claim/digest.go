// Package claim defines the public claim model of the Kestrel zkVM:
// the system state digests, exit codes, journal commitment and assumption
// list that every receipt attests to.
package claim

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Digest is a 32-byte SHA-256 digest.
type Digest [32]byte

// ZeroDigest is the all-zero digest, used for absent values
// (e.g. the output of a segment that ended in a system split).
var ZeroDigest Digest

// DigestOf hashes arbitrary bytes into a Digest.
func DigestOf(data []byte) Digest {
	return sha256.Sum256(data)
}

// IsZero reports whether the digest is the all-zero digest.
func (d Digest) IsZero() bool {
	return d == ZeroDigest
}

// String returns the hex encoding of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Halves splits the digest into sixteen 16-bit halves, two per 32-bit word.
// This is the encoding the recursion circuit consumes: each half fits
// comfortably inside a small prime field element.
func (d Digest) Halves() [16]uint16 {
	var halves [16]uint16
	for i := 0; i < 8; i++ {
		word := binary.LittleEndian.Uint32(d[i*4 : i*4+4])
		halves[i*2] = uint16(word & 0xffff)
		halves[i*2+1] = uint16(word >> 16)
	}
	return halves
}

// MarshalText encodes the digest as lowercase hex.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(d[:])), nil
}

// UnmarshalText decodes a hex-encoded digest.
func (d *Digest) UnmarshalText(text []byte) error {
	raw, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("invalid digest encoding: %w", err)
	}
	if len(raw) != len(d) {
		return fmt.Errorf("invalid digest length: got %d bytes, want %d", len(raw), len(d))
	}
	copy(d[:], raw)
	return nil
}

// ParseDigest decodes a hex string into a Digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	err := d.UnmarshalText([]byte(s))
	return d, err
}

// taggedStruct hashes a named structure into a digest. The tag is hashed
// first so that structurally identical values of different types can never
// collide. Digest fields come before word fields; the digest count is
// appended so variable-length field lists stay unambiguous.
func taggedStruct(tag string, digests []Digest, words []uint32) Digest {
	h := sha256.New()
	tagDigest := sha256.Sum256([]byte(tag))
	h.Write(tagDigest[:])
	for _, d := range digests {
		h.Write(d[:])
	}
	var buf [4]byte
	for _, w := range words {
		binary.LittleEndian.PutUint32(buf[:], w)
		h.Write(buf[:4])
	}
	var count [2]byte
	binary.LittleEndian.PutUint16(count[:], uint16(len(digests)))
	h.Write(count[:])
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// taggedListCons folds one list element onto the digest of the remaining
// list, producing the digest of the extended list.
func taggedListCons(tag string, head Digest, rest Digest) Digest {
	return taggedStruct(tag, []Digest{head, rest}, nil)
}
