package prove

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/claim"
)

// Transcript is a Fiat-Shamir transcript over sha3-256. Every absorbed
// value is length-framed under a label so distinct message sequences can
// never collide into the same state.
type Transcript struct {
	state [32]byte
}

// NewTranscript creates a transcript seeded with a domain label.
func NewTranscript(domain string) *Transcript {
	t := &Transcript{}
	t.state = sha3.Sum256([]byte(domain))
	return t
}

// Absorb mixes labelled data into the transcript state.
func (t *Transcript) Absorb(label string, data []byte) {
	h := sha3.New256()
	h.Write(t.state[:])
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(label)))
	h.Write(n[:])
	h.Write([]byte(label))
	binary.LittleEndian.PutUint64(n[:], uint64(len(data)))
	h.Write(n[:])
	h.Write(data)
	h.Sum(t.state[:0])
}

// AbsorbDigest mixes a digest into the transcript state.
func (t *Transcript) AbsorbDigest(label string, d claim.Digest) {
	t.Absorb(label, d[:])
}

// Challenge derives a labelled 32-byte challenge and advances the state,
// so successive challenges under the same label still differ.
func (t *Transcript) Challenge(label string) [32]byte {
	h := sha3.New256()
	h.Write(t.state[:])
	h.Write([]byte("challenge:"))
	h.Write([]byte(label))
	var out [32]byte
	h.Sum(out[:0])
	t.state = sha3.Sum256(out[:])
	return out
}
