package receipt

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/claim"
)

// ErrVersionMismatch is returned when a container's format version is not
// the one this build writes.
var ErrVersionMismatch = errors.New("receipt: container format version mismatch")

// maxFrameLen caps the length prefix a decoder will accept, so a corrupt
// header cannot drive a huge allocation.
const maxFrameLen = 1 << 28

// Container layout, all integers little endian:
//
//	u16 format version
//	u8  variant tag (Kind)
//	u32 claim length, claim JSON
//	u32 payload length, variant JSON
//
// The claim is framed separately so tooling can read what a receipt
// attests to without decoding the proof material.

// Encode serializes the receipt into the portable container format.
func (r *Receipt) Encode() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("encode receipt: %w", err)
	}
	c, err := r.Claim()
	if err != nil {
		return nil, err
	}
	claimJSON, err := json.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("encode receipt claim: %w", err)
	}
	payload, err := r.variantPayload()
	if err != nil {
		return nil, fmt.Errorf("encode receipt payload: %w", err)
	}

	out := make([]byte, 0, 3+8+len(claimJSON)+len(payload))
	out = binary.LittleEndian.AppendUint16(out, FormatVersion)
	out = append(out, byte(r.Kind))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(claimJSON)))
	out = append(out, claimJSON...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(payload)))
	out = append(out, payload...)
	return out, nil
}

// Decode parses a container produced by Encode. A version other than
// FormatVersion fails with ErrVersionMismatch before any payload is
// touched.
func Decode(data []byte) (*Receipt, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("decode receipt: truncated header (%d bytes)", len(data))
	}
	version := binary.LittleEndian.Uint16(data[:2])
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, version, FormatVersion)
	}
	kind := Kind(data[2])
	rest := data[3:]

	claimJSON, rest, err := readFrame(rest)
	if err != nil {
		return nil, fmt.Errorf("decode receipt claim: %w", err)
	}
	payload, rest, err := readFrame(rest)
	if err != nil {
		return nil, fmt.Errorf("decode receipt payload: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("decode receipt: %d trailing bytes", len(rest))
	}

	var framedClaim claim.Claim
	if err := json.Unmarshal(claimJSON, &framedClaim); err != nil {
		return nil, fmt.Errorf("decode receipt claim: %w", err)
	}

	r := &Receipt{Kind: kind}
	var target any
	switch kind {
	case KindSegment:
		r.Segment = &SegmentReceipt{}
		target = r.Segment
	case KindComposite:
		r.Composite = &CompositeReceipt{}
		target = r.Composite
	case KindSuccinct:
		r.Succinct = &SuccinctReceipt{}
		target = r.Succinct
	case KindWrapped:
		r.Wrapped = &WrappedReceipt{}
		target = r.Wrapped
	case KindDevMode:
		r.DevMode = &DevModeReceipt{}
		target = r.DevMode
	default:
		return nil, fmt.Errorf("decode receipt: unknown variant tag %d", uint8(kind))
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return nil, fmt.Errorf("decode receipt payload: %w", err)
	}

	inner, err := r.Claim()
	if err != nil {
		return nil, err
	}
	if inner.Digest() != framedClaim.Digest() {
		return nil, fmt.Errorf("decode receipt: framed claim does not match payload claim")
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return r, nil
}

func readFrame(data []byte) (frame, rest []byte, err error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("truncated length prefix (%d bytes)", len(data))
	}
	n := binary.LittleEndian.Uint32(data[:4])
	if n > maxFrameLen {
		return nil, nil, fmt.Errorf("frame length %d exceeds limit", n)
	}
	if uint32(len(data)-4) < n {
		return nil, nil, fmt.Errorf("frame length %d exceeds remaining %d bytes", n, len(data)-4)
	}
	return data[4 : 4+n], data[4+n:], nil
}
