package verify

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/claim"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/executor"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/groth16wrap"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/isa"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/prove"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/receipt"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/recursion"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/utils"
)

var (
	errInvalidProof         = &Error{Code: CodeInvalidProof}
	errClaimMismatch        = &Error{Code: CodeClaimMismatch}
	errUnknownControlID     = &Error{Code: CodeUnknownControlID}
	errUnresolvedAssumption = &Error{Code: CodeUnresolvedAssumption}
	errVersionMismatch      = &Error{Code: CodeVersionMismatch}
)

type pipeline struct {
	session   *executor.Session
	composite *receipt.Receipt
	succinct  *receipt.SuccinctReceipt
	imageID   claim.Digest
}

func runPipeline(t *testing.T, prog *isa.Program, cfg *utils.Config) *pipeline {
	t.Helper()
	exec, err := executor.New(isa.NewMachine(prog, nil), claim.DigestOf(nil), cfg)
	require.NoError(t, err)
	session, err := exec.Run(context.Background())
	require.NoError(t, err)

	prover, err := prove.NewProver(nil, cfg)
	require.NoError(t, err)
	r, err := prover.ProveSession(context.Background(), session)
	require.NoError(t, err)

	p := &pipeline{session: session, composite: r, imageID: prog.ImageID()}
	if r.Kind == receipt.KindComposite {
		comp := recursion.NewComposer(nil, nil)
		p.succinct, err = comp.CompressSession(context.Background(), r.Composite, 2)
		require.NoError(t, err)
	}
	return p
}

func TestVerifyFibEndToEnd(t *testing.T) {
	p := runPipeline(t, isa.FibProgram(10), utils.DefaultConfig())
	v := NewVerifier(nil)

	require.NoError(t, v.Verify(p.composite, p.imageID, p.session.Journal))
	require.NoError(t, v.Verify(receipt.NewSuccinct(p.succinct), p.imageID, p.session.Journal))

	require.Len(t, p.session.Journal, 8)
	assert.Equal(t, uint64(55), binary.LittleEndian.Uint64(p.session.Journal))
}

func TestVerifyMultiSegmentComposite(t *testing.T) {
	cfg := utils.DefaultConfig().WithSegmentLimit(32)
	p := runPipeline(t, isa.CountdownProgram(100, 6), cfg)
	require.Greater(t, len(p.composite.Composite.Segments), 1)

	v := NewVerifier(nil)
	assert.NoError(t, v.Verify(p.composite, p.imageID, p.session.Journal))
}

func TestVerifyRejectsWrongImageID(t *testing.T) {
	p := runPipeline(t, isa.FibProgram(10), utils.DefaultConfig())
	v := NewVerifier(nil)

	err := v.Verify(p.composite, isa.FibProgram(11).ImageID(), p.session.Journal)
	assert.ErrorIs(t, err, errClaimMismatch)
}

func TestVerifyRejectsWrongJournal(t *testing.T) {
	p := runPipeline(t, isa.FibProgram(10), utils.DefaultConfig())
	v := NewVerifier(nil)

	err := v.Verify(p.composite, p.imageID, []byte("not the journal"))
	assert.ErrorIs(t, err, errClaimMismatch)
}

func TestVerifyRejectsTamperedSegmentSeal(t *testing.T) {
	p := runPipeline(t, isa.FibProgram(10), utils.DefaultConfig())
	p.composite.Composite.Segments[0].Seal[0] ^= 0xff

	v := NewVerifier(nil)
	err := v.Verify(p.composite, p.imageID, p.session.Journal)
	assert.ErrorIs(t, err, errInvalidProof)
}

func TestVerifyRejectsTamperedSuccinctClaim(t *testing.T) {
	p := runPipeline(t, isa.FibProgram(10), utils.DefaultConfig())
	p.succinct.Claim.Output.JournalDigest = claim.DigestOf([]byte("forged"))

	v := NewVerifier(nil)
	err := v.VerifyIntegrity(receipt.NewSuccinct(p.succinct))
	assert.ErrorIs(t, err, errInvalidProof)
}

func TestVerifyRejectsForeignControlID(t *testing.T) {
	p := runPipeline(t, isa.FibProgram(10), utils.DefaultConfig())

	// verifier trusting a different program set
	reduced := recursion.NewControlIDSet([]claim.Digest{
		recursion.ControlIDFor(recursion.ProgramLift),
	})
	v := NewVerifier(reduced)
	err := v.VerifyIntegrity(receipt.NewSuccinct(p.succinct))
	assert.Error(t, err)

	// same set membership but rogue control ID on the receipt
	v2 := NewVerifier(nil)
	p.succinct.ControlID = claim.DigestOf([]byte("rogue"))
	err = v2.VerifyIntegrity(receipt.NewSuccinct(p.succinct))
	assert.ErrorIs(t, err, errUnknownControlID)
}

func TestVerifyRejectsUnresolvedAssumption(t *testing.T) {
	assumed := claim.DigestOf([]byte("external claim"))
	p := runPipeline(t, isa.AssumeProgram(assumed, 1), utils.DefaultConfig())

	v := NewVerifier(nil)
	// proof material checks out
	require.NoError(t, v.VerifyIntegrity(p.composite))
	// but full verification refuses the conditional receipt
	err := v.Verify(p.composite, p.imageID, p.session.Journal)
	assert.ErrorIs(t, err, errUnresolvedAssumption)
}

func TestVerifyDevModeGate(t *testing.T) {
	cfg := utils.DefaultConfig().WithDevMode(true)
	p := runPipeline(t, isa.FibProgram(10), cfg)
	require.Equal(t, receipt.KindDevMode, p.composite.Kind)

	strict := NewVerifier(nil)
	err := strict.Verify(p.composite, p.imageID, p.session.Journal)
	assert.ErrorIs(t, err, errInvalidProof)

	relaxed := NewVerifier(nil, AllowDevMode())
	assert.NoError(t, relaxed.Verify(p.composite, p.imageID, p.session.Journal))
}

func TestVerifyEncodedVersionGate(t *testing.T) {
	p := runPipeline(t, isa.FibProgram(10), utils.DefaultConfig())
	data, err := p.composite.Encode()
	require.NoError(t, err)

	v := NewVerifier(nil)
	require.NoError(t, v.VerifyEncoded(data, p.imageID, p.session.Journal))

	binary.LittleEndian.PutUint16(data[:2], receipt.FormatVersion+7)
	err = v.VerifyEncoded(data, p.imageID, p.session.Journal)
	assert.ErrorIs(t, err, errVersionMismatch)
}

func TestVerifyWrappedKeyPinning(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	p := runPipeline(t, isa.FibProgram(10), utils.DefaultConfig())
	comp := recursion.NewComposer(nil, nil)
	final, err := comp.IdentityFinalize(p.succinct)
	require.NoError(t, err)

	w, err := groth16wrap.NewWrapper(nil)
	require.NoError(t, err)
	wr, err := w.Wrap(final)
	require.NoError(t, err)
	r := receipt.NewWrapped(wr)

	// unpinned verifiers trust the key the receipt carries
	require.NoError(t, NewVerifier(nil).Verify(r, p.imageID, p.session.Journal))

	pinned := NewVerifier(nil, WithWrappedVerifyingKey(w.VerifyingKey()))
	require.NoError(t, pinned.Verify(r, p.imageID, p.session.Journal))

	other := w.VerifyingKey()
	other[0] ^= 0xff
	stranger := NewVerifier(nil, WithWrappedVerifyingKey(other))
	err = stranger.Verify(r, p.imageID, p.session.Journal)
	assert.ErrorIs(t, err, errInvalidProof)
}

func TestVerifyRejectsBrokenChain(t *testing.T) {
	cfg := utils.DefaultConfig().WithSegmentLimit(32)
	p := runPipeline(t, isa.CountdownProgram(100, 6), cfg)
	segs := p.composite.Composite.Segments
	require.Greater(t, len(segs), 2)

	// drop an interior segment so the chain no longer connects
	p.composite.Composite.Segments = append(segs[:1], segs[2:]...)
	v := NewVerifier(nil)
	err := v.Verify(p.composite, p.imageID, p.session.Journal)
	assert.Error(t, err)
}
