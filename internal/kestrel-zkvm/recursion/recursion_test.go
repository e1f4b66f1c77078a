package recursion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/claim"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/executor"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/isa"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/prove"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/receipt"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/utils"
)

func proveSession(t *testing.T, prog *isa.Program, cfg *utils.Config) (*executor.Session, *receipt.CompositeReceipt) {
	t.Helper()
	exec, err := executor.New(isa.NewMachine(prog, nil), claim.DigestOf(nil), cfg)
	require.NoError(t, err)
	session, err := exec.Run(context.Background())
	require.NoError(t, err)

	prover, err := prove.NewProver(nil, cfg)
	require.NoError(t, err)
	r, err := prover.ProveSession(context.Background(), session)
	require.NoError(t, err)
	require.Equal(t, receipt.KindComposite, r.Kind)
	return session, r.Composite
}

func TestControlIDsDistinct(t *testing.T) {
	ids := map[claim.Digest]string{}
	for _, prog := range []string{ProgramLift, ProgramJoin, ProgramResolve, ProgramIdentity} {
		id := ControlIDFor(prog)
		assert.Equal(t, id, ControlIDFor(prog), "control ID must be deterministic")
		prev, dup := ids[id]
		require.False(t, dup, "%s and %s share a control ID", prog, prev)
		ids[id] = prog
	}
}

func TestControlIDSet(t *testing.T) {
	set := DefaultControlIDSet()
	assert.True(t, set.Contains(ControlIDFor(ProgramJoin)))
	assert.False(t, set.Contains(claim.DigestOf([]byte("rogue"))))

	// the root commits to membership
	reduced := NewControlIDSet([]claim.Digest{ControlIDFor(ProgramLift)})
	assert.NotEqual(t, set.Root(), reduced.Root())
}

func TestLiftPreservesClaim(t *testing.T) {
	_, cr := proveSession(t, isa.FibProgram(10), utils.DefaultConfig())
	comp := NewComposer(nil, nil)

	sr, err := comp.Lift(cr.Segments[0])
	require.NoError(t, err)
	assert.Equal(t, cr.Segments[0].Claim.Digest(), sr.Claim.Digest())
	assert.Equal(t, ControlIDFor(ProgramLift), sr.ControlID)
	assert.NoError(t, VerifySuccinct(sr, comp.Set()))
}

func TestLiftRejectsBadSegmentSeal(t *testing.T) {
	_, cr := proveSession(t, isa.FibProgram(10), utils.DefaultConfig())
	comp := NewComposer(nil, nil)

	cr.Segments[0].Seal[0] ^= 0xff
	_, err := comp.Lift(cr.Segments[0])
	assert.ErrorIs(t, err, ErrComposition)
}

func TestVerifySuccinctRejectsTamperedClaim(t *testing.T) {
	_, cr := proveSession(t, isa.FibProgram(10), utils.DefaultConfig())
	comp := NewComposer(nil, nil)
	sr, err := comp.Lift(cr.Segments[0])
	require.NoError(t, err)

	sr.Claim.PostStateDigest = claim.DigestOf([]byte("forged"))
	assert.ErrorIs(t, VerifySuccinct(sr, comp.Set()), ErrInvalidSeal)
}

func TestVerifySuccinctRejectsForeignSet(t *testing.T) {
	_, cr := proveSession(t, isa.FibProgram(10), utils.DefaultConfig())
	comp := NewComposer(nil, nil)
	sr, err := comp.Lift(cr.Segments[0])
	require.NoError(t, err)

	foreign := NewControlIDSet([]claim.Digest{ControlIDFor(ProgramLift), claim.DigestOf([]byte("other"))})
	assert.ErrorIs(t, VerifySuccinct(sr, foreign), ErrInvalidSeal)
}

func TestJoinAdjacentSegments(t *testing.T) {
	cfg := utils.DefaultConfig().WithSegmentLimit(32)
	session, cr := proveSession(t, isa.CountdownProgram(40, 2), cfg)
	require.GreaterOrEqual(t, len(cr.Segments), 2)

	comp := NewComposer(nil, nil)
	left, err := comp.Lift(cr.Segments[0])
	require.NoError(t, err)
	right, err := comp.Lift(cr.Segments[1])
	require.NoError(t, err)

	joined, err := comp.Join(left, right)
	require.NoError(t, err)
	assert.Equal(t, left.Claim.PreStateDigest, joined.Claim.PreStateDigest)
	assert.Equal(t, right.Claim.PostStateDigest, joined.Claim.PostStateDigest)
	assert.Equal(t, right.Claim.ExitCode, joined.Claim.ExitCode)
	assert.NoError(t, VerifySuccinct(joined, comp.Set()))

	if len(cr.Segments) == 2 {
		assert.Equal(t, session.Claim().Digest(), joined.Claim.Digest())
	}
}

func TestJoinRejectsNonAdjacent(t *testing.T) {
	cfg := utils.DefaultConfig().WithSegmentLimit(32)
	_, cr := proveSession(t, isa.CountdownProgram(100, 2), cfg)
	require.GreaterOrEqual(t, len(cr.Segments), 3)

	comp := NewComposer(nil, nil)
	first, err := comp.Lift(cr.Segments[0])
	require.NoError(t, err)
	third, err := comp.Lift(cr.Segments[2])
	require.NoError(t, err)

	_, err = comp.Join(first, third)
	assert.ErrorIs(t, err, ErrComposition)
}

func TestJoinRejectsTerminatedLeft(t *testing.T) {
	cfg := utils.DefaultConfig().WithSegmentLimit(32)
	_, cr := proveSession(t, isa.CountdownProgram(40, 2), cfg)
	require.GreaterOrEqual(t, len(cr.Segments), 2)

	comp := NewComposer(nil, nil)
	last, err := comp.Lift(cr.Segments[len(cr.Segments)-1])
	require.NoError(t, err)

	_, err = comp.Join(last, last)
	assert.ErrorIs(t, err, ErrComposition)
}

func TestJoinAssociativity(t *testing.T) {
	cfg := utils.DefaultConfig().WithSegmentLimit(16)
	_, cr := proveSession(t, isa.CountdownProgram(30, 1), cfg)
	require.GreaterOrEqual(t, len(cr.Segments), 3)

	comp := NewComposer(nil, nil)
	lift := func(i int) *receipt.SuccinctReceipt {
		sr, err := comp.Lift(cr.Segments[i])
		require.NoError(t, err)
		return sr
	}

	// left fold: ((s0 + s1) + s2) ...
	leftFold := lift(0)
	for i := 1; i < len(cr.Segments); i++ {
		var err error
		leftFold, err = comp.Join(leftFold, lift(i))
		require.NoError(t, err)
	}

	// right fold: s0 + (s1 + (s2 + ...))
	rightFold := lift(len(cr.Segments) - 1)
	for i := len(cr.Segments) - 2; i >= 0; i-- {
		var err error
		rightFold, err = comp.Join(lift(i), rightFold)
		require.NoError(t, err)
	}

	assert.Equal(t, leftFold.Claim.Digest(), rightFold.Claim.Digest())
	assert.Equal(t, leftFold.Seal, rightFold.Seal)
}

func TestCompressSession(t *testing.T) {
	cfg := utils.DefaultConfig().WithSegmentLimit(16)
	session, cr := proveSession(t, isa.CountdownProgram(50, 4), cfg)
	require.Greater(t, len(cr.Segments), 2)

	comp := NewComposer(nil, nil)
	sr, err := comp.CompressSession(context.Background(), cr, 4)
	require.NoError(t, err)

	assert.Equal(t, session.Claim().Digest(), sr.Claim.Digest())
	assert.NoError(t, VerifySuccinct(sr, comp.Set()))
}

func TestCompressSingleSegment(t *testing.T) {
	session, cr := proveSession(t, isa.FibProgram(10), utils.DefaultConfig())
	require.Len(t, cr.Segments, 1)

	comp := NewComposer(nil, nil)
	sr, err := comp.CompressSession(context.Background(), cr, 2)
	require.NoError(t, err)
	assert.Equal(t, session.Claim().Digest(), sr.Claim.Digest())
}

func TestResolveAssumption(t *testing.T) {
	cfg := utils.DefaultConfig()
	comp := NewComposer(nil, nil)

	// inner session whose claim the outer guest assumes
	innerSession, innerCR := proveSession(t, isa.FibProgram(10), cfg)
	innerSR, err := comp.CompressSession(context.Background(), innerCR, 2)
	require.NoError(t, err)

	outerSession, outerCR := proveSession(t, isa.AssumeProgram(innerSession.Claim().Digest(), 1), cfg)
	require.Len(t, outerSession.Assumptions, 1)

	condSR, err := comp.CompressSession(context.Background(), outerCR, 2)
	require.NoError(t, err)
	require.False(t, condSR.Claim.Output.Assumptions.AllResolved())

	resolved, err := comp.ResolveAssumption(condSR, innerSR)
	require.NoError(t, err)
	assert.True(t, resolved.Claim.Output.Assumptions.AllResolved())
	assert.NotEqual(t, condSR.Claim.Digest(), resolved.Claim.Digest(),
		"resolution must change the output digest")
	assert.NoError(t, VerifySuccinct(resolved, comp.Set()))

	// a second resolution of the same assumption must fail
	_, err = comp.ResolveAssumption(resolved, innerSR)
	assert.ErrorIs(t, err, ErrComposition)
}

func TestCompressSessionResolvesBundled(t *testing.T) {
	cfg := utils.DefaultConfig()
	comp := NewComposer(nil, nil)

	innerSession, innerCR := proveSession(t, isa.FibProgram(10), cfg)
	_, outerCR := proveSession(t, isa.AssumeProgram(innerSession.Claim().Digest(), 1), cfg)
	outerCR.Assumptions = []*receipt.Receipt{receipt.NewComposite(innerCR)}

	sr, err := comp.CompressSession(context.Background(), outerCR, 2)
	require.NoError(t, err)
	assert.True(t, sr.Claim.Output.Assumptions.AllResolved())
}

func TestIdentityFinalize(t *testing.T) {
	_, cr := proveSession(t, isa.FibProgram(10), utils.DefaultConfig())
	comp := NewComposer(nil, nil)
	sr, err := comp.CompressSession(context.Background(), cr, 2)
	require.NoError(t, err)

	final, err := comp.IdentityFinalize(sr)
	require.NoError(t, err)
	assert.Equal(t, ControlIDFor(ProgramIdentity), final.ControlID)
	assert.Equal(t, sr.Claim.Digest(), final.Claim.Digest())
	assert.NoError(t, VerifySuccinct(final, comp.Set()))
}
