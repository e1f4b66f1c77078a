package bisect

import (
	"context"
	"fmt"
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

func claimedComposite(t *testing.T, prog *isa.Program, cfg *utils.Config) *receipt.CompositeReceipt {
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
	return r.Composite
}

// tamper forges the claimed transition of segment idx and propagates the
// forged states through the rest of the chain, modeling a prover that
// lied about one transition and had to keep lying to stay self-consistent.
func tamper(cr *receipt.CompositeReceipt, idx int) {
	for i := idx; i < len(cr.Segments); i++ {
		forged := claim.DigestOf([]byte(fmt.Sprintf("forged state %d", i)))
		cr.Segments[i].Claim.PostStateDigest = forged
		if i+1 < len(cr.Segments) {
			cr.Segments[i+1].Claim.PreStateDigest = forged
		}
	}
}

func TestFirstDivergenceHonestReceipt(t *testing.T) {
	cfg := utils.DefaultConfig().WithSegmentLimit(32)
	cr := claimedComposite(t, isa.CountdownProgram(100, 1), cfg)
	require.Greater(t, len(cr.Segments), 2)

	b, err := New(func() isa.Core { return isa.NewMachine(isa.CountdownProgram(100, 1), nil) },
		claim.DigestOf(nil), cfg)
	require.NoError(t, err)

	res, err := b.FirstDivergence(context.Background(), cr)
	require.NoError(t, err)
	assert.Nil(t, res, "honest receipt has no divergence")
}

func TestFirstDivergenceFindsExactSegment(t *testing.T) {
	cfg := utils.DefaultConfig().WithSegmentLimit(16)
	cr := claimedComposite(t, isa.CountdownProgram(150, 1), cfg)
	require.Greater(t, len(cr.Segments), 4)

	for _, idx := range []int{0, 1, len(cr.Segments) / 2, len(cr.Segments) - 1} {
		fresh := claimedComposite(t, isa.CountdownProgram(150, 1), cfg)
		tamper(fresh, idx)

		b, err := New(func() isa.Core { return isa.NewMachine(isa.CountdownProgram(150, 1), nil) },
			claim.DigestOf(nil), cfg)
		require.NoError(t, err)

		res, err := b.FirstDivergence(context.Background(), fresh)
		require.NoError(t, err)
		require.NotNil(t, res, "tampered at %d", idx)
		assert.Equal(t, idx, res.Index, "tampered at %d", idx)
		assert.Equal(t, fresh.Segments[idx].Claim.PostStateDigest, res.Claimed)
		assert.NotEqual(t, res.Claimed, res.Recomputed)
	}
}

func TestFirstDivergenceImageMismatch(t *testing.T) {
	cfg := utils.DefaultConfig().WithSegmentLimit(32)
	cr := claimedComposite(t, isa.CountdownProgram(100, 1), cfg)

	// replaying the wrong program entirely
	b, err := New(func() isa.Core { return isa.NewMachine(isa.FibProgram(10), nil) },
		claim.DigestOf(nil), cfg)
	require.NoError(t, err)

	_, err = b.FirstDivergence(context.Background(), cr)
	assert.ErrorIs(t, err, ErrImageMismatch)
}
