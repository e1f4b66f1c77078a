// Package bisect locates the exact segment where a claimed execution
// diverges from honest re-execution. Re-running the guest is cheap next to
// proving, so a dispute over a long session narrows to a single segment
// with a logarithmic number of replays, and only that one segment needs
// proving to settle it.
package bisect

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/claim"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/executor"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/isa"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/receipt"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/utils"
)

// ErrImageMismatch is returned when the claimed session does not even
// start from the factory's initial state.
var ErrImageMismatch = errors.New("bisect: claimed pre state does not match initial state")

// CoreFactory produces a fresh core loaded at the session's initial
// state. Every probe replays from scratch, so the factory must be
// deterministic.
type CoreFactory func() isa.Core

// Result identifies the first divergent segment.
type Result struct {
	// Index is the first segment whose claimed post state disagrees with
	// re-execution.
	Index int

	// Claimed is the post state digest the receipt asserts.
	Claimed claim.Digest

	// Recomputed is the post state digest honest re-execution produces.
	Recomputed claim.Digest
}

// Bisector narrows claimed-versus-recomputed divergence to one segment.
// The configuration must match the one the claimed session was segmented
// under, or boundaries will not line up.
type Bisector struct {
	factory     CoreFactory
	inputDigest claim.Digest
	cfg         *utils.Config
	log         zerolog.Logger
}

// New creates a bisector.
func New(factory CoreFactory, inputDigest claim.Digest, cfg *utils.Config) (*Bisector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Bisector{
		factory:     factory,
		inputDigest: inputDigest,
		cfg:         cfg.Clone(),
		log:         utils.NewLogger("bisect"),
	}, nil
}

// FirstDivergence binary-searches the composite receipt's segments for the
// first one whose claimed post state disagrees with re-execution. A nil
// result means every claimed boundary checks out.
func (b *Bisector) FirstDivergence(ctx context.Context, cr *receipt.CompositeReceipt) (*Result, error) {
	n := len(cr.Segments)
	if n == 0 {
		return nil, fmt.Errorf("bisect: composite receipt has no segments")
	}

	if got := b.factory().SystemState().Digest(); got != cr.Segments[0].Claim.PreStateDigest {
		return nil, fmt.Errorf("%w: claimed %s, recomputed %s",
			ErrImageMismatch, cr.Segments[0].Claim.PreStateDigest, got)
	}

	// Invariant: every boundary below lo matches, some boundary in
	// [lo, hi] is the first mismatch if one exists at all.
	lo, hi := 0, n-1
	if match, _, err := b.probe(ctx, cr, hi); err != nil {
		return nil, err
	} else if match {
		return nil, nil
	}

	probes := 1
	for lo < hi {
		mid := lo + (hi-lo)/2
		match, _, err := b.probe(ctx, cr, mid)
		if err != nil {
			return nil, err
		}
		probes++
		if match {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	_, recomputed, err := b.probe(ctx, cr, lo)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Index:      lo,
		Claimed:    cr.Segments[lo].Claim.PostStateDigest,
		Recomputed: recomputed,
	}
	b.log.Info().
		Int("segment", res.Index).
		Int("probes", probes).
		Str("claimed", res.Claimed.String()).
		Str("recomputed", res.Recomputed.String()).
		Msg("divergence located")
	return res, nil
}

// probe re-executes through segment idx and compares the resulting post
// state with the claimed one.
func (b *Bisector) probe(ctx context.Context, cr *receipt.CompositeReceipt, idx int) (bool, claim.Digest, error) {
	exec, err := executor.New(b.factory(), b.inputDigest, b.cfg)
	if err != nil {
		return false, claim.ZeroDigest, err
	}
	post, err := exec.RunUntil(ctx, idx)
	if err != nil {
		return false, claim.ZeroDigest, fmt.Errorf("bisect: replay through segment %d: %w", idx, err)
	}
	recomputed := post.Digest()
	return recomputed == cr.Segments[idx].Claim.PostStateDigest, recomputed, nil
}
