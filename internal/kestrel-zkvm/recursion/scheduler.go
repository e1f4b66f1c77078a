package recursion

import (
	"context"
	"fmt"
	"sync"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/receipt"
)

// The scheduler folds a composite receipt's segments into one succinct
// receipt. Lifts are the leaves of a balanced binary join tree; a node
// becomes ready the moment both children complete, so independent
// subtrees prove in parallel across the worker pool.

type nodeKind uint8

const (
	nodeLift nodeKind = iota
	nodeJoin
)

type node struct {
	kind    nodeKind
	seg     *receipt.SegmentReceipt
	left    int
	right   int
	parent  int
	pending int
	out     *receipt.SuccinctReceipt
}

// buildBalanced lays out a balanced join tree over segments [lo, hi) in
// the arena and returns the subtree's root index.
func buildBalanced(arena *[]*node, segs []*receipt.SegmentReceipt, lo, hi int) int {
	if hi-lo == 1 {
		*arena = append(*arena, &node{kind: nodeLift, seg: segs[lo], parent: -1})
		return len(*arena) - 1
	}
	mid := lo + (hi-lo+1)/2
	l := buildBalanced(arena, segs, lo, mid)
	r := buildBalanced(arena, segs, mid, hi)
	*arena = append(*arena, &node{kind: nodeJoin, left: l, right: r, parent: -1, pending: 2})
	idx := len(*arena) - 1
	(*arena)[l].parent = idx
	(*arena)[r].parent = idx
	return idx
}

// CompressSession folds a composite receipt into one succinct receipt:
// every segment is lifted, adjacent results are joined up a balanced
// tree, and any assumption receipts bundled in the composite discharge
// the matching assumptions on the folded claim. Assumptions without a
// bundled receipt stay unresolved, leaving a conditional receipt.
func (c *Composer) CompressSession(ctx context.Context, cr *receipt.CompositeReceipt, workers int) (*receipt.SuccinctReceipt, error) {
	if len(cr.Segments) == 0 {
		return nil, fmt.Errorf("%w: composite receipt has no segments", ErrComposition)
	}
	if workers < 1 {
		workers = 1
	}

	var arena []*node
	root := buildBalanced(&arena, cr.Segments, 0, len(cr.Segments))

	ready := make(chan int, len(arena))
	for i, n := range arena {
		if n.kind == nodeLift {
			ready <- i
		}
	}

	var (
		mu       sync.Mutex
		firstErr error
		finished bool
		done     = make(chan struct{})
		wg       sync.WaitGroup
	)
	finish := func() {
		// callers hold mu
		if !finished {
			finished = true
			close(done)
		}
	}
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		finish()
		mu.Unlock()
	}
	complete := func(idx int, out *receipt.SuccinctReceipt) {
		mu.Lock()
		n := arena[idx]
		n.out = out
		if n.kind == nodeJoin {
			// children are folded in, drop their seals
			arena[n.left].out = nil
			arena[n.right].out = nil
		}
		if idx == root {
			finish()
			mu.Unlock()
			return
		}
		parent := arena[n.parent]
		parent.pending--
		enqueue := parent.pending == 0
		mu.Unlock()
		if enqueue {
			ready <- n.parent
		}
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				case <-ctx.Done():
					fail(fmt.Errorf("%w: %v", ErrComposition, ctx.Err()))
					return
				case idx := <-ready:
					n := arena[idx]
					var (
						out *receipt.SuccinctReceipt
						err error
					)
					switch n.kind {
					case nodeLift:
						out, err = c.Lift(n.seg)
					case nodeJoin:
						mu.Lock()
						l, r := arena[n.left].out, arena[n.right].out
						mu.Unlock()
						out, err = c.Join(l, r)
					}
					if err != nil {
						fail(err)
						return
					}
					complete(idx, out)
				}
			}
		}()
	}

	<-done
	wg.Wait()

	mu.Lock()
	err := firstErr
	folded := arena[root].out
	mu.Unlock()
	if err != nil {
		return nil, err
	}

	if folded.Claim.Digest() != cr.Claim.Digest() {
		return nil, fmt.Errorf("%w: folded claim does not match composite claim", ErrComposition)
	}

	return c.resolveBundled(ctx, folded, cr.Assumptions, workers)
}

// resolveBundled discharges the folded claim's assumptions using the
// receipts bundled with the composite, compressing nested composites as
// needed.
func (c *Composer) resolveBundled(ctx context.Context, folded *receipt.SuccinctReceipt, bundled []*receipt.Receipt, workers int) (*receipt.SuccinctReceipt, error) {
	for _, ar := range bundled {
		sub, err := c.toSuccinct(ctx, ar, workers)
		if err != nil {
			return nil, err
		}
		folded, err = c.ResolveAssumption(folded, sub)
		if err != nil {
			return nil, err
		}
	}
	return folded, nil
}

// toSuccinct normalizes any proven receipt variant into succinct form.
func (c *Composer) toSuccinct(ctx context.Context, r *receipt.Receipt, workers int) (*receipt.SuccinctReceipt, error) {
	switch r.Kind {
	case receipt.KindSuccinct:
		return r.Succinct, nil
	case receipt.KindSegment:
		return c.Lift(r.Segment)
	case receipt.KindComposite:
		return c.CompressSession(ctx, r.Composite, workers)
	default:
		return nil, fmt.Errorf("%w: cannot fold %s receipt into recursion", ErrComposition, r.Kind)
	}
}
