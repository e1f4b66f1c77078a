package prove

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/executor"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/receipt"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/utils"
)

// Prover proves segments and sessions against a configured proof system.
type Prover struct {
	system ProofSystem
	cfg    *utils.Config
	log    zerolog.Logger
}

// NewProver creates a prover. A nil system selects the built-in hash
// transcript backend.
func NewProver(system ProofSystem, cfg *utils.Config) (*Prover, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if system == nil {
		system = NewHashProofSystem()
	}
	return &Prover{
		system: system,
		cfg:    cfg.Clone(),
		log:    utils.NewLogger("prover"),
	}, nil
}

// System returns the configured proof system.
func (p *Prover) System() ProofSystem { return p.system }

// ProveSegment proves one segment.
func (p *Prover) ProveSegment(ctx context.Context, seg *executor.Segment) (*receipt.SegmentReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofGeneration, err)
	}
	return p.system.ProveSegment(seg)
}

// ProveSession proves every segment of the session and assembles the
// composite receipt. Segments prove in parallel on a bounded worker pool;
// the receipt lists them in segment order regardless of completion order.
// In dev mode no proving happens and the result holds a single dev-mode
// receipt for the session claim.
func (p *Prover) ProveSession(ctx context.Context, session *executor.Session) (*receipt.Receipt, error) {
	if err := session.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofGeneration, err)
	}

	if p.cfg.DevMode {
		p.log.Warn().
			Str("session", session.ID.String()).
			Msg("dev mode: issuing unproven receipt")
		return receipt.NewDevMode(&receipt.DevModeReceipt{Claim: *session.Claim()}), nil
	}

	segments := make([]*receipt.SegmentReceipt, len(session.Segments))
	workers := p.cfg.EffectiveWorkers()
	if workers > len(session.Segments) {
		workers = len(session.Segments)
	}

	jobs := make(chan int)
	errc := make(chan error, 1)
	failed := make(chan struct{})

	var (
		wg       sync.WaitGroup
		failOnce sync.Once
	)
	fail := func(err error) {
		select {
		case errc <- err:
		default:
		}
		failOnce.Do(func() { close(failed) })
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				select {
				case <-failed:
					return
				case <-ctx.Done():
					return
				default:
				}
				sr, err := p.system.ProveSegment(session.Segments[idx])
				if err != nil {
					fail(fmt.Errorf("segment %d: %w", idx, err))
					return
				}
				segments[idx] = sr
			}
		}()
	}

	go func() {
		defer close(jobs)
		for idx := range session.Segments {
			select {
			case jobs <- idx:
			case <-ctx.Done():
				return
			case <-failed:
				return
			}
		}
	}()

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofGeneration, err)
	}
	select {
	case err := <-errc:
		return nil, fmt.Errorf("%w: %v", ErrProofGeneration, err)
	default:
	}
	for idx, sr := range segments {
		if sr == nil {
			return nil, fmt.Errorf("%w: segment %d was never proven", ErrProofGeneration, idx)
		}
	}

	p.log.Info().
		Str("session", session.ID.String()).
		Int("segments", len(segments)).
		Str("system", p.system.Name()).
		Msg("session proven")

	return receipt.NewComposite(&receipt.CompositeReceipt{
		Claim:    *session.Claim(),
		Segments: segments,
	}), nil
}
