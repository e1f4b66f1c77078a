package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/claim"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/isa"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/utils"
)

// Execution errors. Any of them aborts the session entirely; no partial
// Session is ever returned.
var (
	// ErrGuestFault is an illegal guest operation with no handler.
	ErrGuestFault = errors.New("executor: guest fault")

	// ErrGuestPanic is an explicit guest abort.
	ErrGuestPanic = errors.New("executor: guest panic")

	// ErrCycleLimitExceeded means the session exhausted its segment
	// budget before terminating.
	ErrCycleLimitExceeded = errors.New("executor: cycle limit exceeded")
)

// ctxCheckInterval is how many instructions run between cancellation
// checks.
const ctxCheckInterval = 256

// Executor drives one guest core to completion, producing a Session.
// Execution is single-threaded per session; independent sessions may run
// concurrently with no shared state. The executor generates no proofs.
type Executor struct {
	core        isa.Core
	cfg         *utils.Config
	inputDigest claim.Digest
	log         zerolog.Logger
}

// New creates an executor for one loaded core. The input digest commits to
// the input bytes already fed to the core.
func New(core isa.Core, inputDigest claim.Digest, cfg *utils.Config) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Executor{
		core:        core,
		cfg:         cfg.Clone(),
		inputDigest: inputDigest,
		log:         utils.NewLogger("executor"),
	}, nil
}

// Run executes the guest to completion (halt or pause), returning the
// Session. Cancellation through ctx aborts execution cooperatively.
func (e *Executor) Run(ctx context.Context) (*Session, error) {
	return e.run(ctx, -1)
}

// RunUntil executes the guest until the end of segment stopAfter and
// returns that segment's post state. Used by fault bisection to recompute
// trusted boundary digests without finishing the run.
func (e *Executor) RunUntil(ctx context.Context, stopAfter int) (claim.SystemState, error) {
	session, err := e.run(ctx, stopAfter)
	if err != nil {
		return claim.SystemState{}, err
	}
	return session.Segments[len(session.Segments)-1].PostState, nil
}

func (e *Executor) run(ctx context.Context, stopAfter int) (*Session, error) {
	session := &Session{
		ID:          uuid.New(),
		ImageID:     e.core.SystemState().Digest(),
		InputDigest: e.inputDigest,
	}
	var journal []byte

	segPre := e.core.SystemState()
	var segTrace []isa.TraceRow
	var segSyscalls []SyscallRecord
	var segCycles uint64
	steps := 0

	closeSegment := func(exit claim.ExitCode, output *claim.Output) {
		seg := &Segment{
			Index:       len(session.Segments),
			PreState:    segPre,
			PostState:   e.core.SystemState(),
			CycleCount:  segCycles,
			ExitCode:    exit,
			Trace:       segTrace,
			Syscalls:    segSyscalls,
			InputDigest: e.inputDigest,
			Output:      output,
		}
		session.Segments = append(session.Segments, seg)
		e.log.Debug().
			Str("session", session.ID.String()).
			Int("segment", seg.Index).
			Uint64("cycles", seg.CycleCount).
			Str("exit", exit.Kind.String()).
			Msg("segment closed")
		segPre = seg.PostState
		segTrace = nil
		segSyscalls = nil
		segCycles = 0
	}

	for {
		steps++
		if steps%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("execution cancelled: %w", err)
			}
		}

		// A syscall's atomic effect must never straddle a boundary: if
		// the next instruction would overflow the limit, the segment is
		// closed before it executes.
		cost := e.core.PeekCost()
		if segCycles+cost > e.cfg.SegmentLimit {
			if segCycles == 0 {
				return nil, fmt.Errorf("%w: instruction cost %d exceeds segment limit %d",
					ErrCycleLimitExceeded, cost, e.cfg.SegmentLimit)
			}
			if len(session.Segments)+1 >= e.cfg.MaxSegments {
				return nil, fmt.Errorf("%w: session needs more than %d segments",
					ErrCycleLimitExceeded, e.cfg.MaxSegments)
			}
			closeSegment(claim.SystemSplit(), nil)
			if stopAfter >= 0 && len(session.Segments) > stopAfter {
				return session, nil
			}
		}

		res, err := e.core.Step()
		if err != nil {
			switch {
			case errors.Is(err, isa.ErrPanic):
				return nil, fmt.Errorf("%w: %v", ErrGuestPanic, err)
			case errors.Is(err, isa.ErrFault):
				return nil, fmt.Errorf("%w: %v", ErrGuestFault, err)
			default:
				return nil, fmt.Errorf("%w: %v", ErrGuestFault, err)
			}
		}

		segTrace = append(segTrace, res.Row)
		segCycles += res.Cycles

		event := res.Event
		if event.Kind.IsSyscall() {
			segSyscalls = append(segSyscalls, SyscallRecord{
				Cycle: segCycles - res.Cycles,
				Kind:  event.Kind,
			})
		}

		switch event.Kind {
		case isa.EventCommit:
			journal = append(journal, event.Journal...)

		case isa.EventAssume:
			session.Assumptions.Add(event.Assumption)

		case isa.EventHalt, isa.EventPause:
			exit := claim.Halted(event.UserCode)
			if event.Kind == isa.EventPause {
				exit = claim.Paused(event.UserCode)
			}
			session.Journal = journal
			session.ExitCode = exit
			closeSegment(exit, &claim.Output{
				JournalDigest: claim.DigestOf(journal),
				Assumptions:   session.Assumptions.Clone(),
			})
			e.log.Info().
				Str("session", session.ID.String()).
				Int("segments", len(session.Segments)).
				Uint64("cycles", session.TotalCycles()).
				Str("exit", exit.Kind.String()).
				Msg("session complete")
			return session, nil
		}
	}
}
