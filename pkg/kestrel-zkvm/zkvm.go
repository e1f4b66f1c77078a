package kestrelzkvm

import (
	"context"
	"fmt"
	"sync"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/bisect"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/claim"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/executor"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/groth16wrap"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/prove"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/receipt"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/recursion"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/verify"
)

// ZKVM is the public pipeline facade: execute, prove, compress, wrap and
// verify through one configured object. Safe for concurrent use.
type ZKVM struct {
	cfg      *Config
	set      *recursion.ControlIDSet
	prover   *prove.Prover
	composer *recursion.Composer
	verifier *verify.Verifier

	// the Groth16 setup is expensive, deferred until the first Wrap
	wrapOnce sync.Once
	wrapper  *groth16wrap.Wrapper
	wrapErr  error
}

// Option configures a pipeline beyond its Config.
type Option func(*[]verify.Option)

// WithWrappedVerifyingKey pins the Groth16 verifying key the pipeline's
// verifier accepts for wrapped receipts. Without it the key embedded in
// the receipt is trusted.
func WithWrappedVerifyingKey(vk []byte) Option {
	return func(vopts *[]verify.Option) {
		*vopts = append(*vopts, verify.WithWrappedVerifyingKey(vk))
	}
}

// New creates a pipeline from the given configuration.
func New(cfg *Config, opts ...Option) (*ZKVM, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Code: ErrInvalidConfig, Message: "invalid configuration", Cause: err}
	}

	set, err := controlSet(cfg)
	if err != nil {
		return nil, &Error{Code: ErrInvalidConfig, Message: "invalid control ID set", Cause: err}
	}

	prover, err := prove.NewProver(nil, cfg)
	if err != nil {
		return nil, &Error{Code: ErrInvalidConfig, Message: "create prover", Cause: err}
	}

	var vopts []verify.Option
	if cfg.DevMode {
		vopts = append(vopts, verify.AllowDevMode())
	}
	for _, opt := range opts {
		opt(&vopts)
	}

	return &ZKVM{
		cfg:      cfg.Clone(),
		set:      set,
		prover:   prover,
		composer: recursion.NewComposer(set, prover.System()),
		verifier: verify.NewVerifier(set, vopts...),
	}, nil
}

// controlSet builds the trusted set from configuration, falling back to
// the built-in recursion programs when none is configured.
func controlSet(cfg *Config) (*recursion.ControlIDSet, error) {
	if len(cfg.ControlIDSet) == 0 {
		return recursion.DefaultControlIDSet(), nil
	}
	ids := make([]claim.Digest, len(cfg.ControlIDSet))
	for i, s := range cfg.ControlIDSet {
		d, err := claim.ParseDigest(s)
		if err != nil {
			return nil, fmt.Errorf("control ID %d: %w", i, err)
		}
		ids[i] = d
	}
	return recursion.NewControlIDSet(ids), nil
}

// ControlIDSet returns the pipeline's trusted control ID set.
func (z *ZKVM) ControlIDSet() *ControlIDSet { return z.set }

// Execute runs a guest program on the reference core and returns the
// segmented session.
func (z *ZKVM) Execute(ctx context.Context, prog *Program, input []byte) (*Session, error) {
	return z.ExecuteCore(ctx, NewMachine(prog, input), DigestOf(input))
}

// ExecuteCore runs an already loaded core. The input digest commits to
// whatever input the core was loaded with.
func (z *ZKVM) ExecuteCore(ctx context.Context, core Core, inputDigest Digest) (*Session, error) {
	exec, err := executor.New(core, inputDigest, z.cfg)
	if err != nil {
		return nil, &Error{Code: ErrInvalidConfig, Message: "create executor", Cause: err}
	}
	session, err := exec.Run(ctx)
	if err != nil {
		return nil, wrapError(err, "execute guest")
	}
	return session, nil
}

// Prove proves every segment of a session. Outside dev mode the result is
// a composite receipt; in dev mode an unproven dev-mode receipt.
func (z *ZKVM) Prove(ctx context.Context, session *Session) (*Receipt, error) {
	r, err := z.prover.ProveSession(ctx, session)
	if err != nil {
		return nil, wrapError(err, "prove session")
	}
	return r, nil
}

// Compress folds a composite receipt into one succinct receipt through
// the recursion programs. Segment receipts lift directly; succinct
// receipts pass through unchanged.
func (z *ZKVM) Compress(ctx context.Context, r *Receipt) (*Receipt, error) {
	switch r.Kind {
	case receipt.KindSuccinct:
		return r, nil
	case receipt.KindSegment:
		sr, err := z.composer.Lift(r.Segment)
		if err != nil {
			return nil, wrapError(err, "lift segment receipt")
		}
		return receipt.NewSuccinct(sr), nil
	case receipt.KindComposite:
		sr, err := z.composer.CompressSession(ctx, r.Composite, z.cfg.EffectiveWorkers())
		if err != nil {
			return nil, wrapError(err, "compress session")
		}
		return receipt.NewSuccinct(sr), nil
	default:
		return nil, &Error{
			Code:    ErrCompositionFailure,
			Message: fmt.Sprintf("cannot compress %s receipt", r.Kind),
		}
	}
}

// Resolve discharges one assumption on a conditional succinct receipt
// using a receipt proving the assumed claim. Both receipts are compressed
// first if needed.
func (z *ZKVM) Resolve(ctx context.Context, cond, assumption *Receipt) (*Receipt, error) {
	condSR, err := z.Compress(ctx, cond)
	if err != nil {
		return nil, err
	}
	assumptionSR, err := z.Compress(ctx, assumption)
	if err != nil {
		return nil, err
	}
	resolved, err := z.composer.ResolveAssumption(condSR.Succinct, assumptionSR.Succinct)
	if err != nil {
		return nil, wrapError(err, "resolve assumption")
	}
	return receipt.NewSuccinct(resolved), nil
}

// Wrap compresses a receipt if needed, finalizes it under the identity
// recursion program and wraps it in a Groth16 proof.
func (z *ZKVM) Wrap(ctx context.Context, r *Receipt) (*Receipt, error) {
	compressed, err := z.Compress(ctx, r)
	if err != nil {
		return nil, err
	}
	final, err := z.composer.IdentityFinalize(compressed.Succinct)
	if err != nil {
		return nil, wrapError(err, "finalize receipt")
	}

	z.wrapOnce.Do(func() {
		z.wrapper, z.wrapErr = groth16wrap.NewWrapper(z.set)
	})
	if z.wrapErr != nil {
		return nil, wrapError(z.wrapErr, "initialize wrapper")
	}

	wr, err := z.wrapper.Wrap(final)
	if err != nil {
		return nil, wrapError(err, "wrap receipt")
	}
	return receipt.NewWrapped(wr), nil
}

// WrappedVerifyingKey returns the serialized Groth16 verifying key of
// this pipeline's wrap setup, running the setup if it has not run yet.
// Hand it to a verifier built with WithWrappedVerifyingKey to anchor
// wrapped receipts to this setup instead of the key they carry.
func (z *ZKVM) WrappedVerifyingKey() ([]byte, error) {
	z.wrapOnce.Do(func() {
		z.wrapper, z.wrapErr = groth16wrap.NewWrapper(z.set)
	})
	if z.wrapErr != nil {
		return nil, wrapError(z.wrapErr, "initialize wrapper")
	}
	return z.wrapper.VerifyingKey(), nil
}

// Verify fully checks a receipt of any variant: its proof material, and
// that it attests to an execution of imageID that halted normally and
// committed exactly journal.
func (z *ZKVM) Verify(r *Receipt, imageID Digest, journal []byte) error {
	return wrapError(z.verifier.Verify(r, imageID, journal), "verify receipt")
}

// VerifyEncoded decodes a receipt container and verifies it.
func (z *ZKVM) VerifyEncoded(data []byte, imageID Digest, journal []byte) error {
	return wrapError(z.verifier.VerifyEncoded(data, imageID, journal), "verify receipt")
}

// VerifyIntegrity checks a receipt's proof material without pinning the
// claim, accepting conditional receipts.
func (z *ZKVM) VerifyIntegrity(r *Receipt) error {
	return wrapError(z.verifier.VerifyIntegrity(r), "verify receipt integrity")
}

// Bisect locates the first segment where a claimed composite receipt
// diverges from honest re-execution of the core the factory produces. A
// nil result means no divergence.
func (z *ZKVM) Bisect(ctx context.Context, factory func() Core, inputDigest Digest, cr *CompositeReceipt) (*BisectResult, error) {
	b, err := bisect.New(bisect.CoreFactory(factory), inputDigest, z.cfg)
	if err != nil {
		return nil, &Error{Code: ErrInvalidConfig, Message: "create bisector", Cause: err}
	}
	res, err := b.FirstDivergence(ctx, cr)
	if err != nil {
		return nil, wrapError(err, "bisect session")
	}
	return res, nil
}
