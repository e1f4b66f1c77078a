package kestrelzkvm

import (
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/bisect"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/claim"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/executor"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/isa"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/receipt"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/recursion"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/utils"
)

// Digest is a 32-byte commitment used throughout the pipeline.
type Digest = claim.Digest

// Claim is the fact a proof attests to: a state transition with its exit
// code, input and committed output.
type Claim = claim.Claim

// Session is a complete guest execution split into segments.
type Session = executor.Session

// Segment is one bounded span of a session.
type Segment = executor.Segment

// Receipt is the tagged union of all receipt variants.
type Receipt = receipt.Receipt

// SegmentReceipt proves a single segment.
type SegmentReceipt = receipt.SegmentReceipt

// CompositeReceipt proves a session as the list of its segment receipts.
type CompositeReceipt = receipt.CompositeReceipt

// SuccinctReceipt is the constant-size output of the composition engine.
type SuccinctReceipt = receipt.SuccinctReceipt

// WrappedReceipt carries a Groth16 proof sized for on-chain verification.
type WrappedReceipt = receipt.WrappedReceipt

// Program is a guest program for the reference core.
type Program = isa.Program

// Instruction is a single guest instruction.
type Instruction = isa.Instruction

// Core is the execution boundary: anything that can step a guest and
// report its system state can be segmented and proven.
type Core = isa.Core

// Config holds pipeline configuration.
type Config = utils.Config

// ControlIDSet is the set of recursion programs a verifier trusts.
type ControlIDSet = recursion.ControlIDSet

// BisectResult identifies the first divergent segment of a disputed
// session.
type BisectResult = bisect.Result

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() *Config { return utils.DefaultConfig() }

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) { return utils.LoadConfig(path) }

// DefaultControlIDSet returns the control ID set trusting the built-in
// recursion programs.
func DefaultControlIDSet() *ControlIDSet { return recursion.DefaultControlIDSet() }

// NewMachine loads a program and input into a fresh reference core.
func NewMachine(prog *Program, input []byte) Core { return isa.NewMachine(prog, input) }

// FibProgram returns a guest that computes fib(n) and commits the result.
func FibProgram(n uint64) *Program { return isa.FibProgram(n) }

// EchoProgram returns a guest that reads one input word and commits it.
func EchoProgram() *Program { return isa.EchoProgram() }

// CountdownProgram returns a guest that burns cycles before committing,
// useful for exercising multi-segment sessions.
func CountdownProgram(n, commit uint64) *Program { return isa.CountdownProgram(n, commit) }

// AssumeProgram returns a guest that embeds the given claim digest as a
// deferred assumption.
func AssumeProgram(assumed Digest, commit uint64) *Program { return isa.AssumeProgram(assumed, commit) }

// DigestOf hashes bytes into a Digest.
func DigestOf(data []byte) Digest { return claim.DigestOf(data) }

// EncodeReceipt serializes a receipt into the portable container format.
func EncodeReceipt(r *Receipt) ([]byte, error) { return r.Encode() }

// DecodeReceipt parses a receipt container.
func DecodeReceipt(data []byte) (*Receipt, error) {
	r, err := receipt.Decode(data)
	if err != nil {
		return nil, wrapError(err, "decode receipt container")
	}
	return r, nil
}
