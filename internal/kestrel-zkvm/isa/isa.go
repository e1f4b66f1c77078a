// Package isa defines the boundary between the continuation pipeline and
// the instruction-set interpreter: the Core interface the executor drives
// one step at a time, and the events a step can surface. A reference stack
// machine implementing Core lives in machine.go so the pipeline is
// exercisable end to end without an external interpreter.
package isa

import (
	"errors"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/claim"
)

// Machine faults. The executor maps these onto its own error taxonomy.
var (
	// ErrFault is an illegal operation with no handler: out-of-bounds
	// program counter, stack underflow, read past the end of input.
	ErrFault = errors.New("isa: machine fault")

	// ErrPanic is an explicit guest abort (a failed assertion).
	ErrPanic = errors.New("isa: guest panic")
)

// EventKind classifies what a single step surfaced to the host.
type EventKind int

const (
	// EventNone is an ordinary instruction with no host-visible effect.
	EventNone EventKind = iota

	// EventHalt is guest termination with a user exit code.
	EventHalt

	// EventPause is a guest-initiated pause with a user code.
	EventPause

	// EventCommit appended bytes to the journal.
	EventCommit

	// EventRead consumed bytes from the input stream.
	EventRead

	// EventAssume embedded a deferred external claim.
	EventAssume
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventNone:
		return "none"
	case EventHalt:
		return "halt"
	case EventPause:
		return "pause"
	case EventCommit:
		return "commit"
	case EventRead:
		return "read"
	case EventAssume:
		return "assume"
	default:
		return "unknown"
	}
}

// IsSyscall reports whether the event kind is a host syscall. Syscalls have
// an atomic effect and must never straddle a segment boundary.
func (k EventKind) IsSyscall() bool {
	return k == EventCommit || k == EventRead || k == EventAssume ||
		k == EventPause || k == EventHalt
}

// Event is the host-visible outcome of one step.
type Event struct {
	Kind EventKind

	// UserCode is the guest-supplied code for halt and pause events.
	UserCode uint32

	// Journal holds the bytes committed by an EventCommit.
	Journal []byte

	// Assumption is the assumed claim digest for an EventAssume.
	Assumption claim.Digest
}

// TraceRow is one recorded row of the execution transcript: the state of
// the fetch before the instruction executed.
type TraceRow struct {
	Cycle uint64 `json:"cycle"`
	PC    uint32 `json:"pc"`
	Op    byte   `json:"op"`
	Arg   uint64 `json:"arg"`
}

// StepResult is what one Core.Step returns.
type StepResult struct {
	// Row is the transcript row recorded for this step.
	Row TraceRow

	// Cycles is how many cycles the step consumed.
	Cycles uint64

	// Event is the host-visible outcome.
	Event Event
}

// Core is the instruction-set interpreter the executor drives. One Step
// executes exactly one instruction. Implementations are single-threaded;
// the executor never calls into a Core concurrently.
type Core interface {
	// Step executes the next instruction. It returns ErrFault or ErrPanic
	// (possibly wrapped) on a trap with no handler or an explicit abort.
	Step() (*StepResult, error)

	// PeekCost returns the cycle cost of the next instruction without
	// executing it. The executor consults it to close a segment before a
	// syscall that would overflow the cycle limit.
	PeekCost() uint64

	// Halted reports whether the machine has terminated or paused.
	Halted() bool

	// SystemState returns the current public state (program counter and
	// memory image root). Called at segment boundaries only.
	SystemState() claim.SystemState
}
