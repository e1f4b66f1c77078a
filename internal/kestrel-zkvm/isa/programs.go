package isa

import (
	"encoding/binary"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/claim"
)

// Canned guest programs used by the examples, the CLI demo mode and the
// test suite.

const minusOne = ^uint64(0)

// FibProgram computes fib(n) iteratively (fib(0)=0, fib(1)=1) and commits
// the result to the journal as a single little-endian word.
func FibProgram(n uint64) *Program {
	return NewProgram(
		Instruction{Op: OpPush, Arg: 0}, // 0: a = 0
		Instruction{Op: OpStore, Arg: 0},
		Instruction{Op: OpPush, Arg: 1}, // 2: b = 1
		Instruction{Op: OpStore, Arg: 1},
		Instruction{Op: OpPush, Arg: n}, // 4: i = n
		Instruction{Op: OpStore, Arg: 2},
		Instruction{Op: OpLoad, Arg: 2}, // 6: skip the loop when n == 0
		Instruction{Op: OpJnz, Arg: 9},
		Instruction{Op: OpJmp, Arg: 20},
		Instruction{Op: OpLoad, Arg: 1}, // 9: loop: t = a + b
		Instruction{Op: OpLoad, Arg: 0},
		Instruction{Op: OpAdd},
		Instruction{Op: OpLoad, Arg: 1}, // 12: a = b
		Instruction{Op: OpStore, Arg: 0},
		Instruction{Op: OpStore, Arg: 1}, // 14: b = t
		Instruction{Op: OpLoad, Arg: 2},  // 15: i--
		Instruction{Op: OpAddI, Arg: minusOne},
		Instruction{Op: OpDup},
		Instruction{Op: OpStore, Arg: 2},
		Instruction{Op: OpJnz, Arg: 9},  // 19: loop while i != 0
		Instruction{Op: OpLoad, Arg: 0}, // 20: commit fib(n)
		Instruction{Op: OpCommit},
		Instruction{Op: OpHalt, Arg: 0},
	)
}

// EchoProgram reads one input word and commits it back to the journal.
func EchoProgram() *Program {
	return NewProgram(
		Instruction{Op: OpRead},
		Instruction{Op: OpCommit},
		Instruction{Op: OpHalt, Arg: 0},
	)
}

// CountdownProgram burns roughly 3*n cycles in a tight loop, then commits
// the given value. Used to force multi-segment sessions under small cycle
// limits.
func CountdownProgram(n, commit uint64) *Program {
	return NewProgram(
		Instruction{Op: OpPush, Arg: n},
		Instruction{Op: OpAddI, Arg: minusOne}, // 1: loop
		Instruction{Op: OpDup},
		Instruction{Op: OpJnz, Arg: 1},
		Instruction{Op: OpPop},
		Instruction{Op: OpPush, Arg: commit},
		Instruction{Op: OpCommit},
		Instruction{Op: OpHalt, Arg: 0},
	)
}

// AssumeProgram embeds the given claim digest as a deferred assumption,
// then commits a marker value and halts. It models a guest that verified
// another program's claim.
func AssumeProgram(assumed claim.Digest, commit uint64) *Program {
	words := make([]uint64, 4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(assumed[i*8 : i*8+8])
	}
	return NewProgram(
		// Pushed in reverse so the syscall pops word 0 first.
		Instruction{Op: OpPush, Arg: words[3]},
		Instruction{Op: OpPush, Arg: words[2]},
		Instruction{Op: OpPush, Arg: words[1]},
		Instruction{Op: OpPush, Arg: words[0]},
		Instruction{Op: OpAssume},
		Instruction{Op: OpPush, Arg: commit},
		Instruction{Op: OpCommit},
		Instruction{Op: OpHalt, Arg: 0},
	)
}

// PauseProgram commits a value and pauses with the given user code.
func PauseProgram(code uint64) *Program {
	return NewProgram(
		Instruction{Op: OpPush, Arg: 7},
		Instruction{Op: OpCommit},
		Instruction{Op: OpPause, Arg: code},
	)
}

// PanicProgram aborts the guest through a failed assertion.
func PanicProgram() *Program {
	return NewProgram(
		Instruction{Op: OpPush, Arg: 0},
		Instruction{Op: OpAssert},
		Instruction{Op: OpHalt, Arg: 0},
	)
}

// FaultProgram traps on a stack underflow.
func FaultProgram() *Program {
	return NewProgram(
		Instruction{Op: OpPop},
		Instruction{Op: OpHalt, Arg: 0},
	)
}
