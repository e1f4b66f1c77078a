package isa

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/claim"
)

// Opcode identifies a guest instruction.
type Opcode byte

const (
	// OpHalt terminates the guest with the user exit code in Arg.
	OpHalt Opcode = iota

	// OpNop does nothing.
	OpNop

	// OpPush pushes the immediate Arg.
	OpPush

	// OpPop discards the top of stack.
	OpPop

	// OpDup duplicates the top of stack.
	OpDup

	// OpSwap swaps the two topmost elements.
	OpSwap

	// OpAdd pops two elements and pushes their sum (mod 2^64).
	OpAdd

	// OpAddI adds the immediate Arg to the top of stack (mod 2^64).
	OpAddI

	// OpMul pops two elements and pushes their product (mod 2^64).
	OpMul

	// OpLoad pushes the memory cell addressed by Arg.
	OpLoad

	// OpStore pops the top of stack into the memory cell addressed by Arg.
	OpStore

	// OpJmp jumps to the absolute instruction index Arg.
	OpJmp

	// OpJnz pops the top of stack and jumps to Arg if it is non-zero.
	OpJnz

	// OpAssert pops the top of stack and panics the guest if it is zero.
	OpAssert

	// OpRead reads the next eight input bytes and pushes them as a
	// little-endian word. Syscall.
	OpRead

	// OpCommit pops the top of stack and appends it to the journal as
	// eight little-endian bytes. Syscall.
	OpCommit

	// OpPause pauses the guest with the user code in Arg. Syscall.
	OpPause

	// OpAssume pops four words forming a claim digest and embeds it as a
	// deferred assumption. Syscall.
	OpAssume
)

var opcodeNames = map[Opcode]string{
	OpHalt:   "Halt",
	OpNop:    "Nop",
	OpPush:   "Push",
	OpPop:    "Pop",
	OpDup:    "Dup",
	OpSwap:   "Swap",
	OpAdd:    "Add",
	OpAddI:   "AddI",
	OpMul:    "Mul",
	OpLoad:   "Load",
	OpStore:  "Store",
	OpJmp:    "Jmp",
	OpJnz:    "Jnz",
	OpAssert: "Assert",
	OpRead:   "Read",
	OpCommit: "Commit",
	OpPause:  "Pause",
	OpAssume: "Assume",
}

// String returns the instruction mnemonic.
func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(%d)", byte(op))
}

// HasArg reports whether the opcode carries an immediate argument.
func (op Opcode) HasArg() bool {
	switch op {
	case OpPush, OpAddI, OpLoad, OpStore, OpJmp, OpJnz, OpHalt, OpPause:
		return true
	default:
		return false
	}
}

// syscallCost is the cycle cost of an instruction with a host-visible
// effect. The cost models the paging and I/O work a real circuit charges
// for; it is what makes boundary atomicity observable.
const syscallCost = 8

// Cost returns the cycle cost of the opcode.
func (op Opcode) Cost() uint64 {
	switch op {
	case OpRead, OpCommit, OpPause, OpAssume, OpHalt:
		return syscallCost
	default:
		return 1
	}
}

// Instruction is one decoded guest instruction.
type Instruction struct {
	Op  Opcode `json:"op"`
	Arg uint64 `json:"arg,omitempty"`
}

// String formats the instruction in the canonical "Push(42)" form.
func (i Instruction) String() string {
	if i.Op.HasArg() {
		return fmt.Sprintf("%s(%d)", i.Op, i.Arg)
	}
	return i.Op.String()
}

// ParseInstruction parses the canonical "Halt", "Push(42)" instruction
// format back into an Instruction.
func ParseInstruction(s string) (Instruction, error) {
	s = strings.TrimSpace(s)
	name := s
	var arg uint64
	hasArg := false
	if open := strings.IndexByte(s, '('); open >= 0 {
		if !strings.HasSuffix(s, ")") {
			return Instruction{}, fmt.Errorf("invalid instruction format: %q", s)
		}
		name = s[:open]
		raw := s[open+1 : len(s)-1]
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return Instruction{}, fmt.Errorf("invalid argument in %q: %w", s, err)
		}
		arg = v
		hasArg = true
	}
	for op, opName := range opcodeNames {
		if opName != name {
			continue
		}
		if op.HasArg() != hasArg {
			return Instruction{}, fmt.Errorf("instruction %s takes an argument: %v", name, op.HasArg())
		}
		return Instruction{Op: op, Arg: arg}, nil
	}
	return Instruction{}, fmt.Errorf("unknown instruction: %q", name)
}

// Program is an immutable guest program.
type Program struct {
	Instructions []Instruction `json:"instructions"`
}

// NewProgram builds a program from instructions.
func NewProgram(instructions ...Instruction) *Program {
	return &Program{Instructions: instructions}
}

// Digest commits to the program text: every opcode and argument, in order.
// It seeds the memory root, so the image ID is bound to the exact program.
func (p *Program) Digest() claim.Digest {
	h := sha256.New()
	h.Write([]byte("kestrel.Program"))
	var buf [9]byte
	for _, inst := range p.Instructions {
		buf[0] = byte(inst.Op)
		binary.LittleEndian.PutUint64(buf[1:], inst.Arg)
		h.Write(buf[:])
	}
	var d claim.Digest
	copy(d[:], h.Sum(nil))
	return d
}

// ImageID returns the digest an external verifier checks receipts against:
// the digest of the initial system state of a fresh machine loaded with
// this program.
func (p *Program) ImageID() claim.Digest {
	return NewMachine(p, nil).SystemState().Digest()
}
