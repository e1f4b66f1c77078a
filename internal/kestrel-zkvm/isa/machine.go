package isa

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/claim"
)

const maxStackDepth = 1 << 16

// Machine is the reference Core implementation: a small stack machine with
// word-addressed memory and an input stream. It exists so the continuation
// pipeline can be driven end to end; a production deployment would swap in
// a real interpreter behind the Core interface.
type Machine struct {
	prog     *Program
	progRoot claim.Digest

	pc     uint32
	stack  []uint64
	mem    map[uint64]uint64
	input  []byte
	inPos  int
	cycles uint64
	halted bool
}

// NewMachine loads a program and input stream into a fresh machine.
// The input holds the concatenated public and private input bytes; the
// machine itself does not distinguish them, the input digest on the claim
// does.
func NewMachine(prog *Program, input []byte) *Machine {
	return &Machine{
		prog:     prog,
		progRoot: prog.Digest(),
		mem:      make(map[uint64]uint64),
		input:    input,
	}
}

// Halted reports whether the machine has terminated or paused.
func (m *Machine) Halted() bool { return m.halted }

// PeekCost returns the cycle cost of the next instruction.
func (m *Machine) PeekCost() uint64 {
	if m.halted || int(m.pc) >= len(m.prog.Instructions) {
		return 1
	}
	return m.prog.Instructions[m.pc].Op.Cost()
}

// SystemState returns the current public machine state. The memory root
// commits to the program, stack, memory, input cursor and halt flag, so
// any two diverging executions produce diverging roots.
func (m *Machine) SystemState() claim.SystemState {
	h := sha256.New()
	h.Write([]byte("kestrel.MemoryImage"))
	h.Write(m.progRoot[:])

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(m.stack)))
	h.Write(buf[:])
	for _, v := range m.stack {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}

	addrs := make([]uint64, 0, len(m.mem))
	for a := range m.mem {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	binary.LittleEndian.PutUint64(buf[:], uint64(len(addrs)))
	h.Write(buf[:])
	for _, a := range addrs {
		binary.LittleEndian.PutUint64(buf[:], a)
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], m.mem[a])
		h.Write(buf[:])
	}

	binary.LittleEndian.PutUint64(buf[:], uint64(m.inPos))
	h.Write(buf[:])
	if m.halted {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}

	var root claim.Digest
	copy(root[:], h.Sum(nil))
	return claim.SystemState{PC: m.pc, MemoryRoot: root}
}

// Step executes the next instruction.
func (m *Machine) Step() (*StepResult, error) {
	if m.halted {
		return nil, fmt.Errorf("%w: step after halt", ErrFault)
	}
	if int(m.pc) >= len(m.prog.Instructions) {
		return nil, fmt.Errorf("%w: program counter %d out of bounds", ErrFault, m.pc)
	}

	inst := m.prog.Instructions[m.pc]
	res := &StepResult{
		Row: TraceRow{
			Cycle: m.cycles,
			PC:    m.pc,
			Op:    byte(inst.Op),
			Arg:   inst.Arg,
		},
		Cycles: inst.Op.Cost(),
	}
	m.cycles += res.Cycles

	next := m.pc + 1
	switch inst.Op {
	case OpNop:

	case OpHalt:
		m.halted = true
		res.Event = Event{Kind: EventHalt, UserCode: uint32(inst.Arg)}

	case OpPause:
		m.halted = true
		res.Event = Event{Kind: EventPause, UserCode: uint32(inst.Arg)}

	case OpPush:
		if err := m.push(inst.Arg); err != nil {
			return nil, err
		}

	case OpPop:
		if _, err := m.pop(); err != nil {
			return nil, err
		}

	case OpDup:
		v, err := m.peek()
		if err != nil {
			return nil, err
		}
		if err := m.push(v); err != nil {
			return nil, err
		}

	case OpSwap:
		if len(m.stack) < 2 {
			return nil, fmt.Errorf("%w: swap on stack of depth %d", ErrFault, len(m.stack))
		}
		n := len(m.stack)
		m.stack[n-1], m.stack[n-2] = m.stack[n-2], m.stack[n-1]

	case OpAdd:
		a, b, err := m.pop2()
		if err != nil {
			return nil, err
		}
		if err := m.push(a + b); err != nil {
			return nil, err
		}

	case OpAddI:
		v, err := m.pop()
		if err != nil {
			return nil, err
		}
		if err := m.push(v + inst.Arg); err != nil {
			return nil, err
		}

	case OpMul:
		a, b, err := m.pop2()
		if err != nil {
			return nil, err
		}
		if err := m.push(a * b); err != nil {
			return nil, err
		}

	case OpLoad:
		if err := m.push(m.mem[inst.Arg]); err != nil {
			return nil, err
		}

	case OpStore:
		v, err := m.pop()
		if err != nil {
			return nil, err
		}
		m.mem[inst.Arg] = v

	case OpJmp:
		if inst.Arg >= uint64(len(m.prog.Instructions)) {
			return nil, fmt.Errorf("%w: jump target %d out of bounds", ErrFault, inst.Arg)
		}
		next = uint32(inst.Arg)

	case OpJnz:
		v, err := m.pop()
		if err != nil {
			return nil, err
		}
		if v != 0 {
			if inst.Arg >= uint64(len(m.prog.Instructions)) {
				return nil, fmt.Errorf("%w: jump target %d out of bounds", ErrFault, inst.Arg)
			}
			next = uint32(inst.Arg)
		}

	case OpAssert:
		v, err := m.pop()
		if err != nil {
			return nil, err
		}
		if v == 0 {
			return nil, fmt.Errorf("%w: assertion failed at pc %d", ErrPanic, m.pc)
		}

	case OpRead:
		if m.inPos+8 > len(m.input) {
			return nil, fmt.Errorf("%w: read past end of input at pc %d", ErrFault, m.pc)
		}
		v := binary.LittleEndian.Uint64(m.input[m.inPos : m.inPos+8])
		m.inPos += 8
		if err := m.push(v); err != nil {
			return nil, err
		}
		res.Event = Event{Kind: EventRead}

	case OpCommit:
		v, err := m.pop()
		if err != nil {
			return nil, err
		}
		var out [8]byte
		binary.LittleEndian.PutUint64(out[:], v)
		res.Event = Event{Kind: EventCommit, Journal: out[:]}

	case OpAssume:
		if len(m.stack) < 4 {
			return nil, fmt.Errorf("%w: assume needs 4 stack words, have %d", ErrFault, len(m.stack))
		}
		var d claim.Digest
		for i := 0; i < 4; i++ {
			w, err := m.pop()
			if err != nil {
				return nil, err
			}
			binary.LittleEndian.PutUint64(d[i*8:i*8+8], w)
		}
		res.Event = Event{Kind: EventAssume, Assumption: d}

	default:
		return nil, fmt.Errorf("%w: unknown opcode %d at pc %d", ErrFault, inst.Op, m.pc)
	}

	// On halt or pause the counter still advances past the instruction so
	// a resumed pause would continue at the right place.
	m.pc = next
	return res, nil
}

func (m *Machine) push(v uint64) error {
	if len(m.stack) >= maxStackDepth {
		return fmt.Errorf("%w: stack overflow", ErrFault)
	}
	m.stack = append(m.stack, v)
	return nil
}

func (m *Machine) pop() (uint64, error) {
	if len(m.stack) == 0 {
		return 0, fmt.Errorf("%w: stack underflow", ErrFault)
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

func (m *Machine) pop2() (uint64, uint64, error) {
	b, err := m.pop()
	if err != nil {
		return 0, 0, err
	}
	a, err := m.pop()
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func (m *Machine) peek() (uint64, error) {
	if len(m.stack) == 0 {
		return 0, fmt.Errorf("%w: stack underflow", ErrFault)
	}
	return m.stack[len(m.stack)-1], nil
}
