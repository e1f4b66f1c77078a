package isa

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/claim"
)

// runToHalt drives a machine until it halts, collecting committed journal
// bytes, and returns the total cycle count.
func runToHalt(t *testing.T, m *Machine) (journal []byte, cycles uint64) {
	t.Helper()
	for !m.Halted() {
		res, err := m.Step()
		require.NoError(t, err)
		cycles += res.Cycles
		if res.Event.Kind == EventCommit {
			journal = append(journal, res.Event.Journal...)
		}
	}
	return journal, cycles
}

func TestInstructionString(t *testing.T) {
	assert.Equal(t, "Push(42)", Instruction{Op: OpPush, Arg: 42}.String())
	assert.Equal(t, "Add", Instruction{Op: OpAdd}.String())

	parsed, err := ParseInstruction("Push(42)")
	require.NoError(t, err)
	assert.Equal(t, Instruction{Op: OpPush, Arg: 42}, parsed)

	_, err = ParseInstruction("Frobnicate")
	assert.Error(t, err)
}

func TestFibProgram(t *testing.T) {
	want := []uint64{0, 1, 1, 2, 3, 5, 8, 13, 21, 34, 55}
	for n, expect := range want {
		m := NewMachine(FibProgram(uint64(n)), nil)
		journal, _ := runToHalt(t, m)
		require.Len(t, journal, 8, "fib(%d)", n)
		assert.Equal(t, expect, binary.LittleEndian.Uint64(journal), "fib(%d)", n)
	}
}

func TestEchoProgram(t *testing.T) {
	input := make([]byte, 8)
	binary.LittleEndian.PutUint64(input, 0xdeadbeef)
	m := NewMachine(EchoProgram(), input)
	journal, _ := runToHalt(t, m)
	require.Len(t, journal, 8)
	assert.Equal(t, uint64(0xdeadbeef), binary.LittleEndian.Uint64(journal))
}

func TestReadPastInputFaults(t *testing.T) {
	m := NewMachine(EchoProgram(), nil)
	var err error
	for !m.Halted() {
		if _, err = m.Step(); err != nil {
			break
		}
	}
	assert.ErrorIs(t, err, ErrFault)
}

func TestPanicProgram(t *testing.T) {
	m := NewMachine(PanicProgram(), nil)
	var err error
	for !m.Halted() {
		if _, err = m.Step(); err != nil {
			break
		}
	}
	assert.ErrorIs(t, err, ErrPanic)
}

func TestFaultProgram(t *testing.T) {
	m := NewMachine(FaultProgram(), nil)
	var err error
	for !m.Halted() {
		if _, err = m.Step(); err != nil {
			break
		}
	}
	assert.ErrorIs(t, err, ErrFault)
}

func TestPauseStopsMachine(t *testing.T) {
	m := NewMachine(PauseProgram(7), nil)
	var paused *Event
	for !m.Halted() {
		res, err := m.Step()
		require.NoError(t, err)
		if res.Event.Kind == EventPause {
			paused = &res.Event
		}
	}
	require.NotNil(t, paused)
	assert.Equal(t, uint32(7), paused.UserCode)

	// stepping past a pause is a fault; resumption starts a new session
	_, err := m.Step()
	assert.ErrorIs(t, err, ErrFault)
}

func TestAssumeProgramEmitsDigest(t *testing.T) {
	want := claim.DigestOf([]byte("assumed claim"))
	m := NewMachine(AssumeProgram(want, 1), nil)
	var got claim.Digest
	seen := false
	for !m.Halted() {
		res, err := m.Step()
		require.NoError(t, err)
		if res.Event.Kind == EventAssume {
			got = res.Event.Assumption
			seen = true
		}
	}
	require.True(t, seen)
	assert.Equal(t, want, got)
}

func TestSystemStateEvolves(t *testing.T) {
	m := NewMachine(CountdownProgram(3, 0), nil)
	s0 := m.SystemState()
	_, err := m.Step()
	require.NoError(t, err)
	s1 := m.SystemState()
	assert.NotEqual(t, s0.Digest(), s1.Digest())
}

func TestImageIDStable(t *testing.T) {
	p := FibProgram(10)
	assert.Equal(t, p.ImageID(), p.ImageID())
	assert.NotEqual(t, p.ImageID(), FibProgram(11).ImageID())
}

func TestPeekCostMatchesStep(t *testing.T) {
	m := NewMachine(FibProgram(5), nil)
	for !m.Halted() {
		peek := m.PeekCost()
		res, err := m.Step()
		require.NoError(t, err)
		assert.Equal(t, peek, res.Cycles)
	}
}
