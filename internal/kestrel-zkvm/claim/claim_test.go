package claim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestOfDeterministic(t *testing.T) {
	a := DigestOf([]byte("hello"))
	b := DigestOf([]byte("hello"))
	c := DigestOf([]byte("world"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.False(t, a.IsZero())
	assert.True(t, ZeroDigest.IsZero())
}

func TestDigestTextRoundTrip(t *testing.T) {
	d := DigestOf([]byte("round trip"))
	text, err := d.MarshalText()
	require.NoError(t, err)

	parsed, err := ParseDigest(string(text))
	require.NoError(t, err)
	assert.Equal(t, d, parsed)

	_, err = ParseDigest("not hex")
	assert.Error(t, err)
}

func TestDigestHalves(t *testing.T) {
	d := DigestOf([]byte("halves"))
	halves := d.Halves()
	for i, h := range halves {
		assert.Equal(t, uint16(d[2*i])|uint16(d[2*i+1])<<8, h)
	}
}

func TestTaggedStructDomainSeparation(t *testing.T) {
	d := DigestOf([]byte("x"))
	a := taggedStruct("kestrel.A", []Digest{d}, []uint32{1})
	b := taggedStruct("kestrel.B", []Digest{d}, []uint32{1})
	assert.NotEqual(t, a, b, "tag must separate hash domains")

	// word order matters
	p := taggedStruct("kestrel.A", nil, []uint32{1, 2})
	q := taggedStruct("kestrel.A", nil, []uint32{2, 1})
	assert.NotEqual(t, p, q)
}

func TestExitCodePairRoundTrip(t *testing.T) {
	cases := []ExitCode{
		Halted(0),
		Halted(17),
		Paused(3),
		SystemSplit(),
	}
	for _, ec := range cases {
		sys, user := ec.IntoPair()
		back, err := ExitCodeFromPair(sys, user)
		require.NoError(t, err)
		if ec.Kind == ExitSystemSplit {
			// system exits are lossy on the wire
			assert.Equal(t, ExitSystemSplit, back.Kind)
			assert.Zero(t, back.User)
		} else {
			assert.Equal(t, ec, back)
		}
	}

	_, err := ExitCodeFromPair(99, 0)
	assert.Error(t, err)
	var invalid *InvalidExitCodeError
	assert.ErrorAs(t, err, &invalid)
}

func TestExitCodeExpectsOutput(t *testing.T) {
	assert.True(t, Halted(0).ExpectsOutput())
	assert.True(t, Paused(1).ExpectsOutput())
	assert.False(t, SystemSplit().ExpectsOutput())
}

func TestAssumptionsResolveOrder(t *testing.T) {
	d1 := DigestOf([]byte("a1"))
	d2 := DigestOf([]byte("a2"))

	var as Assumptions
	as.Add(d1)
	as.Add(d2)

	// most recent assumption sits at the head
	require.Len(t, as, 2)
	assert.Equal(t, d2, as[0].ClaimDigest)
	assert.False(t, as.AllResolved())
	assert.Len(t, as.Unresolved(), 2)

	require.NoError(t, as.Resolve(d1))
	assert.Len(t, as.Unresolved(), 1)
	assert.Error(t, as.Resolve(d1), "already resolved")

	require.NoError(t, as.Resolve(d2))
	assert.True(t, as.AllResolved())
	assert.Equal(t, ZeroDigest, as.Digest(), "fully resolved list hashes to zero list")
}

func TestAssumptionsDigestSkipsResolved(t *testing.T) {
	d1 := DigestOf([]byte("a1"))
	d2 := DigestOf([]byte("a2"))

	var full Assumptions
	full.Add(d1)
	full.Add(d2)
	require.NoError(t, full.Resolve(d2))

	var only Assumptions
	only.Add(d1)

	assert.Equal(t, only.Digest(), full.Digest())
}

func TestOutputDigestNilSafe(t *testing.T) {
	var out *Output
	assert.Equal(t, ZeroDigest, out.Digest())

	journal := DigestOf([]byte("journal"))
	withJournal := &Output{JournalDigest: journal}
	assert.NotEqual(t, ZeroDigest, withJournal.Digest())
	assert.NotEqual(t, withJournal.Digest(), journal)
}

func TestClaimDigestBindsAllFields(t *testing.T) {
	base := Claim{
		PreStateDigest:  DigestOf([]byte("pre")),
		PostStateDigest: DigestOf([]byte("post")),
		ExitCode:        Halted(0),
		InputDigest:     DigestOf([]byte("input")),
		Output:          &Output{JournalDigest: DigestOf([]byte("journal"))},
	}
	d := base.Digest()

	mutate := []func(*Claim){
		func(c *Claim) { c.PreStateDigest = DigestOf([]byte("other")) },
		func(c *Claim) { c.PostStateDigest = DigestOf([]byte("other")) },
		func(c *Claim) { c.ExitCode = Halted(1) },
		func(c *Claim) { c.InputDigest = DigestOf([]byte("other")) },
		func(c *Claim) { c.Output.JournalDigest = DigestOf([]byte("other")) },
	}
	for i, f := range mutate {
		c := base.Clone()
		f(c)
		assert.NotEqual(t, d, c.Digest(), "mutation %d must change the digest", i)
	}
}

func TestClaimValidateOutputPresence(t *testing.T) {
	halted := Claim{ExitCode: Halted(0), Output: &Output{}}
	assert.NoError(t, halted.Validate())

	missing := Claim{ExitCode: Halted(0)}
	assert.Error(t, missing.Validate())

	split := Claim{ExitCode: SystemSplit()}
	assert.NoError(t, split.Validate())

	extra := Claim{ExitCode: SystemSplit(), Output: &Output{}}
	assert.Error(t, extra.Validate())
}

func TestSystemStateDigest(t *testing.T) {
	s1 := SystemState{PC: 4, MemoryRoot: DigestOf([]byte("mem"))}
	s2 := SystemState{PC: 5, MemoryRoot: DigestOf([]byte("mem"))}
	assert.NotEqual(t, s1.Digest(), s2.Digest())
	assert.Equal(t, s1.Digest(), s1.Digest())
}
