package cli

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseProgram(t *testing.T) {
	prog, err := parseProgram("fib:10")
	require.NoError(t, err)
	assert.NotNil(t, prog)

	_, err = parseProgram("fib")
	assert.Error(t, err)

	_, err = parseProgram("frobnicate:1")
	assert.Error(t, err)

	_, err = parseProgram("countdown:10:3")
	assert.NoError(t, err)
}

func TestExecutePrintsStats(t *testing.T) {
	out, err := runCLI(t, "execute", "fib:10")
	require.NoError(t, err, out)
	assert.Contains(t, out, "session")
	assert.Contains(t, out, "exit      Halted")

	var journal string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[0] == "journal" {
			journal = fields[1]
		}
	}
	require.NotEmpty(t, journal)
	jb, err := hex.DecodeString(journal)
	require.NoError(t, err)
	require.Len(t, jb, 8)
	assert.Equal(t, uint64(55), binary.LittleEndian.Uint64(jb))
}

func TestProveVerifyListFlow(t *testing.T) {
	db := filepath.Join(t.TempDir(), "receipts.db")

	out, err := runCLI(t, "prove", "fib:10", "--db", db)
	require.NoError(t, err, out)

	var sessionID, journal string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		switch fields[0] {
		case "session":
			sessionID = fields[1]
		case "journal":
			journal = fields[1]
		}
	}
	require.NotEmpty(t, sessionID)
	require.NotEmpty(t, journal)

	jb, err := hex.DecodeString(journal)
	require.NoError(t, err)
	require.Len(t, jb, 8)
	assert.Equal(t, uint64(55), binary.LittleEndian.Uint64(jb))

	out, err = runCLI(t, "verify", sessionID, "fib:10", "--db", db, "--journal", journal)
	require.NoError(t, err, out)
	assert.Contains(t, out, "verified")

	// wrong journal fails
	_, err = runCLI(t, "verify", sessionID, "fib:10", "--db", db, "--journal", "00")
	assert.Error(t, err)

	out, err = runCLI(t, "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, sessionID)
}

func TestCompressFlow(t *testing.T) {
	db := filepath.Join(t.TempDir(), "receipts.db")

	out, err := runCLI(t, "prove", "fib:10", "--db", db)
	require.NoError(t, err, out)
	var sessionID string
	for _, line := range strings.Split(out, "\n") {
		if fields := strings.Fields(line); len(fields) == 2 && fields[0] == "session" {
			sessionID = fields[1]
		}
	}
	require.NotEmpty(t, sessionID)

	out, err = runCLI(t, "compress", sessionID, "--db", db)
	require.NoError(t, err, out)
	assert.Contains(t, out, "succinct")

	out, err = runCLI(t, "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "succinct")
}

func TestBisectHonestFlow(t *testing.T) {
	db := filepath.Join(t.TempDir(), "receipts.db")

	out, err := runCLI(t, "prove", "countdown:200:4", "--db", db)
	require.NoError(t, err, out)
	var sessionID string
	for _, line := range strings.Split(out, "\n") {
		if fields := strings.Fields(line); len(fields) == 2 && fields[0] == "session" {
			sessionID = fields[1]
		}
	}
	require.NotEmpty(t, sessionID)

	out, err = runCLI(t, "bisect", sessionID, "countdown:200:4", "--db", db)
	require.NoError(t, err, out)
	assert.Contains(t, out, "no divergence")
}
