package pty

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePTY stands in for the PTY master file descriptor: reads replay a
// scripted sequence of chunks, writes (the password) are recorded.
type fakePTY struct {
	chunks  [][]byte
	idx     int
	Written []byte
}

func (f *fakePTY) Read(p []byte) (int, error) {
	if f.idx >= len(f.chunks) {
		return 0, io.EOF
	}
	n := copy(p, f.chunks[f.idx])
	f.idx++
	return n, nil
}

func (f *fakePTY) Write(p []byte) (int, error) {
	f.Written = append(f.Written, p...)
	return len(p), nil
}

func TestStreamOutput_CorrectSudoPasswordCompletesAuth(t *testing.T) {
	fake := &fakePTY{chunks: [][]byte{
		[]byte(sudoSentinel + "\n"),
		[]byte("apt 1.0\n"),
	}}
	authDone, authFailed := false, false
	var out bytes.Buffer

	err := streamOutput(fake, "correct-horse", &authDone, &authFailed, &out, nil)

	require.NoError(t, err)
	assert.False(t, authFailed)
	assert.Equal(t, "correct-horse\n", string(fake.Written))
	assert.Contains(t, out.String(), "apt 1.0")
	assert.NotContains(t, out.String(), sudoSentinel)
}

func TestStreamOutput_IncorrectSudoPasswordFailsAuth(t *testing.T) {
	fake := &fakePTY{chunks: [][]byte{
		[]byte(sudoSentinel + "\n"),
		[]byte("Sorry, try again.\n"),
	}}
	authDone, authFailed := false, false
	var out bytes.Buffer

	err := streamOutput(fake, "wrong-password", &authDone, &authFailed, &out, nil)

	require.NoError(t, err)
	assert.True(t, authFailed)
	assert.Equal(t, "wrong-password\n", string(fake.Written))
}

func TestStreamOutput_ForwardsChunksToOnOutput(t *testing.T) {
	fake := &fakePTY{chunks: [][]byte{[]byte("line one\n")}}
	authDone := true
	authFailed := false
	var out bytes.Buffer
	var seen []string

	err := streamOutput(fake, "", &authDone, &authFailed, &out, func(chunk string) {
		seen = append(seen, chunk)
	})

	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, "line one\n", seen[0])
}

func TestWrapScript_NoSudoPassesThrough(t *testing.T) {
	assert.Equal(t, "echo hi", wrapScript("echo hi", false))
}

func TestWrapScript_SudoIncludesSentinelAndTrap(t *testing.T) {
	script := wrapScript("apt-get update", true)
	assert.Contains(t, script, sudoSentinel)
	assert.Contains(t, script, "trap")
	assert.Contains(t, script, "eval")
}

func TestFilterSentinelLines_RemovesOnlyMatchingLines(t *testing.T) {
	chunk := "hello\nFLOWX_SUDO_PROMPT:\nworld\n"
	filtered := filterSentinelLines(chunk)
	assert.False(t, strings.Contains(filtered, sudoSentinel))
	assert.Contains(t, filtered, "hello")
	assert.Contains(t, filtered, "world")
}

func TestFilterSentinelLines_NoSentinelIsUnchanged(t *testing.T) {
	chunk := "plain output\n"
	assert.Equal(t, chunk, filterSentinelLines(chunk))
}

func TestShellQuote_EscapesSingleQuotes(t *testing.T) {
	assert.Equal(t, `'it'"'"'s'`, shellQuote("it's"))
}
