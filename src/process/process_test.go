package process

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalRunCapturesStdout(t *testing.T) {
	l := &Local{}
	result, err := l.Run(context.Background(), "", nil, "echo hello")
	assert.NoError(t, err)
	assert.Equal(t, "hello\n", string(result.Stdout))
	assert.Equal(t, 0, result.ExitCode)
}

func TestLocalRunNonZeroExitReturnsError(t *testing.T) {
	l := &Local{}
	result, err := l.Run(context.Background(), "", nil, "exit 3")
	assert.Error(t, err)
	assert.Equal(t, 3, result.ExitCode)
}

func TestLocalRunFallsBackToShellForPipes(t *testing.T) {
	l := &Local{}
	result, err := l.Run(context.Background(), "", nil, "echo hello | tr a-z A-Z")
	assert.NoError(t, err)
	assert.Equal(t, "HELLO\n", string(result.Stdout))
}

func TestLocalRunUsesWorkingDirectory(t *testing.T) {
	l := &Local{}
	dir := t.TempDir()
	result, err := l.Run(context.Background(), dir, nil, "pwd")
	assert.NoError(t, err)
	assert.Contains(t, string(result.Stdout), dir)
}

func TestNeedsShell(t *testing.T) {
	assert.True(t, needsShell("echo a | wc -l"))
	assert.True(t, needsShell("ls *.go"))
	assert.False(t, needsShell("echo hello"))
}

func TestQuoteArgsEscapesSpaces(t *testing.T) {
	quoted := QuoteArgs([]string{"echo", "hello world"})
	assert.Contains(t, quoted, "echo")
	assert.Contains(t, quoted, "hello world")
}
