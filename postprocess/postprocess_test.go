package postprocess

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerReportsExitCodes(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fail.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho broken archive >&2\nexit 3\n"), 0o755))

	r := &Runner{Dir: dir}
	outcomes := r.Run(context.Background(), "true", "", script)

	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].OK())
	assert.Equal(t, "true", outcomes[0].Command)

	assert.False(t, outcomes[1].OK())
	assert.Equal(t, 3, outcomes[1].ExitCode)
	assert.NoError(t, outcomes[1].Err)
	assert.Equal(t, "broken archive", outcomes[1].Stderr)
}

func TestRunnerMissingBinary(t *testing.T) {
	r := &Runner{}
	outcomes := r.Run(context.Background(), "definitely-not-a-real-binary-xyz --flag")

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].OK())
	assert.Equal(t, -1, outcomes[0].ExitCode)
	assert.Error(t, outcomes[0].Err)
}

func TestRunnerSkipsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := (&Runner{}).Run(ctx, "true")
	assert.Empty(t, outcomes)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "abc", tail("  abc\n", 10))
	assert.Equal(t, "def", tail("abcdef", 3))
	assert.Equal(t, strings.Repeat("x", 4), tail(strings.Repeat("x", 9), 4))
}
