package engine_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/mtsoor/pkg/engine"
)

func TestShellLauncher_CapturesOutput(t *testing.T) {
	var buf bytes.Buffer

	l := engine.NewShellLauncher(testLog(), &buf)

	code, err := l.Launch(context.Background(), "echo engine output")
	require.NoError(t, err)
	assert.Zero(t, code)
	assert.Contains(t, buf.String(), "engine output")
}

func TestShellLauncher_NonZeroExitIsNotAnError(t *testing.T) {
	l := engine.NewShellLauncher(testLog(), io.Discard)

	code, err := l.Launch(context.Background(), "exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, code)
}
