package detection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunner_CapsOutput(t *testing.T) {
	skipWithoutShell(t)

	out, err := ExecRunner{}.Run(context.Background(), "/bin/sh", "-c",
		"head -c 5000000 /dev/zero; echo ollama 1.0.0")
	require.NoError(t, err)
	assert.Len(t, out, MaxOutputBytes)
}

func TestExecRunner_SmallOutput(t *testing.T) {
	skipWithoutShell(t)

	out, err := ExecRunner{}.Run(context.Background(), "/bin/sh", "-c", "echo ollama 1.0.0; echo warn >&2")
	require.NoError(t, err)
	assert.Equal(t, "ollama 1.0.0\nwarn\n", string(out))
}

func TestCappedBuffer(t *testing.T) {
	b := &cappedBuffer{limit: 4}
	n, err := b.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, _ = b.Write([]byte("defg"))
	assert.Equal(t, 4, n)
	assert.Equal(t, "abcd", string(b.Bytes()))
}
