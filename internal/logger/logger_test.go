package logger

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedact_RegisteredSecret(t *testing.T) {
	RegisterSecret("hunter2-very-secret")
	RegisterSecret("x") // too short, ignored

	got := Redact("token=hunter2-very-secret and x marks the spot")
	assert.Equal(t, "token=[REDACTED] and x marks the spot", got)
}

func TestRedact_LongestSecretFirst(t *testing.T) {
	RegisterSecret("abcd")
	RegisterSecret("abcdefgh")

	assert.Equal(t, "[REDACTED]", Redact("abcdefgh"))
}

func TestRedact_KeyShapes(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"anthropic", "key sk-ant-api03-AAAABBBBCCCC"},
		{"openai style", "key sk-0123456789abcdefXYZ"},
		{"google", "key AIzaSyA0123456789abcdefghijkl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Redact(tt.in)
			assert.Equal(t, "key [REDACTED]", got)
		})
	}
}

func TestRedact_SecretInsideKey(t *testing.T) {
	RegisterSecret("abcd")
	RegisterSecret("XYZ and more")

	assert.Equal(t, "key [REDACTED]", Redact("key sk-0123456789abcdefXYZ"))
	assert.Equal(t, "key [REDACTED]", Redact("key AIzaSyA0123456789abcdefghijkl"))
	assert.Equal(t, "key [REDACTED] here", Redact("key sk-0123456789abcdefXYZ and more here"))
	assert.Equal(t, "[REDACTED] [REDACTED]", Redact("abcd abcd"))
}

func TestAddLog_StoresRedactedAndNotifies(t *testing.T) {
	SetQuiet(true)
	defer SetQuiet(false)
	RegisterSecret("s3cr3t-value")

	sub := Subscribe()
	defer Unsubscribe(sub)

	AddLog(LevelInfo, "spawning with s3cr3t-value")

	select {
	case entry := <-sub:
		assert.Equal(t, LevelInfo, entry.Level)
		assert.NotContains(t, entry.Message, "s3cr3t-value")
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive entry")
	}

	logs := GetLogs()
	require.NotEmpty(t, logs)
	assert.Equal(t, "spawning with [REDACTED]", logs[len(logs)-1].Message)
}

func TestInit_WritesFile(t *testing.T) {
	SetQuiet(true)
	defer SetQuiet(false)

	dir := t.TempDir()
	require.NoError(t, Init(dir))
	Infof("hello %s", "file")
	Close()

	data, err := os.ReadFile(GetLogFilePath())
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "hello file"))
}
