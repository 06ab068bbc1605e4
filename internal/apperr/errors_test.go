package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mcp-scooter/toolbridge/internal/apperr"
	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := apperr.New(apperr.KindTimeout, "initialize took too long").WithServer("echo_srv")
	wrapped := fmt.Errorf("list tools: %w", err)

	assert.True(t, errors.Is(wrapped, apperr.ErrTimeout))
	assert.False(t, errors.Is(wrapped, apperr.ErrTransport))
	assert.Equal(t, apperr.KindTimeout, apperr.KindOf(wrapped))
}

func TestError_MessageIncludesKindAndServer(t *testing.T) {
	err := &apperr.Error{Kind: apperr.KindRPC, Server: "echo_srv", Msg: "boom", Code: -32601}
	assert.Equal(t, "rpc [server echo_srv]: boom (code: -32601)", err.Error())
}

func TestWrap(t *testing.T) {
	assert.Nil(t, apperr.Wrap(apperr.KindTransport, nil, "ignored"))

	base := errors.New("broken pipe")
	err := apperr.Wrap(apperr.KindTransport, base, "write request")
	assert.ErrorIs(t, err, base)
	assert.ErrorIs(t, err, apperr.ErrTransport)
	assert.Equal(t, "transport: write request: broken pipe", err.Error())
}

func TestTagServer(t *testing.T) {
	plain := apperr.TagServer(errors.New("eof"), "a")
	assert.Equal(t, apperr.KindTransport, apperr.KindOf(plain))
	assert.Contains(t, plain.Error(), "[server a]")

	tagged := apperr.New(apperr.KindConfig, "x").WithServer("b")
	assert.Contains(t, apperr.TagServer(tagged, "c").Error(), "[server b]")
	assert.Nil(t, apperr.TagServer(nil, "a"))
}

func TestKindOf_Plain(t *testing.T) {
	assert.Equal(t, apperr.Kind(""), apperr.KindOf(errors.New("plain")))
}
