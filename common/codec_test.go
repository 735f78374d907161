package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexRoundTrip(t *testing.T) {
	inputs := [][]byte{
		{},
		{0x00},
		{0xff, 0x00, 0x10},
		[]byte(`{"op":"stats","text":"Hello, Cartesi!"}`),
		[]byte("ação ✓"),
	}
	for _, in := range inputs {
		out, err := DecodeHex(EncodeHex(in))
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestEncodeHex_LowercaseWithPrefix(t *testing.T) {
	assert.Equal(t, "0x", EncodeHex(nil))
	assert.Equal(t, "0xabcdef", EncodeHex([]byte{0xAB, 0xCD, 0xEF}))
}

func TestEncodePayload(t *testing.T) {
	t.Run("compact JSON", func(t *testing.T) {
		got, err := EncodePayload(ErrorDetail{Error: "bad input: x"})
		require.NoError(t, err)

		raw, err := DecodeHex(got)
		require.NoError(t, err)
		assert.Equal(t, `{"error":"bad input: x"}`, string(raw))
	})

	t.Run("keeps UTF-8 and HTML characters", func(t *testing.T) {
		got, err := EncodePayload(Request{Op: "shout", Text: "<olá & tchau>"})
		require.NoError(t, err)

		raw, err := DecodeHex(got)
		require.NoError(t, err)
		assert.Equal(t, `{"op":"shout","text":"<olá & tchau>"}`, string(raw))
	})

	t.Run("deterministic", func(t *testing.T) {
		a, err := EncodePayload(Request{Op: "stats", Text: "abc"})
		require.NoError(t, err)
		b, err := EncodePayload(Request{Op: "stats", Text: "abc"})
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("unencodable value", func(t *testing.T) {
		_, err := EncodePayload(make(chan int))
		assert.Error(t, err)
	})
}

func TestDecodeHex(t *testing.T) {
	t.Run("missing prefix is empty", func(t *testing.T) {
		got, err := DecodeHex("deadbeef")
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = DecodeHex("")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("odd length", func(t *testing.T) {
		_, err := DecodeHex("0xabc")
		require.Error(t, err)
		assert.True(t, IsDecodeError(err))

		var de *DecodeError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, LayerHex, de.Layer)
	})

	t.Run("non-hex digits", func(t *testing.T) {
		_, err := DecodeHex("0xzz")
		assert.True(t, IsDecodeError(err))
	})
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusAccept.Valid())
	assert.True(t, StatusReject.Valid())
	assert.False(t, Status("maybe").Valid())
}

func TestErrorKinds(t *testing.T) {
	base := errors.New("connection refused")

	te := &TransportError{Endpoint: "/finish", Err: base}
	assert.True(t, IsTransportError(te))
	assert.ErrorIs(t, te, base)
	assert.Equal(t, "/finish: connection refused", te.Error())

	withStatus := &TransportError{Endpoint: "/notice", StatusCode: 500, Err: base}
	assert.Equal(t, "/notice: status 500: connection refused", withStatus.Error())

	ue := &UnsupportedOperationError{Op: "unknown"}
	assert.Equal(t, "unsupported op: unknown", ue.Error())
	assert.True(t, IsUnsupportedOperation(ue))
	assert.False(t, IsTransportError(ue))

	wrapped := &UnexpectedError{Err: te}
	assert.True(t, IsTransportError(wrapped))
}
