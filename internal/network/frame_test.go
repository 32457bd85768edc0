package network

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/tileworld/internal/protocol"
)

func newCodec(t *testing.T, compress bool) *FrameCodec {
	t.Helper()
	c, err := NewFrameCodec(compress)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestFrameRoundTrip(t *testing.T) {
	c := newCodec(t, true)

	short := c.EncodeText(protocol.MessageText, "action|drop\n")
	assert.Equal(t, codecRaw, short[4], "короткие сообщения не сжимаются")

	long := strings.Repeat("tile|", 400)
	frame := c.EncodeText(protocol.MessageText, long)
	assert.Equal(t, codecZstd, frame[4])

	var stream bytes.Buffer
	stream.Write(short)
	stream.Write(frame)

	msg, err := c.ReadMessage(&stream)
	require.NoError(t, err)
	mt, body, err := messageType(msg)
	require.NoError(t, err)
	assert.Equal(t, protocol.MessageText, mt)
	assert.Equal(t, "action|drop\n", string(body))

	msg, err = c.ReadMessage(&stream)
	require.NoError(t, err)
	_, body, err = messageType(msg)
	require.NoError(t, err)
	assert.Equal(t, long, string(body), "сжатое сообщение распаковывается")
}

func TestFramePacket(t *testing.T) {
	c := newCodec(t, false)
	p := protocol.TileUpdate(3, 4, []byte{1, 2, 3}, 0)

	msg, err := c.ReadMessage(bytes.NewReader(c.EncodePacket(p)))
	require.NoError(t, err)
	got, err := protocol.Unframe(msg)
	require.NoError(t, err)
	assert.Equal(t, protocol.PacketSendTileUpdateData, got.Type)
	assert.Equal(t, int32(3), got.TileX)
	assert.Equal(t, int32(4), got.TileY)
}

func TestFrameErrors(t *testing.T) {
	c := newCodec(t, false)

	t.Run("too large", func(t *testing.T) {
		var hdr [4]byte
		binary.LittleEndian.PutUint32(hdr[:], MaxFrameSize+1)
		_, err := c.ReadMessage(bytes.NewReader(hdr[:]))
		assert.ErrorIs(t, err, ErrFrameTooLarge)
	})

	t.Run("zero length", func(t *testing.T) {
		_, err := c.ReadMessage(bytes.NewReader([]byte{0, 0, 0, 0}))
		assert.ErrorIs(t, err, ErrFrameTooLarge)
	})

	t.Run("unknown codec", func(t *testing.T) {
		_, err := c.ReadMessage(bytes.NewReader([]byte{2, 0, 0, 0, 7, 1}))
		assert.ErrorIs(t, err, ErrBadCodec)
	})

	t.Run("short message", func(t *testing.T) {
		_, _, err := messageType([]byte{1, 2})
		assert.ErrorIs(t, err, protocol.ErrShortBuffer)
	})

	t.Run("truncated body", func(t *testing.T) {
		_, err := c.ReadMessage(bytes.NewReader([]byte{9, 0, 0, 0, 0, 1}))
		assert.Error(t, err)
	})
}

func TestParseFields(t *testing.T) {
	fields := ParseFields("action|join_request\r\nname|START\nbroken line\n|empty key\nname|OTHER\nlabel|a|b")
	assert.Equal(t, map[string]string{
		"action": "join_request",
		"name":   "OTHER",
		"label":  "a|b",
	}, fields)

	text := FormatFields(fields, "action", "name", "missing")
	assert.Equal(t, "action|join_request\nname|OTHER\n", text)
}
