package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenReadFrameRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, "hello"))

	msg, err := ReadFrame(&buf, 1024)
	require.NoError(t, err)
	assert.Equal(t, "hello", msg)
}

func TestReadFrameRejectsZeroLength(t *testing.T) {
	var buf bytes.Buffer
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], 0)
	buf.Write(lenBuf[:])

	_, err := ReadFrame(&buf, 1024)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidCommand))
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], 2000)
	buf.Write(lenBuf[:])
	buf.Write(make([]byte, 2000))

	_, err := ReadFrame(&buf, 1024)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidCommand))
}

func TestReadFrameOnEmptyStreamIsDisconnect(t *testing.T) {
	var buf bytes.Buffer
	_, err := ReadFrame(&buf, 1024)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindClientDisconnected))
}
