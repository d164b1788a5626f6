package workerpool

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	payloads := [][]byte{
		[]byte(`{"result":1}`),
		{},
		{0x00, 0xFF, 0x00, '\n'},
	}
	for _, p := range payloads {
		require.NoError(t, WriteFrame(&buf, p))
	}

	for _, want := range payloads {
		got, err := ReadFrame(&buf)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ReadFrame(&buf)
	assert.Equal(t, io.EOF, err)
}

func TestReadFrameTruncated(t *testing.T) {
	// Header promises more bytes than the stream has.
	buf := bytes.NewBuffer([]byte{10, 0, 0, 0, 'x'})
	_, err := ReadFrame(buf)
	assert.Error(t, err)

	// Partial header.
	buf = bytes.NewBuffer([]byte{10, 0})
	_, err = ReadFrame(buf)
	assert.Error(t, err)
}

func TestFrameLengthLimit(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	_, err := ReadFrame(buf)
	assert.ErrorContains(t, err, "exceeds limit")
}
