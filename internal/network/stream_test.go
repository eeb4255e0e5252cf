package network

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamRWRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	rw := newStreamRW(buf)

	assert.NoError(t, rw.Write([]byte("hello")))
	assert.NoError(t, rw.Write([]byte{}))
	assert.NoError(t, rw.Write([]byte("world")))

	b, err := rw.Read()
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello"), b)

	b, err = rw.Read()
	assert.NoError(t, err)
	assert.Empty(t, b)

	b, err = rw.Read()
	assert.NoError(t, err)
	assert.Equal(t, []byte("world"), b)
}

func TestStreamRWTruncated(t *testing.T) {
	buf := &bytes.Buffer{}
	rw := newStreamRW(buf)

	assert.NoError(t, rw.Write([]byte("hello")))

	truncated := bytes.NewBuffer(buf.Bytes()[:6])
	_, err := newStreamRW(truncated).Read()
	assert.Error(t, err)
}

func TestStreamRWOversizedFrame(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff})

	_, err := newStreamRW(buf).Read()
	assert.ErrorIs(t, err, errFrameTooLarge)
}
