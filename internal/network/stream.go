package network

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// maxFrameSize bounds a single length-prefixed message; a full epoch of
// transactions fits well within it.
const maxFrameSize = 64 << 20

var errFrameTooLarge = errors.New("frame exceeds size limit")

// streamRW frames messages with a 4-byte little-endian length prefix.
type streamRW struct {
	r *bufio.Reader
	w *bufio.Writer
}

func newStreamRW(rw io.ReadWriter) *streamRW {
	return &streamRW{
		r: bufio.NewReader(rw),
		w: bufio.NewWriter(rw),
	}
}

func (c *streamRW) Write(b []byte) error {
	var ln [4]byte
	binary.LittleEndian.PutUint32(ln[:], uint32(len(b)))

	if _, err := c.w.Write(ln[:]); err != nil {
		return errors.Wrap(err, "transmitting len")
	}

	if _, err := c.w.Write(b); err != nil {
		return errors.Wrap(err, "transmitting data")
	}

	return c.w.Flush()
}

func (c *streamRW) Read() ([]byte, error) {
	var ln [4]byte
	if _, err := io.ReadFull(c.r, ln[:]); err != nil {
		return nil, errors.Wrap(err, "reading len")
	}

	n := binary.LittleEndian.Uint32(ln[:])
	if n > maxFrameSize {
		return nil, errFrameTooLarge
	}

	b := make([]byte, n)
	if _, err := io.ReadFull(c.r, b); err != nil {
		return nil, errors.Wrap(err, "reading data")
	}

	return b, nil
}
