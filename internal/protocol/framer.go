package protocol

import (
	"bytes"
	"errors"
)

// DefaultMaxLine caps the bytes a peer may send without a newline.
const DefaultMaxLine = 4 << 20

var ErrLineTooLong = errors.New("message exceeds maximum line length")

// Framer splits a byte stream into newline-terminated frames. A trailing
// partial line is held until a later Feed completes it.
type Framer struct {
	buf []byte
	max int

	// discarding is set after an oversized line was dropped; input is
	// skipped until that line's newline.
	discarding bool
}

func NewFramer(max int) *Framer {
	if max <= 0 {
		max = DefaultMaxLine
	}
	return &Framer{max: max}
}

// Feed appends chunk and returns every complete line, without its
// terminator. Blank lines are skipped. If the pending partial line grows past
// the limit it is discarded, together with the rest of that line still to
// come, and ErrLineTooLong is returned alongside any complete lines.
func (f *Framer) Feed(chunk []byte) ([][]byte, error) {
	if f.discarding {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			return nil, nil
		}
		f.discarding = false
		chunk = chunk[i+1:]
	}
	f.buf = append(f.buf, chunk...)

	var lines [][]byte
	for {
		i := bytes.IndexByte(f.buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimRight(f.buf[:i], "\r")
		if len(bytes.TrimSpace(line)) > 0 {
			lines = append(lines, bytes.Clone(line))
		}
		f.buf = f.buf[i+1:]
	}

	if f.max > 0 && len(f.buf) > f.max {
		f.buf = nil
		f.discarding = true
		return lines, ErrLineTooLong
	}
	if len(f.buf) == 0 {
		f.buf = nil
	}
	return lines, nil
}

// Pending reports the size of the buffered partial line.
func (f *Framer) Pending() int {
	return len(f.buf)
}
