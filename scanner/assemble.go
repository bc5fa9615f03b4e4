package scanner

import "strings"

const (
	stx = 0x02
	etx = 0x03

	maxBarcode = 4096
)

// lineAssembler collects bytes up to a CR or LF terminator.
type lineAssembler struct {
	buf []byte
}

// Feed adds one byte and returns a completed, trimmed line.
func (a *lineAssembler) Feed(b byte) (string, bool) {
	if b == '\r' || b == '\n' {
		line := strings.TrimSpace(string(a.buf))
		a.buf = a.buf[:0]
		return line, line != ""
	}
	if len(a.buf) >= maxBarcode {
		a.buf = a.buf[:0]
	}
	a.buf = append(a.buf, b)
	return "", false
}

func (a *lineAssembler) Reset() {
	a.buf = a.buf[:0]
}

// frameAssembler collects bytes between STX and ETX. Bytes outside a frame
// are dropped; a second STX restarts the frame.
type frameAssembler struct {
	buf     []byte
	inFrame bool
}

// Feed adds one byte and returns a completed frame body.
func (a *frameAssembler) Feed(b byte) (string, bool) {
	switch {
	case b == stx:
		a.buf = a.buf[:0]
		a.inFrame = true
	case !a.inFrame:
	case b == etx:
		a.inFrame = false
		body := strings.TrimSpace(string(a.buf))
		a.buf = a.buf[:0]
		return body, body != ""
	case len(a.buf) >= maxBarcode:
		a.Reset()
	default:
		a.buf = append(a.buf, b)
	}
	return "", false
}

func (a *frameAssembler) Reset() {
	a.buf = a.buf[:0]
	a.inFrame = false
}
