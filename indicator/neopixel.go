package indicator

import (
	"fmt"
	"io"
	"os"
)

// Neopixel command strings for the external neopixel tool.
const (
	neoConnectionLost = "@2 !150000 001010"
	neoNormalIdle     = "@3 !150000 400000"
	neoScanning       = "@3 !40000 004040"
	neoWaiting        = "@2 !80000 404000"
	neoWriting        = "@1 !20000 404000"
	neoSuccess        = "@1 !50000 8000"
	neoFailure        = "@2 !10000 ff"
	neoTerminated     = "@0 010101"
)

// Neopixel implements Indicator using an external neopixel tool via named pipe.
type Neopixel struct {
	pipe       io.WriteCloser
	idleString string
}

// NewNeopixel creates a new Neopixel indicator.
func NewNeopixel(pipePath string) (*Neopixel, error) {
	f, err := os.OpenFile(pipePath, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open neopixel pipe %s: %w", pipePath, err)
	}
	return newNeopixel(f), nil
}

func newNeopixel(w io.WriteCloser) *Neopixel {
	// Connection lost until the broker connects
	return &Neopixel{pipe: w, idleString: neoConnectionLost}
}

func (n *Neopixel) Idle()     { n.write(n.idleString) }
func (n *Neopixel) Scanning() { n.write(neoScanning) }
func (n *Neopixel) Waiting()  { n.write(neoWaiting) }
func (n *Neopixel) Writing()  { n.write(neoWriting) }
func (n *Neopixel) Success()  { n.write(neoSuccess) }
func (n *Neopixel) Failure()  { n.write(neoFailure) }

// ConnectionLost implements Indicator.ConnectionLost.
func (n *Neopixel) ConnectionLost() {
	n.idleString = neoConnectionLost
	n.write(neoConnectionLost)
}

// SetConnected updates the idle string to normal when connected.
func (n *Neopixel) SetConnected() {
	n.idleString = neoNormalIdle
}

// Shutdown implements Indicator.Shutdown.
func (n *Neopixel) Shutdown() {
	n.write(neoTerminated)
}

// Release implements Indicator.Release.
func (n *Neopixel) Release() error {
	if n.pipe == nil {
		return nil
	}
	return n.pipe.Close()
}

func (n *Neopixel) write(s string) {
	if n.pipe != nil {
		io.WriteString(n.pipe, s+"\n")
	}
}
