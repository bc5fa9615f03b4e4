package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.bug.st/serial"
)

// Framed implements Decoder for scanners configured to wrap each barcode in
// STX ... ETX.
type Framed struct {
	mu     sync.Mutex
	port   serial.Port
	frames frameAssembler
}

// NewFramed opens an STX/ETX framed serial scanner.
func NewFramed(device string, baud int) (*Framed, error) {
	if baud == 0 {
		baud = 9600
	}

	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}

	_ = p.SetReadTimeout(100 * time.Millisecond)
	log.Printf("Scanner: framed serial %s at %d baud", device, baud)

	f := &Framed{port: p}
	f.Flush()
	return f, nil
}

// Read implements Decoder.Read.
func (f *Framed) Read(ctx context.Context) (string, error) {
	if f.port == nil {
		return "", errors.New("port not initialized")
	}

	buf := make([]byte, 64)
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		n, err := f.port.Read(buf)
		if err != nil {
			return "", fmt.Errorf("read: %w", err)
		}
		if n == 0 {
			continue
		}

		f.mu.Lock()
		for _, b := range buf[:n] {
			if body, ok := f.frames.Feed(b); ok {
				f.mu.Unlock()
				return body, nil
			}
		}
		f.mu.Unlock()
	}
}

// Flush discards buffered input and any partial frame.
func (f *Framed) Flush() {
	f.mu.Lock()
	f.frames.Reset()
	f.mu.Unlock()
	if f.port != nil {
		_ = f.port.ResetInputBuffer()
	}
}

// Close implements Decoder.Close.
func (f *Framed) Close() error {
	if f.port == nil {
		return nil
	}
	return f.port.Close()
}
