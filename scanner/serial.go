package scanner

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// Serial implements Decoder for scanners in USB CDC or RS-232 mode that
// send each barcode followed by CR and/or LF.
type Serial struct {
	mu     sync.Mutex
	port   *serial.Port
	device string
	lines  lineAssembler
}

// NewSerial opens a line-terminated serial scanner.
func NewSerial(device string, baud int) (*Serial, error) {
	if baud == 0 {
		baud = 9600
	}
	c := &serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: 500 * time.Millisecond,
	}
	port, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}
	log.Printf("Scanner: serial %s at %d baud", device, baud)

	return &Serial{port: port, device: device}, nil
}

// Read implements Decoder.Read.
func (s *Serial) Read(ctx context.Context) (string, error) {
	buf := make([]byte, 64)
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		n, err := s.port.Read(buf)
		if err != nil && n == 0 {
			// tarm reports a read timeout as io.EOF
			continue
		}

		s.mu.Lock()
		for _, b := range buf[:n] {
			if line, ok := s.lines.Feed(b); ok {
				s.mu.Unlock()
				return line, nil
			}
		}
		s.mu.Unlock()
	}
}

// Flush discards buffered input.
func (s *Serial) Flush() {
	s.mu.Lock()
	s.lines.Reset()
	s.mu.Unlock()
	if err := s.port.Flush(); err != nil {
		log.Printf("Scanner: flush %s: %v", s.device, err)
	}
}

// Close implements Decoder.Close.
func (s *Serial) Close() error {
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}
