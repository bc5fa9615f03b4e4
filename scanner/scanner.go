// Package scanner reads barcodes from keyboard-wedge and serial decoders.
package scanner

import (
	"context"
	"fmt"
)

// Decoder is the interface for barcode decoder hardware.
type Decoder interface {
	// Read blocks until a barcode is decoded or ctx is cancelled.
	Read(ctx context.Context) (string, error)

	// Close releases the device.
	Close() error
}

// flusher is implemented by decoders that can discard input received while
// no scan was armed.
type flusher interface {
	Flush()
}

// Config selects and configures the decoder.
type Config struct {
	Type   string `yaml:"type"`   // "keyboard", "serial", "framed" or "none"
	Device string `yaml:"device"` // e.g. "/dev/input/event0", "/dev/ttyACM0"
	Baud   int    `yaml:"baud"`   // serial baud rate
}

// New opens the configured decoder. It returns nil when no decoder is
// configured.
func New(cfg Config) (Decoder, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "keyboard", "hid":
		return NewKeyboard(cfg.Device)
	case "serial":
		return NewSerial(cfg.Device, cfg.Baud)
	case "framed", "stx":
		return NewFramed(cfg.Device, cfg.Baud)
	default:
		return nil, fmt.Errorf("unknown scanner type %q", cfg.Type)
	}
}
