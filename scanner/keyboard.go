package scanner

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/kenshaw/evdev"
)

// punctuation maps keys to their unshifted and shifted characters.
var punctuation = map[evdev.KeyType][2]string{
	evdev.KeySpace:     {" ", " "},
	evdev.KeyMinus:     {"-", "_"},
	evdev.KeyEqual:     {"=", "+"},
	evdev.KeyDot:       {".", ">"},
	evdev.KeyComma:     {",", "<"},
	evdev.KeySlash:     {"/", "?"},
	evdev.KeySemiColon: {";", ":"},
}

// Keyboard implements Decoder for USB HID scanners in keyboard-wedge mode,
// which type each barcode followed by Enter.
type Keyboard struct {
	device *evdev.Evdev
	lines  chan string
	cancel context.CancelFunc
}

// NewKeyboard opens the input device and starts collecting lines.
func NewKeyboard(device string) (*Keyboard, error) {
	dev, err := evdev.OpenFile(device)
	if err != nil {
		return nil, fmt.Errorf("open evdev %s: %w", device, err)
	}

	log.Printf("Scanner: keyboard device %s", dev.Name())
	log.Printf("Vendor: 0x%04x, Product: 0x%04x", dev.ID().Vendor, dev.ID().Product)

	ctx, cancel := context.WithCancel(context.Background())
	k := &Keyboard{
		device: dev,
		lines:  make(chan string, 1),
		cancel: cancel,
	}
	go k.collect(ctx)
	return k, nil
}

func (k *Keyboard) collect(ctx context.Context) {
	ch := k.device.Poll(ctx)
	var strbuf strings.Builder
	shift := false

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-ch:
			if event == nil {
				log.Printf("Scanner: keyboard device closed")
				return
			}

			if _, ok := event.Type.(evdev.KeyType); !ok {
				continue
			}

			if event.Type == evdev.KeyLeftShift || event.Type == evdev.KeyRightShift {
				shift = event.Value != 0
				continue
			}
			if event.Value != 1 {
				continue
			}

			if event.Type == evdev.KeyEnter {
				if strbuf.Len() == 0 {
					continue
				}
				k.publish(strbuf.String())
				strbuf.Reset()
				continue
			}

			key := evdev.KeyType(event.Code)
			if p, ok := punctuation[key]; ok {
				if shift {
					strbuf.WriteString(p[1])
				} else {
					strbuf.WriteString(p[0])
				}
				continue
			}

			s := key.String()
			if len(s) != 1 {
				continue
			}
			if !shift {
				s = strings.ToLower(s)
			}
			strbuf.WriteString(s)
		}
	}
}

// publish hands a line to Read, replacing any line nobody consumed.
func (k *Keyboard) publish(line string) {
	select {
	case k.lines <- line:
		return
	default:
	}
	select {
	case <-k.lines:
	default:
	}
	select {
	case k.lines <- line:
	default:
	}
}

// Read implements Decoder.Read.
func (k *Keyboard) Read(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line := <-k.lines:
		return line, nil
	}
}

// Flush drops a line typed while no scan was armed.
func (k *Keyboard) Flush() {
	select {
	case <-k.lines:
	default:
	}
}

// Close implements Decoder.Close.
func (k *Keyboard) Close() error {
	k.cancel()
	if k.device == nil {
		return nil
	}
	return k.device.Close()
}
