package pcsc

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"tagscribe/tagio"
)

// Pseudo-APDUs understood by ACR122U-class readers.
var (
	apduGetUID     = []byte{0xFF, 0xCA, 0x00, 0x00, 0x00}
	apduGetVersion = []byte{0xFF, 0x00, 0x00, 0x00, 0x02, 0x60, 0x00}
)

func apduReadPage(page byte) []byte {
	return []byte{0xFF, 0xB0, 0x00, page, 0x04}
}

func apduWritePage(page byte, data [4]byte) []byte {
	return []byte{0xFF, 0xD6, 0x00, page, 0x04, data[0], data[1], data[2], data[3]}
}

// card is an open connection to the card in the field.
type card interface {
	Transmit(cmd []byte) ([]byte, error)
	Close() error
}

// transmit sends cmd and strips a 90 00 status word.
func transmit(c card, cmd []byte) ([]byte, error) {
	rsp, err := c.Transmit(cmd)
	if err != nil {
		return nil, err
	}
	if len(rsp) < 2 {
		return nil, errors.New("short response")
	}
	sw1, sw2 := rsp[len(rsp)-2], rsp[len(rsp)-1]
	if sw1 != 0x90 || sw2 != 0x00 {
		return nil, fmt.Errorf("status %02X%02X", sw1, sw2)
	}
	return rsp[:len(rsp)-2], nil
}

func readUID(c card) (string, error) {
	uid, err := transmit(c, apduGetUID)
	if err != nil {
		return "", fmt.Errorf("get uid: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(uid)), nil
}

// cardTransport is a tagio.PageTransport that dials a fresh connection on
// Connect and drops it on Disconnect.
type cardTransport struct {
	dial func() (card, error)
	card card
}

func (t *cardTransport) Connect() error {
	if t.card != nil {
		return nil
	}
	c, err := t.dial()
	if err != nil {
		return err
	}
	t.card = c
	return nil
}

func (t *cardTransport) Disconnect() error {
	if t.card == nil {
		return nil
	}
	err := t.card.Close()
	t.card = nil
	return err
}

func (t *cardTransport) ReadPage(page byte) ([4]byte, error) {
	var out [4]byte
	if t.card == nil {
		return out, errors.New("card not connected")
	}
	rsp, err := transmit(t.card, apduReadPage(page))
	if err != nil {
		return out, fmt.Errorf("read page %d: %w", page, err)
	}
	if len(rsp) < 4 {
		return out, fmt.Errorf("read page %d: %d bytes returned", page, len(rsp))
	}
	copy(out[:], rsp)
	return out, nil
}

func (t *cardTransport) WritePage(page byte, data [4]byte) error {
	if t.card == nil {
		return errors.New("card not connected")
	}
	if _, err := transmit(t.card, apduWritePage(page, data)); err != nil {
		return fmt.Errorf("write page %d: %w", page, err)
	}
	return nil
}

// identify reads the UID and chip of the card in the field and classifies
// it. Cards that do not answer Type 2 page reads are unsupported.
func identify(dial func() (card, error)) (tagio.Tag, error) {
	c, err := dial()
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	uid, err := readUID(c)
	if err != nil {
		c.Close()
		return nil, err
	}
	version, verr := transmit(c, apduGetVersion)
	c.Close()

	t := &cardTransport{dial: dial}
	chip, ok := tagio.Chip{}, false
	if verr == nil {
		chip, ok = tagio.ChipFromVersion(version)
	}
	if !ok {
		if err := t.Connect(); err != nil {
			return nil, fmt.Errorf("connect: %w", err)
		}
		chip = tagio.DetectChip(t)
		t.Disconnect()
	}

	tag, err := tagio.ProbeType2(uid, t, chip)
	if err != nil {
		return tagio.Unsupported(uid, "ISO 14443-A"), nil
	}
	return tag, nil
}
