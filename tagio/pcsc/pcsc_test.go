package pcsc

import (
	"bytes"
	"errors"
	"testing"

	"tagscribe/tagio"
)

// fakeCard answers ACR122U pseudo-APDUs from an in-memory page map.
type fakeCard struct {
	uid     []byte
	version []byte // nil answers GET_VERSION with 6A 81
	pages   map[byte][4]byte
	limit   byte // first page past the end of memory
	closed  bool
}

var swOK = []byte{0x90, 0x00}

func (c *fakeCard) Transmit(cmd []byte) ([]byte, error) {
	if c.closed {
		return nil, errors.New("card closed")
	}
	switch {
	case bytes.Equal(cmd, apduGetUID):
		return append(append([]byte{}, c.uid...), swOK...), nil
	case bytes.Equal(cmd, apduGetVersion):
		if c.version == nil {
			return []byte{0x6A, 0x81}, nil
		}
		return append(append([]byte{}, c.version...), swOK...), nil
	case len(cmd) == 5 && cmd[1] == 0xB0:
		if cmd[3] >= c.limit {
			return []byte{0x63, 0x00}, nil
		}
		p := c.pages[cmd[3]]
		return append(p[:], swOK...), nil
	case len(cmd) == 9 && cmd[1] == 0xD6:
		if cmd[3] >= c.limit {
			return []byte{0x63, 0x00}, nil
		}
		var p [4]byte
		copy(p[:], cmd[5:])
		c.pages[cmd[3]] = p
		return swOK, nil
	}
	return []byte{0x6D, 0x00}, nil
}

func (c *fakeCard) Close() error {
	c.closed = true
	return nil
}

type fakeReader struct {
	pages   map[byte][4]byte
	uid     []byte
	version []byte
	limit   byte
	dials   int
}

func (r *fakeReader) dial() (card, error) {
	r.dials++
	return &fakeCard{uid: r.uid, version: r.version, pages: r.pages, limit: r.limit}, nil
}

func newReader(version []byte, limit byte) *fakeReader {
	return &fakeReader{
		pages:   map[byte][4]byte{},
		uid:     []byte{0x04, 0xA1, 0xB2, 0xC3, 0xD4, 0xE5, 0x80},
		version: version,
		limit:   limit,
	}
}

func TestTransmitStatusWord(t *testing.T) {
	c := &fakeCard{uid: []byte{1, 2, 3, 4}}
	got, err := transmit(c, apduGetUID)
	if err != nil || !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Fatalf("transmit = % X, %v", got, err)
	}
	if _, err := transmit(c, apduGetVersion); err == nil {
		t.Fatal("expected status word error")
	}
}

func TestIdentifyBlankNTAG215(t *testing.T) {
	r := newReader([]byte{0x00, 0x04, 0x04, 0x02, 0x01, 0x00, 0x11, 0x03}, 135)
	tag, err := identify(r.dial)
	if err != nil {
		t.Fatal(err)
	}
	if tag.UID() != "04A1B2C3D4E580" {
		t.Fatalf("uid = %s", tag.UID())
	}
	if tag.Type() != "NTAG215" {
		t.Fatalf("type = %s", tag.Type())
	}
	if tag.Ndef() != nil || tag.NdefFormatable() == nil {
		t.Fatal("blank tag should be formatable only")
	}

	if err := tagio.NewWriter("en").Write(tag, "hello"); err != nil {
		t.Fatal(err)
	}
	if cc := r.pages[3]; cc != [4]byte{0xE1, 0x10, 0x3E, 0x00} {
		t.Fatalf("cc = % X", cc)
	}
	if first := r.pages[4]; first[0] != 0x03 {
		t.Fatalf("first data page = % X", first)
	}
}

func TestIdentifyFallsBackToProbe(t *testing.T) {
	r := newReader(nil, 16)
	r.pages[3] = [4]byte{0xE1, 0x10, 0x06, 0x00}
	r.pages[4] = [4]byte{0x03, 0x00, 0xFE, 0x00}
	tag, err := identify(r.dial)
	if err != nil {
		t.Fatal(err)
	}
	if tag.Type() != tagio.Ultralight.Name {
		t.Fatalf("type = %s", tag.Type())
	}
	if tag.Ndef() == nil {
		t.Fatal("formatted tag should expose Ndef")
	}
}

func TestIdentifyUnsupported(t *testing.T) {
	r := newReader(nil, 0)
	tag, err := identify(r.dial)
	if err != nil {
		t.Fatal(err)
	}
	if tag.Ndef() != nil || tag.NdefFormatable() != nil {
		t.Fatal("card without page reads should be unsupported")
	}
}

func TestCardTransportRequiresConnect(t *testing.T) {
	r := newReader(nil, 16)
	tr := &cardTransport{dial: r.dial}
	if _, err := tr.ReadPage(4); err == nil {
		t.Fatal("read without connect should fail")
	}
	if err := tr.Connect(); err != nil {
		t.Fatal(err)
	}
	tr.Connect()
	if r.dials != 1 {
		t.Fatalf("dials = %d", r.dials)
	}
	if err := tr.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if err := tr.Disconnect(); err != nil {
		t.Fatal(err)
	}
}

func TestPickReader(t *testing.T) {
	readers := []string{"Broadcom Corp 5880", "ACS ACR122U PICC Interface 00 00"}
	if r, ok := pickReader(readers, "acr122"); !ok || r != readers[1] {
		t.Fatalf("pickReader = %q, %v", r, ok)
	}
	if r, ok := pickReader(readers, ""); !ok || r != readers[0] {
		t.Fatalf("pickReader default = %q, %v", r, ok)
	}
	if _, ok := pickReader(readers, "pn532"); ok {
		t.Fatal("unexpected match")
	}
}
