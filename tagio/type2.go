package tagio

import (
	"fmt"
)

// NFC Forum Type 2 layout: 4-byte pages, capability container on page 3,
// user data from page 4.
const (
	PageSize      = 4
	ccPage        = 3
	firstDataPage = 4

	ccMagic   = 0xE1
	ccVersion = 0x10
)

// PageTransport is raw page access to a Type 2 tag. ReadPage and WritePage
// are valid only between Connect and Disconnect.
type PageTransport interface {
	Connect() error
	Disconnect() error
	ReadPage(page byte) ([4]byte, error)
	WritePage(page byte, data [4]byte) error
}

// Chip describes the memory of a Type 2 chip.
type Chip struct {
	Name       string
	TotalPages int
	UserPages  int
	CCSize     byte // data area size / 8, written when formatting
}

// UserBytes is the size of the user memory area.
func (c Chip) UserBytes() int {
	return c.UserPages * PageSize
}

// Known chips.
var (
	Ultralight  = Chip{Name: "MIFARE Ultralight", TotalPages: 16, UserPages: 12, CCSize: 0x06}
	UltralightC = Chip{Name: "MIFARE Ultralight C", TotalPages: 48, UserPages: 36, CCSize: 0x12}
	NTAG213     = Chip{Name: "NTAG213", TotalPages: 45, UserPages: 36, CCSize: 0x12}
	NTAG215     = Chip{Name: "NTAG215", TotalPages: 135, UserPages: 126, CCSize: 0x3E}
	NTAG216     = Chip{Name: "NTAG216", TotalPages: 231, UserPages: 222, CCSize: 0x6D}
)

// ChipFromVersion maps the storage size byte of a GET_VERSION response to a
// chip.
func ChipFromVersion(version []byte) (Chip, bool) {
	if len(version) < 8 {
		return Chip{}, false
	}
	// byte 2 is the product type, 0x04 for NTAG
	if version[2] != 0x04 {
		return Ultralight, version[2] == 0x03
	}
	switch version[6] {
	case 0x0F:
		return NTAG213, true
	case 0x11:
		return NTAG215, true
	case 0x13:
		return NTAG216, true
	}
	return Chip{}, false
}

// DetectChip probes the last user page of each known size, largest first.
// The transport must be connected.
func DetectChip(t PageTransport) Chip {
	for _, c := range []Chip{NTAG216, NTAG215, NTAG213} {
		if _, err := t.ReadPage(byte(firstDataPage + c.UserPages - 1)); err == nil {
			return c
		}
	}
	return Ultralight
}

// Type2Tag is a Type 2 tag classified by its capability container.
type Type2Tag struct {
	uid       string
	chip      Chip
	transport PageTransport
	cc        [4]byte
	connected bool
}

// ProbeType2 reads the capability container and classifies the tag. A tag
// whose container is neither NDEF nor blank is returned as Unsupported.
func ProbeType2(uid string, t PageTransport, chip Chip) (Tag, error) {
	if err := t.Connect(); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	cc, err := t.ReadPage(ccPage)
	t.Disconnect()
	if err != nil {
		return nil, fmt.Errorf("read capability container: %w", err)
	}

	tag := &Type2Tag{uid: uid, chip: chip, transport: t, cc: cc}
	if !tag.formatted() && !tag.blank() {
		return Unsupported(uid, chip.Name), nil
	}
	return tag, nil
}

func (t *Type2Tag) formatted() bool {
	return t.cc[0] == ccMagic && t.cc[1]>>4 >= 1
}

func (t *Type2Tag) blank() bool {
	return t.cc == [4]byte{}
}

// UID implements Tag.
func (t *Type2Tag) UID() string { return t.uid }

// Type implements Tag.
func (t *Type2Tag) Type() string { return t.chip.Name }

// Chip returns the chip the tag was probed as.
func (t *Type2Tag) Chip() Chip { return t.chip }

// Ndef implements Tag.
func (t *Type2Tag) Ndef() Ndef {
	if t.formatted() {
		return t
	}
	return nil
}

// NdefFormatable implements Tag.
func (t *Type2Tag) NdefFormatable() NdefFormatable {
	if t.blank() {
		return t
	}
	return nil
}

// Connect opens the transport for one write attempt.
func (t *Type2Tag) Connect() error {
	if err := t.transport.Connect(); err != nil {
		return err
	}
	t.connected = true
	return nil
}

// Close releases the transport. It is safe to call when not connected.
func (t *Type2Tag) Close() error {
	if !t.connected {
		return nil
	}
	t.connected = false
	return t.transport.Disconnect()
}

// MaxSize implements Ndef.
func (t *Type2Tag) MaxSize() int {
	return maxMessageSize(int(t.cc[2]) * 8)
}

// ReadOnly reports whether the capability container denies writes.
func (t *Type2Tag) ReadOnly() bool {
	return t.cc[3]&0x0F != 0
}

// WriteMessage implements Ndef.
func (t *Type2Tag) WriteMessage(msg []byte) error {
	if !t.connected {
		return errNotConnected
	}
	if !t.formatted() {
		return errCapabilityMissing
	}
	if t.ReadOnly() {
		return errReadOnly
	}
	if limit := t.MaxSize(); len(msg) > limit {
		return newCapacityError(t.uid, len(msg), limit)
	}
	return t.writeArea(EncodeTLV(msg))
}

// Format writes msg and then the capability container, so a failed message
// write leaves the tag blank.
func (t *Type2Tag) Format(msg []byte) error {
	if !t.connected {
		return errNotConnected
	}
	if !t.blank() {
		return fmt.Errorf("tag %s already has a capability container", t.uid)
	}
	if limit := maxMessageSize(int(t.chip.CCSize) * 8); len(msg) > limit {
		return newCapacityError(t.uid, len(msg), limit)
	}
	if err := t.writeArea(EncodeTLV(msg)); err != nil {
		return err
	}
	cc := [4]byte{ccMagic, ccVersion, t.chip.CCSize, 0x00}
	if err := t.transport.WritePage(ccPage, cc); err != nil {
		return fmt.Errorf("write capability container: %w", err)
	}
	t.cc = cc
	return nil
}

func (t *Type2Tag) writeArea(data []byte) error {
	for i := 0; i < len(data); i += PageSize {
		var page [4]byte
		copy(page[:], data[i:])
		p := byte(firstDataPage + i/PageSize)
		if err := t.transport.WritePage(p, page); err != nil {
			return fmt.Errorf("write page %d: %w", p, err)
		}
	}
	return nil
}
