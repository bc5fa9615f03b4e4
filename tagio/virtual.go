package tagio

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
)

// Virtual tag kinds accepted by VirtualSource.Present.
const (
	KindBlank       = "blank"
	KindNdef        = "ndef"
	KindSmall       = "small"
	KindReadOnly    = "readonly"
	KindUnsupported = "unsupported"
)

// VirtualSource presents in-memory tags on request. It stands in for a
// reader on a bench without NFC hardware.
type VirtualSource struct {
	mu      sync.Mutex
	cb      func(Tag)
	enabled bool
}

// NewVirtualSource returns a disabled virtual source.
func NewVirtualSource() *VirtualSource {
	return &VirtualSource{}
}

// Enable implements Source.
func (v *VirtualSource) Enable(cb func(Tag)) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cb = cb
	v.enabled = true
	log.Println("Virtual tag source enabled")
	return nil
}

// Disable implements Source.
func (v *VirtualSource) Disable() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.enabled = false
	return nil
}

// Close implements Source.
func (v *VirtualSource) Close() error {
	return v.Disable()
}

// Present builds a tag of the given kind and hands it to the callback. It
// returns once the callback has returned. For Type 2 kinds the stored text
// is logged afterwards.
func (v *VirtualSource) Present(kind string) error {
	v.mu.Lock()
	cb, enabled := v.cb, v.enabled
	v.mu.Unlock()
	if !enabled || cb == nil {
		return fmt.Errorf("virtual source disabled")
	}

	uid := make([]byte, 7)
	if _, err := rand.Read(uid); err != nil {
		return fmt.Errorf("generate uid: %w", err)
	}
	uid[0] = 0x04 // NXP
	uidHex := hex.EncodeToString(uid)

	var mem *MemoryTag
	var chip Chip
	switch kind {
	case "", KindBlank:
		chip = NTAG215
		mem = NewMemoryTag(chip, uid)
	case KindNdef:
		chip = NTAG213
		mem = NewFormattedMemoryTag(chip, uid)
	case KindSmall:
		chip = Ultralight
		mem = NewFormattedMemoryTag(chip, uid)
	case KindReadOnly:
		chip = NTAG213
		mem = NewFormattedMemoryTag(chip, uid)
		mem.SetCapability([4]byte{ccMagic, ccVersion, chip.CCSize, 0x0F})
	case KindUnsupported:
		cb(Unsupported(uidHex, "MIFARE Classic 1K"))
		return nil
	default:
		return fmt.Errorf("unknown virtual tag kind %q", kind)
	}

	tag, err := ProbeType2(uidHex, mem, chip)
	if err != nil {
		return err
	}
	log.Printf("Virtual tag %s (%s) presented", uidHex, chip.Name)
	cb(tag)

	raw, err := mem.Message()
	if err != nil || len(raw) == 0 {
		log.Printf("Virtual tag %s: no message stored", uidHex)
		return nil
	}
	msg, err := ParseMessage(raw)
	if err != nil {
		log.Printf("Virtual tag %s: %v", uidHex, err)
		return nil
	}
	text, err := FirstText(msg)
	if err != nil {
		log.Printf("Virtual tag %s: %v", uidHex, err)
		return nil
	}
	log.Printf("Virtual tag %s now holds %q", uidHex, text)
	return nil
}
