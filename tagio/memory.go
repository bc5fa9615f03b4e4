package tagio

import (
	"errors"
	"fmt"
	"sync"
)

// MemoryTag is an in-memory Type 2 transport. It backs the virtual tag
// source and tests.
type MemoryTag struct {
	mu    sync.Mutex
	chip  Chip
	pages [][4]byte

	connected bool

	// FailConnect makes Connect return an error.
	FailConnect bool
	// FailWriteAt makes the write of this page fail. Zero disables.
	FailWriteAt byte

	Connects    int
	Disconnects int
	Writes      int
}

// NewMemoryTag returns a blank chip with a zeroed capability container.
func NewMemoryTag(chip Chip, uid []byte) *MemoryTag {
	m := &MemoryTag{chip: chip, pages: make([][4]byte, chip.TotalPages)}
	copy(m.pages[0][:], uid)
	if len(uid) > 4 {
		copy(m.pages[1][:], uid[4:])
	}
	return m
}

// NewFormattedMemoryTag returns a chip with an NDEF capability container
// and an empty NDEF TLV.
func NewFormattedMemoryTag(chip Chip, uid []byte) *MemoryTag {
	m := NewMemoryTag(chip, uid)
	m.pages[ccPage] = [4]byte{ccMagic, ccVersion, chip.CCSize, 0x00}
	m.pages[firstDataPage] = [4]byte{tlvNDEF, 0x00, tlvTerminator, 0x00}
	return m
}

// SetCapability overwrites the capability container page.
func (m *MemoryTag) SetCapability(cc [4]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[ccPage] = cc
}

// Connect implements PageTransport.
func (m *MemoryTag) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Connects++
	if m.FailConnect {
		return errors.New("tag lost")
	}
	m.connected = true
	return nil
}

// Disconnect implements PageTransport.
func (m *MemoryTag) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Disconnects++
	m.connected = false
	return nil
}

// Connected reports whether a connection is open.
func (m *MemoryTag) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// ReadPage implements PageTransport.
func (m *MemoryTag) ReadPage(page byte) ([4]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return [4]byte{}, errNotConnected
	}
	if int(page) >= len(m.pages) {
		return [4]byte{}, fmt.Errorf("page %d out of range", page)
	}
	return m.pages[page], nil
}

// WritePage implements PageTransport.
func (m *MemoryTag) WritePage(page byte, data [4]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return errNotConnected
	}
	if page < ccPage || int(page) >= firstDataPage+m.chip.UserPages {
		return fmt.Errorf("page %d is not writable", page)
	}
	if m.FailWriteAt != 0 && page == m.FailWriteAt {
		return fmt.Errorf("page %d: NAK", page)
	}
	m.pages[page] = data
	m.Writes++
	return nil
}

// Capability returns the capability container page.
func (m *MemoryTag) Capability() [4]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pages[ccPage]
}

// Message returns the NDEF message stored in the data area.
func (m *MemoryTag) Message() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	area := make([]byte, 0, m.chip.UserBytes())
	for p := firstDataPage; p < firstDataPage+m.chip.UserPages; p++ {
		area = append(area, m.pages[p][:]...)
	}
	return FindNDEF(area)
}
