package controller

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects which source feeds the tag writer.
type Mode int

const (
	ScannerMode Mode = iota
	ListMode
)

func (m Mode) String() string {
	switch m {
	case ScannerMode:
		return "scanner"
	case ListMode:
		return "list"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMode accepts "scanner" or "list".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scanner", "scan", "barcode":
		return ScannerMode, nil
	case "list", "csv":
		return ListMode, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// Phase is the scan cycle position.
type Phase int

const (
	Idle Phase = iota
	Scanning
	AwaitingTag
	Writing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case AwaitingTag:
		return "awaiting_tag"
	case Writing:
		return "writing"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(b []byte) error {
	for _, v := range []Phase{Idle, Scanning, AwaitingTag, Writing} {
		if v.String() == string(b) {
			*p = v
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// State is a snapshot published to subscribers after every change.
type State struct {
	Mode         Mode   `json:"mode"`
	Phase        Phase  `json:"phase"`
	LastScan     string `json:"last_scan,omitempty"`
	Status       string `json:"status"`
	Success      bool   `json:"success"`
	Fault        bool   `json:"fault"`
	ListActive   bool   `json:"list_active"`
	ListLen      int    `json:"list_len"`
	ListPosition int    `json:"list_position"`
	ListItem     string `json:"list_item,omitempty"`
	Flipped      bool   `json:"flipped"`
}

// Pending is the value the next tag would receive, or "" if a tag would be
// ignored.
func (s State) Pending() string {
	switch s.Mode {
	case ScannerMode:
		if s.Phase == AwaitingTag {
			return s.LastScan
		}
	case ListMode:
		if s.ListActive {
			return s.ListItem
		}
	}
	return ""
}

// Progress reports list position as "2 of 5", or "" without a list.
func (s State) Progress() string {
	if s.ListLen == 0 {
		return ""
	}
	return fmt.Sprintf("%d of %d", s.ListPosition+1, s.ListLen)
}

// WriteEvent describes one write attempt.
type WriteEvent struct {
	ID      string    `json:"id"`
	Mode    Mode      `json:"mode"`
	Value   string    `json:"value"`
	TagUID  string    `json:"tag_uid"`
	TagType string    `json:"tag_type"`
	Result  string    `json:"result"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// Status messages.
const (
	StatusReady         = "Ready"
	StatusScanning      = "Scanning..."
	StatusPresentTag    = "Present tag"
	StatusWriting       = "Writing..."
	StatusWritten       = "Written ✓"
	StatusUnsupported   = "Error: tag does not support NDEF"
	StatusTooLong       = "Data too long for this tag"
	StatusWriteError    = "Write error"
	StatusScannerError  = "Scanner error"
	StatusNoList        = "No list loaded"
	StatusListEmpty     = "List is empty"
	StatusListComplete  = "List complete"
	StatusListReadError = "Cannot read list"
)

func statusPresentFor(v string) string {
	return "Present tag to write: " + v
}

func statusLoaded(n int) string {
	if n == 1 {
		return "Loaded 1 item"
	}
	return fmt.Sprintf("Loaded %d items", n)
}
