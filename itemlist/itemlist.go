// Package itemlist loads values from CSV-like files and tracks the position
// of list traversal.
package itemlist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrEmpty is returned by Start when no items are loaded.
var ErrEmpty = errors.New("list is empty")

const maxLineSize = 1 << 20

// ParseLine returns the trimmed first field of line. Fields are separated by
// ';' or ','. The second result is false when the first field is empty.
func ParseLine(line string) (string, bool) {
	if i := strings.IndexAny(line, ";,"); i >= 0 {
		line = line[:i]
	}
	v := strings.TrimSpace(line)
	return v, v != ""
}

// Parse reads one record per line. A UTF-8 or UTF-16 byte order mark is
// honoured; input without one is read as UTF-8.
func Parse(r io.Reader) ([]string, error) {
	dec := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var items []string
	for scanner.Scan() {
		if v, ok := ParseLine(scanner.Text()); ok {
			items = append(items, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Load parses the file at path.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	items, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return items, nil
}

// List is an ordered sequence of values with a traversal position.
type List struct {
	items     []string
	pos       int
	active    bool
	exhausted bool
}

// Replace installs a new sequence. Traversal stops and the position resets.
func (l *List) Replace(items []string) {
	l.items = append([]string(nil), items...)
	l.pos = 0
	l.active = false
	l.exhausted = false
}

// Start begins traversal at the first item.
func (l *List) Start() error {
	if len(l.items) == 0 {
		return ErrEmpty
	}
	l.pos = 0
	l.active = true
	l.exhausted = false
	return nil
}

// Stop ends traversal and keeps the position.
func (l *List) Stop() {
	l.active = false
}

// Advance moves to the next item. At the last item the list is marked
// exhausted and traversal stops; the position is left on the last item.
func (l *List) Advance() bool {
	if !l.active {
		return false
	}
	if l.pos < len(l.items)-1 {
		l.pos++
		return true
	}
	l.exhausted = true
	l.active = false
	return false
}

// Seek moves the position by delta, clamped to the list bounds. It reports
// whether the position changed.
func (l *List) Seek(delta int) bool {
	if len(l.items) == 0 {
		return false
	}
	pos := l.pos + delta
	if pos < 0 {
		pos = 0
	}
	if pos > len(l.items)-1 {
		pos = len(l.items) - 1
	}
	if pos == l.pos {
		return false
	}
	l.pos = pos
	l.exhausted = false
	return true
}

// Current returns the item at the position while traversal is active.
func (l *List) Current() (string, bool) {
	if !l.active || len(l.items) == 0 {
		return "", false
	}
	return l.items[l.pos], true
}

// At returns the item at the position regardless of traversal state.
func (l *List) At() string {
	if len(l.items) == 0 {
		return ""
	}
	return l.items[l.pos]
}

func (l *List) Len() int        { return len(l.items) }
func (l *List) Position() int   { return l.pos }
func (l *List) Active() bool    { return l.active }
func (l *List) Exhausted() bool { return l.exhausted }
