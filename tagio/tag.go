package tagio

// Tag is a discovered tag. At most one of Ndef and NdefFormatable is
// non-nil; a tag offering neither cannot be written.
type Tag interface {
	UID() string
	Type() string
	Ndef() Ndef
	NdefFormatable() NdefFormatable
}

// Ndef is the technology of a tag that already carries an NDEF capability
// container.
type Ndef interface {
	Connect() error
	// MaxSize is the largest NDEF message the tag accepts, in bytes.
	// Zero means unknown.
	MaxSize() int
	WriteMessage(msg []byte) error
	Close() error
}

// NdefFormatable is the technology of a blank tag that can be formatted for
// NDEF. Format writes the initial message in the same step.
type NdefFormatable interface {
	Connect() error
	Format(msg []byte) error
	Close() error
}

// Source delivers discovered tags while enabled. The callback may be invoked
// from any goroutine; the tag stays usable until the callback returns.
type Source interface {
	Enable(cb func(Tag)) error
	Disable() error
	Close() error
}

type unsupportedTag struct {
	uid      string
	typeName string
}

// Unsupported returns a tag that offers no NDEF technology.
func Unsupported(uid, typeName string) Tag {
	return &unsupportedTag{uid: uid, typeName: typeName}
}

func (t *unsupportedTag) UID() string                    { return t.uid }
func (t *unsupportedTag) Type() string                   { return t.typeName }
func (t *unsupportedTag) Ndef() Ndef                     { return nil }
func (t *unsupportedTag) NdefFormatable() NdefFormatable { return nil }
