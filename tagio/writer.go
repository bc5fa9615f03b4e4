package tagio

import (
	"errors"
	"log"
)

// Writer turns a value into a single text record and writes it to a tag.
type Writer struct {
	Language string
}

// NewWriter returns a Writer using lang, or DefaultLanguage when empty.
func NewWriter(lang string) *Writer {
	if lang == "" {
		lang = DefaultLanguage
	}
	return &Writer{Language: lang}
}

// Write writes text to tag. Tags with an NDEF container are written in
// place; blank tags are formatted with the message. The connection is
// closed on every path. Failures are returned as *Error.
func (w *Writer) Write(tag Tag, text string) error {
	msg := TextMessage(text, w.Language).Bytes()

	if ndef := tag.Ndef(); ndef != nil {
		return writeNdef(tag.UID(), ndef, msg)
	}
	if f := tag.NdefFormatable(); f != nil {
		return formatNdef(tag.UID(), f, msg)
	}
	return newUnsupportedError(tag.UID())
}

func writeNdef(uid string, ndef Ndef, msg []byte) error {
	defer closeTag(uid, ndef.Close)

	if err := ndef.Connect(); err != nil {
		return newWriteError("connect", uid, err)
	}
	if limit := ndef.MaxSize(); limit > 0 && len(msg) > limit {
		return newCapacityError(uid, len(msg), limit)
	}
	if err := ndef.WriteMessage(msg); err != nil {
		return classify("write", uid, err)
	}
	return nil
}

func formatNdef(uid string, f NdefFormatable, msg []byte) error {
	defer closeTag(uid, f.Close)

	if err := f.Connect(); err != nil {
		return newWriteError("connect", uid, err)
	}
	if err := f.Format(msg); err != nil {
		return classify("format", uid, err)
	}
	return nil
}

// classify keeps capacity errors raised by the technology itself and folds
// everything else into a write failure.
func classify(op, uid string, err error) error {
	var te *Error
	if errors.As(err, &te) && te.Code == CodeCapacityExceeded {
		return te
	}
	return newWriteError(op, uid, err)
}

func closeTag(uid string, closeFn func() error) {
	if err := closeFn(); err != nil {
		log.Printf("Tag %s: close: %v", uid, err)
	}
}
