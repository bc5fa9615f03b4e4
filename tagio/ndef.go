package tagio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Record header flags.
const (
	flagMB = 0x80 // message begin
	flagME = 0x40 // message end
	flagCF = 0x20 // chunked
	flagSR = 0x10 // short record
	flagIL = 0x08 // ID length present

	tnfMask = 0x07
)

// TNFWellKnown is the type name format of NFC Forum RTD records.
const TNFWellKnown = 0x01

// DefaultLanguage is the language code written into text records when none
// is configured.
const DefaultLanguage = "ru"

// maxLanguageLen is the largest code the 6-bit status field can describe.
const maxLanguageLen = 0x3F

var rtdText = []byte("T")

// Record is a single NDEF record.
type Record struct {
	TNF     byte
	Type    []byte
	ID      []byte
	Payload []byte
}

// Message is an ordered list of records.
type Message []Record

// NewTextRecord builds a well-known text record. The payload is the status
// byte (language length, UTF-8 encoding), the language code as US-ASCII and
// the text as UTF-8.
func NewTextRecord(text, lang string) Record {
	code := asciiBytes(lang)
	if len(code) > maxLanguageLen {
		code = code[:maxLanguageLen]
	}

	// Invalid UTF-8 from a decoder is stored as U+FFFD so the record reads back
	text = strings.ToValidUTF8(text, string(utf8.RuneError))

	payload := make([]byte, 0, 1+len(code)+len(text))
	payload = append(payload, byte(len(code)))
	payload = append(payload, code...)
	payload = append(payload, text...)

	return Record{
		TNF:     TNFWellKnown,
		Type:    rtdText,
		Payload: payload,
	}
}

// TextMessage returns a message holding exactly one text record.
func TextMessage(text, lang string) Message {
	return Message{NewTextRecord(text, lang)}
}

// IsText reports whether r is a well-known text record.
func (r Record) IsText() bool {
	return r.TNF == TNFWellKnown && string(r.Type) == string(rtdText)
}

// Language returns the language code of a text record.
func (r Record) Language() (string, error) {
	if !r.IsText() {
		return "", errors.New("not a text record")
	}
	if len(r.Payload) == 0 {
		return "", errors.New("empty text payload")
	}
	n := int(r.Payload[0] & maxLanguageLen)
	if 1+n > len(r.Payload) {
		return "", fmt.Errorf("language length %d exceeds payload", n)
	}
	return string(r.Payload[1 : 1+n]), nil
}

// Text decodes the text of a text record. UTF-16 payloads are rejected.
func (r Record) Text() (string, error) {
	if !r.IsText() {
		return "", errors.New("not a text record")
	}
	if len(r.Payload) == 0 {
		return "", errors.New("empty text payload")
	}
	status := r.Payload[0]
	if status&0x80 != 0 {
		return "", errors.New("UTF-16 text records are not supported")
	}
	n := int(status & maxLanguageLen)
	if 1+n > len(r.Payload) {
		return "", fmt.Errorf("language length %d exceeds payload", n)
	}
	text := r.Payload[1+n:]
	if !utf8.Valid(text) {
		return "", errors.New("text is not valid UTF-8")
	}
	return string(text), nil
}

// Bytes serializes the message. Payloads up to 255 bytes use the short
// record form.
func (m Message) Bytes() []byte {
	var out []byte
	for i, rec := range m {
		header := rec.TNF & tnfMask
		if i == 0 {
			header |= flagMB
		}
		if i == len(m)-1 {
			header |= flagME
		}
		short := len(rec.Payload) <= 0xFF
		if short {
			header |= flagSR
		}
		if len(rec.ID) > 0 {
			header |= flagIL
		}

		out = append(out, header, byte(len(rec.Type)))
		if short {
			out = append(out, byte(len(rec.Payload)))
		} else {
			out = binary.BigEndian.AppendUint32(out, uint32(len(rec.Payload)))
		}
		if len(rec.ID) > 0 {
			out = append(out, byte(len(rec.ID)))
		}
		out = append(out, rec.Type...)
		out = append(out, rec.ID...)
		out = append(out, rec.Payload...)
	}
	return out
}

// ParseMessage decodes a serialized NDEF message. Chunked records are not
// supported.
func ParseMessage(data []byte) (Message, error) {
	var msg Message
	offset := 0
	for offset < len(data) {
		header := data[offset]
		offset++
		if header&flagCF != 0 {
			return nil, errors.New("chunked records are not supported")
		}
		if offset >= len(data) {
			return nil, errors.New("truncated record header")
		}
		typeLen := int(data[offset])
		offset++

		var payloadLen int
		if header&flagSR != 0 {
			if offset >= len(data) {
				return nil, errors.New("truncated payload length")
			}
			payloadLen = int(data[offset])
			offset++
		} else {
			if offset+4 > len(data) {
				return nil, errors.New("truncated payload length")
			}
			payloadLen = int(binary.BigEndian.Uint32(data[offset:]))
			offset += 4
		}

		idLen := 0
		if header&flagIL != 0 {
			if offset >= len(data) {
				return nil, errors.New("truncated id length")
			}
			idLen = int(data[offset])
			offset++
		}

		if payloadLen < 0 || offset+typeLen+idLen+payloadLen > len(data) {
			return nil, fmt.Errorf("record at offset %d overruns message", offset)
		}

		rec := Record{TNF: header & tnfMask}
		rec.Type = append([]byte(nil), data[offset:offset+typeLen]...)
		offset += typeLen
		if idLen > 0 {
			rec.ID = append([]byte(nil), data[offset:offset+idLen]...)
			offset += idLen
		}
		rec.Payload = append([]byte(nil), data[offset:offset+payloadLen]...)
		offset += payloadLen

		msg = append(msg, rec)
		if header&flagME != 0 {
			break
		}
	}
	if len(msg) == 0 {
		return nil, errors.New("empty NDEF message")
	}
	return msg, nil
}

// FirstText returns the text of the first text record in msg.
func FirstText(msg Message) (string, error) {
	for _, rec := range msg {
		if rec.IsText() {
			return rec.Text()
		}
	}
	return "", errors.New("no text record")
}

// asciiBytes encodes s as US-ASCII, substituting '?' for anything outside
// the 7-bit range.
func asciiBytes(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r < 0x80 {
			out = append(out, byte(r))
		} else {
			out = append(out, '?')
		}
	}
	return out
}
