package tagio

import (
	"bytes"
	"strings"
	"testing"
)

func TestTextRecordLayout(t *testing.T) {
	rec := NewTextRecord("Hi", "ru")
	want := []byte{0x02, 'r', 'u', 'H', 'i'}
	if !bytes.Equal(rec.Payload, want) {
		t.Fatalf("payload = % x, want % x", rec.Payload, want)
	}

	got := TextMessage("Hi", "ru").Bytes()
	wantMsg := []byte{0xD1, 0x01, 0x05, 'T', 0x02, 'r', 'u', 'H', 'i'}
	if !bytes.Equal(got, wantMsg) {
		t.Fatalf("message = % x, want % x", got, wantMsg)
	}
}

func TestTextRoundTrip(t *testing.T) {
	tests := []struct {
		text string
		lang string
	}{
		{"4607001771234", "ru"},
		{"Привет, мир", "ru"},
		{"Hello", "en"},
		{"", "ru"},
		{"a;b,c", "de"},
		{"こんにちは", "ja"},
		{strings.Repeat("x", 300), "ru"},
	}

	for _, tt := range tests {
		raw := TextMessage(tt.text, tt.lang).Bytes()
		msg, err := ParseMessage(raw)
		if err != nil {
			t.Errorf("parse %q: %v", tt.text, err)
			continue
		}
		if len(msg) != 1 {
			t.Errorf("parse %q: got %d records", tt.text, len(msg))
			continue
		}
		got, err := msg[0].Text()
		if err != nil {
			t.Errorf("text %q: %v", tt.text, err)
			continue
		}
		if got != tt.text {
			t.Errorf("round trip: got %q, want %q", got, tt.text)
		}
		lang, err := msg[0].Language()
		if err != nil || lang != tt.lang {
			t.Errorf("language: got %q (%v), want %q", lang, err, tt.lang)
		}
	}
}

func TestLongRecordHeader(t *testing.T) {
	raw := TextMessage(strings.Repeat("y", 300), "ru").Bytes()
	if raw[0]&flagSR != 0 {
		t.Fatalf("SR flag set on %d byte payload", 303)
	}
	if raw[0] != 0xC1 {
		t.Fatalf("header = %#x, want 0xc1", raw[0])
	}
	// type length, then 4-byte payload length
	if raw[1] != 1 || raw[2] != 0 || raw[3] != 0 || raw[4] != 0x01 || raw[5] != 0x2F {
		t.Fatalf("unexpected length fields % x", raw[1:6])
	}
}

func TestLanguageIsASCII(t *testing.T) {
	rec := NewTextRecord("x", "рy")
	if rec.Payload[0] != 2 {
		t.Fatalf("status byte = %d, want 2", rec.Payload[0])
	}
	if string(rec.Payload[1:3]) != "?y" {
		t.Fatalf("language bytes = %q", rec.Payload[1:3])
	}
}

func TestParseMessageErrors(t *testing.T) {
	tests := map[string][]byte{
		"empty":            nil,
		"truncated header": {0xD1},
		"overrun":          {0xD1, 0x01, 0x10, 'T', 0x02},
		"chunked":          {0xB1, 0x01, 0x01, 'T', 0x00},
	}
	for name, data := range tests {
		if _, err := ParseMessage(data); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestTextRejectsOtherRecords(t *testing.T) {
	rec := Record{TNF: TNFWellKnown, Type: []byte("U"), Payload: []byte{0x04, 'a'}}
	if _, err := rec.Text(); err == nil {
		t.Fatal("expected error for URI record")
	}
	if _, err := FirstText(Message{rec}); err == nil {
		t.Fatal("expected error when no text record present")
	}
}

func TestTextRecordRepairsInvalidUTF8(t *testing.T) {
	raw := TextMessage("A\xffB\xc3", "ru").Bytes()
	msg, err := ParseMessage(raw)
	if err != nil {
		t.Fatal(err)
	}
	got, err := msg[0].Text()
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if got != "A�B�" {
		t.Fatalf("text = %q", got)
	}
}
