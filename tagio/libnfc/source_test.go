package libnfc

import (
	"reflect"
	"testing"

	"tagscribe/tagio"
)

func TestPresence(t *testing.T) {
	var p presence
	steps := []struct {
		uids []string
		want []int
	}{
		{[]string{"A"}, []int{0}},
		{[]string{"A"}, nil},
		{[]string{"A", "B"}, []int{1}},
		{nil, nil},
		{[]string{"B", "B"}, []int{0}},
	}
	for i, s := range steps {
		if got := p.update(s.uids); !reflect.DeepEqual(got, s.want) {
			t.Fatalf("step %d: update(%q) = %v, want %v", i, s.uids, got, s.want)
		}
	}
}

func TestClassifyDetectsNTAG(t *testing.T) {
	mem := tagio.NewMemoryTag(tagio.NTAG213, []byte{0x04, 1, 2, 3, 4, 5, 6})
	tag := classify("04010203040506", false, mem)
	if tag.Type() != tagio.NTAG213.Name {
		t.Fatalf("type = %s", tag.Type())
	}
	if tag.NdefFormatable() == nil {
		t.Fatal("blank NTAG213 should be formatable")
	}
	if mem.Connected() {
		t.Fatal("transport left connected")
	}
}

func TestClassifyUltralightC(t *testing.T) {
	mem := tagio.NewFormattedMemoryTag(tagio.UltralightC, []byte{0x04, 9, 9, 9, 9, 9, 9})
	tag := classify("04090909090909", true, mem)
	if tag.Type() != tagio.UltralightC.Name || tag.Ndef() == nil {
		t.Fatalf("tag = %s, ndef %v", tag.Type(), tag.Ndef() != nil)
	}
}

func TestClassifyConnectFailure(t *testing.T) {
	mem := tagio.NewMemoryTag(tagio.Ultralight, []byte{0x04, 0, 0, 0, 0, 0, 1})
	mem.FailConnect = true
	tag := classify("04000000000001", false, mem)
	if tag.Ndef() != nil || tag.NdefFormatable() != nil {
		t.Fatal("tag that cannot be connected should be unsupported")
	}
}
