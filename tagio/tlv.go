package tagio

import "errors"

// TLV block types used in Type 2 tag memory.
const (
	tlvNull       = 0x00
	tlvLockCtrl   = 0x01
	tlvMemCtrl    = 0x02
	tlvNDEF       = 0x03
	tlvTerminator = 0xFE
)

// EncodeTLV wraps an NDEF message in an NDEF TLV followed by a terminator.
// Lengths of 255 and above use the three byte form.
func EncodeTLV(msg []byte) []byte {
	out := make([]byte, 0, len(msg)+5)
	out = append(out, tlvNDEF)
	if len(msg) < 0xFF {
		out = append(out, byte(len(msg)))
	} else {
		out = append(out, 0xFF, byte(len(msg)>>8), byte(len(msg)))
	}
	out = append(out, msg...)
	return append(out, tlvTerminator)
}

// tlvOverhead is the number of bytes EncodeTLV adds to a message of n bytes.
func tlvOverhead(n int) int {
	if n < 0xFF {
		return 3
	}
	return 5
}

// maxMessageSize returns the largest message that fits a data area of the
// given size once TLV framing is added.
func maxMessageSize(area int) int {
	if area-5 >= 0xFF {
		return area - 5
	}
	n := area - 3
	if n > 0xFE {
		n = 0xFE
	}
	if n < 0 {
		return 0
	}
	return n
}

// FindNDEF walks the TLV blocks of a data area and returns the value of the
// first NDEF TLV. Lock and memory control blocks are skipped.
func FindNDEF(area []byte) ([]byte, error) {
	offset := 0
	for offset < len(area) {
		t := area[offset]
		offset++
		switch t {
		case tlvNull:
			continue
		case tlvTerminator:
			return nil, errors.New("no NDEF TLV before terminator")
		}

		if offset >= len(area) {
			return nil, errors.New("truncated TLV length")
		}
		length := int(area[offset])
		offset++
		if length == 0xFF {
			if offset+2 > len(area) {
				return nil, errors.New("truncated TLV length")
			}
			length = int(area[offset])<<8 | int(area[offset+1])
			offset += 2
		}
		if offset+length > len(area) {
			return nil, errors.New("TLV value overruns data area")
		}
		if t == tlvNDEF {
			return area[offset : offset+length], nil
		}
		offset += length
	}
	return nil, errors.New("no NDEF TLV")
}
