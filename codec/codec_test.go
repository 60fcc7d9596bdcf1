package codec

import (
	"encoding/binary"
	"testing"
)

// encodeLenEncInt is the reference encoder used only by the round-trip test.
func encodeLenEncInt(v uint64) []byte {
	switch {
	case v < 0xFB:
		return []byte{byte(v)}
	case v <= 0xFFFF:
		b := make([]byte, 3)
		b[0] = 0xFC
		binary.LittleEndian.PutUint16(b[1:], uint16(v))
		return b
	case v <= 0xFFFFFF:
		b := make([]byte, 4)
		b[0] = 0xFD
		b[1] = byte(v)
		b[2] = byte(v >> 8)
		b[3] = byte(v >> 16)
		return b
	default:
		b := make([]byte, 9)
		b[0] = 0xFE
		binary.LittleEndian.PutUint64(b[1:], v)
		return b
	}
}

func TestLenEncIntRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 250, 251, 252, 0xFB, 0xFFFF, 0x10000, 0xFFFFFF, 0x1000000, 1 << 40, ^uint64(0)}
	for _, v := range cases {
		enc := encodeLenEncInt(v)
		got, size := LenEncInt(enc, 0)
		if got != v || size != len(enc) {
			t.Errorf("round-trip failed for %d: got value=%d size=%d want size=%d", v, got, size, len(enc))
		}
	}
}

func TestLenEncIntInsufficientBytes(t *testing.T) {
	v, size := LenEncInt([]byte{0xFE, 0x01, 0x02}, 0)
	if v != 0 || size != 0 {
		t.Errorf("expected sentinel (0,0), got (%d,%d)", v, size)
	}
}

func TestLenEncStrNull(t *testing.T) {
	s, isNull, size := LenEncStr([]byte{0xFB}, 0)
	if !isNull || size != 1 || s != "" {
		t.Errorf("expected NULL sentinel, got s=%q isNull=%v size=%d", s, isNull, size)
	}
}

func TestLenEncStrBasic(t *testing.T) {
	data := []byte{0x04, 'H', 'e', 'l', 'l'}
	s, isNull, size := LenEncStr(data, 0)
	if isNull || s != "Hell" || size != 5 {
		t.Errorf("unexpected result: s=%q isNull=%v size=%d", s, isNull, size)
	}
}

func TestDecodeParamsNullBitmap(t *testing.T) {
	// S3: num_params=2, bitmap 0x01 (bit 0 set) -> params[0] is NULL.
	types := []byte{Long, Long}
	data := []byte{
		0x01,                   // null bitmap: bit 0 set
		0x00,                   // new-params-bound = 0
		0x05, 0x00, 0x00, 0x00, // param[1] = 5 (LONG), param[0] skipped (NULL)
	}
	got := DecodeParams(data, 0, types)
	if len(got) != 2 || got[0] != "NULL" || got[1] != "5" {
		t.Fatalf("unexpected params: %#v", got)
	}
}

func TestDecodeParamsRebindTypes(t *testing.T) {
	types := []byte{0, 0}
	data := []byte{
		0x00,                   // no nulls
		0x01,                   // new-params-bound = 1
		byte(Long), 0x00,       // type descriptor param 0: LONG, signed
		byte(Long), 0x00,       // type descriptor param 1: LONG, signed
		0x0A, 0x00, 0x00, 0x00, // param0 = 10
		0x14, 0x00, 0x00, 0x00, // param1 = 20
	}
	got := DecodeParams(data, 0, types)
	if got[0] != "10" || got[1] != "20" {
		t.Fatalf("unexpected params: %#v", got)
	}
	if types[0] != Long || types[1] != Long {
		t.Fatalf("expected rebound types, got %#v", types)
	}
}

func TestDecodeParamsExecuteScenario(t *testing.T) {
	// S2: one param of type LONG with value 10, sent with the new-params-bound
	// flag set so its type descriptor is read from the exec packet.
	types := []byte{Long}
	data := []byte{
		0x00,                   // null bitmap (1 param -> 1 byte)
		0x01,                   // new-params-bound
		byte(Long), 0x00,       // type descriptor
		0x0A, 0x00, 0x00, 0x00, // value 10
	}
	got := DecodeParams(data, 0, types)
	if len(got) != 1 || got[0] != "10" {
		t.Fatalf("unexpected params: %#v", got)
	}
}

func TestDecodeRowBitmapOffset(t *testing.T) {
	// One column, binary row: the 0x00 status byte has already been
	// consumed by the caller, so off=0 here points right at the bitmap.
	types := []byte{Long}
	data := []byte{
		0x00,                   // row null bitmap: (1+9)/8 = 1 byte (integer division)
		0x2A, 0x00, 0x00, 0x00, // value 42
	}
	got := DecodeRow(data, 0, types)
	if len(got) != 1 || got[0] != "42" {
		t.Fatalf("unexpected row: %#v", got)
	}
}

func TestDecodeValueOverrunYieldsErrorSentinel(t *testing.T) {
	types := []byte{LongLong}
	data := []byte{0x00, 0x00, 0x01, 0x02} // LONGLONG needs 8 bytes, only 2 available
	got := DecodeParams(data, 0, types)
	if got[0] != ErrorValue {
		t.Fatalf("expected error sentinel, got %q", got[0])
	}
}

func TestDecodeValueUnknownTypeFallsBackToHex(t *testing.T) {
	// An unrecognized type tag whose bytes don't parse as a lenenc string
	// (first byte 0xFF is out of lenenc-int range) must fall back to a hex
	// token of the next 4 bytes rather than erroring.
	types := []byte{0x99}
	data := []byte{0x00, 0x00, 0xFF, 0x01, 0x02, 0x03}
	got := DecodeParams(data, 0, types)
	if got[0] != "Hex:ff010203" {
		t.Fatalf("expected hex fallback, got %q", got[0])
	}
}

func TestDecodeParamsNullTypeTagDoesNotCorruptLaterParams(t *testing.T) {
	// A MYSQL_TYPE_NULL (0x06) type tag consumes zero bytes but is not an
	// overrun: the param after it must still decode normally rather than
	// being replaced with ErrorValue.
	types := []byte{Null, Long}
	data := []byte{
		0x00,                   // null bitmap: neither bit set (NULL-ness came via the type tag)
		0x00,                   // new-params-bound = 0
		0x0A, 0x00, 0x00, 0x00, // param[1] = 10, immediately after param[0]'s zero-byte NULL
	}
	got := DecodeParams(data, 0, types)
	if len(got) != 2 || got[0] != "NULL" || got[1] != "10" {
		t.Fatalf("unexpected params: %#v", got)
	}
}
