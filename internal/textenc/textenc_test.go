package textenc

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		encoding string
		raw      []byte
		text     string
	}{
		{"ascii", []byte("abc"), "abc"},
		{"", []byte("abc"), "abc"},
		{"latin1", []byte{0x63, 0x61, 0x66, 0xE9}, "café"},
		{"binary", []byte{0x00, 0xFF}, "\x00ÿ"},
		{"utf8", []byte("héllo"), "héllo"},
		{"UTF-8", []byte("x"), "x"},
		{"utf16le", []byte{'h', 0, 'i', 0}, "hi"},
		{"hex", []byte{0xDE, 0xAD}, "dead"},
		{"base64", []byte("hi"), "aGk="},
	}
	for _, test := range tests {
		text, err := Decode(test.encoding, test.raw)
		if err != nil || text != test.text {
			t.Errorf("Decode(%q, %x) = %q, %v; want %q", test.encoding, test.raw, text, err, test.text)
			continue
		}
		raw, err := Encode(test.encoding, text)
		if err != nil || !bytes.Equal(raw, test.raw) {
			t.Errorf("Encode(%q, %q) = %x, %v; want %x", test.encoding, text, raw, err, test.raw)
		}
	}
}

func TestUnsupported(t *testing.T) {
	t.Parallel()

	if Supported("ebcdic") {
		t.Fatal("ebcdic should not be supported")
	}
	if !Supported("") || !Supported("ASCII") {
		t.Fatal("default and case-insensitive names should be supported")
	}
	if _, err := Decode("ebcdic", nil); err == nil {
		t.Fatal("Decode with unknown encoding should fail")
	}
	if _, err := Encode("latin1", "日本"); err == nil {
		t.Fatal("Encode of runes outside latin1 should fail")
	}
}
