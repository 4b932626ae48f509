package compress

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

var largeString = strings.Repeat("abc", 4096)

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	for _, name := range Names() {
		packed, err := Compress(name, []byte(largeString))
		if err != nil {
			t.Fatalf("%s: Compress error: %v", name, err)
		}
		if len(packed) >= len(largeString) {
			t.Fatalf("%s: compressed %d bytes into %d", name, len(largeString), len(packed))
		}
		for _, via := range []string{name, "auto"} {
			raw, err := Decompress(via, packed)
			if err != nil {
				t.Fatalf("%s via %s: Decompress error: %v", name, via, err)
			}
			if string(raw) != largeString {
				t.Fatalf("%s via %s: data mismatch", name, via)
			}
		}
	}
}

func TestNames(t *testing.T) {
	t.Parallel()
	if got := strings.Join(Names(), ","); got != "gzip,lz4,zstd" {
		t.Fatalf("Names: %v", got)
	}
}

func TestDetect(t *testing.T) {
	t.Parallel()
	for _, c := range []Codec{Gzip, Zstd, LZ4} {
		packed, err := Compress(c.Name(), []byte("x"))
		if err != nil {
			t.Fatal(err)
		}
		if got := Detect(packed); got != c {
			t.Fatalf("Detect(%s): %v", c.Name(), got)
		}
	}
	if c := Detect([]byte{0x45, 0x00}); c != nil {
		t.Fatalf("Detect(ipv4): %v", c.Name())
	}
	if c := Detect(nil); c != nil {
		t.Fatalf("Detect(nil): %v", c.Name())
	}
}

func TestPassThrough(t *testing.T) {
	t.Parallel()
	data := []byte{0x45, 0x00, 0x01}
	for _, name := range []string{"", "none", "auto"} {
		raw, err := Decompress(name, data)
		if err != nil {
			t.Fatalf("%q: %v", name, err)
		}
		if !bytes.Equal(raw, data) {
			t.Fatalf("%q: %x", name, raw)
		}
	}
	out, err := Compress("none", data)
	if err != nil || !bytes.Equal(out, data) {
		t.Fatalf("Compress none: %x, %v", out, err)
	}
}

func TestErrors(t *testing.T) {
	t.Parallel()
	if _, err := Decompress("brotli", nil); err == nil {
		t.Fatal("unknown codec accepted")
	}
	if _, err := Compress("auto", nil); err == nil {
		t.Fatal("Compress auto accepted")
	}
	if _, err := Decompress("gzip", []byte("not gzip")); err == nil {
		t.Fatal("corrupt gzip accepted")
	}
	packed, err := Compress("zstd", []byte(largeString))
	if err != nil {
		t.Fatal(err)
	}
	if _, err = Decompress("zstd", packed[:len(packed)/2]); err == nil {
		t.Fatal("truncated zstd accepted")
	}
}

func TestRegister(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("duplicate registration did not panic")
		}
	}()
	Register(Gzip)
}

func TestRegisterReserved(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("reserved name did not panic")
		}
	}()
	Register(reserved{})
}

type reserved struct{}

func (reserved) Name() string  { return "auto" }
func (reserved) Magic() []byte { return nil }
func (reserved) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}
func (reserved) NewWriter(io.Writer) (io.WriteCloser, error) {
	return nil, errors.New("not implemented")
}
