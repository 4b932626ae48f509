// Package textenc converts between string field bytes and Go strings for the
// encodings a schema may name.
package textenc

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Default is the encoding used when a string field names none.
const Default = "ascii"

type codec struct {
	decode func([]byte) (string, error)
	encode func(string) ([]byte, error)
}

func transcoder(e encoding.Encoding) codec {
	return codec{
		decode: func(b []byte) (string, error) {
			out, err := e.NewDecoder().Bytes(b)
			return string(out), err
		},
		encode: func(s string) ([]byte, error) {
			return e.NewEncoder().Bytes([]byte(s))
		},
	}
}

var (
	// ascii and binary read one byte per rune, like latin1.
	latin1 = transcoder(charmap.ISO8859_1)
	utf8   = transcoder(unicode.UTF8)
	utf16  = transcoder(unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM))
	hexc   = codec{
		decode: func(b []byte) (string, error) { return hex.EncodeToString(b), nil },
		encode: func(s string) ([]byte, error) { return hex.DecodeString(s) },
	}
	base64c = codec{
		decode: func(b []byte) (string, error) { return base64.StdEncoding.EncodeToString(b), nil },
		encode: func(s string) ([]byte, error) { return base64.StdEncoding.DecodeString(s) },
	}
)

var codecs = map[string]codec{
	"ascii":    latin1,
	"latin1":   latin1,
	"binary":   latin1,
	"utf8":     utf8,
	"utf-8":    utf8,
	"utf16le":  utf16,
	"utf-16le": utf16,
	"ucs2":     utf16,
	"ucs-2":    utf16,
	"hex":      hexc,
	"base64":   base64c,
}

func lookup(name string) (codec, error) {
	if name == "" {
		name = Default
	}
	c, ok := codecs[strings.ToLower(name)]
	if !ok {
		return codec{}, fmt.Errorf("unsupported text encoding %q", name)
	}
	return c, nil
}

// Supported reports whether name is a known encoding. The empty name means
// Default.
func Supported(name string) bool {
	_, err := lookup(name)
	return err == nil
}

// Decode converts b from the named encoding.
func Decode(name string, b []byte) (string, error) {
	c, err := lookup(name)
	if err != nil {
		return "", err
	}
	return c.decode(b)
}

// Encode converts s to the named encoding.
func Encode(name string, s string) ([]byte, error) {
	c, err := lookup(name)
	if err != nil {
		return nil, err
	}
	return c.encode(s)
}
