package schemafile

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkch/bitwire"
)

const ipv4YAML = `
name: ipv4
fields:
  - {name: version, type: bits, width: 4, assert: 4}
  - {name: headerLength, type: bits, width: 4}
  - {name: tos, type: uint8}
  - {name: packetLength, type: uint16}
  - {name: id, type: uint16}
  - {name: flags, type: bits, width: 3}
  - {name: fragOffset, type: bits, width: 13}
  - {name: ttl, type: uint8}
  - {name: protocol, type: uint8}
  - {name: checksum, type: uint16}
  - {name: src, type: array, of: uint8, count: 4}
  - {name: dst, type: array, of: uint8, count: 4}
  - name: options
    type: string
    length: $headerLength * 4 - 20
    encoding: hex
`

const messageJSONC = `
// Framed messages.
{
  "name": "msg",
  "endian": "little",
  "structs": {
    "ping": {"fields": [{"name": "id", "type": "uint32"}]},
    "text": {"fields": [
      {"name": "len", "type": "uint8"},
      {"name": "body", "type": "string", "length": "$len", "encoding": "utf8"},
    ]},
    /* raw words are sent in network order */
    "raw": {"endian": "big", "fields": [{"name": "word", "type": "uint16"}]},
  },
  "fields": [
    {"name": "magic", "type": "string", "length": 2, "assert": "MG"},
    {"name": "kind", "type": "uint8"},
    {"name": "body", "type": "match", "match": {
      "on": "kind",
      "cases": {"1": "ping", "0x02": "text"},
      "default": "raw",
    }},
  ],
}
`

func compile(t *testing.T, src string) *bitwire.Schema {
	t.Helper()
	doc, err := Parse([]byte(src))
	require.NoError(t, err)
	s, err := doc.Compile(nil)
	require.NoError(t, err)
	return s
}

func roundTrip(t *testing.T, s *bitwire.Schema, in string) bitwire.Tree {
	t.Helper()
	buf, err := hex.DecodeString(in)
	require.NoError(t, err)
	tree, err := s.Decode(buf)
	require.NoError(t, err)
	out, err := s.Encode(tree)
	require.NoError(t, err)
	assert.Equal(t, in, hex.EncodeToString(out))
	return tree
}

func TestYAML(t *testing.T) {
	t.Parallel()

	s := compile(t, ipv4YAML)
	tree := roundTrip(t, s, "450002c5939901002c06ef98adc24f6c850186d1")
	assert.Equal(t, uint64(5), tree["headerLength"])
	assert.Equal(t, uint64(256), tree["fragOffset"])
	assert.Equal(t, []any{uint64(173), uint64(194), uint64(79), uint64(108)}, tree["src"])
	assert.Equal(t, "", tree["options"])

	tree = roundTrip(t, s, "460002c5939901002c06ef98adc24f6c850186d1"+"01020304")
	assert.Equal(t, "01020304", tree["options"])

	_, err := s.Decode([]byte{0x55, 0, 0, 20})
	assert.ErrorIs(t, err, bitwire.ErrAssertion)
}

func TestJSONCMatch(t *testing.T) {
	t.Parallel()

	s := compile(t, messageJSONC)
	assert.Equal(t, bitwire.LittleEndian, s.Order())

	tree := roundTrip(t, s, hex.EncodeToString([]byte("MG"))+"01"+"04030201")
	assert.Equal(t, bitwire.Tree{"id": uint64(0x01020304)}, tree["body"])

	tree = roundTrip(t, s, hex.EncodeToString([]byte("MG"))+"02"+"05"+hex.EncodeToString([]byte("hello")))
	assert.Equal(t, bitwire.Tree{"len": uint64(5), "body": "hello"}, tree["body"])

	tree = roundTrip(t, s, hex.EncodeToString([]byte("MG"))+"09"+"1234")
	assert.Equal(t, bitwire.Tree{"word": uint64(0x1234)}, tree["body"])

	_, err := s.Decode([]byte("XX\x01\x00\x00\x00\x00"))
	assert.ErrorIs(t, err, bitwire.ErrAssertion)
}

func TestFlattenSkipAndElements(t *testing.T) {
	t.Parallel()

	s := compile(t, `
structs:
  header:
    fields:
      - {name: count, type: uint8}
  entry:
    fields:
      - {name: tag, type: uint8}
      - {type: skip, length: 1, fill: 0xff}
fields:
  - {type: nest, struct: header}
  - {name: names, type: array, count: $count, element: {type: string, zeroTerminated: true}}
  - {name: entries, type: array, of: entry, until: eof}
`)
	tree := roundTrip(t, s, "02"+hex.EncodeToString([]byte("ab\x00c\x00"))+"07ff"+"08ff")
	assert.Equal(t, bitwire.Tree{
		"count": uint64(2),
		"names": []any{"ab", "c"},
		"entries": []any{
			bitwire.Tree{"tag": uint64(7)},
			bitwire.Tree{"tag": uint64(8)},
		},
	}, tree)
}

func TestCompileStruct(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(messageJSONC))
	require.NoError(t, err)
	s, err := doc.CompileStruct("text", nil)
	require.NoError(t, err)
	tree, err := s.Decode([]byte("\x03abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", tree["body"])

	_, err = doc.CompileStruct("nope", nil)
	assert.ErrorContains(t, err, `struct "nope" is not defined`)
}

func TestCircular(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(`
structs:
  a:
    fields:
      - {name: b, type: nest, struct: b}
  b:
    fields:
      - {name: x, type: uint8}
      - {name: more, type: match, match: {on: x, default: a}}
fields:
  - {name: root, type: nest, struct: a}
`))
	require.NoError(t, err)
	_, err = doc.Compile(nil)
	require.ErrorIs(t, err, ErrCircular)
	assert.ErrorContains(t, err, "a -> b -> a")
}

func TestCompileErrors(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name, src, want string
		schema          bool
	}{
		{"no type", `fields: [{name: a}]`, "type is not defined", false},
		{"unknown type", `fields: [{name: a, type: uint24}]`, "unknown primitive type", true},
		{"bad width", `fields: [{name: a, type: bits, width: 40}]`, "", true},
		{"bad endian", `fields: [{name: a, type: uint16, endian: middle}]`, "invalid byte order", true},
		{"bad expression", `fields: [{name: a, type: string, length: "$n +"}]`, "unexpected end", false},
		{"string without length", `fields: [{name: a, type: string}]`, "", true},
		{"array without count", `fields: [{name: a, type: array, of: uint8}]`, "array needs count or until", false},
		{"of and element", `fields: [{name: a, type: array, of: uint8, element: {type: uint8}, count: 1}]`, "mutually exclusive", false},
		{"struct and match", `fields: [{name: a, type: nest, struct: s, match: {on: x}}]`, "exactly one of", false},
		{"bad skip unit", `fields: [{type: skip, length: 1, unit: words}]`, "unknown skip unit", false},
		{"missing struct", `fields: [{name: a, type: nest, struct: s}]`, `struct "s" is not defined`, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := Parse([]byte(tc.src))
			require.NoError(t, err)
			_, err = doc.Compile(nil)
			require.Error(t, err)
			if tc.want != "" {
				assert.ErrorContains(t, err, tc.want)
			}
			if tc.schema {
				assert.ErrorIs(t, err, bitwire.ErrSchema)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`fields: [{name: a, type: uint8, lenght: 4}]`))
	assert.Error(t, err)
	_, err = Parse([]byte(`{"fields": [{"name": "a", "type": "uint8", "lenght": 4}]}`))
	assert.Error(t, err)
	_, err = Parse([]byte(`{"fields": [{"name": "a", "type": "string", "length": true}]}`))
	assert.Error(t, err)
}

func TestReadFileAndFind(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "ping.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"fields": [{"name": "id", "type": "uint16"},]}`), 0o644))

	found, err := Find("ping", "/nonexistent"+string(filepath.ListSeparator)+dir)
	require.NoError(t, err)
	assert.Equal(t, path, found)

	doc, err := ReadFile(found)
	require.NoError(t, err)
	assert.Equal(t, "ping", doc.Name)
	s, err := doc.Compile(nil)
	require.NoError(t, err)
	tree, err := s.Decode([]byte{1, 2})
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102), tree["id"])

	_, err = Find("pong", dir)
	assert.Error(t, err)
	found, err = Find(path, dir)
	require.NoError(t, err)
	assert.Equal(t, path, found)

	_, err = ReadFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExpr(t *testing.T) {
	t.Parallel()

	l, err := Expr("8").Length()
	require.NoError(t, err)
	n, ok := l.Literal()
	assert.True(t, ok)
	assert.Equal(t, 8, n)

	l, err = Expr(" $count ").Length()
	require.NoError(t, err)
	assert.Equal(t, "$count", l.String())

	vars := bitwire.Tree{"a": uint64(3), "b": int64(4), "zero": uint64(0)}
	for src, want := range map[string]int64{
		"($a + 2) * $b / 2": 10,
		"10 - $a - 2":       5,
		"2 + 3 * 4":         14,
		"0x10":              16,
		"(((1)))":           1,
	} {
		node, err := parseExpr(src)
		require.NoError(t, err, src)
		got, err := node.eval(vars)
		require.NoError(t, err, src)
		assert.Equal(t, want, got, src)
	}

	for _, src := range []string{"", "$", "(1", "1 +", "2 $x", "a", "-1", "1 ) "} {
		_, err := parseExpr(src)
		assert.Error(t, err, src)
	}

	node, err := parseExpr("$a / $zero")
	require.NoError(t, err)
	_, err = node.eval(vars)
	assert.ErrorIs(t, err, bitwire.ErrRange)

	node, err = parseExpr("$missing + 1")
	require.NoError(t, err)
	_, err = node.eval(vars)
	assert.ErrorIs(t, err, bitwire.ErrMissingValue)
}
