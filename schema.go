package bitwire

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
)

// ByteOrder selects how multi-byte primitives and bit groups are laid out.
type ByteOrder int

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

func (o ByteOrder) String() string {
	if o == LittleEndian {
		return "little"
	}
	return "big"
}

func (o ByteOrder) binary() binary.ByteOrder {
	if o == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// ParseByteOrder accepts "big", "be", "little" and "le", in any case.
func ParseByteOrder(s string) (ByteOrder, error) {
	switch strings.ToLower(s) {
	case "big", "be":
		return BigEndian, nil
	case "little", "le":
		return LittleEndian, nil
	}
	return BigEndian, schemaErrorf("invalid byte order %q", s)
}

// Kind is a numeric primitive type.
type Kind int

const (
	Uint8 Kind = iota + 1
	Uint16
	Uint32
	Uint64
	Int8
	Int16
	Int32
	Int64
	Float32
	Float64
)

var kinds = [...]struct {
	name   string
	width  int
	signed bool
	float  bool
}{
	Uint8:   {"uint8", 1, false, false},
	Uint16:  {"uint16", 2, false, false},
	Uint32:  {"uint32", 4, false, false},
	Uint64:  {"uint64", 8, false, false},
	Int8:    {"int8", 1, true, false},
	Int16:   {"int16", 2, true, false},
	Int32:   {"int32", 4, true, false},
	Int64:   {"int64", 8, true, false},
	Float32: {"float32", 4, true, true},
	Float64: {"float64", 8, true, true},
}

func (k Kind) valid() bool {
	return k >= Uint8 && k <= Float64
}

// Width returns the size of k in bytes.
func (k Kind) Width() int {
	if !k.valid() {
		return 0
	}
	return kinds[k].width
}

func (k Kind) Signed() bool { return k.valid() && kinds[k].signed }
func (k Kind) Float() bool  { return k.valid() && kinds[k].float }

func (k Kind) String() string {
	if !k.valid() {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kinds[k].name
}

// ParseKind returns the Kind named by name. "float" and "double" are
// accepted as aliases of float32 and float64.
func ParseKind(name string) (Kind, error) {
	switch name = strings.ToLower(name); name {
	case "float":
		return Float32, nil
	case "double":
		return Float64, nil
	}
	for k := Uint8; k <= Float64; k++ {
		if kinds[k].name == name {
			return k, nil
		}
	}
	return 0, schemaErrorf("unknown primitive type %q", name)
}

// Field is one entry of a schema chain. The concrete types are *Primitive,
// *BitGroup, *StringField, *ArrayField, *NestField and *SkipField.
type Field interface {
	// FieldName is the name the field is stored under. It is empty for
	// flattened nests and skips.
	FieldName() string
	field()
}

// Primitive is a fixed width number.
type Primitive struct {
	Name string
	Kind Kind
	// Order overrides the schema byte order when OwnOrder is set.
	Order    ByteOrder
	OwnOrder bool
	Hooks
}

// BitEntry is one named run of bits inside a BitGroup.
type BitEntry struct {
	Name  string
	Width int
	Hooks
}

// BitGroup is a run of consecutive bit fields packed together.
type BitGroup struct {
	Entries []BitEntry
}

// Width returns the total number of bits in the group.
func (g *BitGroup) Width() int {
	var n int
	for _, e := range g.Entries {
		n += e.Width
	}
	return n
}

// StringMode selects how the extent of a string field is found.
type StringMode int

const (
	FixedLength StringMode = iota + 1
	ZeroTerminated
	FixedOrZeroTerminated
	Greedy
)

func (m StringMode) String() string {
	switch m {
	case FixedLength:
		return "fixed"
	case ZeroTerminated:
		return "zero-terminated"
	case FixedOrZeroTerminated:
		return "fixed-or-zero-terminated"
	case Greedy:
		return "greedy"
	}
	return fmt.Sprintf("StringMode(%d)", int(m))
}

// StringField is a text field.
type StringField struct {
	Name      string
	Mode      StringMode
	Length    Length
	Encoding  string
	StripNull bool
	Hooks
}

// ArrayField is a sequence of elements of the same type.
type ArrayField struct {
	Name  string
	Elem  Element
	Count ArrayCount
}

// NestField decodes a sub-schema. An empty Name flattens the sub-tree into
// the parent.
type NestField struct {
	Name   string
	Target Target
}

// SkipUnit is the unit of a SkipField length.
type SkipUnit int

const (
	UnitBytes SkipUnit = iota
	UnitBits
)

// SkipField advances over padding. It produces no value on decode and Fill
// bytes on encode.
type SkipField struct {
	Length Length
	Unit   SkipUnit
	Fill   byte
}

func (f *Primitive) FieldName() string   { return f.Name }
func (f *BitGroup) FieldName() string    { return f.Entries[0].Name }
func (f *StringField) FieldName() string { return f.Name }
func (f *ArrayField) FieldName() string  { return f.Name }
func (f *NestField) FieldName() string   { return f.Name }
func (f *SkipField) FieldName() string   { return "" }

func (*Primitive) field()   {}
func (*BitGroup) field()    {}
func (*StringField) field() {}
func (*ArrayField) field()  {}
func (*NestField) field()   {}
func (*SkipField) field()   {}

// Schema is an immutable field chain with a byte order. It is safe for
// concurrent use by multiple goroutines.
type Schema struct {
	fields []Field
	order  ByteOrder
	logger *slog.Logger
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Order returns the byte order of s.
func (s *Schema) Order() ByteOrder {
	return s.order
}

// Fields returns a copy of the chain of s. Changing the copy does not
// change s.
func (s *Schema) Fields() []Field {
	return cloneFields(s.fields)
}

func cloneFields(fields []Field) []Field {
	out := make([]Field, len(fields))
	for i, f := range fields {
		switch f := f.(type) {
		case *Primitive:
			c := *f
			out[i] = &c
		case *BitGroup:
			out[i] = &BitGroup{Entries: slices.Clone(f.Entries)}
		case *StringField:
			c := *f
			out[i] = &c
		case *ArrayField:
			c := *f
			out[i] = &c
		case *NestField:
			c := *f
			out[i] = &c
		case *SkipField:
			c := *f
			out[i] = &c
		default:
			out[i] = f
		}
	}
	return out
}

// log returns the logger of s. A zero Schema logs nothing.
func (s *Schema) log() *slog.Logger {
	if s.logger == nil {
		return discardLogger
	}
	return s.logger
}

func (s *Schema) primitiveOrder(f *Primitive) ByteOrder {
	if f.OwnOrder {
		return f.Order
	}
	return s.order
}
