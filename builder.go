package bitwire

import (
	"log/slog"

	"github.com/mkch/bitwire/internal/textenc"
)

// MaxBitWidth is the widest single bit field.
const MaxBitWidth = 32

// Builder assembles a Schema. Every method appends one field and returns the
// builder; the first error is kept and reported by Build.
//
// A Builder is consumed by Build and must not be used afterwards.
type Builder struct {
	fields []Field
	order  ByteOrder
	logger *slog.Logger
	err    error
	built  bool
}

// New returns an empty big-endian Builder.
func New() *Builder {
	return &Builder{}
}

// Option configures a Primitive, a bit field or a string.
type Option func(*fieldOptions)

type fieldOptions struct {
	hooks    Hooks
	order    ByteOrder
	ownOrder bool
}

// WithAssert fails decoding and encoding when a rejects the raw value.
func WithAssert(a Assertion) Option {
	return func(o *fieldOptions) { o.hooks.Assert = a }
}

// WithFormatter converts decoded values before they are stored.
func WithFormatter(f Transform) Option {
	return func(o *fieldOptions) { o.hooks.Formatter = f }
}

// WithEncoder converts stored values back to raw ones before encoding.
func WithEncoder(f Transform) Option {
	return func(o *fieldOptions) { o.hooks.Encoder = f }
}

// WithByteOrder overrides the schema byte order for one primitive.
func WithByteOrder(order ByteOrder) Option {
	return func(o *fieldOptions) {
		o.order = order
		o.ownOrder = true
	}
}

func collect(opts []Option) fieldOptions {
	var o fieldOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

func (b *Builder) add(f Field) *Builder {
	if b.built {
		return b.fail(errBuilderUsed)
	}
	b.fields = append(b.fields, f)
	return b
}

var errBuilderUsed = schemaErrorf("builder already used")

// Order sets the byte order of the whole schema.
func (b *Builder) Order(order ByteOrder) *Builder {
	if order != BigEndian && order != LittleEndian {
		return b.fail(schemaErrorf("invalid byte order %d", order))
	}
	b.order = order
	return b
}

// Logger sets the logger that receives per-field debug records.
func (b *Builder) Logger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// Primitive appends a number of the given kind.
func (b *Builder) Primitive(name string, kind Kind, opts ...Option) *Builder {
	if name == "" {
		return b.fail(schemaErrorf("%v field has no name", kind))
	}
	if !kind.valid() {
		return b.fail(schemaErrorf("field %s: unknown primitive type %v", name, kind))
	}
	o := collect(opts)
	return b.add(&Primitive{Name: name, Kind: kind, Order: o.order, OwnOrder: o.ownOrder, Hooks: o.hooks})
}

func (b *Builder) Uint8(name string, opts ...Option) *Builder {
	return b.Primitive(name, Uint8, opts...)
}

func (b *Builder) Uint16(name string, opts ...Option) *Builder {
	return b.Primitive(name, Uint16, opts...)
}

func (b *Builder) Uint32(name string, opts ...Option) *Builder {
	return b.Primitive(name, Uint32, opts...)
}

func (b *Builder) Uint64(name string, opts ...Option) *Builder {
	return b.Primitive(name, Uint64, opts...)
}

func (b *Builder) Int8(name string, opts ...Option) *Builder {
	return b.Primitive(name, Int8, opts...)
}

func (b *Builder) Int16(name string, opts ...Option) *Builder {
	return b.Primitive(name, Int16, opts...)
}

func (b *Builder) Int32(name string, opts ...Option) *Builder {
	return b.Primitive(name, Int32, opts...)
}

func (b *Builder) Int64(name string, opts ...Option) *Builder {
	return b.Primitive(name, Int64, opts...)
}

func (b *Builder) Float32(name string, opts ...Option) *Builder {
	return b.Primitive(name, Float32, opts...)
}

func (b *Builder) Float64(name string, opts ...Option) *Builder {
	return b.Primitive(name, Float64, opts...)
}

// Bits appends a bit field of width bits. Consecutive bit fields form one
// BitGroup.
func (b *Builder) Bits(name string, width int, opts ...Option) *Builder {
	if name == "" {
		return b.fail(schemaErrorf("bit field has no name"))
	}
	if width < 1 || width > MaxBitWidth {
		return b.fail(schemaErrorf("field %s: bit width %d not in [1, %d]", name, width, MaxBitWidth))
	}
	o := collect(opts)
	if o.ownOrder {
		return b.fail(schemaErrorf("field %s: byte order option on a bit field", name))
	}
	entry := BitEntry{Name: name, Width: width, Hooks: o.hooks}
	if n := len(b.fields); n > 0 && !b.built {
		if g, ok := b.fields[n-1].(*BitGroup); ok {
			g.Entries = append(g.Entries, entry)
			return b
		}
	}
	return b.add(&BitGroup{Entries: []BitEntry{entry}})
}

// StringSpec describes the extent and text encoding of a string.
type StringSpec struct {
	// Length is the fixed length in bytes. With ZeroTerminated it is the
	// maximum length.
	Length         Length
	ZeroTerminated bool
	// Greedy takes the rest of the buffer.
	Greedy bool
	// StripNull removes zero bytes from the decoded text.
	StripNull bool
	// Encoding names the text encoding, "ascii" when empty.
	Encoding string
}

func (sp *StringSpec) compile(name string) (*StringField, error) {
	hasLength := !sp.Length.IsZero()
	if !sp.ZeroTerminated && !hasLength && !sp.Greedy {
		return nil, schemaErrorf("string %s: neither length, zeroTerminated, nor greedy is defined", name)
	}
	if (sp.ZeroTerminated || hasLength) && sp.Greedy {
		return nil, schemaErrorf("string %s: greedy is mutually exclusive with length and zeroTerminated", name)
	}
	if sp.StripNull && !(hasLength || sp.Greedy) {
		return nil, schemaErrorf("string %s: length or greedy must be defined if stripNull is defined", name)
	}
	if hasLength {
		if err := sp.Length.validate(); err != nil {
			return nil, schemaErrorf("string %s: %v", name, err)
		}
	}
	encoding := sp.Encoding
	if encoding == "" {
		encoding = textenc.Default
	}
	if !textenc.Supported(encoding) {
		return nil, schemaErrorf("string %s: unsupported encoding %q", name, encoding)
	}
	f := &StringField{Name: name, Length: sp.Length, Encoding: encoding, StripNull: sp.StripNull}
	switch {
	case hasLength && sp.ZeroTerminated:
		f.Mode = FixedOrZeroTerminated
	case hasLength:
		f.Mode = FixedLength
	case sp.ZeroTerminated:
		f.Mode = ZeroTerminated
	default:
		f.Mode = Greedy
	}
	return f, nil
}

// String appends a text field.
func (b *Builder) String(name string, spec StringSpec, opts ...Option) *Builder {
	if name == "" {
		return b.fail(schemaErrorf("string field has no name"))
	}
	f, err := spec.compile(name)
	if err != nil {
		return b.fail(err)
	}
	o := collect(opts)
	if o.ownOrder {
		return b.fail(schemaErrorf("field %s: byte order option on a string", name))
	}
	f.Hooks = o.hooks
	return b.add(f)
}

// Array appends an array of elem.
func (b *Builder) Array(name string, elem Element, count ArrayCount) *Builder {
	if name == "" {
		return b.fail(schemaErrorf("array field has no name"))
	}
	if err := count.validate(); err != nil {
		return b.fail(schemaErrorf("array %s: %v", name, err))
	}
	elem, err := elem.compile()
	if err != nil {
		return b.fail(schemaErrorf("array %s: %v", name, err))
	}
	return b.add(&ArrayField{Name: name, Elem: elem, Count: count})
}

// Nest appends a sub-schema stored under name.
func (b *Builder) Nest(name string, target Target) *Builder {
	if name == "" {
		return b.fail(schemaErrorf("nest field has no name; use Flatten"))
	}
	if target.IsZero() {
		return b.fail(schemaErrorf("nest %s: type is not defined", name))
	}
	return b.add(&NestField{Name: name, Target: target})
}

// Flatten appends a sub-schema whose values are merged into the parent.
func (b *Builder) Flatten(target Target) *Builder {
	if target.IsZero() {
		return b.fail(schemaErrorf("flattened nest: type is not defined"))
	}
	return b.add(&NestField{Target: target})
}

// SkipOption configures a Skip.
type SkipOption func(*SkipField)

// InBits measures a skip in bits instead of bytes.
func InBits() SkipOption {
	return func(f *SkipField) { f.Unit = UnitBits }
}

// FillWith sets the byte written for a skip on encode.
func FillWith(fill byte) SkipOption {
	return func(f *SkipField) { f.Fill = fill }
}

// Skip appends padding of length bytes.
func (b *Builder) Skip(length Length, opts ...SkipOption) *Builder {
	if err := length.validate(); err != nil {
		return b.fail(schemaErrorf("skip: %v", err))
	}
	f := &SkipField{Length: length}
	for _, opt := range opts {
		opt(f)
	}
	return b.add(f)
}

// Build validates the fields and returns the Schema.
func (b *Builder) Build() (*Schema, error) {
	if b.built {
		return nil, errBuilderUsed
	}
	b.built = true
	if b.err != nil {
		return nil, b.err
	}
	logger := b.logger
	if logger == nil {
		logger = discardLogger
	}
	return &Schema{fields: cloneFields(b.fields), order: b.order, logger: logger}, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}
