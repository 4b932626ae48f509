package schemafile

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mkch/bitwire"
)

// Compile builds the schema of the document's top-level fields. logger may
// be nil.
func (d *Document) Compile(logger *slog.Logger) (*bitwire.Schema, error) {
	c := d.compiler(logger)
	s, err := c.fields(d.Fields, d.Endian)
	if err != nil {
		return nil, d.wrap(err)
	}
	return s, nil
}

// CompileStruct builds the named struct as a schema on its own.
func (d *Document) CompileStruct(name string, logger *slog.Logger) (*bitwire.Schema, error) {
	s, err := d.compiler(logger).structSchema(name)
	if err != nil {
		return nil, d.wrap(err)
	}
	return s, nil
}

func (d *Document) wrap(err error) error {
	if d.Name == "" {
		return err
	}
	return fmt.Errorf("schema %s: %w", d.Name, err)
}

type compiler struct {
	doc    *Document
	logger *slog.Logger
	built  map[string]*bitwire.Schema
	// active is the chain of structs being compiled, for cycle detection.
	active []string
}

func (d *Document) compiler(logger *slog.Logger) *compiler {
	return &compiler{doc: d, logger: logger, built: make(map[string]*bitwire.Schema)}
}

func (c *compiler) structSchema(name string) (*bitwire.Schema, error) {
	if s, ok := c.built[name]; ok {
		return s, nil
	}
	for i, n := range c.active {
		if n == name {
			chain := append(c.active[i:len(c.active):len(c.active)], name)
			return nil, fmt.Errorf("%w: %s", ErrCircular, strings.Join(chain, " -> "))
		}
	}
	st, ok := c.doc.Structs[name]
	if !ok || st == nil {
		return nil, fmt.Errorf("struct %q is not defined", name)
	}
	endian := st.Endian
	if endian == "" {
		endian = c.doc.Endian
	}
	c.active = append(c.active, name)
	s, err := c.fields(st.Fields, endian)
	c.active = c.active[:len(c.active)-1]
	if err != nil {
		return nil, fmt.Errorf("struct %s: %w", name, err)
	}
	c.built[name] = s
	return s, nil
}

func (c *compiler) fields(defs []FieldDef, endian string) (*bitwire.Schema, error) {
	b := bitwire.New()
	if endian != "" {
		order, err := bitwire.ParseByteOrder(endian)
		if err != nil {
			return nil, err
		}
		b.Order(order)
	}
	if c.logger != nil {
		b.Logger(c.logger)
	}
	for i := range defs {
		if err := c.add(b, &defs[i]); err != nil {
			if defs[i].Name != "" {
				return nil, fmt.Errorf("field %s: %w", defs[i].Name, err)
			}
			return nil, fmt.Errorf("field #%d: %w", i, err)
		}
	}
	return b.Build()
}

func (c *compiler) add(b *bitwire.Builder, f *FieldDef) error {
	var opts []bitwire.Option
	if f.Assert != nil {
		opts = append(opts, bitwire.WithAssert(bitwire.Equals(f.Assert)))
	}
	switch f.Type {
	case "bits":
		b.Bits(f.Name, f.Width, opts...)
	case "string":
		spec, err := f.stringSpec()
		if err != nil {
			return err
		}
		b.String(f.Name, spec, opts...)
	case "array":
		elem, err := c.element(f)
		if err != nil {
			return err
		}
		count, err := f.count()
		if err != nil {
			return err
		}
		b.Array(f.Name, elem, count)
	case "nest", "match":
		target, err := c.target(f)
		if err != nil {
			return err
		}
		if f.Name == "" {
			b.Flatten(target)
		} else {
			b.Nest(f.Name, target)
		}
	case "skip":
		length, err := f.Length.Length()
		if err != nil {
			return err
		}
		var skipOpts []bitwire.SkipOption
		switch f.Unit {
		case "", "byte", "bytes":
		case "bit", "bits":
			skipOpts = append(skipOpts, bitwire.InBits())
		default:
			return fmt.Errorf("unknown skip unit %q", f.Unit)
		}
		if f.Fill != 0 {
			skipOpts = append(skipOpts, bitwire.FillWith(f.Fill))
		}
		b.Skip(length, skipOpts...)
	case "":
		return fmt.Errorf("type is not defined")
	default:
		kind, err := bitwire.ParseKind(f.Type)
		if err != nil {
			return err
		}
		if f.Endian != "" {
			order, err := bitwire.ParseByteOrder(f.Endian)
			if err != nil {
				return err
			}
			opts = append(opts, bitwire.WithByteOrder(order))
		}
		b.Primitive(f.Name, kind, opts...)
	}
	return nil
}

func (f *FieldDef) stringSpec() (bitwire.StringSpec, error) {
	spec := bitwire.StringSpec{
		ZeroTerminated: f.ZeroTerminated,
		Greedy:         f.Greedy,
		StripNull:      f.StripNull,
		Encoding:       f.Encoding,
	}
	if f.Length != "" {
		l, err := f.Length.Length()
		if err != nil {
			return spec, err
		}
		spec.Length = l
	}
	return spec, nil
}

func (f *FieldDef) count() (bitwire.ArrayCount, error) {
	switch f.Until {
	case "eof":
		return bitwire.UntilEOF(), nil
	case "remaining":
		return bitwire.UntilRemaining(f.Remaining), nil
	case "":
	default:
		return bitwire.ArrayCount{}, fmt.Errorf("unknown until %q", f.Until)
	}
	if f.Count == "" {
		return bitwire.ArrayCount{}, fmt.Errorf("array needs count or until")
	}
	l, err := f.Count.Length()
	if err != nil {
		return bitwire.ArrayCount{}, err
	}
	return bitwire.Count(l), nil
}

// element resolves an array's item type. of names a primitive type or a
// struct; element describes a string or nested item in full.
func (c *compiler) element(f *FieldDef) (bitwire.Element, error) {
	if f.Of != "" && f.Element != nil {
		return bitwire.Element{}, fmt.Errorf("of and element are mutually exclusive")
	}
	if f.Of != "" {
		if kind, err := bitwire.ParseKind(f.Of); err == nil {
			return bitwire.Of(kind), nil
		}
		s, err := c.structSchema(f.Of)
		if err != nil {
			return bitwire.Element{}, err
		}
		return bitwire.OfSchema(s), nil
	}
	e := f.Element
	if e == nil {
		return bitwire.Element{}, fmt.Errorf("array element type is not defined")
	}
	switch e.Type {
	case "string":
		spec, err := e.stringSpec()
		if err != nil {
			return bitwire.Element{}, err
		}
		return bitwire.OfString(spec), nil
	case "nest":
		s, err := c.structSchema(e.Struct)
		if err != nil {
			return bitwire.Element{}, err
		}
		return bitwire.OfSchema(s), nil
	}
	kind, err := bitwire.ParseKind(e.Type)
	if err != nil {
		return bitwire.Element{}, err
	}
	return bitwire.Of(kind), nil
}

func (c *compiler) target(f *FieldDef) (bitwire.Target, error) {
	if (f.Struct == "") == (f.Match == nil) {
		return bitwire.Target{}, fmt.Errorf("exactly one of struct and match must be defined")
	}
	if f.Struct != "" {
		s, err := c.structSchema(f.Struct)
		if err != nil {
			return bitwire.Target{}, err
		}
		return bitwire.Static(s), nil
	}
	return c.match(f.Match)
}

type matchCase struct {
	raw    string
	key    any
	schema *bitwire.Schema
}

func (c *compiler) match(m *Match) (bitwire.Target, error) {
	if m.On == "" {
		return bitwire.Target{}, fmt.Errorf("match has no on field")
	}
	cases := make([]matchCase, 0, len(m.Cases))
	for key, name := range m.Cases {
		s, err := c.structSchema(name)
		if err != nil {
			return bitwire.Target{}, err
		}
		cases = append(cases, matchCase{raw: key, key: caseKey(key), schema: s})
	}
	var def *bitwire.Schema
	if m.Default != "" {
		s, err := c.structSchema(m.Default)
		if err != nil {
			return bitwire.Target{}, err
		}
		def = s
	}
	on := m.On
	return bitwire.Dispatch(func(t bitwire.Tree) *bitwire.Schema {
		v := t[on]
		for _, mc := range cases {
			if str, ok := v.(string); ok && str == mc.raw || bitwire.ValuesEqual(v, mc.key) {
				return mc.schema
			}
		}
		return def
	}), nil
}

// caseKey reads a case key as an integer when it parses as one.
func caseKey(key string) any {
	if n, err := strconv.ParseInt(key, 0, 64); err == nil {
		return n
	}
	if n, err := strconv.ParseUint(key, 0, 64); err == nil {
		return n
	}
	return key
}
