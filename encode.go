package bitwire

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/mkch/bitwire/bits"
	"github.com/mkch/bitwire/internal/textenc"
)

// fragment is the encoding of one field. data holds ceil(bits/8) bytes.
type fragment struct {
	data []byte
	bits int
	// swap marks a little-endian bit group.
	swap bool
}

type encoder struct {
	frags  []fragment
	total  int
	logger *slog.Logger
	debug  bool
}

// Encode encodes v with s. The returned error is an *EncodeError unless the
// schema itself is malformed.
func (s *Schema) Encode(v Tree) ([]byte, error) {
	e := &encoder{
		logger: s.log(),
		debug:  s.log().Enabled(context.Background(), slog.LevelDebug),
	}
	if err := e.schema(s, v, ""); err != nil {
		return nil, err
	}
	return e.assemble()
}

func (e *encoder) push(path, kind string, data []byte, n int, swap bool) {
	if e.debug {
		e.logger.LogAttrs(context.Background(), slog.LevelDebug, "encode field",
			slog.String("field", path),
			slog.String("kind", kind),
			slog.Int("offset", e.total/8),
			slog.Int("bit", e.total%8))
	}
	e.frags = append(e.frags, fragment{data: data, bits: n, swap: swap})
	e.total += n
}

// assemble writes the fragments contiguously, then undoes the little-endian
// bit group reversal in the opposite order decode applies it.
func (e *encoder) assemble() ([]byte, error) {
	out := make([]byte, (e.total+7)/8)
	type region struct{ off, n int }
	var swaps []region
	pos := 0
	for _, f := range e.frags {
		if err := bits.Copy(out, pos, f.data, f.bits); err != nil {
			return nil, err
		}
		if f.swap {
			swaps = append(swaps, region{pos / 8, (f.bits + 7) / 8})
		}
		pos += f.bits
	}
	for i := len(swaps) - 1; i >= 0; i-- {
		if err := bits.Reverse(out, swaps[i].off, swaps[i].n); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e *encoder) schema(s *Schema, obj Tree, path string) error {
	for _, f := range s.fields {
		var err error
		switch f := f.(type) {
		case *Primitive:
			err = e.primitive(s, f, obj, path)
		case *BitGroup:
			err = e.bitGroup(s, f, obj, path)
		case *StringField:
			err = e.stringField(f, obj, path)
		case *ArrayField:
			err = e.array(s, f, obj, path)
		case *NestField:
			err = e.nest(f, obj, path)
		case *SkipField:
			err = e.skip(f, obj, path)
		default:
			err = encodeFailure(path, nil, schemaErrorf("unknown field type %T", f))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func lookup(obj Tree, name string) (any, error) {
	v, ok := obj[name]
	if !ok || v == nil {
		return nil, ErrMissingValue
	}
	return v, nil
}

func (e *encoder) primitive(s *Schema, f *Primitive, obj Tree, path string) error {
	p := joinPath(path, f.Name)
	v, err := lookup(obj, f.Name)
	if err != nil {
		return encodeFailure(p, nil, err)
	}
	raw, err := f.encoded(v)
	if err != nil {
		return encodeFailure(p, v, err)
	}
	data, err := putNumber(f.Kind, s.primitiveOrder(f), raw)
	if err != nil {
		return encodeFailure(p, raw, err)
	}
	e.push(p, f.Kind.String(), data, len(data)*8, false)
	return nil
}

func (e *encoder) bitGroup(s *Schema, g *BitGroup, obj Tree, path string) error {
	total := g.Width()
	data := make([]byte, (total+7)/8)
	pos := 0
	for i := range g.Entries {
		entry := &g.Entries[i]
		p := joinPath(path, entry.Name)
		v, err := lookup(obj, entry.Name)
		if err != nil {
			return encodeFailure(p, nil, err)
		}
		raw, err := entry.encoded(v)
		if err != nil {
			return encodeFailure(p, v, err)
		}
		n, err := toUint64(raw)
		if err != nil {
			return encodeFailure(p, raw, err)
		}
		if n >= uint64(1)<<uint(entry.Width) {
			return encodeFailure(p, raw, fmt.Errorf("%w: %d does not fit in %d bits", ErrRange, n, entry.Width))
		}
		if err := bits.PutUint(data, pos, entry.Width, n); err != nil {
			return encodeFailure(p, raw, err)
		}
		pos += entry.Width
	}
	e.push(joinPath(path, g.Entries[0].Name), fmt.Sprintf("bits%d", total), data, total, s.order == LittleEndian)
	return nil
}

// text returns the bytes of the string s laid out as f requires. ctx
// resolves Ref lengths.
func text(f *StringField, s string, ctx Tree) ([]byte, error) {
	data, err := textenc.Encode(f.Encoding, s)
	if err != nil {
		return nil, err
	}
	switch f.Mode {
	case FixedLength, FixedOrZeroTerminated:
		n, err := f.Length.resolve(ctx)
		if err != nil {
			return nil, err
		}
		if len(data) > n {
			return nil, fmt.Errorf("%w: string of %d bytes in a field of %d", ErrLengthMismatch, len(data), n)
		}
		if f.Mode == FixedOrZeroTerminated && bytes.IndexByte(data, 0) >= 0 {
			return nil, fmt.Errorf("%w: zero byte inside zero-terminated string", ErrRange)
		}
		if f.Mode == FixedLength {
			out := make([]byte, n)
			copy(out, data)
			return out, nil
		}
		if len(data) < n {
			return append(data, 0), nil
		}
		return data, nil
	case ZeroTerminated:
		if bytes.IndexByte(data, 0) >= 0 {
			return nil, fmt.Errorf("%w: zero byte inside zero-terminated string", ErrRange)
		}
		return append(data, 0), nil
	case Greedy:
		return data, nil
	}
	return nil, schemaErrorf("unknown string mode %v", f.Mode)
}

func (e *encoder) stringField(f *StringField, obj Tree, path string) error {
	p := joinPath(path, f.Name)
	v, err := lookup(obj, f.Name)
	if err != nil {
		return encodeFailure(p, nil, err)
	}
	raw, err := f.encoded(v)
	if err != nil {
		return encodeFailure(p, v, err)
	}
	s, ok := raw.(string)
	if !ok {
		return encodeFailure(p, raw, fmt.Errorf("%w: %T is not a string", ErrType, raw))
	}
	data, err := text(f, s, obj)
	if err != nil {
		return encodeFailure(p, raw, err)
	}
	e.push(p, "string", data, len(data)*8, false)
	return nil
}

func (e *encoder) element(s *Schema, el Element, v any, path string, parent Tree) error {
	switch {
	case el.schema != nil:
		sub, ok := asTree(v)
		if !ok {
			return encodeFailure(path, v, fmt.Errorf("%w: %T is not a tree", ErrType, v))
		}
		return e.schema(el.schema, sub, path)
	case el.str != nil:
		str, ok := v.(string)
		if !ok {
			return encodeFailure(path, v, fmt.Errorf("%w: %T is not a string", ErrType, v))
		}
		data, err := text(el.str, str, parent)
		if err != nil {
			return encodeFailure(path, v, err)
		}
		e.push(path, "string", data, len(data)*8, false)
		return nil
	}
	data, err := putNumber(el.kind, s.order, v)
	if err != nil {
		return encodeFailure(path, v, err)
	}
	e.push(path, el.kind.String(), data, len(data)*8, false)
	return nil
}

func (e *encoder) array(s *Schema, f *ArrayField, obj Tree, path string) error {
	p := joinPath(path, f.Name)
	v, err := lookup(obj, f.Name)
	if err != nil {
		return encodeFailure(p, nil, err)
	}
	items, ok := asSlice(v)
	if !ok {
		return encodeFailure(p, v, fmt.Errorf("%w: %T is not a sequence", ErrType, v))
	}
	if f.Count.mode == countFixed {
		n, err := f.Count.length.resolve(obj)
		if err != nil {
			return encodeFailure(p, nil, err)
		}
		if n != len(items) {
			return encodeFailure(p, len(items), fmt.Errorf("%w: %d elements, want %d", ErrLengthMismatch, len(items), n))
		}
	}
	for i, item := range items {
		if err := e.element(s, f.Elem, item, indexPath(p, i), obj); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) nest(f *NestField, obj Tree, path string) error {
	p := joinPath(path, f.Name)
	target, err := f.Target.resolve(obj)
	if err != nil {
		return encodeFailure(p, nil, err)
	}
	if f.Name == "" {
		return e.schema(target, obj, p)
	}
	v, err := lookup(obj, f.Name)
	if err != nil {
		return encodeFailure(p, nil, err)
	}
	sub, ok := asTree(v)
	if !ok {
		return encodeFailure(p, v, fmt.Errorf("%w: %T is not a tree", ErrType, v))
	}
	return e.schema(target, sub, p)
}

func (e *encoder) skip(f *SkipField, obj Tree, path string) error {
	p := joinPath(path, "<skip>")
	n, err := f.Length.resolve(obj)
	if err != nil {
		return encodeFailure(p, nil, err)
	}
	if f.Unit == UnitBytes {
		n *= 8
	}
	data := bytes.Repeat([]byte{f.Fill}, (n+7)/8)
	e.push(p, "skip", data, n, false)
	return nil
}
