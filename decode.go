package bitwire

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/mkch/bitwire/bits"
	"github.com/mkch/bitwire/internal/textenc"
)

type decoder struct {
	// buf is a private copy of the input; little-endian bit groups are
	// reversed in place.
	buf    []byte
	cur    cursor
	logger *slog.Logger
	debug  bool
	record bool
	spans  []Span
}

func (s *Schema) newDecoder(buf []byte, record bool) *decoder {
	return &decoder{
		buf:    bytes.Clone(buf),
		logger: s.log(),
		debug:  s.log().Enabled(context.Background(), slog.LevelDebug),
		record: record,
	}
}

// Decode decodes buf into a Tree. Bytes after the last field are ignored.
// The returned error is a *DecodeError unless the schema itself is malformed.
func (s *Schema) Decode(buf []byte) (Tree, error) {
	t, _, err := s.DecodePrefix(buf)
	return t, err
}

// DecodePrefix is like Decode but also returns the number of bytes consumed.
// A partially consumed last byte counts as consumed.
func (s *Schema) DecodePrefix(buf []byte) (Tree, int, error) {
	d := s.newDecoder(buf, false)
	t, err := d.schema(s, "")
	if err != nil {
		return nil, 0, err
	}
	return t, d.consumed(), nil
}

// DecodeLayout is like DecodePrefix and also reports where each value was
// found.
func (s *Schema) DecodeLayout(buf []byte) (*Layout, error) {
	d := s.newDecoder(buf, true)
	t, err := d.schema(s, "")
	if err != nil {
		return nil, err
	}
	return &Layout{Tree: t, Length: d.consumed(), Spans: d.spans}, nil
}

func (d *decoder) consumed() int {
	if d.cur.bit > 0 {
		return d.cur.off + 1
	}
	return d.cur.off
}

func (d *decoder) trace(path, kind string, start cursor) {
	if d.record {
		d.spans = append(d.spans, Span{
			Path:       path,
			Kind:       kind,
			ByteOffset: start.off,
			BitOffset:  start.bit,
			BitLength:  d.cur.bitPos() - start.bitPos(),
		})
	}
	if d.debug {
		d.logger.LogAttrs(context.Background(), slog.LevelDebug, "decode field",
			slog.String("field", path),
			slog.String("kind", kind),
			slog.Int("offset", start.off),
			slog.Int("bit", start.bit))
	}
}

func (d *decoder) schema(s *Schema, path string) (Tree, error) {
	t := Tree{}
	for _, f := range s.fields {
		var err error
		switch f := f.(type) {
		case *Primitive:
			err = d.primitive(s, f, path, t)
		case *BitGroup:
			err = d.bitGroup(s, f, path, t)
		case *StringField:
			err = d.stringField(f, path, t)
		case *ArrayField:
			err = d.array(s, f, path, t)
		case *NestField:
			err = d.nest(f, path, t)
		case *SkipField:
			err = d.skip(f, path, t)
		default:
			err = decodeFailure(path, nil, schemaErrorf("unknown field type %T", f))
		}
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (d *decoder) number(k Kind, order ByteOrder) (any, error) {
	v, err := readNumber(d.buf, d.cur.bitPos(), k, order)
	if err != nil {
		return nil, err
	}
	d.cur.advanceBits(k.Width() * 8)
	return v, nil
}

func (d *decoder) primitive(s *Schema, f *Primitive, path string, t Tree) error {
	p := joinPath(path, f.Name)
	start := d.cur
	raw, err := d.number(f.Kind, s.primitiveOrder(f))
	if err != nil {
		return decodeFailure(p, nil, err)
	}
	v, err := f.decoded(raw)
	if err != nil {
		return decodeFailure(p, raw, err)
	}
	t[f.Name] = v
	d.trace(p, f.Kind.String(), start)
	return nil
}

func (d *decoder) bitGroup(s *Schema, g *BitGroup, path string, t Tree) error {
	if s.order == LittleEndian {
		n := (g.Width() + 7) / 8
		if err := bits.Reverse(d.buf, d.cur.off, n); err != nil {
			return decodeFailure(joinPath(path, g.Entries[0].Name), nil, fmt.Errorf("%w: %v", ErrBounds, err))
		}
	}
	for i := range g.Entries {
		e := &g.Entries[i]
		p := joinPath(path, e.Name)
		start := d.cur
		raw, err := bits.Uint(d.buf, d.cur.bitPos(), e.Width)
		if err != nil {
			return decodeFailure(p, nil, fmt.Errorf("%w: %v", ErrBounds, err))
		}
		v, err := e.decoded(raw)
		if err != nil {
			return decodeFailure(p, raw, err)
		}
		t[e.Name] = v
		d.cur.advanceBits(e.Width)
		d.trace(p, fmt.Sprintf("bit%d", e.Width), start)
	}
	return nil
}

// rest returns the whole bytes from the cursor to the end of the buffer.
func (d *decoder) rest() []byte {
	n := (len(d.buf)*8 - d.cur.bitPos()) / 8
	if n <= 0 {
		return nil
	}
	b, _ := bytesAt(d.buf, d.cur.bitPos(), n)
	return b
}

// text reads the string f at the cursor. ctx resolves Ref lengths.
func (d *decoder) text(f *StringField, ctx Tree) (string, error) {
	rest := d.rest()
	var data []byte
	consumed := 0
	switch f.Mode {
	case FixedOrZeroTerminated, FixedLength:
		n, err := f.Length.resolve(ctx)
		if err != nil {
			return "", err
		}
		bound := min(n, len(rest))
		i := n
		if f.Mode == FixedOrZeroTerminated {
			i = bytes.IndexByte(rest[:bound], 0)
		}
		if i >= 0 && i < n {
			data, consumed = rest[:i], i+1
			break
		}
		if n > len(rest) {
			return "", fmt.Errorf("%w: string of %d bytes, %d left", ErrBounds, n, len(rest))
		}
		data, consumed = rest[:n], n
	case ZeroTerminated:
		if i := bytes.IndexByte(rest, 0); i >= 0 {
			data, consumed = rest[:i], i+1
		} else {
			data, consumed = rest, len(rest)
		}
	case Greedy:
		data, consumed = rest, len(rest)
	default:
		return "", schemaErrorf("unknown string mode %v", f.Mode)
	}
	s, err := textenc.Decode(f.Encoding, data)
	if err != nil {
		return "", err
	}
	if f.StripNull {
		s = strings.ReplaceAll(s, "\x00", "")
	}
	d.cur.advanceBytes(consumed)
	return s, nil
}

func (d *decoder) stringField(f *StringField, path string, t Tree) error {
	p := joinPath(path, f.Name)
	start := d.cur
	raw, err := d.text(f, t)
	if err != nil {
		return decodeFailure(p, nil, err)
	}
	v, err := f.decoded(raw)
	if err != nil {
		return decodeFailure(p, raw, err)
	}
	t[f.Name] = v
	d.trace(p, "string", start)
	return nil
}

func (d *decoder) element(s *Schema, e Element, path string, parent Tree) (any, error) {
	start := d.cur
	switch {
	case e.schema != nil:
		return d.schema(e.schema, path)
	case e.str != nil:
		v, err := d.text(e.str, parent)
		if err != nil {
			return nil, decodeFailure(path, nil, err)
		}
		d.trace(path, "string", start)
		return v, nil
	}
	v, err := d.number(e.kind, s.order)
	if err != nil {
		return nil, decodeFailure(path, nil, err)
	}
	d.trace(path, e.kind.String(), start)
	return v, nil
}

func (d *decoder) array(s *Schema, f *ArrayField, path string, t Tree) error {
	p := joinPath(path, f.Name)
	items := []any{}
	next := func() error {
		ip := indexPath(p, len(items))
		before := d.cur.bitPos()
		v, err := d.element(s, f.Elem, ip, t)
		if err != nil {
			return err
		}
		if f.Count.mode != countFixed && d.cur.bitPos() == before {
			return decodeFailure(ip, nil, schemaErrorf("array element consumed no input"))
		}
		items = append(items, v)
		return nil
	}
	switch f.Count.mode {
	case countFixed:
		n, err := f.Count.length.resolve(t)
		if err != nil {
			return decodeFailure(p, nil, err)
		}
		// Counts read from the input are bounded by what is left of it.
		if left := len(d.buf)*8 - d.cur.bitPos(); n > left {
			return decodeFailure(p, nil, fmt.Errorf("%w: %d elements with %d bits left", ErrBounds, n, left))
		}
		for range n {
			if err := next(); err != nil {
				return err
			}
		}
	case countEOF:
		for d.cur.off < len(d.buf) {
			if err := next(); err != nil {
				return err
			}
		}
	case countRemaining:
		for d.cur.off < len(d.buf)-f.Count.remain {
			if err := next(); err != nil {
				return err
			}
		}
	default:
		return decodeFailure(p, nil, schemaErrorf("array length is not defined"))
	}
	t[f.Name] = items
	return nil
}

func (d *decoder) nest(f *NestField, path string, t Tree) error {
	p := joinPath(path, f.Name)
	target, err := f.Target.resolve(t)
	if err != nil {
		return decodeFailure(p, nil, err)
	}
	sub, err := d.schema(target, p)
	if err != nil {
		return err
	}
	if f.Name == "" {
		maps.Copy(t, sub)
	} else {
		t[f.Name] = sub
	}
	return nil
}

func (d *decoder) skip(f *SkipField, path string, t Tree) error {
	p := joinPath(path, "<skip>")
	n, err := f.Length.resolve(t)
	if err != nil {
		return decodeFailure(p, nil, err)
	}
	if f.Unit == UnitBytes {
		n *= 8
	}
	if d.cur.bitPos()+n > len(d.buf)*8 {
		return decodeFailure(p, nil, fmt.Errorf("%w: skip of %d bits past end of %d bytes", ErrBounds, n, len(d.buf)))
	}
	d.cur.advanceBits(n)
	return nil
}
