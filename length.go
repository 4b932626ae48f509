package bitwire

import (
	"fmt"
	"strconv"
)

type lengthKind int

const (
	lengthNone lengthKind = iota
	lengthFixed
	lengthRef
	lengthComputed
)

// Length is the length of a string, the count of an array or the size of a
// skip. The zero Length is absent.
type Length struct {
	kind lengthKind
	n    int
	ref  string
	fn   func(Tree) (int, error)
}

// Fixed returns a literal length.
func Fixed(n int) Length {
	return Length{kind: lengthFixed, n: n}
}

// Ref returns a length read from the value of an earlier sibling field.
func Ref(name string) Length {
	return Length{kind: lengthRef, ref: name}
}

// Computed returns a length computed from the value tree decoded so far, or
// from the value being encoded.
func Computed(fn func(Tree) (int, error)) Length {
	return Length{kind: lengthComputed, fn: fn}
}

func (l Length) IsZero() bool {
	return l.kind == lengthNone
}

// Literal returns the literal value of a Fixed length.
func (l Length) Literal() (int, bool) {
	return l.n, l.kind == lengthFixed
}

func (l Length) String() string {
	switch l.kind {
	case lengthFixed:
		return strconv.Itoa(l.n)
	case lengthRef:
		return "$" + l.ref
	case lengthComputed:
		return "func"
	}
	return "none"
}

func (l Length) validate() error {
	switch l.kind {
	case lengthNone:
		return schemaErrorf("length is not defined")
	case lengthFixed:
		if l.n < 0 {
			return schemaErrorf("negative length %d", l.n)
		}
	case lengthRef:
		if l.ref == "" {
			return schemaErrorf("empty length reference")
		}
	case lengthComputed:
		if l.fn == nil {
			return schemaErrorf("nil length function")
		}
	}
	return nil
}

// resolve turns l into a concrete non-negative integer against ctx, the tree
// decoded so far or the object being encoded.
func (l Length) resolve(ctx Tree) (int, error) {
	switch l.kind {
	case lengthFixed:
		return l.n, nil
	case lengthRef:
		v, ok := ctx[l.ref]
		if !ok {
			return 0, fmt.Errorf("%w: length field %q", ErrMissingValue, l.ref)
		}
		n, err := toInt(v)
		if err != nil {
			return 0, fmt.Errorf("length field %q: %w", l.ref, err)
		}
		return n, nil
	case lengthComputed:
		n, err := l.fn(ctx)
		if err != nil {
			return 0, err
		}
		if n < 0 {
			return 0, fmt.Errorf("%w: computed length %d", ErrRange, n)
		}
		return n, nil
	}
	return 0, schemaErrorf("length is not defined")
}

// Target is the schema a NestField decodes, either fixed or chosen by a
// function of the values known so far.
type Target struct {
	schema *Schema
	fn     func(Tree) *Schema
}

// Static returns a Target that always uses s.
func Static(s *Schema) Target {
	return Target{schema: s}
}

// Dispatch returns a Target that calls fn with the tree decoded so far, or
// the object being encoded, to pick the schema.
func Dispatch(fn func(Tree) *Schema) Target {
	return Target{fn: fn}
}

func (t Target) IsZero() bool {
	return t.schema == nil && t.fn == nil
}

// Schema returns the fixed schema of a Static target.
func (t Target) Schema() (*Schema, bool) {
	return t.schema, t.schema != nil
}

func (t Target) resolve(ctx Tree) (*Schema, error) {
	if t.schema != nil {
		return t.schema, nil
	}
	if t.fn == nil {
		return nil, schemaErrorf("nest target is not defined")
	}
	s := t.fn(ctx)
	if s == nil {
		return nil, schemaErrorf("nest dispatch returned no schema")
	}
	return s, nil
}

type countMode int

const (
	countNone countMode = iota
	countFixed
	countEOF
	countRemaining
)

// ArrayCount says how many elements an array holds.
type ArrayCount struct {
	mode   countMode
	length Length
	remain int
}

// Count returns an ArrayCount of exactly l elements.
func Count(l Length) ArrayCount {
	return ArrayCount{mode: countFixed, length: l}
}

// UntilEOF returns an ArrayCount that reads elements up to the end of the
// buffer.
func UntilEOF() ArrayCount {
	return ArrayCount{mode: countEOF}
}

// UntilRemaining returns an ArrayCount that reads elements while more than
// k bytes remain.
func UntilRemaining(k int) ArrayCount {
	return ArrayCount{mode: countRemaining, remain: k}
}

func (c ArrayCount) String() string {
	switch c.mode {
	case countFixed:
		return c.length.String()
	case countEOF:
		return "eof"
	case countRemaining:
		return "remaining " + strconv.Itoa(c.remain)
	}
	return "none"
}

func (c ArrayCount) validate() error {
	switch c.mode {
	case countNone:
		return schemaErrorf("array length is not defined")
	case countFixed:
		return c.length.validate()
	case countRemaining:
		if c.remain < 0 {
			return schemaErrorf("negative remaining count %d", c.remain)
		}
	}
	return nil
}

// Element is the type of the items of an array: a primitive Kind, a string
// or a nested schema.
type Element struct {
	kind   Kind
	spec   *StringSpec
	str    *StringField
	schema *Schema
}

// Of returns an Element of primitive kind k.
func Of(k Kind) Element {
	return Element{kind: k}
}

// OfString returns a string Element. A Ref length resolves against the
// array's parent.
func OfString(spec StringSpec) Element {
	return Element{spec: &spec}
}

// OfSchema returns an Element decoded with s.
func OfSchema(s *Schema) Element {
	return Element{schema: s}
}

func (e Element) String() string {
	switch {
	case e.schema != nil:
		return "schema"
	case e.str != nil:
		return "string(" + describeString(e.str) + ")"
	case e.spec != nil:
		return "string"
	}
	return e.kind.String()
}

// compile validates e and resolves a string spec into a StringField.
func (e Element) compile() (Element, error) {
	n := 0
	if e.kind != 0 {
		n++
		if !e.kind.valid() {
			return e, schemaErrorf("specified primitive type %v is not supported", e.kind)
		}
	}
	if e.spec != nil {
		n++
		f, err := e.spec.compile("")
		if err != nil {
			return e, err
		}
		e.str = f
	}
	if e.schema != nil {
		n++
	}
	if n != 1 {
		return e, schemaErrorf("array element type is not defined")
	}
	return e, nil
}

// cursor is a position in a buffer. bit is in [0, 8).
type cursor struct {
	off int
	bit int
}

func (c *cursor) advanceBits(n int) {
	total := c.bit + n
	c.bit = total % 8
	c.off += total / 8
}

func (c *cursor) advanceBytes(n int) {
	c.off += n
}

func (c cursor) bitPos() int {
	return c.off*8 + c.bit
}
