package bitwire

// Span is the position of one decoded value in the input.
type Span struct {
	Path       string
	Kind       string
	ByteOffset int
	BitOffset  int
	BitLength  int
}

// End returns the bit position just past the span.
func (s Span) End() int {
	return s.ByteOffset*8 + s.BitOffset + s.BitLength
}

// Layout is the result of DecodeLayout.
type Layout struct {
	Tree Tree
	// Length is the number of bytes consumed.
	Length int
	// Spans lists the values in decode order.
	Spans []Span
}
