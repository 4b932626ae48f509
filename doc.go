/*
Package bitwire implements a declarative binary codec.

A Schema is a chain of fields built once with a Builder:

	tcp := bitwire.New().
		Uint16("srcPort").
		Uint16("dstPort").
		Uint32("seq").
		Uint32("ack").
		Bits("dataOffset", 4).
		Bits("reserved", 6).
		Bits("flags", 6).
		Uint16("windowSize").
		MustBuild()

The same schema decodes bytes into a Tree and encodes a Tree back into the
identical bytes:

	t, err := tcp.Decode(packet)
	...
	b, err := tcp.Encode(t)

Field kinds are fixed width numbers (Primitive), runs of bit fields
(BitGroup), strings, arrays, nested or dispatched schemas (NestField) and
padding (SkipField). Lengths of strings, arrays and skips may be literal,
refer to an earlier field, or be computed from the values decoded so far.

Byte order applies to numbers and to bit groups. A little-endian bit group is
read by reversing the bytes it spans and then extracting the bits most
significant first; encoding applies the same reversal to the packed bits.

Decoding never modifies the caller's buffer. A built Schema is immutable and
may be used by multiple goroutines at once.
*/
package bitwire
