/*
Package bits implements the bit level primitives used by bitwire.

All functions use the big-endian bit convention: bit 0 of a buffer is the most
significant bit of its first byte. Bit slices returned or accepted by this
package hold one bit per element, 0 or 1.

The integer helpers Uint and PutUint read and write an unsigned value of up to
64 bits at an arbitrary bit offset, crossing byte boundaries as needed. Copy
splices a run of bits from one buffer into another. Reverse swaps the byte
order of a region in place; bitwire uses it around little-endian bit groups.
*/
package bits
