package bits

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidByte = errors.New("bits: invalid byte")
	ErrInvalidBits = errors.New("bits: invalid bit array")
	ErrWidth       = errors.New("bits: invalid bit width")
	ErrOutOfRange  = errors.New("bits: out of range")
)

// ByteBits returns the 8 bits of v, most significant first.
// v must be in [0, 255].
func ByteBits(v int) ([]uint8, error) {
	if v < 0 || v > 0xFF {
		return nil, fmt.Errorf("%w: %d", ErrInvalidByte, v)
	}
	result := make([]uint8, 8)
	for i := 0; i < 8; i++ {
		result[7-i] = uint8(v>>uint(i)) & 1
	}
	return result, nil
}

// UintBits returns the low width bits of v, most significant first.
func UintBits(v uint64, width int) ([]uint8, error) {
	if width < 0 || width > 64 {
		return nil, fmt.Errorf("%w: %d", ErrWidth, width)
	}
	result := make([]uint8, width)
	for i := 0; i < width; i++ {
		result[width-1-i] = uint8(v>>uint(i)) & 1
	}
	return result, nil
}

// BufferBits returns length bits of buf starting at bit offset.
// A negative length means "to the end of buf".
func BufferBits(buf []byte, offset, length int) ([]uint8, error) {
	if length < 0 {
		length = len(buf)*8 - offset
	}
	if offset < 0 || length < 0 || offset+length > len(buf)*8 {
		return nil, fmt.Errorf("%w: %d bits at bit %d of %d bytes", ErrOutOfRange, length, offset, len(buf))
	}
	result := make([]uint8, length)
	for i := range result {
		pos := offset + i
		result[i] = (buf[pos/8] >> uint(7-pos%8)) & 1
	}
	return result, nil
}

// ByteOfBits packs exactly 8 bits, most significant first, into a byte.
func ByteOfBits(b []uint8) (byte, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: length %d", ErrInvalidBits, len(b))
	}
	var data byte
	for i := 0; i < 8; i++ {
		if b[7-i] != 0 {
			data |= 1 << uint(i)
		}
	}
	return data, nil
}

// WriteBits overwrites len(b) bits of buf starting at bit offset. Bits
// outside that range are preserved.
func WriteBits(buf []byte, b []uint8, offset int) error {
	if offset < 0 || offset+len(b) > len(buf)*8 {
		return fmt.Errorf("%w: %d bits at bit %d of %d bytes", ErrOutOfRange, len(b), offset, len(buf))
	}
	for i, bit := range b {
		pos := offset + i
		mask := byte(0x80) >> uint(pos%8)
		if bit != 0 {
			buf[pos/8] |= mask
		} else {
			buf[pos/8] &^= mask
		}
	}
	return nil
}

// Reverse reverses the byte order of buf[offset:offset+length] in place.
func Reverse(buf []byte, offset, length int) error {
	if offset < 0 || length < 0 || offset+length > len(buf) {
		return fmt.Errorf("%w: %d bytes at %d of %d", ErrOutOfRange, length, offset, len(buf))
	}
	region := buf[offset : offset+length]
	for i, j := 0, len(region)-1; i < j; i, j = i+1, j-1 {
		region[i], region[j] = region[j], region[i]
	}
	return nil
}

// Uint reads width bits of buf starting at bit offset as an unsigned
// integer. width must be in [1, 64].
func Uint(buf []byte, offset, width int) (n uint64, err error) {
	if width <= 0 || width > 64 {
		return 0, fmt.Errorf("%w: %d", ErrWidth, width)
	}
	if offset < 0 || offset+width > len(buf)*8 {
		return 0, fmt.Errorf("%w: %d bits at bit %d of %d bytes", ErrOutOfRange, width, offset, len(buf))
	}
	pos := offset
	for remaining := width; remaining > 0; {
		avail := 8 - pos%8
		take := avail
		if remaining < take {
			take = remaining
		}
		// Bits [pos%8, pos%8+take) of the current byte.
		chunk := (buf[pos/8] >> uint(avail-take)) & (0xFF >> uint(8-take))
		n = n<<uint(take) | uint64(chunk)
		pos += take
		remaining -= take
	}
	return
}

// PutUint writes the low width bits of v into buf starting at bit offset.
// Higher bits of v are ignored. Bits of buf outside the range are preserved.
func PutUint(buf []byte, offset, width int, v uint64) error {
	if width <= 0 || width > 64 {
		return fmt.Errorf("%w: %d", ErrWidth, width)
	}
	if offset < 0 || offset+width > len(buf)*8 {
		return fmt.Errorf("%w: %d bits at bit %d of %d bytes", ErrOutOfRange, width, offset, len(buf))
	}
	pos := offset
	for remaining := width; remaining > 0; {
		avail := 8 - pos%8
		take := avail
		if remaining < take {
			take = remaining
		}
		shift := uint(avail - take)
		low := byte(0xFF >> uint(8-take))
		chunk := byte(v>>uint(remaining-take)) & low
		buf[pos/8] = buf[pos/8]&^(low<<shift) | chunk<<shift
		pos += take
		remaining -= take
	}
	return nil
}

// Copy writes the first length bits of src into dst starting at bit offset.
func Copy(dst []byte, offset int, src []byte, length int) error {
	if length < 0 || length > len(src)*8 {
		return fmt.Errorf("%w: %d bits from %d bytes", ErrOutOfRange, length, len(src))
	}
	if offset < 0 || offset+length > len(dst)*8 {
		return fmt.Errorf("%w: %d bits at bit %d of %d bytes", ErrOutOfRange, length, offset, len(dst))
	}
	// Byte aligned destination: copy whole bytes, then the tail.
	if offset%8 == 0 {
		whole := length / 8
		copy(dst[offset/8:], src[:whole])
		if tail := length % 8; tail > 0 {
			v := uint64(src[whole] >> uint(8-tail))
			return PutUint(dst, offset+whole*8, tail, v)
		}
		return nil
	}
	for i := 0; i < length; i += 8 {
		take := 8
		if length-i < take {
			take = length - i
		}
		v, err := Uint(src, i, take)
		if err != nil {
			return err
		}
		if err = PutUint(dst, offset+i, take, v); err != nil {
			return err
		}
	}
	return nil
}
