package bitwire

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/mkch/bitwire/bits"
)

// bytesAt returns n bytes of buf starting at bit position pos. The result
// aliases buf when pos is byte aligned.
func bytesAt(buf []byte, pos, n int) ([]byte, error) {
	if pos < 0 || n < 0 || pos+n*8 > len(buf)*8 {
		return nil, fmt.Errorf("%w: %d bytes at bit %d of %d bytes", ErrBounds, n, pos, len(buf))
	}
	if pos%8 == 0 {
		return buf[pos/8 : pos/8+n], nil
	}
	out := make([]byte, n)
	for i := range out {
		v, err := bits.Uint(buf, pos+8*i, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBounds, err)
		}
		out[i] = byte(v)
	}
	return out, nil
}

// readNumber reads a number of kind k at bit position pos. Unsigned values
// are returned as uint64, signed as int64, floats as float64.
func readNumber(buf []byte, pos int, k Kind, order ByteOrder) (any, error) {
	raw, err := bytesAt(buf, pos, k.Width())
	if err != nil {
		return nil, err
	}
	bo := order.binary()
	switch k {
	case Uint8:
		return uint64(raw[0]), nil
	case Uint16:
		return uint64(bo.Uint16(raw)), nil
	case Uint32:
		return uint64(bo.Uint32(raw)), nil
	case Uint64:
		return bo.Uint64(raw), nil
	case Int8:
		return int64(int8(raw[0])), nil
	case Int16:
		return int64(int16(bo.Uint16(raw))), nil
	case Int32:
		return int64(int32(bo.Uint32(raw))), nil
	case Int64:
		return int64(bo.Uint64(raw)), nil
	case Float32:
		return float64(math.Float32frombits(bo.Uint32(raw))), nil
	case Float64:
		return math.Float64frombits(bo.Uint64(raw)), nil
	}
	return nil, schemaErrorf("unknown primitive type %v", k)
}

// putNumber returns the bytes of v as a number of kind k.
func putNumber(k Kind, order ByteOrder, v any) ([]byte, error) {
	if !k.valid() {
		return nil, schemaErrorf("unknown primitive type %v", k)
	}
	out := make([]byte, k.Width())
	bo := order.binary()
	switch {
	case k.Float():
		f, err := toFloat64(v)
		if err != nil {
			return nil, err
		}
		if k == Float32 {
			if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
				return nil, fmt.Errorf("%w: %v overflows float32", ErrRange, f)
			}
			bo.PutUint32(out, math.Float32bits(float32(f)))
		} else {
			bo.PutUint64(out, math.Float64bits(f))
		}
		return out, nil
	case k.Signed():
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		width := uint(k.Width() * 8)
		if width < 64 {
			lo, hi := -int64(1)<<(width-1), int64(1)<<(width-1)-1
			if n < lo || n > hi {
				return nil, fmt.Errorf("%w: %d overflows %v", ErrRange, n, k)
			}
		}
		putUnsigned(out, bo, uint64(n))
		return out, nil
	}
	n, err := toUint64(v)
	if err != nil {
		return nil, err
	}
	if width := uint(k.Width() * 8); width < 64 && n >= uint64(1)<<width {
		return nil, fmt.Errorf("%w: %d overflows %v", ErrRange, n, k)
	}
	putUnsigned(out, bo, n)
	return out, nil
}

func putUnsigned(out []byte, bo binary.ByteOrder, n uint64) {
	switch len(out) {
	case 1:
		out[0] = byte(n)
	case 2:
		bo.PutUint16(out, uint16(n))
	case 4:
		bo.PutUint32(out, uint32(n))
	case 8:
		bo.PutUint64(out, n)
	}
}
