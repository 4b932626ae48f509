package formats

import (
	"fmt"

	"github.com/mkch/bitwire"
)

// headerOptions returns the length of the options after a fixed header of
// 20 bytes, given a length field counted in 32 bit words.
func headerOptions(words string) bitwire.Length {
	return bitwire.Computed(func(t bitwire.Tree) (int, error) {
		n, ok := t.Uint(words)
		if !ok {
			return 0, fmt.Errorf("%w: %s", bitwire.ErrMissingValue, words)
		}
		if n < 5 {
			return 0, fmt.Errorf("%w: %s %d is less than 5", bitwire.ErrRange, words, n)
		}
		return int(n)*4 - 20, nil
	})
}

func ipv4(b *bitwire.Builder) *bitwire.Builder {
	return b.
		Bits("version", 4, bitwire.WithAssert(bitwire.Equals(4))).
		Bits("headerLength", 4).
		Uint8("tos").
		Uint16("packetLength").
		Uint16("id").
		Bits("flags", 3).
		Bits("fragOffset", 13).
		Uint8("ttl").
		Uint8("protocol").
		Uint16("checksum").
		Array("src", bitwire.Of(bitwire.Uint8), bitwire.Count(bitwire.Fixed(4))).
		Array("dst", bitwire.Of(bitwire.Uint8), bitwire.Count(bitwire.Fixed(4))).
		String("options", bitwire.StringSpec{Length: headerOptions("headerLength"), Encoding: "hex"})
}

var tcpFlags = bitwire.New().
	Bits("urg", 1).
	Bits("ack", 1).
	Bits("psh", 1).
	Bits("rst", 1).
	Bits("syn", 1).
	Bits("fin", 1).
	MustBuild()

func tcp(b *bitwire.Builder) *bitwire.Builder {
	return b.
		Uint16("srcPort").
		Uint16("dstPort").
		Uint32("seq").
		Uint32("ack").
		Bits("dataOffset", 4).
		Bits("reserved", 6).
		Nest("flags", bitwire.Static(tcpFlags)).
		Uint16("windowSize").
		Uint16("checksum").
		Uint16("urgentPointer").
		String("options", bitwire.StringSpec{Length: headerOptions("dataOffset"), Encoding: "hex"})
}

func init() {
	register("ipv4", "IPv4 header", ipv4)
	register("tcp", "TCP header", tcp)
}
