package bitwire_test

import (
	"fmt"
	"log"

	"github.com/mkch/bitwire"
)

func ExampleSchema_Decode() {
	header := bitwire.New().
		Uint16("srcPort").
		Uint16("dstPort").
		Bits("dataOffset", 4).
		Bits("reserved", 12).
		MustBuild()

	t, err := header.Decode([]byte{0xE8, 0xA2, 0x03, 0xE1, 0x80, 0x79})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(t["srcPort"], t["dstPort"], t["dataOffset"], t["reserved"])

	b, err := header.Encode(t)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%x\n", b)
	// Output:
	// 59554 993 8 121
	// e8a203e18079
}

func ExampleDispatch() {
	short := bitwire.New().Uint8("v").MustBuild()
	long := bitwire.New().Uint32("v").MustBuild()
	msg := bitwire.New().
		Uint8("size").
		Nest("body", bitwire.Dispatch(func(t bitwire.Tree) *bitwire.Schema {
			if n, _ := t.Uint("size"); n == 4 {
				return long
			}
			return short
		})).
		MustBuild()

	for _, in := range [][]byte{{1, 7}, {4, 0, 0, 1, 0}} {
		t, err := msg.Decode(in)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(t["body"])
	}
	// Output:
	// map[v:7]
	// map[v:256]
}
