package bitwire

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"
)

func TestConcurrentUse(t *testing.T) {
	t.Parallel()

	s := tcpFlags(LittleEndian)
	var g errgroup.Group
	for i := range 16 {
		g.Go(func() error {
			v := Tree{
				"srcPort":    uint64(i),
				"dstPort":    uint64(993),
				"seq":        uint64(i * 1000),
				"ack":        uint64(7),
				"dataOffset": uint64(i % 16),
				"reserved":   uint64(i),
				"flags": Tree{
					"urg": uint64(i & 1), "ack": uint64(1), "psh": uint64(0),
					"rst": uint64(0), "syn": uint64(i >> 3 & 1), "fin": uint64(1),
				},
				"windowSize":    uint64(10707),
				"checksum":      uint64(i),
				"urgentPointer": uint64(0),
			}
			for range 50 {
				buf, err := s.Encode(v)
				if err != nil {
					return err
				}
				orig := bytes.Clone(buf)
				got, err := s.Decode(buf)
				if err != nil {
					return err
				}
				if diff := cmp.Diff(v, got); diff != "" {
					return fmt.Errorf("goroutine %d: mismatch (-want +got):\n%s", i, diff)
				}
				if !bytes.Equal(buf, orig) {
					return fmt.Errorf("goroutine %d: input modified", i)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}
