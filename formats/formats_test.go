package formats

import (
	archivetar "archive/tar"
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkch/bitwire"
)

func decode(t *testing.T, format string, buf []byte) bitwire.Tree {
	t.Helper()
	s, err := Schema(format)
	require.NoError(t, err)
	tree, err := s.Decode(buf)
	require.NoError(t, err)
	out, err := s.Encode(tree)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(buf), hex.EncodeToString(out), "re-encoded %s", format)
	return tree
}

func unhex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"bmp", "ipv4", "jpeg", "spdy", "tar", "tcp"}, Names())
	f, ok := Lookup("tcp")
	require.True(t, ok)
	assert.Equal(t, "tcp", f.Name)
	_, ok = Lookup("gif")
	assert.False(t, ok)
	_, err := Schema("gif")
	assert.Error(t, err)
}

func TestIPv4(t *testing.T) {
	t.Parallel()

	tree := decode(t, "ipv4", unhex(t, "450002c5939901002c06ef98adc24f6c850186d1"))
	assert.Equal(t, bitwire.Tree{
		"version":      uint64(4),
		"headerLength": uint64(5),
		"tos":          uint64(0),
		"packetLength": uint64(709),
		"id":           uint64(0x9399),
		"flags":        uint64(0),
		"fragOffset":   uint64(256),
		"ttl":          uint64(44),
		"protocol":     uint64(6),
		"checksum":     uint64(0xef98),
		"src":          []any{uint64(173), uint64(194), uint64(79), uint64(108)},
		"dst":          []any{uint64(133), uint64(1), uint64(134), uint64(209)},
		"options":      "",
	}, tree)

	s, err := Schema("ipv4")
	require.NoError(t, err)
	_, err = s.Decode(unhex(t, "650002c5939901002c06ef98adc24f6c850186d1"))
	assert.ErrorIs(t, err, bitwire.ErrAssertion)
}

func TestTCP(t *testing.T) {
	t.Parallel()

	tree := decode(t, "tcp", unhex(t, "e8a203e108e177e13d20756b801829d3004100000101080a2ea486ba793310bc"))
	assert.Equal(t, uint64(8), tree["dataOffset"])
	assert.Equal(t, bitwire.Tree{
		"urg": uint64(0), "ack": uint64(1), "psh": uint64(1),
		"rst": uint64(0), "syn": uint64(0), "fin": uint64(0),
	}, tree["flags"])
	assert.Equal(t, "0101080a2ea486ba793310bc", tree["options"])
}

func bmpHeader(t *testing.T, magic string) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString(magic)
	for _, v := range []any{
		uint32(70), uint16(0), uint16(0), uint32(54),
		uint32(40), int32(2), int32(-2), uint16(1), uint16(24),
		uint32(0), uint32(16), int32(2835), int32(2835), uint32(0), uint32(0),
	} {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	}
	return buf.Bytes()
}

func TestBMP(t *testing.T) {
	t.Parallel()

	tree := decode(t, "bmp", bmpHeader(t, "BM"))
	file, ok := tree.Sub("fileHeader")
	require.True(t, ok)
	assert.Equal(t, "BM", file["type"])
	assert.Equal(t, uint64(54), file["offBits"])
	info, ok := tree.Sub("infoHeader")
	require.True(t, ok)
	assert.Equal(t, int64(2), info["width"])
	assert.Equal(t, int64(-2), info["height"])
	assert.Equal(t, uint64(24), info["bitCount"])

	s, err := Schema("bmp")
	require.NoError(t, err)
	_, err = s.Decode(bmpHeader(t, "XX"))
	var de *bitwire.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "fileHeader.type", de.Field)
	assert.ErrorIs(t, err, bitwire.ErrAssertion)
}

func TestTar(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := archivetar.NewWriter(&buf)
	mtime := time.Unix(1700000000, 0)
	for _, f := range []struct{ name, body string }{
		{"hello.txt", "hello world"},
		{"dir/empty", ""},
	} {
		require.NoError(t, w.WriteHeader(&archivetar.Header{
			Name:     f.name,
			Mode:     0o644,
			Size:     int64(len(f.body)),
			ModTime:  mtime,
			Typeflag: archivetar.TypeReg,
			Format:   archivetar.FormatUSTAR,
		}))
		_, err := w.Write([]byte(f.body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	tree := decode(t, "tar", buf.Bytes())
	files, ok := tree["files"].([]any)
	require.True(t, ok)
	// Two entries and the two zero blocks.
	require.Len(t, files, 4)
	first := files[0].(bitwire.Tree)
	assert.Equal(t, "hello.txt", first["name"])
	assert.Equal(t, uint64(11), first["size"])
	assert.Equal(t, uint64(0o644), first["mode"])
	assert.Equal(t, uint64(1700000000), first["mtime"])
	assert.Equal(t, "hello world", first["data"])
	assert.Equal(t, "ustar", first["magic"])
	second := files[1].(bitwire.Tree)
	assert.Equal(t, "dir/empty", second["name"])
	assert.Equal(t, "", second["data"])
	end := files[3].(bitwire.Tree)
	assert.Equal(t, "", end["name"])
	assert.Equal(t, "", end["size"])
}

func TestJPEG(t *testing.T) {
	t.Parallel()

	var in []byte
	for _, s := range []string{
		"ffd8",
		"ffe00010" + "4a46494600" + "0101" + "00" + "0001" + "0001" + "00" + "00",
		"fffe0007" + hex.EncodeToString([]byte("hello")),
		"ffdb0043" + "00" + hex.EncodeToString(bytes.Repeat([]byte{1}, 64)),
		"ffc00011" + "08" + "0010" + "0020" + "03" + "012200" + "021101" + "031101",
		"ffc40005" + "000102",
		"ffda0008" + "01" + "0100" + "00" + "3f" + "00" + "1234abcd",
		"ffd9",
	} {
		in = append(in, unhex(t, s)...)
	}
	tree := decode(t, "jpeg", in)
	segments := tree["segments"].([]any)
	require.Len(t, segments, 8)

	seg := func(i int) bitwire.Tree {
		s, ok := segments[i].(bitwire.Tree).Sub("segment")
		require.True(t, ok)
		return s
	}
	assert.Equal(t, uint64(MarkerSOI), segments[0].(bitwire.Tree)["marker"])
	assert.Equal(t, "JFIF", seg(1)["id"])
	assert.Equal(t, []any{}, seg(1)["thumbData"])
	assert.Equal(t, "hello", seg(2)["comment"])
	assert.Len(t, seg(3)["tables"], 1)
	assert.Equal(t, uint64(16), seg(4)["height"])
	assert.Equal(t, uint64(32), seg(4)["width"])
	assert.Equal(t, "000102", seg(5)["data"])
	assert.Equal(t, []any{uint64(0x12), uint64(0x34), uint64(0xab), uint64(0xcd)}, seg(6)["scan"])
	assert.Equal(t, uint64(MarkerEOI), segments[7].(bitwire.Tree)["marker"])
}

func TestSPDY(t *testing.T) {
	t.Parallel()

	settings := "80030004" + "0000000c" + "00000001" + "00000004" + "00000064"
	data := "00000001" + "01000005" + hex.EncodeToString([]byte("hello"))
	synStream := "80030001" + "0100000e" + "00000001" + "00000000" + "6000" + "deadbeef"
	tree := decode(t, "spdy", unhex(t, settings+data+synStream))

	frames := tree["frames"].([]any)
	require.Len(t, frames, 3)
	assert.Equal(t, bitwire.Tree{
		"control": uint64(1),
		"version": uint64(3),
		"type":    uint64(FrameSettings),
		"flags":   uint64(0),
		"length":  uint64(12),
		"payload": bitwire.Tree{
			"count": uint64(1),
			"entries": []any{
				bitwire.Tree{"flags": uint64(0), "id": uint64(4), "value": uint64(100)},
			},
		},
		"data": "",
	}, frames[0])
	assert.Equal(t, bitwire.Tree{
		"control":  uint64(0),
		"streamID": uint64(1),
		"flags":    uint64(FlagFin),
		"length":   uint64(5),
		"data":     "68656c6c6f",
	}, frames[1])

	syn := frames[2].(bitwire.Tree)
	payload, ok := syn.Sub("payload")
	require.True(t, ok)
	assert.Equal(t, uint64(1), payload["streamID"])
	assert.Equal(t, uint64(3), payload["priority"])
	assert.Equal(t, "deadbeef", syn["data"])

	s, err := Schema("spdy")
	require.NoError(t, err)
	_, err = s.Decode(unhex(t, "80030002"+"00000002"+"00000001"))
	assert.ErrorIs(t, err, bitwire.ErrRange)
}
