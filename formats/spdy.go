package formats

import (
	"fmt"

	"github.com/mkch/bitwire"
)

// SPDY control frame types.
const (
	FrameSynStream    = 1
	FrameSynReply     = 2
	FrameRstStream    = 3
	FrameSettings     = 4
	FrameNoop         = 5
	FramePing         = 6
	FrameGoAway       = 7
	FrameHeaders      = 8
	FrameWindowUpdate = 9
	FrameCredential   = 0x1011
)

// SPDY frame flags.
const (
	FlagFin                   = 0x01
	FlagUnidirectional        = 0x02
	FlagSettingsClearSettings = 0x01
)

const MaxStreamID = 0x7FFFFFFF

var spdySynStream = bitwire.New().
	Bits("x1", 1).
	Bits("streamID", 31).
	Bits("x2", 1).
	Bits("associatedTo", 31).
	Bits("priority", 3).
	Bits("unused", 5).
	Bits("slot", 8).
	MustBuild()

var spdyStream = bitwire.New().
	Bits("x", 1).
	Bits("streamID", 31).
	MustBuild()

var spdyRstStream = bitwire.New().
	Bits("x", 1).
	Bits("streamID", 31).
	Uint32("statusCode").
	MustBuild()

var spdySettingEntry = bitwire.New().
	Bits("flags", 8).
	Bits("id", 24).
	Uint32("value").
	MustBuild()

var spdySettings = bitwire.New().
	Uint32("count").
	Array("entries", bitwire.OfSchema(spdySettingEntry), bitwire.Count(bitwire.Ref("count"))).
	MustBuild()

var spdyPing = bitwire.New().Uint32("id").MustBuild()

var spdyGoAway = bitwire.New().
	Bits("x", 1).
	Bits("lastGoodStreamID", 31).
	Uint32("statusCode").
	MustBuild()

var spdyWindowUpdate = bitwire.New().
	Bits("x", 1).
	Bits("streamID", 31).
	Bits("x1", 1).
	Bits("deltaWindowSize", 31).
	MustBuild()

var spdyNone = bitwire.New().MustBuild()

// spdyPayloads maps a control frame type to its fixed payload and the size
// of that payload. A negative size means the payload takes the whole frame.
var spdyPayloads = map[uint64]struct {
	schema *bitwire.Schema
	size   int
}{
	FrameSynStream:    {spdySynStream, 10},
	FrameSynReply:     {spdyStream, 4},
	FrameRstStream:    {spdyRstStream, 8},
	FrameSettings:     {spdySettings, -1},
	FramePing:         {spdyPing, 4},
	FrameGoAway:       {spdyGoAway, 8},
	FrameHeaders:      {spdyStream, 4},
	FrameWindowUpdate: {spdyWindowUpdate, 8},
}

func spdyPayload(t bitwire.Tree) *bitwire.Schema {
	typ, _ := t.Uint("type")
	if p, ok := spdyPayloads[typ]; ok {
		return p.schema
	}
	return spdyNone
}

// spdyData is the length of the bytes after the fixed payload: the
// compressed header block of SYN_STREAM, SYN_REPLY and HEADERS, the whole
// payload of unknown frame types.
var spdyData = bitwire.Computed(func(t bitwire.Tree) (int, error) {
	typ, _ := t.Uint("type")
	length := uintOf(t, "length")
	p, ok := spdyPayloads[typ]
	switch {
	case !ok:
		return length, nil
	case p.size < 0:
		return 0, nil
	case length < p.size:
		return 0, fmt.Errorf("%w: frame type %d of %d bytes", bitwire.ErrRange, typ, length)
	}
	return length - p.size, nil
})

var spdyControlFrame = bitwire.New().
	Bits("version", 15).
	Bits("type", 16).
	Bits("flags", 8).
	Bits("length", 24).
	Nest("payload", bitwire.Dispatch(spdyPayload)).
	String("data", bitwire.StringSpec{Length: spdyData, Encoding: "hex"}).
	MustBuild()

var spdyDataFrame = bitwire.New().
	Bits("streamID", 31).
	Bits("flags", 8).
	Bits("length", 24).
	String("data", bitwire.StringSpec{Length: bitwire.Ref("length"), Encoding: "hex"}).
	MustBuild()

func spdyFrame(t bitwire.Tree) *bitwire.Schema {
	if c, _ := t.Uint("control"); c == 1 {
		return spdyControlFrame
	}
	return spdyDataFrame
}

// spdy decodes a sequence of frames. Header blocks stay compressed since
// their zlib context spans the frames of a connection.
func spdy(b *bitwire.Builder) *bitwire.Builder {
	return b.Array("frames", bitwire.OfSchema(bitwire.New().
		Bits("control", 1).
		Flatten(bitwire.Dispatch(spdyFrame)).
		MustBuild()), bitwire.UntilEOF())
}

func init() {
	register("spdy", "SPDY/3 frames", spdy)
}
