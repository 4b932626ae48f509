package formats

import "github.com/mkch/bitwire"

// JPEG markers with a dedicated segment layout.
const (
	MarkerSOI  = 0xFFD8
	MarkerEOI  = 0xFFD9
	MarkerAPP0 = 0xFFE0
	MarkerCOM  = 0xFFFE
	MarkerSOS  = 0xFFDA
	MarkerDQT  = 0xFFDB
	MarkerSOF0 = 0xFFC0
)

var jpegEmpty = bitwire.New().MustBuild()

var jpegAPP0 = bitwire.New().
	Uint16("length").
	String("id", bitwire.StringSpec{ZeroTerminated: true}, bitwire.WithAssert(bitwire.Equals("JFIF"))).
	Uint16("version").
	Uint8("unit").
	Uint16("xDensity").
	Uint16("yDensity").
	Uint8("thumbWidth").
	Uint8("thumbHeight").
	Array("thumbData", bitwire.Of(bitwire.Uint8), bitwire.Count(bitwire.Computed(func(t bitwire.Tree) (int, error) {
		return uintOf(t, "thumbWidth") * uintOf(t, "thumbHeight") * 3, nil
	}))).
	MustBuild()

var jpegCOM = bitwire.New().
	Uint16("length").
	String("comment", bitwire.StringSpec{Length: remainder("length", 2)}).
	MustBuild()

var jpegComponent = bitwire.New().Uint8("id").Uint8("dht").MustBuild()

// The entropy coded scan runs up to the EOI marker that ends the file.
var jpegSOS = bitwire.New().
	Uint16("length").
	Uint8("componentCount").
	Array("components", bitwire.OfSchema(jpegComponent), bitwire.Count(bitwire.Ref("componentCount"))).
	Uint8("spectrumStart").
	Uint8("spectrumEnd").
	Uint8("spectrumSelect").
	Array("scan", bitwire.Of(bitwire.Uint8), bitwire.UntilRemaining(2)).
	MustBuild()

var jpegQuantTable = bitwire.New().
	Uint8("precisionAndTableId").
	Array("table", bitwire.Of(bitwire.Uint8), bitwire.Count(bitwire.Fixed(64))).
	MustBuild()

var jpegDQT = bitwire.New().
	Uint16("length").
	Array("tables", bitwire.OfSchema(jpegQuantTable), bitwire.Count(bitwire.Computed(func(t bitwire.Tree) (int, error) {
		return (uintOf(t, "length") - 2) / 65, nil
	}))).
	MustBuild()

var jpegFrameComponent = bitwire.New().
	Uint8("id").
	Uint8("samplingFactor").
	Uint8("quantizationTableId").
	MustBuild()

var jpegSOF0 = bitwire.New().
	Uint16("length").
	Uint8("precision").
	Uint16("height").
	Uint16("width").
	Uint8("componentCount").
	Array("components", bitwire.OfSchema(jpegFrameComponent), bitwire.Count(bitwire.Ref("componentCount"))).
	MustBuild()

// Segments without a dedicated layout keep their payload as hex.
var jpegOther = bitwire.New().
	Uint16("length").
	String("data", bitwire.StringSpec{Length: remainder("length", 2), Encoding: "hex"}).
	MustBuild()

func jpegSegment(t bitwire.Tree) *bitwire.Schema {
	marker, _ := t.Uint("marker")
	switch marker {
	case MarkerSOI, MarkerEOI:
		return jpegEmpty
	case MarkerAPP0:
		return jpegAPP0
	case MarkerCOM:
		return jpegCOM
	case MarkerSOS:
		return jpegSOS
	case MarkerDQT:
		return jpegDQT
	case MarkerSOF0:
		return jpegSOF0
	}
	return jpegOther
}

var jpegMarker = bitwire.New().
	Uint16("marker").
	Nest("segment", bitwire.Dispatch(jpegSegment)).
	MustBuild()

func jpeg(b *bitwire.Builder) *bitwire.Builder {
	return b.Array("segments", bitwire.OfSchema(jpegMarker), bitwire.UntilEOF())
}

func init() {
	register("jpeg", "JPEG segments", jpeg)
}
