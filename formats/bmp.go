package formats

import "github.com/mkch/bitwire"

// BITMAPFILEHEADER
var bmpFileHeader = bitwire.New().
	Order(bitwire.LittleEndian).
	String("type", bitwire.StringSpec{Length: bitwire.Fixed(2)}, bitwire.WithAssert(bitwire.Equals("BM"))).
	Uint32("size").
	Uint16("reserved1").
	Uint16("reserved2").
	Uint32("offBits").
	MustBuild()

// BITMAPINFOHEADER
var bmpInfoHeader = bitwire.New().
	Order(bitwire.LittleEndian).
	Uint32("size").
	Int32("width").
	Int32("height").
	Uint16("planes").
	Uint16("bitCount").
	Uint32("compression").
	Uint32("sizeImage").
	Int32("xPelsPerMeter").
	Int32("yPelsPerMeter").
	Uint32("clrUsed").
	Uint32("clrImportant").
	MustBuild()

func bmp(b *bitwire.Builder) *bitwire.Builder {
	return b.
		Nest("fileHeader", bitwire.Static(bmpFileHeader)).
		Nest("infoHeader", bitwire.Static(bmpInfoHeader))
}

func init() {
	register("bmp", "BMP file and info headers", bmp)
}
