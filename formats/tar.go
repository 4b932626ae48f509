package formats

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mkch/bitwire"
)

const tarBlock = 512

// octal returns the option pair for an octal number field of width bytes.
// An empty field is kept as an empty string so it encodes back to zeros.
func octal(width int) []bitwire.Option {
	return []bitwire.Option{
		bitwire.WithFormatter(func(v any) (any, error) {
			s := strings.TrimSpace(v.(string))
			if s == "" {
				return "", nil
			}
			return strconv.ParseUint(s, 8, 64)
		}),
		bitwire.WithEncoder(func(v any) (any, error) {
			if s, ok := v.(string); ok {
				return s, nil
			}
			n, err := bitwire.AsUint(v)
			if err != nil {
				return nil, err
			}
			return fmt.Sprintf("%0*o", width-1, n), nil
		}),
	}
}

func tarString(name string, width int) (string, bitwire.StringSpec) {
	return name, bitwire.StringSpec{Length: bitwire.Fixed(width), StripNull: true}
}

func tarNumber(b *bitwire.Builder, name string, width int) *bitwire.Builder {
	n, spec := tarString(name, width)
	return b.String(n, spec, octal(width)...)
}

// ustar header block. chksum, typeflag and version are kept verbatim.
var tarHeader = func() *bitwire.Schema {
	b := bitwire.New()
	b.String(tarString("name", 100))
	tarNumber(b, "mode", 8)
	tarNumber(b, "uid", 8)
	tarNumber(b, "gid", 8)
	tarNumber(b, "size", 12)
	tarNumber(b, "mtime", 12)
	b.String("chksum", bitwire.StringSpec{Length: bitwire.Fixed(8)})
	b.String("typeflag", bitwire.StringSpec{Length: bitwire.Fixed(1)})
	b.String(tarString("linkname", 100))
	b.String(tarString("magic", 6))
	b.String(tarString("version", 2))
	b.String(tarString("uname", 32))
	b.String(tarString("gname", 32))
	tarNumber(b, "devmajor", 8)
	tarNumber(b, "devminor", 8)
	b.String(tarString("prefix", 155))
	b.Skip(bitwire.Fixed(12))
	return b.MustBuild()
}()

var tarEntry = bitwire.New().
	Flatten(bitwire.Static(tarHeader)).
	String("data", bitwire.StringSpec{
		Length: bitwire.Computed(func(t bitwire.Tree) (int, error) {
			return uintOf(t, "size"), nil
		}),
		Encoding: "binary",
	}).
	Skip(bitwire.Computed(func(t bitwire.Tree) (int, error) {
		return (tarBlock - uintOf(t, "size")%tarBlock) % tarBlock, nil
	})).
	MustBuild()

// tar reads entries up to the end of the archive. The two zero blocks that
// end an archive decode as entries with empty fields.
func tar(b *bitwire.Builder) *bitwire.Builder {
	return b.Array("files", bitwire.OfSchema(tarEntry), bitwire.UntilEOF())
}

func init() {
	register("tar", "ustar archive", tar)
}
