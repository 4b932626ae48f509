package bitwire

import (
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// String renders the field chain of s, one field per line, with nested
// schemas indented. Dispatch targets are shown without their candidates.
func (s *Schema) String() string {
	var b strings.Builder
	s.describe(&b, 0)
	return b.String()
}

// Fingerprint returns the BLAKE3 digest of s.String(). Two schemas with the
// same layout have the same fingerprint.
func (s *Schema) Fingerprint() [32]byte {
	return blake3.Sum256([]byte(s.String()))
}

func hookFlags(h *Hooks) string {
	var flags []string
	if h.Assert != nil {
		flags = append(flags, "assert")
	}
	if h.Formatter != nil {
		flags = append(flags, "format")
	}
	if h.Encoder != nil {
		flags = append(flags, "encode")
	}
	if len(flags) == 0 {
		return ""
	}
	return " [" + strings.Join(flags, ",") + "]"
}

func describeString(f *StringField) string {
	var parts []string
	switch f.Mode {
	case FixedLength, FixedOrZeroTerminated:
		parts = append(parts, f.Mode.String()+" "+f.Length.String())
	default:
		parts = append(parts, f.Mode.String())
	}
	parts = append(parts, f.Encoding)
	if f.StripNull {
		parts = append(parts, "stripnull")
	}
	return strings.Join(parts, ", ")
}

func (s *Schema) describe(b *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(b, "%sschema %v-endian\n", indent, s.order)
	indent += "  "
	for _, f := range s.fields {
		switch f := f.(type) {
		case *Primitive:
			order := ""
			if f.OwnOrder {
				order = " " + f.Order.String() + "-endian"
			}
			fmt.Fprintf(b, "%s%v %s%s%s\n", indent, f.Kind, f.Name, order, hookFlags(&f.Hooks))
		case *BitGroup:
			fmt.Fprintf(b, "%sbits %d\n", indent, f.Width())
			for i := range f.Entries {
				e := &f.Entries[i]
				fmt.Fprintf(b, "%s  bit%d %s%s\n", indent, e.Width, e.Name, hookFlags(&e.Hooks))
			}
		case *StringField:
			fmt.Fprintf(b, "%sstring %s (%s)%s\n", indent, f.Name, describeString(f), hookFlags(&f.Hooks))
		case *ArrayField:
			fmt.Fprintf(b, "%sarray %s [%v; %v]\n", indent, f.Name, f.Elem, f.Count)
			if f.Elem.schema != nil {
				f.Elem.schema.describe(b, depth+2)
			}
		case *NestField:
			name := f.Name
			if name == "" {
				name = "(flatten)"
			}
			if target, ok := f.Target.Schema(); ok {
				fmt.Fprintf(b, "%snest %s\n", indent, name)
				target.describe(b, depth+2)
			} else {
				fmt.Fprintf(b, "%snest %s dispatch\n", indent, name)
			}
		case *SkipField:
			unit := "bytes"
			if f.Unit == UnitBits {
				unit = "bits"
			}
			fmt.Fprintf(b, "%sskip %v %s fill 0x%02x\n", indent, f.Length, unit, f.Fill)
		}
	}
}
