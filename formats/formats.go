package formats

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/mkch/bitwire"
)

// Format is a named schema.
type Format struct {
	Name        string
	Description string
	chain       func(*bitwire.Builder) *bitwire.Builder
}

// Schema builds the schema of f. A nil logger discards debug records.
func (f Format) Schema(logger *slog.Logger) (*bitwire.Schema, error) {
	b := bitwire.New()
	if logger != nil {
		b.Logger(logger)
	}
	return f.chain(b).Build()
}

var registry = map[string]Format{}

func register(name, description string, chain func(*bitwire.Builder) *bitwire.Builder) {
	if _, ok := registry[name]; ok {
		panic(fmt.Sprintf("formats: %s registered twice", name))
	}
	registry[name] = Format{Name: name, Description: description, chain: chain}
}

// Lookup returns the format registered as name.
func Lookup(name string) (Format, bool) {
	f, ok := registry[name]
	return f, ok
}

// Names returns the registered format names in order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Schema returns the schema of the format registered as name.
func Schema(name string) (*bitwire.Schema, error) {
	f, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("formats: unknown format %q", name)
	}
	return f.Schema(nil)
}

// uintOf returns the named value as an int, or 0 when it is absent or not a
// number.
func uintOf(t bitwire.Tree, name string) int {
	n, _ := t.Uint(name)
	return int(n)
}

// remainder returns a length of t[name] - sub bytes.
func remainder(name string, sub int) bitwire.Length {
	return bitwire.Computed(func(t bitwire.Tree) (int, error) {
		n, ok := t.Uint(name)
		if !ok {
			return 0, fmt.Errorf("%w: %s", bitwire.ErrMissingValue, name)
		}
		if int(n) < sub {
			return 0, fmt.Errorf("%w: %s is %d, at least %d expected", bitwire.ErrRange, name, n, sub)
		}
		return int(n) - sub, nil
	})
}
