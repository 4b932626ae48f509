// Package treecodec serializes decoded value trees for the command line.
package treecodec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/mkch/bitwire"
)

// Codec converts a Tree to and from a serialized form.
type Codec interface {
	// Marshal serializes t.
	Marshal(t bitwire.Tree) ([]byte, error)
	// Unmarshal parses data into a Tree that Schema.Encode accepts.
	Unmarshal(data []byte) (bitwire.Tree, error)
	// Name returns the codec identifier used for the --input and --output
	// flags.
	Name() string
}

var codecs = map[string]Codec{}

func init() {
	for _, c := range []Codec{JSON{}, YAML{}, CBOR{}, MsgPack{}} {
		codecs[c.Name()] = c
	}
}

// Lookup returns the codec called name.
func Lookup(name string) (Codec, error) {
	c, ok := codecs[name]
	if !ok {
		return nil, fmt.Errorf("unknown tree codec %q", name)
	}
	return c, nil
}

// Names returns the codec names in order.
func Names() []string {
	names := make([]string, 0, len(codecs))
	for n := range codecs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// JSON writes indented JSON. Numbers are read back as json.Number so that
// 64-bit integers survive.
type JSON struct{}

func (JSON) Marshal(t bitwire.Tree) ([]byte, error) {
	b, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func (JSON) Unmarshal(data []byte) (bitwire.Tree, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parsing json: %w", err)
	}
	return normalizeTree(m)
}

func (JSON) Name() string { return "json" }

type YAML struct{}

func (YAML) Marshal(t bitwire.Tree) ([]byte, error) {
	return yaml.Marshal(map[string]any(t))
}

func (YAML) Unmarshal(data []byte) (bitwire.Tree, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	return normalizeTree(m)
}

func (YAML) Name() string { return "yaml" }

// CBOR uses Core Deterministic Encoding, so equal trees give equal bytes.
type CBOR struct{}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("treecodec: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("treecodec: CBOR decoder initialization failed: " + err.Error())
	}
}

func (CBOR) Marshal(t bitwire.Tree) ([]byte, error) {
	return cborEnc.Marshal(map[string]any(t))
}

func (CBOR) Unmarshal(data []byte) (bitwire.Tree, error) {
	var m map[string]any
	if err := cborDec.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing cbor: %w", err)
	}
	return normalizeTree(m)
}

func (CBOR) Name() string { return "cbor" }

type MsgPack struct{}

func (MsgPack) Marshal(t bitwire.Tree) ([]byte, error) {
	return msgpack.Marshal(map[string]any(t))
}

func (MsgPack) Unmarshal(data []byte) (bitwire.Tree, error) {
	var m map[string]any
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing msgpack: %w", err)
	}
	return normalizeTree(m)
}

func (MsgPack) Name() string { return "msgpack" }

func normalizeTree(m map[string]any) (bitwire.Tree, error) {
	if m == nil {
		return nil, fmt.Errorf("input is not an object")
	}
	t := make(bitwire.Tree, len(m))
	for k, v := range m {
		n, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		t[k] = n
	}
	return t, nil
}

// normalize turns the maps of a parsed document into Trees. Only string
// keys are accepted.
func normalize(v any) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		return normalizeTree(x)
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			s, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string key %v", k)
			}
			m[s] = e
		}
		return normalizeTree(m)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			n, err := normalize(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	}
	return v, nil
}
