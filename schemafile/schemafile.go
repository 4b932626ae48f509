package schemafile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Document is a parsed schema file.
type Document struct {
	Name string `yaml:"name" json:"name"`
	// Endian is "big" (the default) or "little".
	Endian  string             `yaml:"endian" json:"endian"`
	Structs map[string]*Struct `yaml:"structs" json:"structs"`
	Fields  []FieldDef         `yaml:"fields" json:"fields"`
}

// Struct is a named schema that fields refer to with nest, match or an
// array's of. Its Endian defaults to the document's.
type Struct struct {
	Endian string     `yaml:"endian" json:"endian"`
	Fields []FieldDef `yaml:"fields" json:"fields"`
}

// FieldDef is one field of a struct. Type is a primitive type name, or one
// of bits, string, array, nest, match and skip.
type FieldDef struct {
	Name   string `yaml:"name" json:"name"`
	Type   string `yaml:"type" json:"type"`
	Endian string `yaml:"endian" json:"endian"`
	// Assert compares the decoded value with a literal number or string.
	Assert any `yaml:"assert" json:"assert"`

	// bits
	Width int `yaml:"width" json:"width"`

	// string, and skip for Length
	Length         Expr   `yaml:"length" json:"length"`
	ZeroTerminated bool   `yaml:"zeroTerminated" json:"zeroTerminated"`
	Greedy         bool   `yaml:"greedy" json:"greedy"`
	StripNull      bool   `yaml:"stripNull" json:"stripNull"`
	Encoding       string `yaml:"encoding" json:"encoding"`

	// array
	Of        string    `yaml:"of" json:"of"`
	Element   *FieldDef `yaml:"element" json:"element"`
	Count     Expr      `yaml:"count" json:"count"`
	Until     string    `yaml:"until" json:"until"`
	Remaining int       `yaml:"remaining" json:"remaining"`

	// nest and match. An unnamed nest or match merges into the parent.
	Struct string `yaml:"struct" json:"struct"`
	Match  *Match `yaml:"match" json:"match"`

	// skip
	Unit string `yaml:"unit" json:"unit"`
	Fill uint8  `yaml:"fill" json:"fill"`
}

// Match selects a struct by the value of an earlier field. Case keys are
// integers (decimal, 0x hex or 0o octal) or strings.
type Match struct {
	On      string            `yaml:"on" json:"on"`
	Cases   map[string]string `yaml:"cases" json:"cases"`
	Default string            `yaml:"default" json:"default"`
}

var ErrCircular = errors.New("circular struct reference")

// Parse parses a YAML or JSONC schema document. Input whose first
// significant byte is '{' is read as JSONC.
func Parse(data []byte) (*Document, error) {
	if isJSON(data) {
		return ParseJSONC(data)
	}
	return ParseYAML(data)
}

func isJSON(data []byte) bool {
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 || bytes.HasPrefix(line, []byte("//")) || bytes.HasPrefix(line, []byte("#")) {
			continue
		}
		return line[0] == '{'
	}
	return false
}

// ParseYAML parses a YAML schema document. Unknown keys are errors.
func ParseYAML(data []byte) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}
	return &doc, nil
}

// ParseJSONC parses JSON extended with comments and trailing commas.
// Unknown keys are errors.
func ParseJSONC(data []byte) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}
	return &doc, nil
}

// ReadFile reads and parses a schema file. The extension picks the syntax:
// .json and .jsonc are JSONC, anything else goes through Parse. A document
// without a name is named after the file.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var doc *Document
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".jsonc":
		doc, err = ParseJSONC(data)
	case ".yaml", ".yml":
		doc, err = ParseYAML(data)
	default:
		doc, err = Parse(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if doc.Name == "" {
		doc.Name = NameFromPath(path)
	}
	return doc, nil
}

// NameFromPath returns the base name of path without its extension.
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Find looks for name in each directory of a colon separated search path,
// trying the extensions .yaml, .yml, .jsonc and .json when name has none.
// A name containing a path separator is returned unchanged.
func Find(name, searchPath string) (string, error) {
	if strings.ContainsRune(name, filepath.Separator) || searchPath == "" {
		return name, nil
	}
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}
	candidates := []string{name}
	if filepath.Ext(name) == "" {
		candidates = nil
		for _, ext := range []string{".yaml", ".yml", ".jsonc", ".json"} {
			candidates = append(candidates, name+ext)
		}
	}
	for _, dir := range filepath.SplitList(searchPath) {
		for _, c := range candidates {
			p := filepath.Join(dir, c)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("schema %q not found in %s", name, searchPath)
}
