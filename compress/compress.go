package compress

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec is a stream compression format.
type Codec interface {
	// Name is the name used on the command line.
	Name() string
	// Magic returns the bytes every stream of this format starts with.
	Magic() []byte
	NewReader(io.Reader) (io.ReadCloser, error)
	NewWriter(io.Writer) (io.WriteCloser, error)
}

type gzipCodec struct{}

func (gzipCodec) Name() string  { return "gzip" }
func (gzipCodec) Magic() []byte { return []byte{0x1f, 0x8b} }

func (gzipCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

func (gzipCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriter(w), nil
}

type zstdCodec struct{}

func (zstdCodec) Name() string  { return "zstd" }
func (zstdCodec) Magic() []byte { return []byte{0x28, 0xb5, 0x2f, 0xfd} }

func (zstdCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	d, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return d.IOReadCloser(), nil
}

func (zstdCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w)
}

type lz4Codec struct{}

func (lz4Codec) Name() string  { return "lz4" }
func (lz4Codec) Magic() []byte { return []byte{0x04, 0x22, 0x4d, 0x18} }

func (lz4Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

func (lz4Codec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return lz4.NewWriter(w), nil
}

var (
	Gzip Codec = gzipCodec{}
	Zstd Codec = zstdCodec{}
	LZ4  Codec = lz4Codec{}
)

var (
	mu     sync.RWMutex
	codecs = map[string]Codec{}
)

func init() {
	for _, c := range []Codec{Gzip, Zstd, LZ4} {
		Register(c)
	}
}

// Register makes c available by name. It panics if the name is taken or is
// one of the reserved names "auto" and "none".
func Register(c Codec) {
	mu.Lock()
	defer mu.Unlock()
	name := c.Name()
	if name == "auto" || name == "none" {
		panic(fmt.Errorf("compress: reserved codec name %q", name))
	}
	if _, ok := codecs[name]; ok {
		panic(fmt.Errorf("compress: codec %q registered twice", name))
	}
	codecs[name] = c
}

// Lookup returns the codec registered as name.
func Lookup(name string) (Codec, bool) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := codecs[name]
	return c, ok
}

// Names returns the registered codec names in order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Detect returns the codec whose magic bytes start data, or nil.
func Detect(data []byte) Codec {
	mu.RLock()
	defer mu.RUnlock()
	for _, c := range codecs {
		if m := c.Magic(); len(m) > 0 && bytes.HasPrefix(data, m) {
			return c
		}
	}
	return nil
}

func resolve(name string, data []byte) (Codec, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "auto":
		return Detect(data), nil
	}
	c, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("compress: unknown codec %q", name)
	}
	return c, nil
}

// Decompress decodes data with the codec called name. "none" and the empty
// name return data as is.
func Decompress(name string, data []byte) ([]byte, error) {
	c, err := resolve(name, data)
	if err != nil || c == nil {
		return data, err
	}
	r, err := c.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("compress: %s: %w", c.Name(), err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("compress: %s: %w", c.Name(), err)
	}
	return out, nil
}

// Compress encodes data with the codec called name. "auto" is not
// accepted here.
func Compress(name string, data []byte) ([]byte, error) {
	if name == "auto" {
		return nil, fmt.Errorf("compress: auto is only valid for decompression")
	}
	c, err := resolve(name, data)
	if err != nil || c == nil {
		return data, err
	}
	var buf bytes.Buffer
	w, err := c.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("compress: %s: %w", c.Name(), err)
	}
	if _, err = w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("compress: %s: %w", c.Name(), err)
	}
	if err = w.Close(); err != nil {
		return nil, fmt.Errorf("compress: %s: %w", c.Name(), err)
	}
	return buf.Bytes(), nil
}
