package codec

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compressor is a reversible byte transform applied to large payloads.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Name() string
}

// CompressorFactory creates a Compressor.
type CompressorFactory func() (Compressor, error)

var (
	mu          sync.RWMutex
	compressors = make(map[string]CompressorFactory)
)

func init() {
	RegisterCompressor("none", func() (Compressor, error) { return None{}, nil })
	RegisterCompressor("gzip", func() (Compressor, error) { return Gzip{Level: gzip.DefaultCompression}, nil })
	RegisterCompressor("brotli", func() (Compressor, error) { return Brotli{Quality: brotli.DefaultCompression}, nil })
	RegisterCompressor("zstd", newZstd)
}

// RegisterCompressor registers a compressor under the given name.
// It panics if the name is already registered or the factory is nil.
func RegisterCompressor(name string, f CompressorFactory) {
	mu.Lock()
	defer mu.Unlock()

	if f == nil {
		panic("codec: RegisterCompressor factory is nil")
	}
	if _, exists := compressors[name]; exists {
		panic(fmt.Sprintf("codec: compressor %q already registered", name))
	}
	compressors[name] = f
}

// NewCompressor creates the compressor registered under name.
func NewCompressor(name string) (Compressor, error) {
	mu.RLock()
	f, ok := compressors[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("codec: unknown compressor %q (registered: %v)", name, RegisteredCompressors())
	}
	return f()
}

// RegisteredCompressors returns a sorted list of registered compressor names.
func RegisteredCompressors() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(compressors))
	for name := range compressors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// None is the identity transform.
type None struct{}

func (None) Compress(data []byte) ([]byte, error)   { return data, nil }
func (None) Decompress(data []byte) ([]byte, error) { return data, nil }
func (None) Name() string                           { return "none" }

// Gzip compresses with klauspost/compress/gzip.
type Gzip struct {
	// Level is a gzip compression level. Zero selects gzip.DefaultCompression;
	// use gzip.HuffmanOnly or a positive level for anything else.
	Level int
}

func (g Gzip) Compress(data []byte) ([]byte, error) {
	level := g.Level
	if level == gzip.NoCompression {
		level = gzip.DefaultCompression
	}
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (Gzip) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (Gzip) Name() string { return "gzip" }

// Brotli compresses with andybalholm/brotli.
type Brotli struct {
	Quality int
}

func (b Brotli) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, b.Quality)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (Brotli) Decompress(data []byte) ([]byte, error) {
	return io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
}

func (Brotli) Name() string { return "brotli" }

// Zstd compresses with klauspost/compress/zstd. EncodeAll and DecodeAll are
// safe for concurrent use, so one encoder and decoder pair is shared.
type Zstd struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newZstd() (Compressor, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, err
	}
	return &Zstd{encoder: enc, decoder: dec}, nil
}

func (z *Zstd) Compress(data []byte) ([]byte, error) {
	return z.encoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

func (z *Zstd) Decompress(data []byte) ([]byte, error) {
	return z.decoder.DecodeAll(data, nil)
}

func (z *Zstd) Name() string { return "zstd" }
