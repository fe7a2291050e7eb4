package compression

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Compressor defines the interface for payload compression
type Compressor interface {
	// Compress compresses the given data and returns compressed bytes
	Compress(data []byte) ([]byte, error)

	// Decompress decompresses the given compressed bytes
	Decompress(compressed []byte) ([]byte, error)

	// Name returns the name/identifier of the compressor
	Name() string
}

// CompressorType represents different compression algorithms
type CompressorType string

const (
	CompressorNone    CompressorType = "none"
	CompressorGzip    CompressorType = "gzip"
	CompressorDeflate CompressorType = "deflate"
	CompressorZstd    CompressorType = "zstd"
)

// Config holds compression configuration
type Config struct {
	// Enabled determines whether compression is enabled
	Enabled bool

	// Algorithm specifies which compression algorithm to use
	Algorithm CompressorType

	// MinSize is the minimum size in bytes before compression is applied.
	// Smaller payloads are stored uncompressed.
	MinSize int

	// Level is the compression level (1-9 for gzip/deflate, 1-22 for zstd, -1 for default)
	Level int
}

// NewDefaultConfig creates a default compression configuration
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:   false,
		Algorithm: CompressorGzip,
		MinSize:   1024,
		Level:     -1,
	}
}

// WithEnabled sets whether compression is enabled
func (c *Config) WithEnabled(enabled bool) *Config {
	c.Enabled = enabled
	return c
}

// WithAlgorithm sets the compression algorithm
func (c *Config) WithAlgorithm(algorithm CompressorType) *Config {
	c.Algorithm = algorithm
	return c
}

// WithMinSize sets the minimum size threshold for compression
func (c *Config) WithMinSize(minSize int) *Config {
	c.MinSize = minSize
	return c
}

// WithLevel sets the compression level
func (c *Config) WithLevel(level int) *Config {
	c.Level = level
	return c
}

// NoOpCompressor returns data unchanged
type NoOpCompressor struct{}

// NewNoOpCompressor creates a new no-op compressor
func NewNoOpCompressor() *NoOpCompressor {
	return &NoOpCompressor{}
}

func (n *NoOpCompressor) Compress(data []byte) ([]byte, error)       { return data, nil }
func (n *NoOpCompressor) Decompress(compressed []byte) ([]byte, error) { return compressed, nil }
func (n *NoOpCompressor) Name() string                               { return string(CompressorNone) }

// GzipCompressor implements compression using gzip
type GzipCompressor struct {
	level int
}

// NewGzipCompressor creates a new gzip compressor with the specified level
func NewGzipCompressor(level int) *GzipCompressor {
	return &GzipCompressor{level: level}
}

// Compress compresses data using gzip
func (g *GzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	writer, err := gzip.NewWriterLevel(&buf, g.level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if err := writeAndClose(writer, data); err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress decompresses gzip data
func (g *GzipCompressor) Decompress(compressed []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer reader.Close()

	return readAll(reader)
}

func (g *GzipCompressor) Name() string { return string(CompressorGzip) }

// DeflateCompressor implements compression using zlib/deflate
type DeflateCompressor struct {
	level int
}

// NewDeflateCompressor creates a new deflate compressor with the specified level
func NewDeflateCompressor(level int) *DeflateCompressor {
	return &DeflateCompressor{level: level}
}

// Compress compresses data using deflate
func (d *DeflateCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	writer, err := zlib.NewWriterLevel(&buf, d.level)
	if err != nil {
		return nil, fmt.Errorf("failed to create deflate writer: %w", err)
	}
	if err := writeAndClose(writer, data); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress decompresses deflate data
func (d *DeflateCompressor) Decompress(compressed []byte) ([]byte, error) {
	reader, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("failed to create deflate reader: %w", err)
	}
	defer reader.Close()

	return readAll(reader)
}

func (d *DeflateCompressor) Name() string { return string(CompressorDeflate) }

// ZstdCompressor implements compression using zstandard.
// Encoder and decoder are created once and reused; both are safe for concurrent use
// through EncodeAll and DecodeAll.
type ZstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstdCompressor creates a new zstd compressor. level <= 0 selects the default level.
func NewZstdCompressor(level int) (*ZstdCompressor, error) {
	opts := []zstd.EOption{}
	if level > 0 {
		opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	}

	encoder, err := zstd.NewWriter(nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &ZstdCompressor{encoder: encoder, decoder: decoder}, nil
}

// Compress compresses data using zstd
func (z *ZstdCompressor) Compress(data []byte) ([]byte, error) {
	return z.encoder.EncodeAll(data, nil), nil
}

// Decompress decompresses zstd data
func (z *ZstdCompressor) Decompress(compressed []byte) ([]byte, error) {
	data, err := z.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	return data, nil
}

func (z *ZstdCompressor) Name() string { return string(CompressorZstd) }

// NewCompressor creates a new compressor based on the configuration
func NewCompressor(config *Config) (Compressor, error) {
	if config == nil || !config.Enabled {
		return NewNoOpCompressor(), nil
	}

	switch config.Algorithm {
	case CompressorNone:
		return NewNoOpCompressor(), nil
	case CompressorGzip:
		return NewGzipCompressor(config.Level), nil
	case CompressorDeflate:
		return NewDeflateCompressor(config.Level), nil
	case CompressorZstd:
		return NewZstdCompressor(config.Level)
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", config.Algorithm)
	}
}

func writeAndClose(w io.WriteCloser, data []byte) error {
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to write compressed data: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

func readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read decompressed data: %w", err)
	}
	return data, nil
}

// Frame markers prepended by Codec
const (
	frameRaw        byte = 0x00
	frameCompressed byte = 0x01
)

// ErrCorruptFrame is returned by Codec.Decode for payloads without a valid frame marker
var ErrCorruptFrame = errors.New("compression: corrupt frame")

// Codec frames payloads so that compressed and uncompressed values can share a key space.
// Every encoded payload starts with a one-byte marker.
type Codec struct {
	compressor Compressor
	minSize    int
}

// NewCodec creates a codec from the configuration
func NewCodec(config *Config) (*Codec, error) {
	compressor, err := NewCompressor(config)
	if err != nil {
		return nil, err
	}

	minSize := 0
	if config != nil {
		minSize = config.MinSize
	}

	return &Codec{compressor: compressor, minSize: minSize}, nil
}

// Encode frames data, compressing it when it meets the size threshold and
// compression actually reduces its size
func (c *Codec) Encode(data []byte) ([]byte, error) {
	if len(data) >= c.minSize {
		compressed, err := c.compressor.Compress(data)
		if err != nil {
			return nil, err
		}
		if len(compressed) < len(data) {
			return append([]byte{frameCompressed}, compressed...), nil
		}
	}

	return append([]byte{frameRaw}, data...), nil
}

// Decode reverses Encode
func (c *Codec) Decode(framed []byte) ([]byte, error) {
	if len(framed) == 0 {
		return nil, ErrCorruptFrame
	}

	switch framed[0] {
	case frameRaw:
		return framed[1:], nil
	case frameCompressed:
		return c.compressor.Decompress(framed[1:])
	default:
		return nil, fmt.Errorf("%w: marker 0x%02x", ErrCorruptFrame, framed[0])
	}
}

// Name returns the underlying compressor's name
func (c *Codec) Name() string {
	return c.compressor.Name()
}

var (
	_ Compressor = (*NoOpCompressor)(nil)
	_ Compressor = (*GzipCompressor)(nil)
	_ Compressor = (*DeflateCompressor)(nil)
	_ Compressor = (*ZstdCompressor)(nil)
)
