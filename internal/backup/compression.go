package backup

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"backup-dr/internal/logging"
)

// DefaultGzipLevel is the compression level used when none is configured
const DefaultGzipLevel = 6

// CompressionStats contains statistics about a compression operation.
// CompressionRatio is a whole percentage and may be zero or negative for
// incompressible input; it is deliberately not clamped.
type CompressionStats struct {
	OriginalSize     int64 `json:"original_size"`
	CompressedSize   int64 `json:"compressed_size"`
	CompressionRatio int   `json:"compression_ratio"`
}

// Codec is a streaming compression codec. Writers and readers wrap the
// underlying file handles so data is never buffered whole in memory.
type Codec interface {
	Name() CompressionAlgorithm
	Suffix() string
	NewWriter(w io.Writer) (io.WriteCloser, error)
	NewReader(r io.Reader) (io.ReadCloser, error)
}

// gzipCodec implements Codec with a configurable gzip level
type gzipCodec struct {
	level int
}

func (c *gzipCodec) Name() CompressionAlgorithm { return AlgorithmGzip }
func (c *gzipCodec) Suffix() string             { return ".gz" }

func (c *gzipCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	zw, err := gzip.NewWriterLevel(w, c.level)
	if err != nil {
		return nil, NewCompressionError("failed to create gzip writer", err)
	}
	return zw, nil
}

func (c *gzipCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, NewCompressionError("failed to create gzip reader", err)
	}
	return zr, nil
}

// zstdCodec implements Codec using Zstandard
type zstdCodec struct{}

func (c *zstdCodec) Name() CompressionAlgorithm { return AlgorithmZstd }
func (c *zstdCodec) Suffix() string             { return ".zst" }

func (c *zstdCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return nil, NewCompressionError("failed to create zstd writer", err)
	}
	return zw, nil
}

func (c *zstdCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, NewCompressionError("failed to create zstd reader", err)
	}
	return zr.IOReadCloser(), nil
}

// lz4Codec implements Codec using LZ4 frames
type lz4Codec struct{}

func (c *lz4Codec) Name() CompressionAlgorithm { return AlgorithmLZ4 }
func (c *lz4Codec) Suffix() string             { return ".lz4" }

func (c *lz4Codec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return lz4.NewWriter(w), nil
}

func (c *lz4Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

// Compressor streams files through a codec. Both directions clean up partial
// output before surfacing an error, so a failed run never leaves a corrupt
// artifact behind.
type Compressor struct {
	codecs map[CompressionAlgorithm]Codec
	logger *logging.Logger
}

// NewCompressor creates a compressor with all supported codecs registered.
// level applies to the gzip codec only; zstd and lz4 use their defaults.
func NewCompressor(level int, logger *logging.Logger) *Compressor {
	if level < gzip.BestSpeed || level > gzip.BestCompression {
		level = DefaultGzipLevel
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Compressor{
		codecs: map[CompressionAlgorithm]Codec{
			AlgorithmGzip: &gzipCodec{level: level},
			AlgorithmZstd: &zstdCodec{},
			AlgorithmLZ4:  &lz4Codec{},
		},
		logger: logger,
	}
}

// Codec returns the codec for the given algorithm; an empty algorithm
// selects gzip
func (c *Compressor) Codec(algo CompressionAlgorithm) (Codec, error) {
	if algo == "" {
		algo = AlgorithmGzip
	}
	codec, ok := c.codecs[algo]
	if !ok {
		return nil, NewCompressionError(fmt.Sprintf("unsupported compression algorithm: %s", algo), nil)
	}
	return codec, nil
}

// SupportedAlgorithms lists the registered codec names
func (c *Compressor) SupportedAlgorithms() []CompressionAlgorithm {
	algos := make([]CompressionAlgorithm, 0, len(c.codecs))
	for name := range c.codecs {
		algos = append(algos, name)
	}
	return algos
}

// Compress streams inputPath through the codec into outputPath and reports
// size statistics. On any failure the partially written output file is
// removed before the error is returned.
func (c *Compressor) Compress(inputPath, outputPath string, algo CompressionAlgorithm) (*CompressionStats, error) {
	codec, err := c.Codec(algo)
	if err != nil {
		return nil, err
	}

	in, err := os.Open(inputPath)
	if err != nil {
		return nil, NewIOError(fmt.Sprintf("failed to open input file: %s", inputPath), err)
	}
	defer in.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return nil, NewIOError(fmt.Sprintf("failed to create output file: %s", outputPath), err)
	}

	zw, err := codec.NewWriter(out)
	if err != nil {
		out.Close()
		c.removePartial(outputPath)
		return nil, err
	}

	if _, err := io.Copy(zw, in); err != nil {
		zw.Close()
		out.Close()
		c.removePartial(outputPath)
		return nil, NewCompressionError(fmt.Sprintf("failed to compress %s", inputPath), err)
	}

	if err := zw.Close(); err != nil {
		out.Close()
		c.removePartial(outputPath)
		return nil, NewCompressionError(fmt.Sprintf("failed to finalize compressed output for %s", inputPath), err)
	}

	if err := out.Close(); err != nil {
		c.removePartial(outputPath)
		return nil, NewIOError(fmt.Sprintf("failed to close output file: %s", outputPath), err)
	}

	return c.Stats(inputPath, outputPath)
}

// Decompress streams inputPath through the codec's decoder into outputPath.
// Partial output is removed on failure. A decode error only signals that the
// file may be corrupted; no CRC pre-check is performed.
func (c *Compressor) Decompress(inputPath, outputPath string, algo CompressionAlgorithm) error {
	codec, err := c.Codec(algo)
	if err != nil {
		return err
	}

	in, err := os.Open(inputPath)
	if err != nil {
		return NewIOError(fmt.Sprintf("failed to open compressed file: %s", inputPath), err)
	}
	defer in.Close()

	zr, err := codec.NewReader(in)
	if err != nil {
		return NewCompressionError(
			fmt.Sprintf("failed to read %s: file may be corrupted", inputPath), err)
	}
	defer zr.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return NewIOError(fmt.Sprintf("failed to create output file: %s", outputPath), err)
	}

	if _, err := io.Copy(out, zr); err != nil {
		out.Close()
		c.removePartial(outputPath)
		return NewCompressionError(
			fmt.Sprintf("failed to decompress %s: file may be corrupted", inputPath), err)
	}

	if err := out.Close(); err != nil {
		c.removePartial(outputPath)
		return NewIOError(fmt.Sprintf("failed to close output file: %s", outputPath), err)
	}

	return nil
}

// Stats reports size statistics for an existing original/compressed pair
func (c *Compressor) Stats(originalPath, compressedPath string) (*CompressionStats, error) {
	origInfo, err := os.Stat(originalPath)
	if err != nil {
		return nil, NewIOError(fmt.Sprintf("failed to stat original file: %s", originalPath), err)
	}
	compInfo, err := os.Stat(compressedPath)
	if err != nil {
		return nil, NewIOError(fmt.Sprintf("failed to stat compressed file: %s", compressedPath), err)
	}

	return &CompressionStats{
		OriginalSize:     origInfo.Size(),
		CompressedSize:   compInfo.Size(),
		CompressionRatio: compressionRatio(origInfo.Size(), compInfo.Size()),
	}, nil
}

// compressionRatio returns round(((original-compressed)/original)*100),
// unclamped; zero when the original is empty
func compressionRatio(originalSize, compressedSize int64) int {
	if originalSize == 0 {
		return 0
	}
	ratio := (float64(originalSize-compressedSize) / float64(originalSize)) * 100
	return int(math.Round(ratio))
}

// removePartial deletes a partially-written output file. Deletion failures
// are logged, not surfaced: the original error matters more.
func (c *Compressor) removePartial(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		c.logger.Warnf("failed to remove partial output %s: %v", path, err)
	}
}
