package codec

import (
	"fmt"
	"io"

	"github.com/DataDog/zstd"
	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	kzstd "github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var lz4Levels = [...]lz4.CompressionLevel{
	lz4.Fast,
	lz4.Level1, lz4.Level2, lz4.Level3,
	lz4.Level4, lz4.Level5, lz4.Level6,
	lz4.Level7, lz4.Level8, lz4.Level9,
}

// Compressor returns a zip compressor for the codec at its validated level.
func (c Codec) Compressor() (zip.Compressor, error) {
	level := c.Level
	switch c.Method {
	case MethodZstd:
		return func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriterLevel(w, level), nil
		}, nil
	case MethodDeflated:
		return func(w io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(w, level)
		}, nil
	case MethodBzip2:
		return func(w io.Writer) (io.WriteCloser, error) {
			// Level 0 selects the bzip2 default block size.
			return bzip2.NewWriter(w, &bzip2.WriterConfig{Level: level})
		}, nil
	case MethodLz4:
		return func(w io.Writer) (io.WriteCloser, error) {
			zw := lz4.NewWriter(w)
			if err := zw.Apply(lz4.CompressionLevelOption(lz4Levels[level])); err != nil {
				return nil, fmt.Errorf("configure lz4: %w", err)
			}
			return zw, nil
		}, nil
	default:
		return nil, fmt.Errorf("compressor for method %d: %w", c.Method, ErrUnsupportedAlgorithm)
	}
}

// Decompressor returns the zip decompressor for a method id, or nil when the
// method is not one of ours.
func Decompressor(method uint16) zip.Decompressor {
	switch method {
	case MethodZstd:
		return kzstd.ZipDecompressor()
	case MethodDeflated:
		return flate.NewReader
	case MethodBzip2:
		return func(r io.Reader) io.ReadCloser {
			zr, err := bzip2.NewReader(r, nil)
			if err != nil {
				return errReader{err: fmt.Errorf("open bzip2: %w", err)}
			}
			return zr
		}
	case MethodLz4:
		return func(r io.Reader) io.ReadCloser {
			return io.NopCloser(lz4.NewReader(r))
		}
	default:
		return nil
	}
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }
func (e errReader) Close() error             { return nil }
