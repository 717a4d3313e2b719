// Package envelope wraps files into binary envelopes and reconstructs them.
//
// An envelope is a file named <original-name>.bin holding the original
// file's bytes unmodified. The original name, extension included, is
// recovered by stripping the trailing ".bin"; there is no sidecar metadata.
package envelope

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/exp/mmap"

	"github.com/goopsie/binpack/pkg/format"
)

// Conversion errors.
var (
	ErrInvalidImageData    = errors.New("invalid image data")
	ErrInvalidTextEncoding = errors.New("invalid text encoding")
)

// ConversionError reports content that does not match its inferred format.
type ConversionError struct {
	Path string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s: %v", e.Path, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// ReadFile reads the whole file at path through a read-only memory map.
func ReadFile(path string) ([]byte, error) {
	ra, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", path, err)
	}
	defer ra.Close()

	data := make([]byte, ra.Len())
	if _, err := ra.ReadAt(data, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Verify checks that data matches the kind inferred from name. Image data
// must decode with the decoder of its extension; text must be valid UTF-8.
// Other kinds are always accepted.
func Verify(name string, kind format.Kind, data []byte) error {
	switch kind {
	case format.Image:
		if _, err := decodeImage(format.Ext(name), data); err != nil {
			return &ConversionError{Path: name, Err: err}
		}
	case format.Text:
		if !validUTF8(data) {
			return &ConversionError{Path: name, Err: ErrInvalidTextEncoding}
		}
	}
	return nil
}

// Encode copies the file at path verbatim into outputDir/<base name>.bin and
// returns the envelope path. The content is verified against kind first, so
// no envelope is written for a file that could not be reconstructed.
func Encode(path, outputDir string, kind format.Kind) (string, error) {
	data, err := ReadFile(path)
	if err != nil {
		return "", err
	}

	name := filepath.Base(path)
	if err := Verify(name, kind, data); err != nil {
		return "", err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("create envelope dir: %w", err)
	}
	envPath := filepath.Join(outputDir, format.EnvelopeName(name))
	if err := os.WriteFile(envPath, data, 0644); err != nil {
		return "", fmt.Errorf("write envelope %s: %w", envPath, err)
	}
	return envPath, nil
}

// Decode reconstructs the original file from the envelope or text file at
// path and returns the reconstructed path. The reconstruction is written next
// to path. Decode does not remove path; retiring the envelope is the caller's
// decision.
func Decode(path string, classifier *format.Classifier) (string, error) {
	name := filepath.Base(path)
	switch kind := classifier.ClassifyEntry(name); kind {
	case format.Image:
		return DecodeImage(path)
	case format.Text:
		return DecodeText(path)
	default:
		return "", fmt.Errorf("decode %s (%s): %w", name, kind, format.ErrUnsupportedKind)
	}
}

// originalPath returns the path the reconstruction of path is written to,
// with ext replacing the original extension when ext is non-empty.
func originalPath(path, ext string) string {
	dir, name := filepath.Split(path)
	if original, ok := format.ParseEnvelope(name); ok {
		name = original
	}
	if ext != "" && format.Ext(name) != ext {
		name = name[:len(name)-len(filepath.Ext(name))] + "." + ext
	}
	return filepath.Join(dir, name)
}
