package envelope

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/goopsie/binpack/pkg/format"
)

var imageDecoders = map[string]func(io.Reader) (image.Image, error){
	"png":  png.Decode,
	"jpg":  jpeg.Decode,
	"jpeg": jpeg.Decode,
	"gif":  gif.Decode,
	"bmp":  bmp.Decode,
	"tif":  tiff.Decode,
	"tiff": tiff.Decode,
	"webp": webp.Decode,
}

// keepsOriginalBytes lists the formats saved under their own extension.
// Every other image format is normalized to PNG on reconstruction.
var keepsOriginalBytes = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
}

func decodeImage(ext string, data []byte) (image.Image, error) {
	decode, ok := imageDecoders[ext]
	if !ok {
		return nil, fmt.Errorf("no decoder for %q: %w", ext, ErrInvalidImageData)
	}
	img, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidImageData)
	}
	return img, nil
}

// DecodeImage reconstructs an image from the envelope at path.
//
// The bytes must decode with the decoder of the recovered extension. PNG and
// JPEG images are saved byte-for-byte under their original name; any other
// image format is re-encoded as PNG and saved as <stem>.png.
func DecodeImage(path string) (string, error) {
	data, err := ReadFile(path)
	if err != nil {
		return "", err
	}

	ext := format.RecoverExtension(filepath.Base(path))
	img, err := decodeImage(ext, data)
	if err != nil {
		return "", &ConversionError{Path: path, Err: err}
	}

	if keepsOriginalBytes[ext] {
		out := originalPath(path, "")
		if err := os.WriteFile(out, data, 0644); err != nil {
			return "", fmt.Errorf("write image %s: %w", out, err)
		}
		return out, nil
	}

	out := originalPath(path, "png")
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png %s: %w", out, err)
	}
	if err := os.WriteFile(out, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("write image %s: %w", out, err)
	}
	return out, nil
}
