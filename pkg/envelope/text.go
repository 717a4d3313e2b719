package envelope

import (
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"

	"github.com/goopsie/binpack/pkg/format"
)

func validUTF8(data []byte) bool {
	return utf8.Valid(data)
}

// DecodeLossy decodes data as UTF-8, replacing invalid sequences with U+FFFD.
func DecodeLossy(data []byte) ([]byte, error) {
	out, err := unicode.UTF8.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode utf-8: %w", err)
	}
	return out, nil
}

// DecodeText reconstructs a text or JSON file from the envelope or text file
// at path. Invalid UTF-8 never fails the decode; it becomes U+FFFD.
func DecodeText(path string) (string, error) {
	data, err := ReadFile(path)
	if err != nil {
		return "", err
	}

	txt, err := DecodeLossy(data)
	if err != nil {
		return "", &ConversionError{Path: path, Err: fmt.Errorf("%v: %w", err, ErrInvalidTextEncoding)}
	}

	ext := format.RecoverExtension(filepath.Base(path))
	out := originalPath(path, ext)
	if err := os.WriteFile(out, txt, 0644); err != nil {
		return "", fmt.Errorf("write text %s: %w", out, err)
	}
	return out, nil
}
