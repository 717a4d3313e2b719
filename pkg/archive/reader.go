package archive

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/goopsie/binpack/pkg/codec"
)

// MaxEntrySize caps the declared size of an entry read into memory.
const MaxEntrySize = 1 << 32

// Entry is one archive entry read into memory.
type Entry struct {
	Name  string
	IsDir bool
	Data  []byte
}

// Reader reads archive entries sequentially by index.
// It is not safe for concurrent use.
type Reader struct {
	rc *zip.ReadCloser
}

// Open opens the archive at path and registers every decompressor binpack writes.
func Open(path string) (*Reader, error) {
	// An insecure entry name still yields a usable reader; such names are
	// rejected per entry by LocalName.
	rc, err := zip.OpenReader(path)
	if rc == nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	for _, m := range codec.Methods() {
		rc.RegisterDecompressor(m, codec.Decompressor(m))
	}
	return &Reader{rc: rc}, nil
}

// Len returns the number of entries.
func (r *Reader) Len() int {
	return len(r.rc.File)
}

// Name returns the raw name of the i-th entry, or "" when i is out of range.
func (r *Reader) Name(i int) string {
	if i < 0 || i >= len(r.rc.File) {
		return ""
	}
	return r.rc.File[i].Name
}

// ReadEntry reads the i-th entry eagerly. The read is bounded by the entry's
// declared uncompressed size and fails on a checksum mismatch.
func (r *Reader) ReadEntry(i int) (*Entry, error) {
	if i < 0 || i >= len(r.rc.File) {
		return nil, fmt.Errorf("entry index %d out of range [0, %d)", i, len(r.rc.File))
	}
	f := r.rc.File[i]

	name, err := LocalName(f.Name)
	if err != nil {
		return nil, err
	}
	if f.FileInfo().IsDir() {
		return &Entry{Name: name, IsDir: true}, nil
	}

	if f.UncompressedSize64 > MaxEntrySize {
		return nil, fmt.Errorf("entry %s: declared size %d exceeds %d bytes", f.Name, f.UncompressedSize64, uint64(MaxEntrySize))
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	// Reading through to EOF makes the zip reader verify the CRC-32, and the
	// buffer only grows as bytes actually arrive.
	size := int64(f.UncompressedSize64)
	data, err := io.ReadAll(io.LimitReader(rc, size+1))
	if err != nil {
		return nil, fmt.Errorf("read entry %s: %w", f.Name, err)
	}
	if int64(len(data)) != size {
		return nil, fmt.Errorf("read entry %s: got %d bytes, header declares %d", f.Name, len(data), size)
	}

	return &Entry{Name: name, Data: data}, nil
}

// Close closes the archive file.
func (r *Reader) Close() error {
	return r.rc.Close()
}

// LocalName validates an entry name and converts it to a local relative path.
// Names escaping the extraction root are rejected.
func LocalName(name string) (string, error) {
	clean := strings.TrimSuffix(name, "/")
	local := filepath.FromSlash(clean)
	if clean == "" || !filepath.IsLocal(local) {
		return "", fmt.Errorf("invalid entry name %q", name)
	}
	return local, nil
}
