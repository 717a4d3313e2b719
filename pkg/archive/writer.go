// Package archive provides the zip container binpack writes and reads.
//
// A Writer is shared by every packing worker. Entries are appended under a
// mutex held only while an entry is created and its bytes are copied, so at
// most one entry write is in flight at any time.
package archive

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/goopsie/binpack/pkg/codec"
)

// Writer appends compressed entries to a zip stream.
type Writer struct {
	mu     sync.Mutex
	zw     *zip.Writer
	closed bool
	err    error // first failed copy; the stream is unusable after it
}

// NewWriter creates a new archive writer that writes to dst.
func NewWriter(dst io.Writer) *Writer {
	return &Writer{zw: zip.NewWriter(dst)}
}

// Append starts a new entry named name, compressed with c, and copies r into it.
// It is safe to call from multiple goroutines.
//
// A failed copy leaves a truncated entry in the stream. The writer is then
// broken: later Appends fail and Close reports the error, so callers must
// treat the archive as lost rather than as missing one entry.
func (w *Writer) Append(name string, c codec.Codec, r io.Reader) (int64, error) {
	comp, err := c.Compressor()
	if err != nil {
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, fmt.Errorf("append %s: writer closed", name)
	}
	if w.err != nil {
		return 0, fmt.Errorf("append %s: %w", name, w.err)
	}

	w.zw.RegisterCompressor(c.Method, comp)
	fh := &zip.FileHeader{
		Name:     name,
		Method:   c.Method,
		Modified: time.Now(),
	}
	ew, err := w.zw.CreateHeader(fh)
	if err != nil {
		return 0, fmt.Errorf("create entry %s: %w", name, err)
	}

	n, err := io.Copy(ew, r)
	if err != nil {
		w.err = fmt.Errorf("write entry %s: %w", name, err)
		return n, w.err
	}
	return n, nil
}

// Close finalizes the archive by writing the central directory.
// It does not close the underlying writer.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.zw.Close(); err != nil {
		return errors.Join(w.err, fmt.Errorf("finalize archive: %w", err))
	}
	if w.err != nil {
		return fmt.Errorf("archive incomplete: %w", w.err)
	}
	return nil
}
