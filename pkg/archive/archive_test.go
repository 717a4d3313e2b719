package archive

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goopsie/binpack/pkg/codec"
)

func writeArchive(t *testing.T, entries map[string][]byte, c codec.Codec) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "out.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := NewWriter(f)
	for name, data := range entries {
		n, err := w.Append(name, c, bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), n)
	}
	require.NoError(t, w.Close())
	return path
}

func TestReadWrite(t *testing.T) {
	original := []byte("Hello, World! This is test data for compression.")

	for _, name := range []string{codec.Zstd, codec.Bzip2, codec.Deflated, codec.Lz4} {
		t.Run(name, func(t *testing.T) {
			c, err := codec.Resolve(name, 3)
			require.NoError(t, err)

			path := writeArchive(t, map[string][]byte{
				"hello.txt":     original,
				"sub/empty.bin": {},
			}, c)

			r, err := Open(path)
			require.NoError(t, err)
			defer r.Close()
			require.Equal(t, 2, r.Len())

			got := map[string][]byte{}
			for i := 0; i < r.Len(); i++ {
				e, err := r.ReadEntry(i)
				require.NoError(t, err)
				got[filepath.ToSlash(e.Name)] = e.Data
			}
			assert.Equal(t, original, got["hello.txt"])
			assert.Empty(t, got["sub/empty.bin"])
		})
	}
}

func TestConcurrentAppend(t *testing.T) {
	c, err := codec.Resolve(codec.Deflated, 6)
	require.NoError(t, err)

	var buf bytes.Buffer
	w := NewWriter(&buf)

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data := bytes.Repeat([]byte{byte(i)}, 4096+i)
			_, err := w.Append(fmt.Sprintf("entry-%02d", i), c, bytes.NewReader(data))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "concurrent.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, workers, r.Len())

	for i := 0; i < r.Len(); i++ {
		e, err := r.ReadEntry(i)
		require.NoError(t, err)
		var idx int
		_, err = fmt.Sscanf(e.Name, "entry-%02d", &idx)
		require.NoError(t, err)
		assert.Equal(t, bytes.Repeat([]byte{byte(idx)}, 4096+idx), e.Data)
	}
}

func TestAppendAfterClose(t *testing.T) {
	c, err := codec.Resolve(codec.Zstd, 3)
	require.NoError(t, err)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Append("late", c, bytes.NewReader(nil))
	assert.Error(t, err)
}

func TestReadEntryOutOfRange(t *testing.T) {
	c, err := codec.Resolve(codec.Zstd, 3)
	require.NoError(t, err)
	path := writeArchive(t, map[string][]byte{"a": []byte("a")}, c)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ReadEntry(1)
	assert.Error(t, err)
	_, err = r.ReadEntry(-1)
	assert.Error(t, err)
	assert.Equal(t, "a", r.Name(0))
	assert.Empty(t, r.Name(1))
}

func TestReadEntryChecksum(t *testing.T) {
	payload := []byte("hello world, this is the payload")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	ew, err := zw.CreateHeader(&zip.FileHeader{Name: "a.txt", Method: zip.Store})
	require.NoError(t, err)
	_, err = ew.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	raw := buf.Bytes()
	i := bytes.Index(raw, payload)
	require.GreaterOrEqual(t, i, 0)
	raw[i+len(payload)-7] ^= 0x20

	path := filepath.Join(t.TempDir(), "corrupt.zip")
	require.NoError(t, os.WriteFile(path, raw, 0644))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ReadEntry(0)
	assert.ErrorIs(t, err, zip.ErrChecksum)
}

type failingSink struct{}

func (failingSink) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestAppendBreaksWriterOnCopyFailure(t *testing.T) {
	c, err := codec.Resolve(codec.Deflated, 0)
	require.NoError(t, err)

	data := make([]byte, 256*1024)
	_, err = rand.Read(data)
	require.NoError(t, err)

	w := NewWriter(failingSink{})
	_, err = w.Append("big.bin", c, bytes.NewReader(data))
	require.Error(t, err)

	_, err = w.Append("small.txt", c, bytes.NewReader([]byte("x")))
	assert.ErrorContains(t, err, "big.bin")
	assert.Error(t, w.Close())
}

func TestLocalName(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		for _, name := range []string{"a.txt", "sub/a.png.bin", "dir/"} {
			_, err := LocalName(name)
			assert.NoError(t, err, name)
		}
	})

	t.Run("Escaping", func(t *testing.T) {
		for _, name := range []string{"../evil", "/abs/path", "", "a/../../b"} {
			_, err := LocalName(name)
			assert.Error(t, err, name)
		}
	})
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.zip"))
	assert.Error(t, err)
}
