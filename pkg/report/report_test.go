package report

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goopsie/binpack/pkg/codec"
	"github.com/goopsie/binpack/pkg/envelope"
	"github.com/goopsie/binpack/pkg/format"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, OK},
		{"algorithm", fmt.Errorf("entry a: %w", codec.ErrUnsupportedAlgorithm), UnsupportedAlgorithm},
		{"image", &envelope.ConversionError{Path: "a.png", Err: envelope.ErrInvalidImageData}, InvalidImageData},
		{"text", &envelope.ConversionError{Path: "a.txt", Err: envelope.ErrInvalidTextEncoding}, InvalidTextEncoding},
		{"lock", fmt.Errorf("remove: %w", ErrTransientLock), TransientLock},
		{"cleanup", fmt.Errorf("%w: %w", ErrCleanupFailed, ErrTransientLock), CleanupFailed},
		{"unsupported", fmt.Errorf("decode: %w", format.ErrUnsupportedKind), Unsupported},
		{"io", fs.ErrNotExist, IO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestReport(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	r := New(log)

	r.Add("a.png", Archived, nil)
	r.Add("b.png", Failed, &envelope.ConversionError{Path: "b.png", Err: envelope.ErrInvalidImageData})
	r.Add("c.txt", Archived, envelope.ErrInvalidTextEncoding)

	outcomes := r.Outcomes()
	require.Len(t, outcomes, 3)
	for i, o := range outcomes {
		assert.Equal(t, uint64(i+1), o.Seq)
	}

	assert.Len(t, r.Failures(), 2)
	assert.Equal(t, 1, r.Count(OK))
	assert.Equal(t, 1, r.Count(InvalidImageData))
	assert.Equal(t, 2, r.CountAction(Archived))

	err := r.Err()
	assert.ErrorIs(t, err, envelope.ErrInvalidImageData)
	assert.ErrorIs(t, err, envelope.ErrInvalidTextEncoding)

	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
			assert.Contains(t, e.Data, "kind")
		}
	}
	assert.Equal(t, 2, warnings)
}

func TestReportEmpty(t *testing.T) {
	r := New(nil)
	assert.NoError(t, r.Err())
	assert.Empty(t, r.Outcomes())
}

func TestReportConcurrent(t *testing.T) {
	log, _ := test.NewNullLogger()
	r := New(log)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				err = errors.New("boom")
			}
			r.Add(fmt.Sprintf("entry-%d", i), Extracted, err)
		}()
	}
	wg.Wait()

	outcomes := r.Outcomes()
	require.Len(t, outcomes, 32)
	seen := make(map[uint64]bool)
	for _, o := range outcomes {
		assert.False(t, seen[o.Seq], "sequence numbers must be unique")
		seen[o.Seq] = true
	}
	assert.Equal(t, 16, r.Count(IO))
}
