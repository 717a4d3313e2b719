// Package report collects per-entry outcomes of a pack or restore run.
package report

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/goopsie/binpack/pkg/codec"
	"github.com/goopsie/binpack/pkg/envelope"
	"github.com/goopsie/binpack/pkg/format"
)

// Kind classifies a per-entry error.
type Kind uint8

const (
	OK Kind = iota
	IO
	UnsupportedAlgorithm
	InvalidImageData
	InvalidTextEncoding
	TransientLock
	CleanupFailed
	Unsupported
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "ok"
	case IO:
		return "io"
	case UnsupportedAlgorithm:
		return "unsupported_algorithm"
	case InvalidImageData:
		return "invalid_image_data"
	case InvalidTextEncoding:
		return "invalid_text_encoding"
	case TransientLock:
		return "transient_lock"
	case CleanupFailed:
		return "cleanup_failed"
	case Unsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Sentinels owned by packages that report does not import.
var (
	ErrTransientLock = errors.New("file is transiently locked")
	ErrCleanupFailed = errors.New("envelope cleanup failed")
)

// KindOf classifies err. A nil error is OK; anything unrecognised is IO.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, codec.ErrUnsupportedAlgorithm):
		return UnsupportedAlgorithm
	case errors.Is(err, envelope.ErrInvalidImageData):
		return InvalidImageData
	case errors.Is(err, envelope.ErrInvalidTextEncoding):
		return InvalidTextEncoding
	case errors.Is(err, ErrCleanupFailed):
		return CleanupFailed
	case errors.Is(err, ErrTransientLock):
		return TransientLock
	case errors.Is(err, format.ErrUnsupportedKind):
		return Unsupported
	default:
		return IO
	}
}

// Action is what happened to an entry.
type Action string

const (
	Archived  Action = "archived"
	Converted Action = "converted"
	Extracted Action = "extracted"
	Restored  Action = "restored"
	Skipped   Action = "skipped"
	Cleaned   Action = "cleaned"
	Failed    Action = "failed"
)

// Outcome is the result for a single entry.
type Outcome struct {
	Seq    uint64
	Entry  string
	Action Action
	Kind   Kind
	Err    error
}

// Report aggregates outcomes. It is safe for concurrent use.
type Report struct {
	mu       sync.Mutex
	log      logrus.FieldLogger
	seq      uint64
	outcomes []Outcome
}

// New creates a report that logs every outcome to log.
func New(log logrus.FieldLogger) *Report {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Report{log: log}
}

// Add records an outcome for entry. A non-nil err marks the outcome as a
// failure of the kind KindOf(err) unless action says otherwise.
func (r *Report) Add(entry string, action Action, err error) Outcome {
	r.mu.Lock()
	r.seq++
	o := Outcome{Seq: r.seq, Entry: entry, Action: action, Kind: KindOf(err), Err: err}
	r.outcomes = append(r.outcomes, o)
	r.mu.Unlock()

	fields := logrus.Fields{"seq": o.Seq, "entry": entry, "action": action}
	if err != nil {
		fields["kind"] = o.Kind
		r.log.WithFields(fields).WithError(err).Warn("entry not fully processed")
	} else {
		r.log.WithFields(fields).Debug("entry processed")
	}
	return o
}

// Outcomes returns a copy of every recorded outcome in record order.
func (r *Report) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outcomes...)
}

// Failures returns the outcomes that carry an error.
func (r *Report) Failures() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Outcome
	for _, o := range r.outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Count returns how many outcomes have the given kind.
func (r *Report) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.outcomes {
		if o.Kind == kind {
			n++
		}
	}
	return n
}

// CountAction returns how many outcomes have the given action.
func (r *Report) CountAction(action Action) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.outcomes {
		if o.Action == action {
			n++
		}
	}
	return n
}

// Err joins every per-entry error, or returns nil when there are none.
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Failures() {
		errs = append(errs, o.Err)
	}
	return errors.Join(errs...)
}
