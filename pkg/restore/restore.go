// Package restore extracts archives built by pack and reconstructs the
// original files from their binary envelopes.
package restore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/goopsie/binpack/pkg/archive"
	"github.com/goopsie/binpack/pkg/envelope"
	"github.com/goopsie/binpack/pkg/format"
	"github.com/goopsie/binpack/pkg/report"
)

// StagingDirName is the folder under the output directory that holds
// envelopes awaiting the trailing sweep.
const StagingDirName = "binary_files"

// CleanupPolicy decides what happens to an envelope once its original has
// been reconstructed.
type CleanupPolicy uint8

const (
	// DeleteImmediately removes the envelope right after conversion,
	// retrying transient lock failures.
	DeleteImmediately CleanupPolicy = iota
	// StageForSweep moves the envelope into StagingDirName and leaves it to Sweep.
	StageForSweep
)

func (p CleanupPolicy) String() string {
	if p == StageForSweep {
		return "stage"
	}
	return "delete"
}

// Restorer extracts archives.
type Restorer struct {
	workers        int
	skipConversion bool
	policy         CleanupPolicy
	retry          RetryPolicy
	classifier     *format.Classifier
	log            logrus.FieldLogger
}

// Option configures a Restorer.
type Option func(*Restorer)

// WithWorkers bounds the number of entries processed concurrently.
func WithWorkers(n int) Option {
	return func(r *Restorer) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithSkipConversion extracts entries as stored, without reconstruction.
func WithSkipConversion(skip bool) Option {
	return func(r *Restorer) {
		r.skipConversion = skip
	}
}

// WithCleanupPolicy sets how converted envelopes are retired.
func WithCleanupPolicy(p CleanupPolicy) Option {
	return func(r *Restorer) {
		r.policy = p
	}
}

// WithRetryPolicy sets the backoff used when deleting envelopes.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(r *Restorer) {
		r.retry = p
	}
}

// WithClassifier replaces the default format classifier.
func WithClassifier(c *format.Classifier) Option {
	return func(r *Restorer) {
		if c != nil {
			r.classifier = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Restorer) {
		if log != nil {
			r.log = log
		}
	}
}

// New creates a Restorer.
func New(opts ...Option) *Restorer {
	r := &Restorer{
		workers:    runtime.NumCPU(),
		policy:     DeleteImmediately,
		retry:      DefaultRetryPolicy,
		classifier: format.Default,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Restore extracts every entry of the archive at archivePath into outputDir.
//
// Entries are read one at a time and handed to a bounded pool of workers that
// write them out and, unless conversion is skipped, reconstruct envelopes and
// text files in place. Per-entry failures are recorded in the report. Only
// failing to create outputDir or to open the archive is returned as an error.
func (r *Restorer) Restore(ctx context.Context, archivePath, outputDir string) (*report.Report, error) {
	log := r.log.WithFields(logrus.Fields{
		"archive": archivePath,
		"output":  outputDir,
		"cleanup": r.policy,
	})
	rep := report.New(log)

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return rep, fmt.Errorf("create output dir: %w", err)
	}

	ar, err := archive.Open(archivePath)
	if err != nil {
		return rep, err
	}
	defer ar.Close()

	if ar.Len() == 0 {
		log.Info("archive has no entries")
		return rep, nil
	}

	job := &restoreJob{
		restorer:  r,
		report:    rep,
		log:       log,
		outputDir: outputDir,
	}

	var g errgroup.Group
	g.SetLimit(r.workers)
	for i := 0; i < ar.Len(); i++ {
		entry, err := ar.ReadEntry(i)
		if err != nil {
			rep.Add(ar.Name(i), report.Failed, err)
			continue
		}
		g.Go(func() error {
			job.restoreEntry(ctx, entry)
			return nil
		})
	}
	_ = g.Wait()

	if r.policy == StageForSweep {
		if err := Sweep(outputDir); err != nil {
			rep.Add(StagingDirName, report.Failed, err)
		}
	}

	log.WithFields(logrus.Fields{
		"entries":   ar.Len(),
		"converted": rep.CountAction(report.Converted) + rep.CountAction(report.Restored),
		"failed":    len(rep.Failures()),
	}).Info("archive restored")
	return rep, nil
}

type restoreJob struct {
	restorer  *Restorer
	report    *report.Report
	log       logrus.FieldLogger
	outputDir string
}

func (j *restoreJob) restoreEntry(ctx context.Context, e *archive.Entry) {
	name := filepath.ToSlash(e.Name)
	if err := ctx.Err(); err != nil {
		j.report.Add(name, report.Skipped, err)
		return
	}

	dst := filepath.Join(j.outputDir, e.Name)
	if e.IsDir {
		if err := os.MkdirAll(dst, 0755); err != nil {
			j.report.Add(name, report.Failed, fmt.Errorf("create dir %s: %w", dst, err))
			return
		}
		j.report.Add(name, report.Extracted, nil)
		return
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		j.report.Add(name, report.Failed, fmt.Errorf("create dir %s: %w", filepath.Dir(dst), err))
		return
	}
	if err := os.WriteFile(dst, e.Data, 0644); err != nil {
		j.report.Add(name, report.Failed, fmt.Errorf("write file %s: %w", dst, err))
		return
	}

	if j.restorer.skipConversion {
		j.report.Add(name, report.Extracted, nil)
		return
	}

	switch {
	case isEnvelope(name):
		j.restoreEnvelope(ctx, name, dst)
	case j.restorer.classifier.ClassifyEntry(name) == format.Text:
		if _, err := envelope.DecodeText(dst); err != nil {
			j.report.Add(name, report.Failed, err)
			return
		}
		j.report.Add(name, report.Converted, nil)
	default:
		j.log.WithField("entry", name).Debug("no conversion applies")
		j.report.Add(name, report.Extracted, nil)
	}
}

// isEnvelope reports whether name is <original>.bin with an original
// extension to recover. A plain firmware.bin is an ordinary file.
func isEnvelope(name string) bool {
	original, ok := format.ParseEnvelope(name)
	return ok && format.Ext(original) != ""
}

func (j *restoreJob) restoreEnvelope(ctx context.Context, name, path string) {
	out, err := envelope.Decode(path, j.restorer.classifier)
	if errors.Is(err, format.ErrUnsupportedKind) {
		// Kept as extracted; nothing can rebuild it.
		j.report.Add(name, report.Extracted, err)
		return
	}
	if err != nil {
		j.report.Add(name, report.Failed, err)
		return
	}

	j.log.WithFields(logrus.Fields{
		"entry":  name,
		"kind":   j.restorer.classifier.ClassifyEntry(name),
		"output": out,
	}).Info("reconstructed file")

	if err := j.retire(ctx, name, path); err != nil {
		j.report.Add(name, report.Restored, err)
		return
	}
	j.report.Add(name, report.Restored, nil)
}

// retire disposes of a converted envelope according to the cleanup policy.
func (j *restoreJob) retire(ctx context.Context, name, path string) error {
	if j.restorer.policy == StageForSweep {
		dst := filepath.Join(j.outputDir, StagingDirName, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return fmt.Errorf("create staging dir: %w", err)
		}
		if err := os.Rename(path, dst); err != nil {
			return fmt.Errorf("stage envelope %s: %w", path, err)
		}
		return nil
	}
	return j.restorer.retry.remove(ctx, j.log.WithField("entry", name), path)
}
