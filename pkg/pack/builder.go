// Package pack builds a single archive from a directory of heterogeneous files.
package pack

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/goopsie/binpack/pkg/archive"
	"github.com/goopsie/binpack/pkg/codec"
	"github.com/goopsie/binpack/pkg/envelope"
	"github.com/goopsie/binpack/pkg/format"
	"github.com/goopsie/binpack/pkg/report"
)

// Builder packs directories into archives.
type Builder struct {
	workers    int
	recursive  bool
	classifier *format.Classifier
	stagingDir string
	log        logrus.FieldLogger
}

// Option configures a Builder.
type Option func(*Builder)

// WithWorkers sets the size of the worker pool.
func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithRecursive walks the source directory recursively.
func WithRecursive(recursive bool) Option {
	return func(b *Builder) {
		b.recursive = recursive
	}
}

// WithClassifier replaces the default format classifier.
func WithClassifier(c *format.Classifier) Option {
	return func(b *Builder) {
		if c != nil {
			b.classifier = c
		}
	}
}

// WithStagingDir sets where envelopes are written before being archived.
// By default a temporary directory is created and removed after the build.
func WithStagingDir(dir string) Option {
	return func(b *Builder) {
		b.stagingDir = dir
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(b *Builder) {
		if log != nil {
			b.log = log
		}
	}
}

// NewBuilder creates a new Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		workers:    runtime.NumCPU(),
		classifier: format.Default,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build packs sourceDir into a new archive at archivePath.
//
// With convert set, images and text files are wrapped into binary envelopes
// and archived as <name>.bin; everything else is archived raw. Per-entry
// failures are recorded in the returned report and the entry is left out of
// the archive. Only failures to read sourceDir, to create the archive or to
// finalize it are returned as errors.
func (b *Builder) Build(ctx context.Context, sourceDir, archivePath string, spec codec.Spec, convert bool) (*report.Report, error) {
	log := b.log.WithFields(logrus.Fields{
		"source":    sourceDir,
		"archive":   archivePath,
		"algorithm": spec.Algorithm,
		"level":     spec.Level,
		"convert":   convert,
	})
	rep := report.New(log)

	files, err := ScanFiles(sourceDir, b.recursive)
	if err != nil {
		return rep, err
	}
	log.WithField("entries", len(files)).Info("scanned source directory")

	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return rep, fmt.Errorf("create archive directory: %w", err)
	}
	out, err := os.Create(archivePath)
	if err != nil {
		return rep, fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()
	archiveAbs, _ := filepath.Abs(archivePath)

	staging := b.stagingDir
	if convert {
		if staging == "" {
			staging, err = os.MkdirTemp("", "binpack-envelopes-")
			if err != nil {
				return rep, fmt.Errorf("create staging dir: %w", err)
			}
			defer os.RemoveAll(staging)
		} else if err := os.MkdirAll(staging, 0755); err != nil {
			return rep, fmt.Errorf("create staging dir: %w", err)
		}
	}

	w := archive.NewWriter(out)
	job := &packJob{
		builder:    b,
		writer:     w,
		report:     rep,
		log:        log,
		spec:       spec,
		convert:    convert,
		staging:    staging,
		archiveAbs: archiveAbs,
	}

	var g errgroup.Group
	g.SetLimit(b.workers)
	for _, file := range files {
		g.Go(func() error {
			job.packFile(ctx, file)
			return nil
		})
	}
	_ = g.Wait()

	if err := w.Close(); err != nil {
		return rep, err
	}
	if err := out.Close(); err != nil {
		return rep, fmt.Errorf("close archive: %w", err)
	}

	log.WithFields(logrus.Fields{
		"archived": rep.CountAction(report.Archived),
		"failed":   len(rep.Failures()),
	}).Info("archive created")
	return rep, nil
}

type packJob struct {
	builder    *Builder
	writer     *archive.Writer
	report     *report.Report
	log        logrus.FieldLogger
	spec       codec.Spec
	convert    bool
	staging    string
	archiveAbs string
}

func (j *packJob) packFile(ctx context.Context, file ScannedFile) {
	if err := ctx.Err(); err != nil {
		j.report.Add(file.RelPath, report.Skipped, err)
		return
	}
	if !file.Regular {
		j.log.WithField("entry", file.RelPath).Debug("skipping non-file entry")
		j.report.Add(file.RelPath, report.Skipped, nil)
		return
	}
	if abs, err := filepath.Abs(file.Path); err == nil && abs == j.archiveAbs {
		j.report.Add(file.RelPath, report.Skipped, nil)
		return
	}

	src, name := file.Path, file.RelPath
	kind := j.builder.classifier.Classify(file.RelPath)

	// envErr marks a text file that failed verification and is archived raw.
	var envErr error
	if j.convert && kind.Convertible() {
		envDir := filepath.Join(j.staging, filepath.FromSlash(path.Dir(file.RelPath)))
		envPath, err := envelope.Encode(file.Path, envDir, kind)
		switch {
		case err == nil:
			defer os.Remove(envPath)
			src, name = envPath, format.EnvelopeName(file.RelPath)
		case errors.Is(err, envelope.ErrInvalidTextEncoding):
			envErr = err
		default:
			j.report.Add(file.RelPath, report.Failed, err)
			return
		}
	}

	c, err := j.spec.Resolve()
	if err != nil {
		j.report.Add(name, report.Failed, err)
		return
	}

	// Read before taking the writer lock so a failing source never leaves a
	// partial entry behind.
	data, err := envelope.ReadFile(src)
	if err != nil {
		j.report.Add(name, report.Failed, err)
		return
	}

	n, err := j.writer.Append(name, c, bytes.NewReader(data))
	if err != nil {
		j.report.Add(name, report.Failed, err)
		return
	}

	j.log.WithFields(logrus.Fields{
		"entry":  name,
		"kind":   kind,
		"method": c.Name,
		"level":  c.Level,
		"bytes":  n,
	}).Info("archived entry")
	j.report.Add(name, report.Archived, envErr)
}
