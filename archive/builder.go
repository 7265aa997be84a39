package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/viant/visual-archive/embedder"
	"github.com/viant/visual-archive/index"
	"github.com/viant/visual-archive/index/bruteforce"
	"github.com/viant/visual-archive/record"
	"github.com/viant/visual-archive/storage"
	"github.com/viant/visual-archive/vector"
)

const defaultProgressEvery = 10

// Builder turns a directory of images into a persisted archive.
type Builder struct {
	store         storage.Store
	embedder      embedder.Embedder
	labels        []string
	logger        logrus.FieldLogger
	progressEvery int
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLabels overrides the zero-shot label set.
func WithLabels(labels []string) BuilderOption {
	return func(b *Builder) { b.labels = append([]string(nil), labels...) }
}

// WithLogger sets the build logger.
func WithLogger(logger logrus.FieldLogger) BuilderOption {
	return func(b *Builder) { b.logger = logger }
}

// WithProgressEvery sets how many processed files separate progress entries.
func WithProgressEvery(n int) BuilderOption {
	return func(b *Builder) { b.progressEvery = n }
}

// NewBuilder returns a Builder writing to store.
func NewBuilder(store storage.Store, emb embedder.Embedder, opts ...BuilderOption) *Builder {
	b := &Builder{
		store:         store,
		embedder:      emb,
		labels:        embedder.StyleTags,
		logger:        logrus.StandardLogger(),
		progressEvery: defaultProgressEvery,
	}
	for _, o := range opts {
		o(b)
	}
	if b.progressEvery <= 0 {
		b.progressEvery = defaultProgressEvery
	}
	return b
}

type ingested struct {
	vec []float32
	rec record.Record
}

// Build ingests every image in sourceDir and replaces the archive in the
// store. A missing or empty source directory is reported through the
// report status with a nil error. A build where every image fails returns
// ErrNoValidImages. In both cases nothing is written.
func (b *Builder) Build(ctx context.Context, sourceDir string) (*Report, error) {
	if len(b.labels) == 0 {
		return nil, embedder.ErrNoLabels
	}
	started := time.Now()
	report := &Report{BuildID: uuid.NewString(), Source: sourceDir, Tags: map[string]int{}}
	log := b.logger.WithFields(logrus.Fields{"build_id": report.BuildID, "source": sourceDir})

	files, err := ListImages(sourceDir)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(sourceDir, 0o755); err != nil {
			return nil, fmt.Errorf("archive: create %s: %w", sourceDir, err)
		}
		report.Status = StatusSourceMissing
		report.Duration = time.Since(started)
		log.Warn(report.Message())
		return report, nil
	}
	if err != nil {
		return nil, fmt.Errorf("archive: list %s: %w", sourceDir, err)
	}
	if len(files) == 0 {
		report.Status = StatusSourceEmpty
		report.Duration = time.Since(started)
		log.Warn(report.Message())
		return report, nil
	}

	if locker, ok := b.store.(storage.Locker); ok {
		unlock, err := locker.Lock(ctx, LockName)
		if err != nil {
			return nil, fmt.Errorf("archive: acquire build lock: %w", err)
		}
		defer func() {
			if err := unlock(); err != nil {
				log.WithError(err).Warn("release build lock")
			}
		}()
	}

	log.WithField("files", len(files)).Info("build started")
	var items []ingested
	for i, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("archive: build cancelled after %d of %d files: %w", i, len(files), err)
		}
		path := filepath.Join(sourceDir, name)
		item, failure := b.ingest(ctx, path, len(items))
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("archive: build cancelled during %s: %w", name, err)
		}
		if failure != nil {
			report.Failures = append(report.Failures, *failure)
			log.WithError(failure.Err).WithFields(logrus.Fields{"file": name, "stage": failure.Stage}).Warn("skipped image")
			continue
		}
		items = append(items, *item)
		report.Tags[item.rec.Tag]++
		entry := log.WithFields(logrus.Fields{"file": name, "tag": item.rec.Tag, "id": item.rec.ID})
		if (i+1)%b.progressEvery == 0 {
			entry.Infof("[%d/%d] indexed %s -> tag %s", i+1, len(files), name, item.rec.Tag)
		} else {
			entry.Debug("indexed image")
		}
	}
	report.Indexed = len(items)
	report.Skipped = len(report.Failures)

	if len(items) == 0 {
		report.Status = StatusFailed
		report.Duration = time.Since(started)
		log.WithField("skipped", report.Skipped).Error(report.Message())
		return report, fmt.Errorf("%w in %s (%d files failed)", ErrNoValidImages, sourceDir, report.Skipped)
	}

	idx := bruteforce.New(b.embedder.Dimension())
	records := record.NewStore()
	vecs := make([][]float32, len(items))
	for i, item := range items {
		vecs[i] = item.vec
		if err := records.Append(item.rec); err != nil {
			return nil, err
		}
	}
	if err := idx.Add(vecs...); err != nil {
		return nil, fmt.Errorf("archive: index vectors: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("archive: build cancelled before writing: %w", err)
	}
	if err := b.persist(ctx, idx, records); err != nil {
		return nil, err
	}

	report.Status = StatusBuilt
	report.Duration = time.Since(started)
	log.WithFields(logrus.Fields{
		"indexed":  report.Indexed,
		"skipped":  report.Skipped,
		"duration": report.Duration,
	}).Info("build finished")
	return report, nil
}

// ingest embeds, normalizes and classifies one file. id is the position the
// image will take if it succeeds.
func (b *Builder) ingest(ctx context.Context, path string, id int) (*ingested, *IngestionFailure) {
	name := filepath.Base(path)
	fail := func(stage string, err error) *IngestionFailure {
		return &IngestionFailure{File: name, Stage: stage, Err: err}
	}
	img, err := embedder.ReadImage(path)
	if err != nil {
		return nil, fail("read", err)
	}
	raw, err := b.embedder.EmbedImage(ctx, img)
	if err != nil {
		return nil, fail("embed", err)
	}
	if len(raw) != b.embedder.Dimension() {
		return nil, fail("embed", fmt.Errorf("got %d values, want %d", len(raw), b.embedder.Dimension()))
	}
	vec, err := vector.Normalize(raw)
	if err != nil {
		return nil, fail("normalize", err)
	}
	label, err := b.embedder.Classify(ctx, img, b.labels)
	if err != nil {
		return nil, fail("classify", err)
	}
	if label < 0 || label >= len(b.labels) {
		return nil, fail("classify", fmt.Errorf("label index %d out of range", label))
	}
	return &ingested{vec: vec, rec: record.New(id, name, path, b.labels[label])}, nil
}

// persist writes the index then the records. If the records cannot be
// written the index is removed so no half archive remains.
func (b *Builder) persist(ctx context.Context, idx index.Index, records *record.Store) error {
	if err := index.Save(ctx, b.store, IndexKey, idx); err != nil {
		return fmt.Errorf("archive: save index: %w", err)
	}
	if err := records.Save(ctx, b.store, RecordsKey); err != nil {
		if derr := b.store.Delete(context.WithoutCancel(ctx), IndexKey); derr != nil {
			b.logger.WithError(derr).Error("remove index after failed records write")
		}
		return fmt.Errorf("archive: save records: %w", err)
	}
	return nil
}
