package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/viant/visual-archive/archive"
	"github.com/viant/visual-archive/embedder"
	"github.com/viant/visual-archive/internal/config"
	"github.com/viant/visual-archive/query"
	"github.com/viant/visual-archive/storage"
)

// openStore returns the archive store selected by cfg and a func releasing it.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Archive.Backend {
	case config.BackendLocal:
		s, err := storage.NewLocal(cfg.Archive.IndexDir)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case config.BackendSQLite:
		s, err := storage.OpenSQLite(ctx, cfg.Archive.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.BackendS3:
		s3cfg := cfg.Archive.S3
		client := storage.NewS3Client(storage.S3Config{
			Region:          s3cfg.Region,
			Endpoint:        s3cfg.Endpoint,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			UsePathStyle:    s3cfg.UsePathStyle,
		})
		return storage.NewS3(client, s3cfg.Bucket, s3cfg.Prefix), noop, nil
	}
	return nil, nil, fmt.Errorf("unknown archive backend %q", cfg.Archive.Backend)
}

func newEmbedder(cfg *config.Config, logger logrus.FieldLogger) (embedder.Embedder, error) {
	e := cfg.Embedder
	switch e.Provider {
	case config.ProviderHash:
		return embedder.NewHash(e.Dimension), nil
	case config.ProviderCLIP:
		return embedder.NewHTTP(e.URL,
			embedder.WithModel(e.Model),
			embedder.WithToken(e.Token),
			embedder.WithDimension(e.Dimension),
			embedder.WithRateLimit(e.RateLimit),
			embedder.WithLogger(logger),
		), nil
	}
	return nil, fmt.Errorf("unknown embedder provider %q", e.Provider)
}

// openEngine wires a query engine over the persisted archive. With
// allowAbsent a missing archive yields an engine without one.
func openEngine(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger, allowAbsent bool) (*query.Engine, storage.Store, func() error, error) {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	emb, err := newEmbedder(cfg, logger)
	if err != nil {
		_ = closeStore()
		return nil, nil, nil, err
	}
	a, err := archive.Open(ctx, store)
	if err != nil {
		if !allowAbsent || !errors.Is(err, archive.ErrArchiveAbsent) {
			_ = closeStore()
			return nil, nil, nil, describe(err)
		}
		logger.WithError(err).Warn("starting without an archive")
		a = nil
	}
	return query.New(a, emb, query.WithLogger(logger)), store, closeStore, nil
}

// describe turns archive and query conditions into operator-facing errors.
func describe(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, archive.ErrArchiveAbsent), errors.Is(err, query.ErrIndexUnavailable):
		return errors.New("archive not found; run `visarchive build` first")
	case errors.Is(err, query.ErrEmbeddingFailure):
		return fmt.Errorf("could not read that image: %v", errors.Unwrap(err))
	case query.ReasonOf(err) == query.ReasonFiltered:
		return errors.New("no matches found with current filters")
	case query.ReasonOf(err) == query.ReasonArchiveEmpty:
		return errors.New("archive is empty; add images and run `visarchive build`")
	}
	return err
}
