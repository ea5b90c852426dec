package metrics

import (
	"context"
	"time"

	"codeberg.org/mutker/drowsyctl/internal/errors"
	"codeberg.org/mutker/drowsyctl/internal/logger"
)

type service struct {
	repo Repository
	cfg  Config
}

// No-op implementation
type noopCollector struct{}

func NewService(cfg Config, log logger.Logger) (Collector, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	// If metrics is disabled, return a no-op collector
	if !cfg.Enabled {
		log.Debug().Msg("Metrics collection disabled, using no-op collector")
		return &noopCollector{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to create metrics repository")
		return nil, err
	}

	log.Debug().
		Str("db_path", cfg.DBPath).
		Bool("enabled", cfg.Enabled).
		Msg("Metrics service initialized successfully")

	return &service{
		repo: repo,
		cfg:  cfg,
	}, nil
}

func (s *service) RecordSample(ctx context.Context, sample *Sample) error {
	return record(ctx, sample, s.repo.RecordSample)
}

// RecordAlert is not batched; see repository.RecordAlert.
func (s *service) RecordAlert(ctx context.Context, alert *Alert) error {
	return record(ctx, alert, s.repo.RecordAlert)
}

// record rejects nil values and cancelled contexts before writing.
func record[T any](ctx context.Context, v *T, write func(*T) error) error {
	errFactory := errors.New()

	if v == nil {
		return errFactory.New(ErrInvalidMetrics)
	}
	if err := ctx.Err(); err != nil {
		return errFactory.Wrap(ErrOperationTimeout, err)
	}
	if err := write(v); err != nil {
		return errFactory.Wrap(ErrMetricsCollection, err)
	}

	return nil
}

func (s *service) AlertsSince(ctx context.Context, since time.Time) (int, error) {
	return s.repo.AlertsSince(ctx, since)
}

func (s *service) Close() error {
	errFactory := errors.New()

	if err := s.repo.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}
	return nil
}

func (*noopCollector) RecordSample(_ context.Context, _ *Sample) error {
	return nil
}

func (*noopCollector) RecordAlert(_ context.Context, _ *Alert) error {
	return nil
}

func (*noopCollector) AlertsSince(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

func (*noopCollector) Close() error {
	return nil
}
