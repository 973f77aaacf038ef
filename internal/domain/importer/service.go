// Package importer runs tracker imports: it preheats a bundle, validates it
// and persists the valid objects in dependency order.
package importer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/tracker/internal/domain/tracker"
	"github.com/ehr/tracker/internal/platform/db"
	"github.com/ehr/tracker/internal/validation"
)

type Service struct {
	supplier  *Supplier
	validator *validation.Validator
	repo      tracker.Repository
	tx        db.Beginner
	logger    zerolog.Logger
}

// NewService returns a service persisting through repo inside transactions
// started on tx.
func NewService(supplier *Supplier, validator *validation.Validator, repo tracker.Repository, tx db.Beginner, logger zerolog.Logger) *Service {
	return &Service{supplier: supplier, validator: validator, repo: repo, tx: tx, logger: logger}
}

// Import loads, validates and, unless params ask for a dry run, persists b.
// Validation failures are part of the report; the error is reserved for
// failures to load or store data.
func (s *Service) Import(ctx context.Context, params Params, b *tracker.Bundle) (*Report, error) {
	if b == nil {
		b = &tracker.Bundle{}
	}
	runID := uuid.NewString()
	log := s.logger.With().Str("run_id", runID).Logger()
	b.Flatten()

	log.Info().
		Int("objects", b.Size()).
		Str("atomic_mode", string(params.AtomicMode)).
		Str("import_mode", string(params.ImportMode)).
		Msg("tracker import started")

	p, err := s.supplier.Load(ctx, params.Identifiers, b)
	if err != nil {
		log.Error().Err(err).Msg("preheat failed")
		return nil, fmt.Errorf("preheat: %w", err)
	}

	res, err := s.validator.Validate(ctx, p, b)
	if err != nil {
		log.Error().Err(err).Msg("validation failed")
		return nil, fmt.Errorf("validate: %w", err)
	}

	report := newReport(runID, params.ImportMode)
	report.Validation = res.Report
	if res.Report.HasErrors() {
		report.Status = StatusError
	}

	commit := params.ImportMode != ImportValidate &&
		!(params.AtomicMode != AtomicObject && res.Report.HasErrors())

	pr := newPersister(p, b, s.repo)
	if commit {
		err = db.RunInTx(ctx, s.tx, func(ctx context.Context) error {
			return pr.persist(ctx, res, report)
		})
		if err != nil {
			log.Error().Err(err).Msg("persist failed")
			return nil, fmt.Errorf("persist: %w", err)
		}
	} else {
		pr.skip(res, report)
	}
	report.total()

	log.Info().
		Str("status", string(report.Status)).
		Int("created", report.Stats.Created).
		Int("updated", report.Stats.Updated).
		Int("ignored", report.Stats.Ignored).
		Int("errors", len(res.Report.Errors)).
		Msg("tracker import finished")
	return report, nil
}
