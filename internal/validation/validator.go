// Package validation runs the validation hooks of a tracker import over a
// preheated batch and propagates invalidity down the reference forest.
package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/tracker/internal/domain/tracker"
	"github.com/ehr/tracker/internal/preheat"
)

type Validator struct {
	hooks  []Hook
	logger zerolog.Logger
	now    func() time.Time
}

// NewValidator returns a validator running hooks in order. With no hooks it
// runs DefaultHooks.
func NewValidator(logger zerolog.Logger, hooks ...Hook) *Validator {
	if len(hooks) == 0 {
		hooks = DefaultHooks()
	}
	return &Validator{hooks: hooks, logger: logger, now: time.Now}
}

// Result is the outcome of validating one batch.
type Result struct {
	Report *Report
	// Order lists every declared entity after the entities it depends on.
	Order   []preheat.ReferenceTrackerEntity
	invalid map[string]struct{}
}

// Valid reports whether uid passed validation.
func (r *Result) Valid(uid string) bool {
	_, bad := r.invalid[uid]
	return !bad
}

// Validate runs every hook against every entity of b. The preheat must have
// its reference tree built. Validation failures end up in the report; the
// returned error is reserved for a broken dependency graph or a cancelled
// context.
func (v *Validator) Validate(ctx context.Context, p *preheat.Preheat, b *tracker.Bundle) (*Result, error) {
	r := newReporter(p, b, v.now().UTC())

	for _, te := range b.TrackedEntities {
		for _, h := range v.hooks {
			h.ValidateTrackedEntity(r, te)
		}
	}
	for _, en := range b.Enrollments {
		for _, h := range v.hooks {
			h.ValidateEnrollment(r, en)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, ev := range b.Events {
		for _, h := range v.hooks {
			h.ValidateEvent(r, ev)
		}
	}
	for _, rel := range b.Relationships {
		for _, h := range v.hooks {
			h.ValidateRelationship(r, rel)
		}
	}

	dg, err := BuildDependencyGraph(p, b)
	if err != nil {
		return nil, fmt.Errorf("build dependency graph: %w", err)
	}
	order, err := dg.Order()
	if err != nil {
		return nil, err
	}
	if err := cascade(r, dg, order); err != nil {
		return nil, err
	}

	v.logger.Debug().
		Int("entities", len(order)).
		Int("errors", len(r.report.Errors)).
		Int("invalid", len(r.invalid)).
		Msg("batch validated")

	return &Result{Report: r.report, Order: order, invalid: r.invalid}, nil
}
