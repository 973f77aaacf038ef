package validation

import (
	"time"

	"github.com/ehr/tracker/internal/domain/metadata"
	"github.com/ehr/tracker/internal/domain/tracker"
	"github.com/ehr/tracker/internal/preheat"
)

// Reporter is handed to every hook. It gives read access to the preheat and
// the declared batch and records the errors hooks raise.
type Reporter struct {
	preheat *preheat.Preheat
	report  *Report
	invalid map[string]struct{}
	now     time.Time

	trackedEntities map[string]*tracker.TrackedEntity
	enrollments     map[string]*tracker.Enrollment
}

func newReporter(p *preheat.Preheat, b *tracker.Bundle, now time.Time) *Reporter {
	r := &Reporter{
		preheat: p,
		report:  &Report{},
		invalid: make(map[string]struct{}),
		now:     now,

		trackedEntities: make(map[string]*tracker.TrackedEntity, len(b.TrackedEntities)),
		enrollments:     make(map[string]*tracker.Enrollment, len(b.Enrollments)),
	}
	for _, te := range b.TrackedEntities {
		if _, dup := r.trackedEntities[te.TrackedEntity]; !dup {
			r.trackedEntities[te.TrackedEntity] = te
		}
	}
	for _, en := range b.Enrollments {
		if _, dup := r.enrollments[en.Enrollment]; !dup {
			r.enrollments[en.Enrollment] = en
		}
	}
	return r
}

func (r *Reporter) Preheat() *preheat.Preheat { return r.preheat }

// Now is the time of the run, used where an entity carries no date.
func (r *Reporter) Now() time.Time { return r.now }

// DeclaredTrackedEntity returns the tracked entity with uid from the batch,
// or nil.
func (r *Reporter) DeclaredTrackedEntity(uid string) *tracker.TrackedEntity {
	return r.trackedEntities[uid]
}

// DeclaredEnrollment returns the enrollment with uid from the batch, or nil.
func (r *Reporter) DeclaredEnrollment(uid string) *tracker.Enrollment {
	return r.enrollments[uid]
}

// AddError records code against the entity and marks it invalid.
func (r *Reporter) AddError(t metadata.ObjectType, uid string, code ErrorCode, args ...interface{}) {
	r.report.Errors = append(r.report.Errors, newError(t, uid, code, args...))
	r.invalid[uid] = struct{}{}
}

// IsInvalid reports whether an error was recorded for uid.
func (r *Reporter) IsInvalid(uid string) bool {
	_, ok := r.invalid[uid]
	return ok
}

func (r *Reporter) Report() *Report { return r.report }
