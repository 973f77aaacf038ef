package validation

import "github.com/ehr/tracker/internal/domain/tracker"

// Hook checks one aspect of the entities of a batch. Hooks only read the
// preheat; unresolved references are reported through the Reporter.
type Hook interface {
	ValidateTrackedEntity(r *Reporter, te *tracker.TrackedEntity)
	ValidateEnrollment(r *Reporter, en *tracker.Enrollment)
	ValidateEvent(r *Reporter, ev *tracker.Event)
	ValidateRelationship(r *Reporter, rel *tracker.Relationship)
}

// BaseHook implements every Hook method as a no-op. Embed it to implement
// only the methods a hook needs.
type BaseHook struct{}

func (BaseHook) ValidateTrackedEntity(*Reporter, *tracker.TrackedEntity) {}
func (BaseHook) ValidateEnrollment(*Reporter, *tracker.Enrollment)       {}
func (BaseHook) ValidateEvent(*Reporter, *tracker.Event)                 {}
func (BaseHook) ValidateRelationship(*Reporter, *tracker.Relationship)   {}

// DefaultHooks returns the built-in hooks in the order they run.
func DefaultHooks() []Hook {
	return []Hook{
		UIDFormatHook{},
		TrackedEntityHook{},
		EnrollmentHook{},
		EventHook{},
		EventCategoryOptionHook{},
		RelationshipHook{},
	}
}
