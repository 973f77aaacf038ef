package tracker

import "context"

// Repository loads and stores persisted tracker rows. Find methods return only
// the rows that exist; unknown uids are absent from the result. Save methods
// insert a row when its uid is new and update it otherwise.
type Repository interface {
	FindTrackedEntities(ctx context.Context, uids []string) ([]*TrackedEntityInstance, error)
	FindEnrollments(ctx context.Context, uids []string) ([]*ProgramInstance, error)
	FindEvents(ctx context.Context, uids []string) ([]*ProgramStageInstance, error)
	FindRelationships(ctx context.Context, uids []string) ([]*RelationshipInstance, error)

	SaveTrackedEntity(ctx context.Context, te *TrackedEntityInstance) error
	SaveEnrollment(ctx context.Context, en *ProgramInstance) error
	SaveEvent(ctx context.Context, ev *ProgramStageInstance) error
	SaveRelationship(ctx context.Context, rel *RelationshipInstance) error
}
