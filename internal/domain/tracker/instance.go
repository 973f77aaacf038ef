package tracker

import (
	"time"

	"github.com/ehr/tracker/internal/domain/metadata"
)

// TrackedEntityInstance is the persisted form of a tracked entity.
// Attributes are kept in the embedded AttributeValues.
type TrackedEntityInstance struct {
	metadata.IdentifiableObject
	TrackedEntityTypeUID string `db:"tracked_entity_type_uid" json:"trackedEntityType"`
	OrgUnitUID           string `db:"org_unit_uid" json:"orgUnit"`
}

func (*TrackedEntityInstance) ObjectType() metadata.ObjectType { return metadata.TypeTrackedEntity }

// ProgramInstance is the persisted form of an enrollment.
type ProgramInstance struct {
	metadata.IdentifiableObject
	TrackedEntityUID string     `db:"tracked_entity_uid" json:"trackedEntity"`
	ProgramUID       string     `db:"program_uid" json:"program"`
	OrgUnitUID       string     `db:"org_unit_uid" json:"orgUnit"`
	Status           string     `db:"status" json:"status"`
	EnrolledAt       *time.Time `db:"enrolled_at" json:"enrolledAt,omitempty"`
	OccurredAt       *time.Time `db:"occurred_at" json:"occurredAt,omitempty"`
}

func (*ProgramInstance) ObjectType() metadata.ObjectType { return metadata.TypeEnrollment }

// ProgramStageInstance is the persisted form of an event.
type ProgramStageInstance struct {
	metadata.IdentifiableObject
	ProgramInstanceUID      string            `db:"enrollment_uid" json:"enrollment,omitempty"`
	ProgramUID              string            `db:"program_uid" json:"program"`
	ProgramStageUID         string            `db:"program_stage_uid" json:"programStage"`
	OrgUnitUID              string            `db:"org_unit_uid" json:"orgUnit"`
	AttributeOptionComboUID string            `db:"attribute_option_combo_uid" json:"attributeOptionCombo,omitempty"`
	Status                  string            `db:"status" json:"status"`
	OccurredAt              *time.Time        `db:"occurred_at" json:"occurredAt,omitempty"`
	ScheduledAt             *time.Time        `db:"scheduled_at" json:"scheduledAt,omitempty"`
	DataValues              map[string]string `db:"data_values" json:"dataValues,omitempty"`
}

func (*ProgramStageInstance) ObjectType() metadata.ObjectType { return metadata.TypeEvent }

// RelationshipInstance is the persisted form of a relationship.
type RelationshipInstance struct {
	metadata.IdentifiableObject
	RelationshipTypeUID string              `db:"relationship_type_uid" json:"relationshipType"`
	FromUID             string              `db:"from_uid" json:"from"`
	FromType            metadata.ObjectType `db:"from_type" json:"fromType"`
	ToUID               string              `db:"to_uid" json:"to"`
	ToType              metadata.ObjectType `db:"to_type" json:"toType"`
}

func (*RelationshipInstance) ObjectType() metadata.ObjectType { return metadata.TypeRelationship }
