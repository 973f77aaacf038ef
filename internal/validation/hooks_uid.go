package validation

import (
	"github.com/ehr/tracker/internal/domain/metadata"
	"github.com/ehr/tracker/internal/domain/tracker"
)

// UIDFormatHook checks that every uid an entity declares or references
// has the shape of a generated uid. Empty references are left to the other
// hooks.
type UIDFormatHook struct{}

func checkUID(r *Reporter, t metadata.ObjectType, owner, uid string) {
	if uid != "" && !tracker.ValidUID(uid) {
		r.AddError(t, owner, E1048, t, uid)
	}
}

func (UIDFormatHook) ValidateTrackedEntity(r *Reporter, te *tracker.TrackedEntity) {
	checkUID(r, metadata.TypeTrackedEntity, te.TrackedEntity, te.TrackedEntity)
}

func (UIDFormatHook) ValidateEnrollment(r *Reporter, en *tracker.Enrollment) {
	checkUID(r, metadata.TypeEnrollment, en.Enrollment, en.Enrollment)
	checkUID(r, metadata.TypeEnrollment, en.Enrollment, en.TrackedEntity)
}

func (UIDFormatHook) ValidateEvent(r *Reporter, ev *tracker.Event) {
	checkUID(r, metadata.TypeEvent, ev.Event, ev.Event)
	checkUID(r, metadata.TypeEvent, ev.Event, ev.Enrollment)
}

func (UIDFormatHook) ValidateRelationship(r *Reporter, rel *tracker.Relationship) {
	checkUID(r, metadata.TypeRelationship, rel.Relationship, rel.Relationship)
	for _, item := range []*tracker.RelationshipItem{rel.From, rel.To} {
		if item.Set() == 1 {
			checkUID(r, metadata.TypeRelationship, rel.Relationship, item.UID())
		}
	}
}
