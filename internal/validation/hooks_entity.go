package validation

import (
	"github.com/ehr/tracker/internal/domain/metadata"
	"github.com/ehr/tracker/internal/domain/tracker"
	"github.com/ehr/tracker/internal/preheat"
)

// TrackedEntityHook checks the metadata a tracked entity references.
type TrackedEntityHook struct{ BaseHook }

func (TrackedEntityHook) ValidateTrackedEntity(r *Reporter, te *tracker.TrackedEntity) {
	p := r.Preheat()
	if _, ok := preheat.GetAs[*metadata.TrackedEntityType](p, te.TrackedEntityType); !ok {
		r.AddError(metadata.TypeTrackedEntity, te.TrackedEntity, E1005, te.TrackedEntityType)
	}
	if _, ok := preheat.GetAs[*metadata.OrganisationUnit](p, te.OrgUnit); !ok {
		r.AddError(metadata.TypeTrackedEntity, te.TrackedEntity, E1049, te.OrgUnit)
	}
}

// EnrollmentHook checks the program, org unit and tracked entity of an
// enrollment.
type EnrollmentHook struct{ BaseHook }

func (EnrollmentHook) ValidateEnrollment(r *Reporter, en *tracker.Enrollment) {
	p := r.Preheat()
	prog, ok := preheat.GetAs[*metadata.Program](p, en.Program)
	if !ok {
		r.AddError(metadata.TypeEnrollment, en.Enrollment, E1069, en.Program)
	} else if !prog.RegistrationRequired() {
		r.AddError(metadata.TypeEnrollment, en.Enrollment, E1014, prog.UID)
	}
	if _, ok := preheat.GetAs[*metadata.OrganisationUnit](p, en.OrgUnit); !ok {
		r.AddError(metadata.TypeEnrollment, en.Enrollment, E1070, en.OrgUnit)
	}

	if !p.Exists(metadata.TypeTrackedEntity, en.TrackedEntity) {
		r.AddError(metadata.TypeEnrollment, en.Enrollment, E1068, en.TrackedEntity)
		return
	}
	if prog == nil || prog.TrackedEntityTypeUID == "" {
		return
	}
	if tet := trackedEntityTypeOf(r, en.TrackedEntity); tet != "" && tet != prog.TrackedEntityTypeUID {
		r.AddError(metadata.TypeEnrollment, en.Enrollment, E1022, en.TrackedEntity, prog.UID)
	}
}

// trackedEntityTypeOf returns the uid of the type of the tracked entity,
// declared or persisted, or "" when it cannot be determined.
func trackedEntityTypeOf(r *Reporter, uid string) string {
	if te := r.DeclaredTrackedEntity(uid); te != nil {
		if tet, ok := preheat.GetAs[*metadata.TrackedEntityType](r.Preheat(), te.TrackedEntityType); ok {
			return tet.UID
		}
		return ""
	}
	if te := r.Preheat().TrackedEntity(uid); te != nil {
		return te.TrackedEntityTypeUID
	}
	return ""
}

// EventHook checks the program, stage, org unit, enrollment and data values
// of an event.
type EventHook struct{ BaseHook }

func (EventHook) ValidateEvent(r *Reporter, ev *tracker.Event) {
	p := r.Preheat()
	prog, ok := preheat.GetAs[*metadata.Program](p, ev.Program)
	if !ok {
		r.AddError(metadata.TypeEvent, ev.Event, E1010, ev.Program)
	}
	stage, ok := preheat.GetAs[*metadata.ProgramStage](p, ev.ProgramStage)
	if !ok {
		r.AddError(metadata.TypeEvent, ev.Event, E1013, ev.ProgramStage)
	} else if prog != nil && stage.ProgramUID != prog.UID {
		r.AddError(metadata.TypeEvent, ev.Event, E1089, ev.Event, stage.UID, prog.UID)
	}
	if _, ok := preheat.GetAs[*metadata.OrganisationUnit](p, ev.OrgUnit); !ok {
		r.AddError(metadata.TypeEvent, ev.Event, E1011, ev.OrgUnit)
	}

	if prog != nil && prog.RegistrationRequired() {
		validateEventEnrollment(r, ev, prog)
	}

	for _, dv := range ev.DataValues {
		if _, ok := preheat.GetAs[*metadata.DataElement](p, dv.DataElement); !ok {
			r.AddError(metadata.TypeEvent, ev.Event, E1304, dv.DataElement)
		}
	}
}

func validateEventEnrollment(r *Reporter, ev *tracker.Event, prog *metadata.Program) {
	p := r.Preheat()
	if ev.Enrollment == "" {
		r.AddError(metadata.TypeEvent, ev.Event, E1033, ev.Event)
		return
	}
	if !p.Exists(metadata.TypeEnrollment, ev.Enrollment) {
		r.AddError(metadata.TypeEvent, ev.Event, E1081, ev.Enrollment)
		return
	}

	var enrolledIn string
	if en := r.DeclaredEnrollment(ev.Enrollment); en != nil {
		if ep, ok := preheat.GetAs[*metadata.Program](p, en.Program); ok {
			enrolledIn = ep.UID
		}
	} else if en := p.Enrollment(ev.Enrollment); en != nil {
		enrolledIn = en.ProgramUID
	}
	if enrolledIn != "" && enrolledIn != prog.UID {
		r.AddError(metadata.TypeEvent, ev.Event, E1079, ev.Event, prog.UID, ev.Enrollment)
	}
}

// RelationshipHook checks the type and both items of a relationship.
type RelationshipHook struct{ BaseHook }

func (RelationshipHook) ValidateRelationship(r *Reporter, rel *tracker.Relationship) {
	p := r.Preheat()
	if _, ok := preheat.GetAs[*metadata.RelationshipType](p, rel.RelationshipType); !ok {
		r.AddError(metadata.TypeRelationship, rel.Relationship, E4009, rel.RelationshipType)
	}
	for _, item := range []*tracker.RelationshipItem{rel.From, rel.To} {
		if item.Set() != 1 {
			r.AddError(metadata.TypeRelationship, rel.Relationship, E4001, item.UID(), rel.Relationship)
			continue
		}
		if !p.Exists(item.EntityType(), item.UID()) {
			r.AddError(metadata.TypeRelationship, rel.Relationship, E4012, string(item.EntityType()), item.UID())
		}
	}
}
