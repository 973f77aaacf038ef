package importer

import (
	"context"
	"fmt"

	"github.com/ehr/tracker/internal/domain/metadata"
	"github.com/ehr/tracker/internal/domain/tracker"
	"github.com/ehr/tracker/internal/preheat"
	"github.com/ehr/tracker/internal/validation"
)

const (
	defaultEnrollmentStatus = "ACTIVE"
	defaultEventStatus      = "ACTIVE"
)

// persister converts validated payload objects into persisted rows, with
// every reference translated to a uid through the preheat.
type persister struct {
	preheat *preheat.Preheat
	repo    tracker.Repository

	trackedEntities map[string]*tracker.TrackedEntity
	enrollments     map[string]*tracker.Enrollment
	events          map[string]*tracker.Event
	relationships   map[string]*tracker.Relationship
}

func newPersister(p *preheat.Preheat, b *tracker.Bundle, repo tracker.Repository) *persister {
	pr := &persister{
		preheat:         p,
		repo:            repo,
		trackedEntities: make(map[string]*tracker.TrackedEntity, len(b.TrackedEntities)),
		enrollments:     make(map[string]*tracker.Enrollment, len(b.Enrollments)),
		events:          make(map[string]*tracker.Event, len(b.Events)),
		relationships:   make(map[string]*tracker.Relationship, len(b.Relationships)),
	}
	// The first declaration of a uid wins, as in the reference tree.
	for _, te := range b.TrackedEntities {
		keepFirst(pr.trackedEntities, te.TrackedEntity, te)
	}
	for _, en := range b.Enrollments {
		keepFirst(pr.enrollments, en.Enrollment, en)
	}
	for _, ev := range b.Events {
		keepFirst(pr.events, ev.Event, ev)
	}
	for _, rel := range b.Relationships {
		keepFirst(pr.relationships, rel.Relationship, rel)
	}
	return pr
}

func keepFirst[T any](m map[string]T, uid string, v T) {
	if _, ok := m[uid]; !ok {
		m[uid] = v
	}
}

// skip counts every object as ignored.
func (pr *persister) skip(res *validation.Result, report *Report) {
	for _, ref := range res.Order {
		report.ignored(ref.ObjectType())
	}
}

// persist saves the valid objects of res in dependency order.
func (pr *persister) persist(ctx context.Context, res *validation.Result, report *Report) error {
	for _, ref := range res.Order {
		t := ref.ObjectType()
		if !res.Valid(ref.UID) {
			report.ignored(t)
			continue
		}
		existed := pr.preheat.Persisted(t, ref.UID)
		if err := pr.save(ctx, t, ref.UID); err != nil {
			return fmt.Errorf("save %s %s: %w", t, ref.UID, err)
		}
		if existed {
			report.updated(t)
		} else {
			report.created(t)
		}
	}
	return nil
}

func (pr *persister) save(ctx context.Context, t metadata.ObjectType, uid string) error {
	switch t {
	case metadata.TypeTrackedEntity:
		return pr.repo.SaveTrackedEntity(ctx, pr.trackedEntity(pr.trackedEntities[uid]))
	case metadata.TypeEnrollment:
		return pr.repo.SaveEnrollment(ctx, pr.enrollment(pr.enrollments[uid]))
	case metadata.TypeEvent:
		return pr.repo.SaveEvent(ctx, pr.event(pr.events[uid]))
	case metadata.TypeRelationship:
		return pr.repo.SaveRelationship(ctx, pr.relationship(pr.relationships[uid]))
	}
	return fmt.Errorf("unsupported type %s", t)
}

// uidOf returns the uid of the object of type t identified by value, or
// value itself when the preheat does not hold it.
func (pr *persister) uidOf(t metadata.ObjectType, value string) string {
	if obj := pr.preheat.Get(t, value); obj != nil {
		return obj.Identifiable().UID
	}
	return value
}

func (pr *persister) trackedEntity(te *tracker.TrackedEntity) *tracker.TrackedEntityInstance {
	row := &tracker.TrackedEntityInstance{}
	if existing := pr.preheat.TrackedEntity(te.TrackedEntity); existing != nil {
		row.IdentifiableObject = existing.IdentifiableObject
	}
	row.UID = te.TrackedEntity
	row.TrackedEntityTypeUID = pr.uidOf(metadata.TypeTrackedEntityType, te.TrackedEntityType)
	row.OrgUnitUID = pr.uidOf(metadata.TypeOrganisationUnit, te.OrgUnit)
	row.AttributeValues = nil
	for _, a := range te.Attributes {
		row.AttributeValues = append(row.AttributeValues, metadata.AttributeValue{AttributeUID: a.Attribute, Value: a.Value})
	}
	return row
}

func (pr *persister) enrollment(en *tracker.Enrollment) *tracker.ProgramInstance {
	row := &tracker.ProgramInstance{}
	if existing := pr.preheat.Enrollment(en.Enrollment); existing != nil {
		row.IdentifiableObject = existing.IdentifiableObject
	}
	row.UID = en.Enrollment
	row.TrackedEntityUID = en.TrackedEntity
	row.ProgramUID = pr.uidOf(metadata.TypeProgram, en.Program)
	row.OrgUnitUID = pr.uidOf(metadata.TypeOrganisationUnit, en.OrgUnit)
	row.Status = en.Status
	if row.Status == "" {
		row.Status = defaultEnrollmentStatus
	}
	row.EnrolledAt = en.EnrolledAt
	row.OccurredAt = en.OccurredAt
	return row
}

func (pr *persister) event(ev *tracker.Event) *tracker.ProgramStageInstance {
	row := &tracker.ProgramStageInstance{}
	if existing := pr.preheat.Event(ev.Event); existing != nil {
		row.IdentifiableObject = existing.IdentifiableObject
	}
	row.UID = ev.Event
	row.ProgramInstanceUID = ev.Enrollment
	row.ProgramStageUID = pr.uidOf(metadata.TypeProgramStage, ev.ProgramStage)
	row.OrgUnitUID = pr.uidOf(metadata.TypeOrganisationUnit, ev.OrgUnit)
	row.Status = ev.Status
	if row.Status == "" {
		row.Status = defaultEventStatus
	}
	row.OccurredAt = ev.OccurredAt
	row.ScheduledAt = ev.ScheduledAt

	prog, _ := preheat.GetAs[*metadata.Program](pr.preheat, ev.Program)
	if prog != nil {
		row.ProgramUID = prog.UID
	} else {
		row.ProgramUID = ev.Program
	}
	if coc, err := validation.EventOptionCombo(pr.preheat, prog, ev); err == nil && coc != nil {
		row.AttributeOptionComboUID = coc.UID
	}

	row.DataValues = make(map[string]string, len(ev.DataValues))
	for _, dv := range ev.DataValues {
		row.DataValues[pr.uidOf(metadata.TypeDataElement, dv.DataElement)] = dv.Value
	}
	return row
}

func (pr *persister) relationship(rel *tracker.Relationship) *tracker.RelationshipInstance {
	row := &tracker.RelationshipInstance{}
	if existing := pr.preheat.Relationship(rel.Relationship); existing != nil {
		row.IdentifiableObject = existing.IdentifiableObject
	}
	row.UID = rel.Relationship
	row.RelationshipTypeUID = pr.uidOf(metadata.TypeRelationshipType, rel.RelationshipType)
	row.FromUID, row.FromType = rel.From.UID(), rel.From.EntityType()
	row.ToUID, row.ToType = rel.To.UID(), rel.To.EntityType()
	return row
}
