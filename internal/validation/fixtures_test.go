package validation

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/tracker/internal/domain/metadata"
	"github.com/ehr/tracker/internal/domain/tracker"
	"github.com/ehr/tracker/internal/preheat"
)

func ident(uid, name string) metadata.IdentifiableObject {
	return metadata.IdentifiableObject{UID: uid, Code: "CODE_" + uid, Name: name}
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

type testMetadata struct {
	tet          *metadata.TrackedEntityType
	ou           *metadata.OrganisationUnit
	defaultCombo *metadata.CategoryCombo
	defaultCOC   *metadata.CategoryOptionCombo
	partnerCombo *metadata.CategoryCombo
	optA, optB   *metadata.CategoryOption
	cocA         *metadata.CategoryOptionCombo
	otherCOC     *metadata.CategoryOptionCombo
	trackerProg  *metadata.Program
	eventProg    *metadata.Program
	trackerStage *metadata.ProgramStage
	eventStage   *metadata.ProgramStage
	de           *metadata.DataElement
	rt           *metadata.RelationshipType
}

func newTestMetadata() *testMetadata {
	m := &testMetadata{
		tet:          &metadata.TrackedEntityType{IdentifiableObject: ident("TetUID00001", "Person")},
		ou:           &metadata.OrganisationUnit{IdentifiableObject: ident("OuUID000001", "Clinic A")},
		defaultCombo: &metadata.CategoryCombo{IdentifiableObject: ident("CcDefault01", metadata.DefaultName)},
		partnerCombo: &metadata.CategoryCombo{IdentifiableObject: ident("CcPartner01", "Partner"), DataDimensionType: "ATTRIBUTE"},
		optA: &metadata.CategoryOption{
			IdentifiableObject: ident("CoPartnerA1", "Partner A"),
			StartDate:          date(2024, 1, 1),
			EndDate:            date(2024, 6, 30),
		},
		optB: &metadata.CategoryOption{IdentifiableObject: ident("CoPartnerB1", "Partner B")},
		de:   &metadata.DataElement{IdentifiableObject: ident("DeUID000001", "Weight"), ValueType: "NUMBER"},
		rt:   &metadata.RelationshipType{IdentifiableObject: ident("RtUID000001", "Mother of")},
	}
	m.defaultCOC = &metadata.CategoryOptionCombo{
		IdentifiableObject: ident("CocDefault1", metadata.DefaultName),
		CategoryComboUID:   m.defaultCombo.UID,
	}
	m.cocA = &metadata.CategoryOptionCombo{
		IdentifiableObject: ident("CocPartnerA", "Partner A"),
		CategoryComboUID:   m.partnerCombo.UID,
		OptionUIDs:         []string{m.optA.UID},
		Options:            []*metadata.CategoryOption{m.optA},
	}
	m.otherCOC = &metadata.CategoryOptionCombo{
		IdentifiableObject: ident("CocOther001", "Other"),
		CategoryComboUID:   "CcOther0001",
	}
	m.trackerProg = &metadata.Program{
		IdentifiableObject:   ident("PrTracker01", "Child programme"),
		ProgramType:          metadata.ProgramWithRegistration,
		TrackedEntityTypeUID: m.tet.UID,
		CategoryComboUID:     m.defaultCombo.UID,
		CategoryCombo:        m.defaultCombo,
	}
	m.eventProg = &metadata.Program{
		IdentifiableObject:     ident("PrEvents001", "Inpatient morbidity"),
		ProgramType:            metadata.ProgramWithoutRegistration,
		CategoryComboUID:       m.partnerCombo.UID,
		CategoryCombo:          m.partnerCombo,
		OpenDaysAfterCoEndDate: 10,
	}
	m.trackerStage = &metadata.ProgramStage{IdentifiableObject: ident("PsTracker01", "Birth"), ProgramUID: m.trackerProg.UID}
	m.eventStage = &metadata.ProgramStage{IdentifiableObject: ident("PsEvents001", "Admission"), ProgramUID: m.eventProg.UID}
	return m
}

// preheat builds a preheat over b holding the test metadata, with cocA
// resolved for {optA} and any persisted rows given.
func (m *testMetadata) preheat(b *tracker.Bundle, persisted ...metadata.Object) *preheat.Preheat {
	p := preheat.New(nil)
	p.PutAll(metadata.UID, []metadata.Object{
		m.tet, m.ou, m.defaultCombo, m.partnerCombo, m.optA, m.optB,
		m.trackerProg, m.eventProg, m.trackerStage, m.eventStage, m.de, m.rt, m.otherCOC,
	})
	p.PutDefault(m.defaultCombo)
	p.PutDefault(m.defaultCOC)
	p.Put(metadata.UID, m.defaultCOC)
	p.PutCategoryOptionCombo(m.partnerCombo, []*metadata.CategoryOption{m.optA}, m.cocA)
	p.PutAll(metadata.UID, persisted)

	p.PutTrackedEntities(metadata.UID, nil, teUIDs(b))
	p.PutEnrollments(metadata.UID, nil, b.Enrollments)
	p.PutEvents(metadata.UID, nil, b.Events)
	p.PutRelationships(metadata.UID, nil, b.Relationships)
	p.CreateReferenceTree()
	return p
}

func teUIDs(b *tracker.Bundle) []string {
	var out []string
	for _, te := range b.TrackedEntities {
		out = append(out, te.TrackedEntity)
	}
	return out
}

// validBundle is a tracked entity with one enrollment and event, an event
// program event, and a relationship between the tracked entity and the
// tracker event.
func (m *testMetadata) validBundle() *tracker.Bundle {
	return &tracker.Bundle{
		TrackedEntities: []*tracker.TrackedEntity{{
			TrackedEntity: "TeUID000001", TrackedEntityType: m.tet.UID, OrgUnit: m.ou.UID,
		}},
		Enrollments: []*tracker.Enrollment{{
			Enrollment: "EnUID000001", TrackedEntity: "TeUID000001", Program: m.trackerProg.UID, OrgUnit: m.ou.UID,
		}},
		Events: []*tracker.Event{
			{
				Event: "EvUID000001", Enrollment: "EnUID000001", Program: m.trackerProg.UID,
				ProgramStage: m.trackerStage.UID, OrgUnit: m.ou.UID, OccurredAt: date(2024, 3, 1),
				DataValues: []tracker.DataValue{{DataElement: m.de.UID, Value: "3.2"}},
			},
			{
				Event: "EvUID000002", Program: m.eventProg.UID, ProgramStage: m.eventStage.UID,
				OrgUnit: m.ou.UID, AttributeCategoryOptions: m.optA.UID, OccurredAt: date(2024, 3, 1),
			},
		},
		Relationships: []*tracker.Relationship{{
			Relationship: "RelUID00001", RelationshipType: m.rt.UID,
			From: &tracker.RelationshipItem{TrackedEntity: "TeUID000001"},
			To:   &tracker.RelationshipItem{Event: "EvUID000001"},
		}},
	}
}

func validate(t *testing.T, p *preheat.Preheat, b *tracker.Bundle, hooks ...Hook) *Result {
	t.Helper()
	v := NewValidator(zerolog.Nop(), hooks...)
	v.now = func() time.Time { return time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC) }
	res, err := v.Validate(context.Background(), p, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return res
}
