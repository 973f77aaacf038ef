package importer

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/ehr/tracker/internal/domain/metadata"
	"github.com/ehr/tracker/internal/domain/tracker"
	"github.com/ehr/tracker/internal/validation"
)

func ident(uid, code, name string) metadata.IdentifiableObject {
	return metadata.IdentifiableObject{UID: uid, Code: code, Name: name}
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// mockMetadataRepo answers lookups from a fixed set of objects.
type mockMetadataRepo struct {
	mu      sync.Mutex
	objects []metadata.Object
	calls   map[metadata.ObjectType]int
	combos  int
	err     error
}

func newMockMetadataRepo(objs ...metadata.Object) *mockMetadataRepo {
	return &mockMetadataRepo{objects: objs, calls: make(map[metadata.ObjectType]int)}
}

func (m *mockMetadataRepo) FindByIdentifiers(_ context.Context, t metadata.ObjectType, id metadata.Identifier, values []string) ([]metadata.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[t]++
	if m.err != nil {
		return nil, m.err
	}
	want := make(map[string]bool, len(values))
	for _, v := range values {
		want[id.Normalize(v)] = true
	}
	var out []metadata.Object
	for _, obj := range m.objects {
		if obj.ObjectType() == t && want[id.ValueOf(obj)] {
			out = append(out, obj)
		}
	}
	return out, nil
}

func (m *mockMetadataRepo) FindCategoryOptionCombo(_ context.Context, comboUID string, optionUIDs []string) (*metadata.CategoryOptionCombo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.combos++
	key := sortedKey(optionUIDs)
	for _, obj := range m.objects {
		coc, ok := obj.(*metadata.CategoryOptionCombo)
		if ok && coc.CategoryComboUID == comboUID && sortedKey(coc.OptionUIDs) == key {
			return coc, nil
		}
	}
	return nil, nil
}

func sortedKey(uids []string) string {
	s := append([]string(nil), uids...)
	sort.Strings(s)
	return strings.Join(s, ";")
}

// mockTrackerRepo keeps persisted rows in maps and records saves in order.
type mockTrackerRepo struct {
	mu              sync.Mutex
	trackedEntities map[string]*tracker.TrackedEntityInstance
	enrollments     map[string]*tracker.ProgramInstance
	events          map[string]*tracker.ProgramStageInstance
	relationships   map[string]*tracker.RelationshipInstance
	saved           []string
	saveErr         error
}

func newMockTrackerRepo() *mockTrackerRepo {
	return &mockTrackerRepo{
		trackedEntities: make(map[string]*tracker.TrackedEntityInstance),
		enrollments:     make(map[string]*tracker.ProgramInstance),
		events:          make(map[string]*tracker.ProgramStageInstance),
		relationships:   make(map[string]*tracker.RelationshipInstance),
	}
}

func find[T any](mu *sync.Mutex, rows map[string]T, uids []string) []T {
	mu.Lock()
	defer mu.Unlock()
	var out []T
	for _, uid := range uids {
		if row, ok := rows[uid]; ok {
			out = append(out, row)
		}
	}
	return out
}

func (m *mockTrackerRepo) FindTrackedEntities(_ context.Context, uids []string) ([]*tracker.TrackedEntityInstance, error) {
	return find(&m.mu, m.trackedEntities, uids), nil
}

func (m *mockTrackerRepo) FindEnrollments(_ context.Context, uids []string) ([]*tracker.ProgramInstance, error) {
	return find(&m.mu, m.enrollments, uids), nil
}

func (m *mockTrackerRepo) FindEvents(_ context.Context, uids []string) ([]*tracker.ProgramStageInstance, error) {
	return find(&m.mu, m.events, uids), nil
}

func (m *mockTrackerRepo) FindRelationships(_ context.Context, uids []string) ([]*tracker.RelationshipInstance, error) {
	return find(&m.mu, m.relationships, uids), nil
}

func (m *mockTrackerRepo) save(uid string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, uid)
	return nil
}

func (m *mockTrackerRepo) SaveTrackedEntity(_ context.Context, te *tracker.TrackedEntityInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.save(te.UID); err != nil {
		return err
	}
	m.trackedEntities[te.UID] = te
	return nil
}

func (m *mockTrackerRepo) SaveEnrollment(_ context.Context, en *tracker.ProgramInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.save(en.UID); err != nil {
		return err
	}
	m.enrollments[en.UID] = en
	return nil
}

func (m *mockTrackerRepo) SaveEvent(_ context.Context, ev *tracker.ProgramStageInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.save(ev.UID); err != nil {
		return err
	}
	m.events[ev.UID] = ev
	return nil
}

func (m *mockTrackerRepo) SaveRelationship(_ context.Context, rel *tracker.RelationshipInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.save(rel.UID); err != nil {
		return err
	}
	m.relationships[rel.UID] = rel
	return nil
}

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if !f.committed {
		f.rolledBack = true
	}
	return nil
}

type fakeBeginner struct {
	tx    *fakeTx
	calls int
}

func (f *fakeBeginner) Begin(context.Context) (pgx.Tx, error) {
	f.calls++
	if f.tx == nil {
		return nil, errors.New("no tx")
	}
	return f.tx, nil
}

// testMetadata is a tracker program on the default category combo and an
// event program on a partner combo with two options.
type testMetadata struct {
	tet          *metadata.TrackedEntityType
	ou           *metadata.OrganisationUnit
	defaultCombo *metadata.CategoryCombo
	defaultCOC   *metadata.CategoryOptionCombo
	defaultCO    *metadata.CategoryOption
	partnerCombo *metadata.CategoryCombo
	optA, optB   *metadata.CategoryOption
	cocA         *metadata.CategoryOptionCombo
	trackerProg  *metadata.Program
	eventProg    *metadata.Program
	trackerStage *metadata.ProgramStage
	eventStage   *metadata.ProgramStage
	de           *metadata.DataElement
	rt           *metadata.RelationshipType
}

func newTestMetadata() *testMetadata {
	m := &testMetadata{
		tet:          &metadata.TrackedEntityType{IdentifiableObject: ident("TetUID00001", "PERSON", "Person")},
		ou:           &metadata.OrganisationUnit{IdentifiableObject: ident("OuUID000001", "OU_A", "Clinic A")},
		defaultCombo: &metadata.CategoryCombo{IdentifiableObject: ident("CcDefault01", "default", metadata.DefaultName)},
		defaultCO:    &metadata.CategoryOption{IdentifiableObject: ident("CoDefault01", "default", metadata.DefaultName)},
		partnerCombo: &metadata.CategoryCombo{IdentifiableObject: ident("CcPartner01", "PARTNER", "Partner"), DataDimensionType: "ATTRIBUTE"},
		optA: &metadata.CategoryOption{
			IdentifiableObject: ident("CoPartnerA1", "PARTNER_A", "Partner A"),
			StartDate:          date(2024, 1, 1),
			EndDate:            date(2024, 6, 30),
		},
		optB: &metadata.CategoryOption{IdentifiableObject: ident("CoPartnerB1", "PARTNER_B", "Partner B")},
		de:   &metadata.DataElement{IdentifiableObject: ident("DeUID000001", "WEIGHT", "Weight"), ValueType: "NUMBER"},
		rt:   &metadata.RelationshipType{IdentifiableObject: ident("RtUID000001", "MOTHER_OF", "Mother of")},
	}
	m.defaultCOC = &metadata.CategoryOptionCombo{
		IdentifiableObject: ident("CocDefault1", "default", metadata.DefaultName),
		CategoryComboUID:   m.defaultCombo.UID,
		OptionUIDs:         []string{m.defaultCO.UID},
	}
	m.cocA = &metadata.CategoryOptionCombo{
		IdentifiableObject: ident("CocPartnerA", "COC_A", "Partner A"),
		CategoryComboUID:   m.partnerCombo.UID,
		OptionUIDs:         []string{m.optA.UID},
	}
	m.trackerProg = &metadata.Program{
		IdentifiableObject:   ident("PrTracker01", "CHILD", "Child programme"),
		ProgramType:          metadata.ProgramWithRegistration,
		TrackedEntityTypeUID: m.tet.UID,
		CategoryComboUID:     m.defaultCombo.UID,
	}
	m.eventProg = &metadata.Program{
		IdentifiableObject: ident("PrEvents001", "MORBIDITY", "Inpatient morbidity"),
		ProgramType:        metadata.ProgramWithoutRegistration,
		CategoryComboUID:   m.partnerCombo.UID,
	}
	m.trackerStage = &metadata.ProgramStage{IdentifiableObject: ident("PsTracker01", "BIRTH", "Birth"), ProgramUID: m.trackerProg.UID}
	m.eventStage = &metadata.ProgramStage{IdentifiableObject: ident("PsEvents001", "ADMISSION", "Admission"), ProgramUID: m.eventProg.UID}
	return m
}

func (m *testMetadata) objects() []metadata.Object {
	return []metadata.Object{
		m.tet, m.ou, m.defaultCombo, m.defaultCOC, m.defaultCO, m.partnerCombo, m.optA, m.optB,
		m.cocA, m.trackerProg, m.eventProg, m.trackerStage, m.eventStage, m.de, m.rt,
	}
}

// nestedBundle is a tracked entity with a nested enrollment and event, an
// event program event selecting optA, and a relationship from the tracked
// entity to the tracker event.
func (m *testMetadata) nestedBundle() *tracker.Bundle {
	return &tracker.Bundle{
		TrackedEntities: []*tracker.TrackedEntity{{
			TrackedEntity:     "TeUID000001",
			TrackedEntityType: m.tet.UID,
			OrgUnit:           m.ou.UID,
			Attributes:        []tracker.Attribute{{Attribute: "AtUID000001", Value: "Jane"}},
			Enrollments: []*tracker.Enrollment{{
				Enrollment: "EnUID000001",
				Program:    m.trackerProg.UID,
				OrgUnit:    m.ou.UID,
				EnrolledAt: date(2024, 2, 1),
				Events: []*tracker.Event{{
					Event:        "EvUID000001",
					ProgramStage: m.trackerStage.UID,
					OrgUnit:      m.ou.UID,
					OccurredAt:   date(2024, 3, 1),
					DataValues:   []tracker.DataValue{{DataElement: m.de.UID, Value: "3.2"}},
				}},
			}},
		}},
		Events: []*tracker.Event{{
			Event:                    "EvUID000002",
			Program:                  m.eventProg.UID,
			ProgramStage:             m.eventStage.UID,
			OrgUnit:                  m.ou.UID,
			AttributeCategoryOptions: m.optA.UID,
			OccurredAt:               date(2024, 3, 1),
		}},
		Relationships: []*tracker.Relationship{{
			Relationship:     "RelUID00001",
			RelationshipType: m.rt.UID,
			From:             &tracker.RelationshipItem{TrackedEntity: "TeUID000001"},
			To:               &tracker.RelationshipItem{Event: "EvUID000001"},
		}},
	}
}

type testEnv struct {
	md      *testMetadata
	mdRepo  *mockMetadataRepo
	trRepo  *mockTrackerRepo
	tx      *fakeBeginner
	service *Service
}

func newTestEnv() *testEnv {
	md := newTestMetadata()
	env := &testEnv{
		md:     md,
		mdRepo: newMockMetadataRepo(md.objects()...),
		trRepo: newMockTrackerRepo(),
		tx:     &fakeBeginner{tx: &fakeTx{}},
	}
	supplier := NewSupplier(env.mdRepo, env.trRepo, 4, zerolog.Nop())
	validator := validation.NewValidator(zerolog.Nop())
	env.service = NewService(supplier, validator, env.trRepo, env.tx, zerolog.Nop())
	return env
}
