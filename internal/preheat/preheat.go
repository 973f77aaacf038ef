// Package preheat holds the build-once, read-many cache of one tracker
// import run. The loading phase fills a Preheat through its Put methods and
// finishes with CreateReferenceTree; from then on validation and persistence
// only read it, and it may be shared between goroutines without locking.
package preheat

import (
	"github.com/samber/lo"

	"github.com/ehr/tracker/internal/domain/metadata"
	"github.com/ehr/tracker/internal/domain/tracker"
)

type Preheat struct {
	identifiers *metadata.IdentifierParams
	index       *IdentifierIndex
	combos      *CategoryComboResolver
	tree        *ReferenceTree

	defaults map[metadata.ObjectType]metadata.Object
	batch    Batch
	declared map[metadata.ObjectType]map[string]struct{}
}

// New returns an empty Preheat resolving references with identifiers. A nil
// identifiers resolves everything by UID.
func New(identifiers *metadata.IdentifierParams) *Preheat {
	if identifiers == nil {
		identifiers = metadata.NewIdentifierParams()
	}
	index := NewIdentifierIndex(identifiers)
	return &Preheat{
		identifiers: identifiers,
		index:       index,
		combos:      NewCategoryComboResolver(identifiers, index),
		tree:        NewReferenceTree(),
		defaults:    make(map[metadata.ObjectType]metadata.Object),
		declared:    make(map[metadata.ObjectType]map[string]struct{}),
	}
}

func (p *Preheat) Identifiers() *metadata.IdentifierParams { return p.identifiers }

// -- Identifier index --

func (p *Preheat) Put(id metadata.Identifier, obj metadata.Object) {
	p.index.Put(id, obj)
}

func (p *Preheat) PutAll(id metadata.Identifier, objs []metadata.Object) {
	p.index.PutAll(id, objs)
}

// Get returns the object of type t identified by value, or nil.
func (p *Preheat) Get(t metadata.ObjectType, value string) metadata.Object {
	return p.index.Get(t, value)
}

func (p *Preheat) GetAll(t metadata.ObjectType) []metadata.Object {
	return p.index.GetAll(t)
}

func (p *Preheat) Contains(t metadata.ObjectType, value string) bool {
	return p.index.Contains(t, value)
}

// IsEmpty reports whether no object has been put.
func (p *Preheat) IsEmpty() bool {
	return p.index.IsEmpty()
}

// GetAs returns the object identified by value with the type T reports.
func GetAs[T metadata.Object](p *Preheat, value string) (T, bool) {
	var zero T
	obj, ok := p.index.Get(zero.ObjectType(), value).(T)
	return obj, ok
}

// -- Defaults --

// PutDefault records obj as the default object of its type.
func (p *Preheat) PutDefault(obj metadata.Object) {
	if metadata.IsNil(obj) {
		return
	}
	p.defaults[obj.ObjectType()] = obj
}

// Default returns the default object of type t, or nil.
func (p *Preheat) Default(t metadata.ObjectType) metadata.Object {
	return p.defaults[t]
}

// DefaultCategoryOptionCombo returns the default category option combo, or nil.
func (p *Preheat) DefaultCategoryOptionCombo() *metadata.CategoryOptionCombo {
	coc, _ := p.defaults[metadata.TypeCategoryOptionCombo].(*metadata.CategoryOptionCombo)
	return coc
}

// -- Category option combos --

func (p *Preheat) PutCategoryOptionCombo(combo *metadata.CategoryCombo, options []*metadata.CategoryOption, coc *metadata.CategoryOptionCombo) {
	p.combos.Put(combo, options, coc)
}

func (p *Preheat) ContainsCategoryOptionCombo(combo *metadata.CategoryCombo, options []*metadata.CategoryOption) bool {
	return p.combos.Contains(combo, options)
}

func (p *Preheat) ContainsCategoryOptionComboString(combo *metadata.CategoryCombo, options string) bool {
	return p.combos.ContainsOptionString(combo, options)
}

func (p *Preheat) GetCategoryOptionCombo(combo *metadata.CategoryCombo, options []*metadata.CategoryOption) *metadata.CategoryOptionCombo {
	return p.combos.Get(combo, options)
}

func (p *Preheat) GetCategoryOptionComboByOptionString(combo *metadata.CategoryCombo, options string) *metadata.CategoryOptionCombo {
	return p.combos.GetByOptionString(combo, options)
}

// GetCategoryOptionComboIdentifier returns the value, under the category
// option combo identifier, of the combo that options resolved to. It returns
// "" when nothing or an absent result was recorded.
func (p *Preheat) GetCategoryOptionComboIdentifier(combo *metadata.CategoryCombo, options string) string {
	coc := p.combos.GetByOptionString(combo, options)
	if coc == nil {
		return ""
	}
	return p.identifiers.For(metadata.TypeCategoryOptionCombo).ValueOf(coc)
}

// GetCategoryOptionComboByID returns the combo identified by value.
func (p *Preheat) GetCategoryOptionComboByID(value string) *metadata.CategoryOptionCombo {
	return p.combos.GetByID(value)
}

// CanonicalOptions exposes the key the resolver builds for options.
func (p *Preheat) CanonicalOptions(options []*metadata.CategoryOption) string {
	return p.combos.CanonicalOptions(options)
}

// -- Tracker rows --

func (p *Preheat) declare(t metadata.ObjectType, uids []string) {
	set, ok := p.declared[t]
	if !ok {
		set = make(map[string]struct{}, len(uids))
		p.declared[t] = set
	}
	for _, uid := range lo.Compact(uids) {
		set[uid] = struct{}{}
	}
}

// PutTrackedEntities stores the persisted tracked entities that were found
// and records every tracked entity uid the batch declares.
func (p *Preheat) PutTrackedEntities(id metadata.Identifier, loaded []*tracker.TrackedEntityInstance, declared []string) {
	for _, te := range loaded {
		p.index.Put(id, te)
	}
	p.batch.TrackedEntities = append(p.batch.TrackedEntities, declared...)
	p.declare(metadata.TypeTrackedEntity, declared)
}

func (p *Preheat) PutEnrollments(id metadata.Identifier, loaded []*tracker.ProgramInstance, declared []*tracker.Enrollment) {
	for _, en := range loaded {
		p.index.Put(id, en)
	}
	p.batch.Enrollments = append(p.batch.Enrollments, declared...)
	p.declare(metadata.TypeEnrollment, lo.Map(declared, func(en *tracker.Enrollment, _ int) string { return en.Enrollment }))
}

func (p *Preheat) PutEvents(id metadata.Identifier, loaded []*tracker.ProgramStageInstance, declared []*tracker.Event) {
	for _, ev := range loaded {
		p.index.Put(id, ev)
	}
	p.batch.Events = append(p.batch.Events, declared...)
	p.declare(metadata.TypeEvent, lo.Map(declared, func(ev *tracker.Event, _ int) string { return ev.Event }))
}

func (p *Preheat) PutRelationships(id metadata.Identifier, loaded []*tracker.RelationshipInstance, declared []*tracker.Relationship) {
	for _, rel := range loaded {
		p.index.Put(id, rel)
	}
	p.batch.Relationships = append(p.batch.Relationships, declared...)
	p.declare(metadata.TypeRelationship, lo.Map(declared, func(rel *tracker.Relationship, _ int) string { return rel.Relationship }))
}

func (p *Preheat) TrackedEntity(uid string) *tracker.TrackedEntityInstance {
	te, _ := GetAs[*tracker.TrackedEntityInstance](p, uid)
	return te
}

func (p *Preheat) Enrollment(uid string) *tracker.ProgramInstance {
	en, _ := GetAs[*tracker.ProgramInstance](p, uid)
	return en
}

func (p *Preheat) Event(uid string) *tracker.ProgramStageInstance {
	ev, _ := GetAs[*tracker.ProgramStageInstance](p, uid)
	return ev
}

func (p *Preheat) Relationship(uid string) *tracker.RelationshipInstance {
	rel, _ := GetAs[*tracker.RelationshipInstance](p, uid)
	return rel
}

// Persisted reports whether a row of type t with uid already exists in storage.
func (p *Preheat) Persisted(t metadata.ObjectType, uid string) bool {
	return p.index.Contains(t, uid)
}

// Declared reports whether the batch declares an entity of type t with uid.
func (p *Preheat) Declared(t metadata.ObjectType, uid string) bool {
	_, ok := p.declared[t][uid]
	return ok
}

// Exists reports whether an entity of type t with uid is either persisted or
// declared by the batch.
func (p *Preheat) Exists(t metadata.ObjectType, uid string) bool {
	return p.Persisted(t, uid) || p.Declared(t, uid)
}

// -- Reference tree --

// CreateReferenceTree builds the reference forest from everything declared
// so far. It is the last write of the loading phase and may be called again
// to rebuild from scratch.
func (p *Preheat) CreateReferenceTree() {
	p.tree.Build(p.batch)
}

// GetReference returns the reference of uid. It panics when called before
// CreateReferenceTree.
func (p *Preheat) GetReference(uid string) (ReferenceTrackerEntity, bool) {
	return p.tree.Get(uid)
}

// Children returns the references whose parent is uid, in batch order.
func (p *Preheat) Children(uid string) []ReferenceTrackerEntity {
	return p.tree.Children(uid)
}

// References returns every reference of the batch in order.
func (p *Preheat) References() []ReferenceTrackerEntity {
	return p.tree.References()
}
