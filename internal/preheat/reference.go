package preheat

import (
	"github.com/ehr/tracker/internal/domain/metadata"
	"github.com/ehr/tracker/internal/domain/tracker"
)

// ReferenceType is the kind of entity a reference points at.
type ReferenceType string

const (
	ReferenceTrackedEntity    ReferenceType = "TRACKED_ENTITY"
	ReferenceEnrollment       ReferenceType = "ENROLLMENT"
	ReferenceEvent            ReferenceType = "EVENT"
	ReferenceRelationshipItem ReferenceType = "RELATIONSHIP_ITEM"
)

// ReferenceTrackerEntity links one entity of the batch to its declared
// parent. Roots and events of event programs have an empty ParentUID.
type ReferenceTrackerEntity struct {
	UID       string        `json:"uid"`
	ParentUID string        `json:"parentUid,omitempty"`
	Type      ReferenceType `json:"type"`
}

// ObjectType maps the reference to the tracker type of the entity.
func (r ReferenceTrackerEntity) ObjectType() metadata.ObjectType {
	switch r.Type {
	case ReferenceTrackedEntity:
		return metadata.TypeTrackedEntity
	case ReferenceEnrollment:
		return metadata.TypeEnrollment
	case ReferenceEvent:
		return metadata.TypeEvent
	}
	return metadata.TypeRelationship
}

// Batch is the set of entities declared by an import payload.
type Batch struct {
	TrackedEntities []string
	Enrollments     []*tracker.Enrollment
	Events          []*tracker.Event
	Relationships   []*tracker.Relationship
}

// ReferenceTree is the parent/child forest of a batch, keyed by child uid.
type ReferenceTree struct {
	built    bool
	refs     map[string]ReferenceTrackerEntity
	order    []string
	children map[string][]string
}

func NewReferenceTree() *ReferenceTree {
	return &ReferenceTree{}
}

// Build recomputes the tree from b. When a uid is declared more than once
// the first declaration is kept.
func (t *ReferenceTree) Build(b Batch) {
	t.refs = make(map[string]ReferenceTrackerEntity)
	t.order = t.order[:0]
	t.children = make(map[string][]string)

	for _, uid := range b.TrackedEntities {
		t.add(ReferenceTrackerEntity{UID: uid, Type: ReferenceTrackedEntity})
	}
	for _, en := range b.Enrollments {
		t.add(ReferenceTrackerEntity{UID: en.Enrollment, ParentUID: en.TrackedEntity, Type: ReferenceEnrollment})
	}
	for _, ev := range b.Events {
		t.add(ReferenceTrackerEntity{UID: ev.Event, ParentUID: ev.Enrollment, Type: ReferenceEvent})
	}
	for _, rel := range b.Relationships {
		t.add(ReferenceTrackerEntity{UID: rel.Relationship, ParentUID: rel.From.UID(), Type: ReferenceRelationshipItem})
	}
	t.built = true
}

func (t *ReferenceTree) add(ref ReferenceTrackerEntity) {
	if ref.UID == "" {
		return
	}
	if _, dup := t.refs[ref.UID]; dup {
		return
	}
	t.refs[ref.UID] = ref
	t.order = append(t.order, ref.UID)
	if ref.ParentUID != "" {
		t.children[ref.ParentUID] = append(t.children[ref.ParentUID], ref.UID)
	}
}

func (t *ReferenceTree) mustBeBuilt() {
	if !t.built {
		panic("preheat: reference tree read before it was built")
	}
}

// Built reports whether Build has been called.
func (t *ReferenceTree) Built() bool { return t.built }

// Get returns the reference of uid. It panics when the tree was never built.
func (t *ReferenceTree) Get(uid string) (ReferenceTrackerEntity, bool) {
	t.mustBeBuilt()
	ref, ok := t.refs[uid]
	return ref, ok
}

// Children returns the references whose parent is uid, in batch order.
func (t *ReferenceTree) Children(uid string) []ReferenceTrackerEntity {
	t.mustBeBuilt()
	uids := t.children[uid]
	out := make([]ReferenceTrackerEntity, 0, len(uids))
	for _, c := range uids {
		out = append(out, t.refs[c])
	}
	return out
}

// References returns every reference in batch order.
func (t *ReferenceTree) References() []ReferenceTrackerEntity {
	t.mustBeBuilt()
	out := make([]ReferenceTrackerEntity, 0, len(t.order))
	for _, uid := range t.order {
		out = append(out, t.refs[uid])
	}
	return out
}
