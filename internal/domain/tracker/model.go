package tracker

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/ehr/tracker/internal/domain/metadata"
)

// Bundle is one import payload. Nested enrollments and events are moved to
// the flat lists by Flatten before the payload is preheated.
type Bundle struct {
	TrackedEntities []*TrackedEntity `json:"trackedEntities,omitempty"`
	Enrollments     []*Enrollment    `json:"enrollments,omitempty"`
	Events          []*Event         `json:"events,omitempty"`
	Relationships   []*Relationship  `json:"relationships,omitempty"`
}

type Attribute struct {
	Attribute string `json:"attribute"`
	Value     string `json:"value"`
}

type TrackedEntity struct {
	TrackedEntity     string        `json:"trackedEntity"`
	TrackedEntityType string        `json:"trackedEntityType"`
	OrgUnit           string        `json:"orgUnit"`
	Attributes        []Attribute   `json:"attributes,omitempty"`
	Enrollments       []*Enrollment `json:"enrollments,omitempty"`
}

type Enrollment struct {
	Enrollment    string     `json:"enrollment"`
	TrackedEntity string     `json:"trackedEntity"`
	Program       string     `json:"program"`
	OrgUnit       string     `json:"orgUnit"`
	Status        string     `json:"status,omitempty"`
	EnrolledAt    *time.Time `json:"enrolledAt,omitempty"`
	OccurredAt    *time.Time `json:"occurredAt,omitempty"`
	Events        []*Event   `json:"events,omitempty"`
}

type DataValue struct {
	DataElement string `json:"dataElement"`
	Value       string `json:"value"`
}

type Event struct {
	Event        string `json:"event"`
	Enrollment   string `json:"enrollment,omitempty"`
	Program      string `json:"program"`
	ProgramStage string `json:"programStage"`
	OrgUnit      string `json:"orgUnit"`
	Status       string `json:"status,omitempty"`

	// AttributeOptionCombo identifies the combo directly; when empty it is
	// resolved from AttributeCategoryOptions, a ";"-separated option list.
	AttributeOptionCombo     string `json:"attributeOptionCombo,omitempty"`
	AttributeCategoryOptions string `json:"attributeCategoryOptions,omitempty"`

	OccurredAt  *time.Time  `json:"occurredAt,omitempty"`
	ScheduledAt *time.Time  `json:"scheduledAt,omitempty"`
	DataValues  []DataValue `json:"dataValues,omitempty"`
}

// CategoryOptions splits AttributeCategoryOptions into its values.
func (e *Event) CategoryOptions() []string {
	return SplitOptions(e.AttributeCategoryOptions)
}

// Date returns the date category option rules are checked against: the
// occurred date, else the scheduled date, else now.
func (e *Event) Date(now time.Time) time.Time {
	if e.OccurredAt != nil {
		return *e.OccurredAt
	}
	if e.ScheduledAt != nil {
		return *e.ScheduledAt
	}
	return now
}

// RelationshipItem names exactly one side of a relationship.
type RelationshipItem struct {
	TrackedEntity string `json:"trackedEntity,omitempty"`
	Enrollment    string `json:"enrollment,omitempty"`
	Event         string `json:"event,omitempty"`
}

// UID returns the uid of the referenced entity, or "" when the item is empty.
func (i *RelationshipItem) UID() string {
	if i == nil {
		return ""
	}
	switch {
	case i.TrackedEntity != "":
		return i.TrackedEntity
	case i.Enrollment != "":
		return i.Enrollment
	}
	return i.Event
}

// EntityType returns the type of the referenced entity.
func (i *RelationshipItem) EntityType() metadata.ObjectType {
	if i == nil {
		return ""
	}
	switch {
	case i.TrackedEntity != "":
		return metadata.TypeTrackedEntity
	case i.Enrollment != "":
		return metadata.TypeEnrollment
	case i.Event != "":
		return metadata.TypeEvent
	}
	return ""
}

// Set reports how many of the item's references are filled in.
func (i *RelationshipItem) Set() int {
	if i == nil {
		return 0
	}
	n := 0
	for _, v := range []string{i.TrackedEntity, i.Enrollment, i.Event} {
		if v != "" {
			n++
		}
	}
	return n
}

type Relationship struct {
	Relationship     string            `json:"relationship"`
	RelationshipType string            `json:"relationshipType"`
	From             *RelationshipItem `json:"from"`
	To               *RelationshipItem `json:"to"`
}

// SplitOptions splits a ";"-separated option string, dropping blanks.
func SplitOptions(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Flatten moves nested enrollments and events into the flat lists, filling
// in the parent reference of every moved child, and assigns a generated uid
// to every object that has none. Null entries are dropped. The bundle is
// modified in place.
func (b *Bundle) Flatten() *Bundle {
	b.TrackedEntities = lo.Compact(b.TrackedEntities)
	b.Enrollments = lo.Compact(b.Enrollments)
	b.Events = lo.Compact(b.Events)
	b.Relationships = lo.Compact(b.Relationships)

	for _, te := range b.TrackedEntities {
		if te.TrackedEntity == "" {
			te.TrackedEntity = GenerateUID()
		}
		for _, en := range lo.Compact(te.Enrollments) {
			en.TrackedEntity = te.TrackedEntity
			b.Enrollments = append(b.Enrollments, en)
		}
		te.Enrollments = nil
	}
	for _, en := range b.Enrollments {
		if en.Enrollment == "" {
			en.Enrollment = GenerateUID()
		}
		for _, ev := range lo.Compact(en.Events) {
			ev.Enrollment = en.Enrollment
			if ev.Program == "" {
				ev.Program = en.Program
			}
			b.Events = append(b.Events, ev)
		}
		en.Events = nil
	}
	for _, ev := range b.Events {
		if ev.Event == "" {
			ev.Event = GenerateUID()
		}
	}
	for _, rel := range b.Relationships {
		if rel.Relationship == "" {
			rel.Relationship = GenerateUID()
		}
	}
	return b
}

// Size returns the number of objects in the bundle's flat lists.
func (b *Bundle) Size() int {
	return len(b.TrackedEntities) + len(b.Enrollments) + len(b.Events) + len(b.Relationships)
}
