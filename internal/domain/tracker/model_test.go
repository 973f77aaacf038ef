package tracker

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/ehr/tracker/internal/domain/metadata"
)

func TestBundle_Flatten(t *testing.T) {
	b := &Bundle{
		TrackedEntities: []*TrackedEntity{{
			TrackedEntity: "TeUID000001",
			Enrollments: []*Enrollment{{
				Enrollment: "EnUID000001",
				Program:    "PrUID000001",
				Events: []*Event{
					{Event: "EvUID000001"},
					{Event: "EvUID000002", Program: "PrUID000002"},
				},
			}},
		}},
		Events: []*Event{{Event: "EvUID000003"}},
	}

	b.Flatten()

	if len(b.TrackedEntities[0].Enrollments) != 0 {
		t.Error("expected nested enrollments to be moved")
	}
	if len(b.Enrollments) != 1 || b.Enrollments[0].TrackedEntity != "TeUID000001" {
		t.Fatalf("expected flattened enrollment with parent, got %+v", b.Enrollments)
	}
	if len(b.Enrollments[0].Events) != 0 {
		t.Error("expected nested events to be moved")
	}
	if len(b.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(b.Events))
	}
	if b.Events[0].Event != "EvUID000003" {
		t.Errorf("expected top-level events first, got %s", b.Events[0].Event)
	}
	if b.Events[1].Enrollment != "EnUID000001" || b.Events[1].Program != "PrUID000001" {
		t.Errorf("expected parent and program filled in, got %+v", b.Events[1])
	}
	if b.Events[2].Program != "PrUID000002" {
		t.Errorf("expected explicit program to be kept, got %s", b.Events[2].Program)
	}
	if b.Size() != 5 {
		t.Errorf("expected size 5, got %d", b.Size())
	}
}

func TestBundle_Flatten_GeneratesUIDs(t *testing.T) {
	b := &Bundle{
		TrackedEntities: []*TrackedEntity{{Enrollments: []*Enrollment{{Events: []*Event{{}}}}}},
		Relationships:   []*Relationship{{}},
	}
	b.Flatten()

	te := b.TrackedEntities[0].TrackedEntity
	en := b.Enrollments[0]
	ev := b.Events[0]
	for _, uid := range []string{te, en.Enrollment, ev.Event, b.Relationships[0].Relationship} {
		if !ValidUID(uid) {
			t.Errorf("expected generated uid, got %q", uid)
		}
	}
	if en.TrackedEntity != te || ev.Enrollment != en.Enrollment {
		t.Error("expected generated parent uids to be propagated")
	}
}

func TestBundle_Flatten_DropsNullEntries(t *testing.T) {
	body := `{
		"trackedEntities": [null, {"trackedEntity": "TeUID000001", "enrollments": [null, {"enrollment": "EnUID000001", "events": [null]}]}],
		"enrollments": [null],
		"events": [null],
		"relationships": [null]
	}`
	var b Bundle
	if err := json.Unmarshal([]byte(body), &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	b.Flatten()

	if len(b.TrackedEntities) != 1 || b.TrackedEntities[0].TrackedEntity != "TeUID000001" {
		t.Errorf("expected one tracked entity, got %+v", b.TrackedEntities)
	}
	if len(b.Enrollments) != 1 || b.Enrollments[0].TrackedEntity != "TeUID000001" {
		t.Errorf("expected one enrollment with parent, got %+v", b.Enrollments)
	}
	if len(b.Events) != 0 || len(b.Relationships) != 0 {
		t.Errorf("expected null events and relationships dropped, got %d and %d", len(b.Events), len(b.Relationships))
	}
}

func TestSplitOptions(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"  ", nil},
		{"a", []string{"a"}},
		{"b;a", []string{"b", "a"}},
		{" a ; ;b", []string{"a", "b"}},
	}
	for _, tt := range tests {
		if got := SplitOptions(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitOptions(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRelationshipItem(t *testing.T) {
	tests := []struct {
		item     *RelationshipItem
		uid      string
		typ      metadata.ObjectType
		setCount int
	}{
		{&RelationshipItem{TrackedEntity: "te"}, "te", metadata.TypeTrackedEntity, 1},
		{&RelationshipItem{Enrollment: "en"}, "en", metadata.TypeEnrollment, 1},
		{&RelationshipItem{Event: "ev"}, "ev", metadata.TypeEvent, 1},
		{&RelationshipItem{TrackedEntity: "te", Event: "ev"}, "te", metadata.TypeTrackedEntity, 2},
		{&RelationshipItem{}, "", "", 0},
		{nil, "", "", 0},
	}
	for _, tt := range tests {
		if tt.item.UID() != tt.uid || tt.item.EntityType() != tt.typ || tt.item.Set() != tt.setCount {
			t.Errorf("%+v: got (%q, %q, %d)", tt.item, tt.item.UID(), tt.item.EntityType(), tt.item.Set())
		}
	}
}

func TestEvent_Date(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	occurred := now.AddDate(0, -1, 0)
	scheduled := now.AddDate(0, 1, 0)

	if got := (&Event{OccurredAt: &occurred, ScheduledAt: &scheduled}).Date(now); !got.Equal(occurred) {
		t.Errorf("expected occurred date, got %v", got)
	}
	if got := (&Event{ScheduledAt: &scheduled}).Date(now); !got.Equal(scheduled) {
		t.Errorf("expected scheduled date, got %v", got)
	}
	if got := (&Event{}).Date(now); !got.Equal(now) {
		t.Errorf("expected now, got %v", got)
	}
}

func TestInstanceObjectTypes(t *testing.T) {
	objs := map[metadata.ObjectType]metadata.Object{
		metadata.TypeTrackedEntity: &TrackedEntityInstance{},
		metadata.TypeEnrollment:    &ProgramInstance{},
		metadata.TypeEvent:         &ProgramStageInstance{},
		metadata.TypeRelationship:  &RelationshipInstance{},
	}
	for want, obj := range objs {
		if obj.ObjectType() != want {
			t.Errorf("expected %s, got %s", want, obj.ObjectType())
		}
	}
}
