package validation

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ehr/tracker/internal/domain/metadata"
	"github.com/ehr/tracker/internal/domain/tracker"
	"github.com/ehr/tracker/internal/preheat"
)

func TestValidate_ValidBundle(t *testing.T) {
	m := newTestMetadata()
	b := m.validBundle()
	res := validate(t, m.preheat(b), b)

	if res.Report.HasErrors() {
		t.Fatalf("expected no errors, got %+v", res.Report.Errors)
	}
	if len(res.Order) != 5 {
		t.Fatalf("expected 5 ordered entities, got %d", len(res.Order))
	}
	for _, uid := range []string{"TeUID000001", "EnUID000001", "EvUID000001", "EvUID000002", "RelUID00001"} {
		if !res.Valid(uid) {
			t.Errorf("expected %s to be valid", uid)
		}
	}
}

func TestValidate_InvalidParentCascades(t *testing.T) {
	m := newTestMetadata()
	b := m.validBundle()
	b.TrackedEntities[0].OrgUnit = "missing"
	res := validate(t, m.preheat(b), b)

	if got := res.Report.Codes("TeUID000001"); len(got) != 1 || got[0] != E1049 {
		t.Fatalf("expected E1049 for the tracked entity, got %v", got)
	}
	for _, uid := range []string{"EnUID000001", "EvUID000001", "RelUID00001"} {
		if res.Valid(uid) {
			t.Errorf("expected %s to be invalidated", uid)
		}
		if codes := res.Report.Codes(uid); len(codes) != 1 || codes[0] != E5000 {
			t.Errorf("%s: expected only E5000, got %v", uid, codes)
		}
	}
	if !res.Valid("EvUID000002") {
		t.Error("expected unrelated event program event to stay valid")
	}
}

func TestValidate_CascadeKeepsOwnErrors(t *testing.T) {
	m := newTestMetadata()
	b := m.validBundle()
	b.Enrollments[0].OrgUnit = "missing"
	b.Events[0].DataValues[0].DataElement = "missing"
	res := validate(t, m.preheat(b), b)

	if !res.Report.HasCode("EnUID000001", E1070) {
		t.Error("expected E1070 for the enrollment")
	}
	if codes := res.Report.Codes("EvUID000001"); len(codes) != 1 || codes[0] != E1304 {
		t.Errorf("expected the event to keep only its own error, got %v", codes)
	}
	if !res.Valid("TeUID000001") {
		t.Error("invalidity must not propagate to parents")
	}
}

func TestValidate_OrderPutsParentsFirst(t *testing.T) {
	m := newTestMetadata()
	b := m.validBundle()
	b.Events[0], b.Events[1] = b.Events[1], b.Events[0]
	p := preheat.New(nil)
	p.PutRelationships(metadata.UID, nil, b.Relationships)
	p.PutEvents(metadata.UID, nil, b.Events)
	p.PutEnrollments(metadata.UID, nil, b.Enrollments)
	p.PutTrackedEntities(metadata.UID, nil, teUIDs(b))
	p.CreateReferenceTree()

	res := validate(t, p, b, BaseHook{})

	pos := make(map[string]int)
	for i, ref := range res.Order {
		pos[ref.UID] = i
	}
	if !(pos["TeUID000001"] < pos["EnUID000001"] && pos["EnUID000001"] < pos["EvUID000001"]) {
		t.Errorf("expected tracked entity, enrollment, event order, got %+v", res.Order)
	}
	if !(pos["TeUID000001"] < pos["RelUID00001"] && pos["EvUID000001"] < pos["RelUID00001"]) {
		t.Errorf("expected relationship after both items, got %+v", res.Order)
	}
	if pos["EvUID000002"] > pos["EvUID000001"] {
		t.Errorf("expected independent entities to keep batch order, got %+v", res.Order)
	}
}

type countingHook struct {
	BaseHook
	events int
}

func (h *countingHook) ValidateEvent(r *Reporter, ev *tracker.Event) {
	h.events++
	if ev.Event == "EvUID000002" {
		r.AddError(metadata.TypeEvent, ev.Event, E1013, ev.ProgramStage)
	}
}

func TestValidate_CustomHook(t *testing.T) {
	m := newTestMetadata()
	b := m.validBundle()
	h := &countingHook{}
	res := validate(t, m.preheat(b), b, h)

	if h.events != 2 {
		t.Errorf("expected hook to see 2 events, got %d", h.events)
	}
	if res.Valid("EvUID000002") || !res.Valid("EvUID000001") {
		t.Error("expected only the flagged event to be invalid")
	}
}

func TestValidate_CancelledContext(t *testing.T) {
	m := newTestMetadata()
	b := m.validBundle()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewValidator(zerolog.Nop()).Validate(ctx, m.preheat(b), b)
	if err == nil {
		t.Error("expected context error")
	}
}

func TestErrorCode_Message(t *testing.T) {
	e := newError(metadata.TypeEvent, "EvUID000001", E1013, "PsMissing01")
	if e.Message != "Could not find ProgramStage: `PsMissing01`, linked to Event." {
		t.Errorf("unexpected message %q", e.Message)
	}
	if newError(metadata.TypeEvent, "x", E1055).Message != E1055.Message() {
		t.Error("expected message without arguments to be used as is")
	}
	if ErrorCode("E9999").Message() != "E9999" {
		t.Error("expected unknown code to fall back to the code")
	}
}
