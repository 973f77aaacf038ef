package preheat

import (
	"github.com/ehr/tracker/internal/domain/metadata"
	"github.com/ehr/tracker/internal/domain/tracker"
)

func newDataElement(uid, code, name string) *metadata.DataElement {
	return &metadata.DataElement{IdentifiableObject: metadata.IdentifiableObject{UID: uid, Code: code, Name: name}}
}

func newCategoryOption(uid string) *metadata.CategoryOption {
	return &metadata.CategoryOption{IdentifiableObject: metadata.IdentifiableObject{
		UID: uid, Code: "CODE_" + uid, Name: "Option " + uid,
	}}
}

type comboFixture struct {
	combo      *metadata.CategoryCombo
	co1, co2   *metadata.CategoryOption
	co3        *metadata.CategoryOption
	aoc1, aoc2 *metadata.CategoryOptionCombo
}

// newComboFixture builds a combo of two categories, {co1, co2} and {co3},
// with the option combos (co1, co3) and (co2, co3).
func newComboFixture() comboFixture {
	f := comboFixture{
		combo: &metadata.CategoryCombo{
			IdentifiableObject: metadata.IdentifiableObject{UID: "CcUIDAAAAAA", Name: "Implementing partner"},
			DataDimensionType:  "ATTRIBUTE",
		},
		co1: newCategoryOption("CoUIDAAAAA1"),
		co2: newCategoryOption("CoUIDAAAAA2"),
		co3: newCategoryOption("CoUIDAAAAA3"),
	}
	f.aoc1 = newOptionCombo("CocUIDAAAA1", f.combo, f.co1, f.co3)
	f.aoc2 = newOptionCombo("CocUIDAAAA2", f.combo, f.co2, f.co3)
	return f
}

func newOptionCombo(uid string, combo *metadata.CategoryCombo, options ...*metadata.CategoryOption) *metadata.CategoryOptionCombo {
	coc := &metadata.CategoryOptionCombo{
		IdentifiableObject: metadata.IdentifiableObject{UID: uid, Name: uid},
		CategoryComboUID:   combo.UID,
		Options:            options,
	}
	for _, o := range options {
		coc.OptionUIDs = append(coc.OptionUIDs, o.UID)
	}
	return coc
}

func newEnrollment(uid, trackedEntity string) *tracker.Enrollment {
	return &tracker.Enrollment{Enrollment: uid, TrackedEntity: trackedEntity}
}

func newEvent(uid, enrollment string) *tracker.Event {
	return &tracker.Event{Event: uid, Enrollment: enrollment}
}
