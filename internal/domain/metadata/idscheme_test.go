package metadata

import "testing"

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want Identifier
	}{
		{"", UID},
		{"UID", UID},
		{"uid", UID},
		{"CODE", Code},
		{" name ", Name},
		{"ATTRIBUTE:AttrUID0001", AttributeIdentifier("AttrUID0001")},
		{"attribute:AttrUID0001", AttributeIdentifier("AttrUID0001")},
	}
	for _, tt := range tests {
		got, err := ParseIdentifier(tt.in)
		if err != nil {
			t.Errorf("ParseIdentifier(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseIdentifier(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseIdentifier_Invalid(t *testing.T) {
	for _, in := range []string{"ATTRIBUTE", "ATTRIBUTE:", "ID", "SHORTNAME"} {
		if _, err := ParseIdentifier(in); err == nil {
			t.Errorf("ParseIdentifier(%q): expected error", in)
		}
	}
}

func TestIdentifier_String(t *testing.T) {
	if Code.String() != "CODE" {
		t.Errorf("expected CODE, got %s", Code.String())
	}
	if s := AttributeIdentifier("abc").String(); s != "ATTRIBUTE:abc" {
		t.Errorf("expected ATTRIBUTE:abc, got %s", s)
	}
}

func TestIdentifier_Equality(t *testing.T) {
	if AttributeIdentifier("a") == AttributeIdentifier("b") {
		t.Error("identifiers with different attribute uids must differ")
	}
	if AttributeIdentifier("a") != AttributeIdentifier("a") {
		t.Error("identical identifiers must be equal")
	}
	if Code == Name {
		t.Error("different schemes must differ")
	}
}

func TestIdentifier_ValueOf(t *testing.T) {
	de := &DataElement{IdentifiableObject: IdentifiableObject{
		UID:  "DeUID000001",
		Code: "DE_CODE",
		Name: "Weight",
		AttributeValues: []AttributeValue{
			{AttributeUID: "AttrUID0001", Value: "value1"},
		},
	}}

	if v := UID.ValueOf(de); v != "DeUID000001" {
		t.Errorf("UID: got %q", v)
	}
	if v := Code.ValueOf(de); v != "DE_CODE" {
		t.Errorf("CODE: got %q", v)
	}
	if v := Name.ValueOf(de); v != "Weight" {
		t.Errorf("NAME: got %q", v)
	}
	if v := AttributeIdentifier("AttrUID0001").ValueOf(de); v != "value1" {
		t.Errorf("ATTRIBUTE: got %q", v)
	}
	if v := AttributeIdentifier("Missing0001").ValueOf(de); v != "" {
		t.Errorf("missing attribute: expected empty, got %q", v)
	}
	if v := UID.ValueOf(nil); v != "" {
		t.Errorf("nil object: expected empty, got %q", v)
	}
}

func TestIdentifier_NameIsNormalized(t *testing.T) {
	decomposed := "Re\u0301union"
	composed := "R\u00e9union"
	ou := &OrganisationUnit{IdentifiableObject: IdentifiableObject{Name: decomposed}}

	if v := Name.ValueOf(ou); v != composed {
		t.Errorf("expected NFC form %q, got %q", composed, v)
	}
	if Name.Normalize(decomposed) != Name.Normalize(composed) {
		t.Error("expected decomposed and composed names to normalize equally")
	}
	if Code.Normalize(decomposed) != decomposed {
		t.Error("expected codes to be left untouched")
	}
}

func TestIdentifierParams(t *testing.T) {
	p := NewIdentifierParams()
	if p.For(TypeProgram) != UID {
		t.Errorf("expected UID default, got %v", p.For(TypeProgram))
	}

	p.SetGeneral(Code).Register(TypeOrganisationUnit, Name)
	if p.For(TypeProgram) != Code {
		t.Errorf("expected general CODE, got %v", p.For(TypeProgram))
	}
	if p.For(TypeOrganisationUnit) != Name {
		t.Errorf("expected NAME for org units, got %v", p.For(TypeOrganisationUnit))
	}

	p.Register(TypeEvent, Code)
	if p.For(TypeEvent) != UID {
		t.Errorf("tracker types must stay UID, got %v", p.For(TypeEvent))
	}

	var nilParams *IdentifierParams
	if nilParams.For(TypeProgram) != UID || nilParams.General() != UID {
		t.Error("nil params must resolve to UID")
	}
}
