package metadata

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Scheme names the field an import payload uses to identify an object.
type Scheme string

const (
	SchemeUID       Scheme = "UID"
	SchemeCode      Scheme = "CODE"
	SchemeName      Scheme = "NAME"
	SchemeAttribute Scheme = "ATTRIBUTE"
)

// Identifier is a scheme plus, for ATTRIBUTE, the attribute UID whose value
// identifies the object. Identifiers are comparable and usable as map keys.
type Identifier struct {
	Scheme Scheme `json:"idScheme"`
	Value  string `json:"value,omitempty"`
}

var (
	UID  = Identifier{Scheme: SchemeUID}
	Code = Identifier{Scheme: SchemeCode}
	Name = Identifier{Scheme: SchemeName}
)

// AttributeIdentifier identifies objects by their value for attributeUID.
func AttributeIdentifier(attributeUID string) Identifier {
	return Identifier{Scheme: SchemeAttribute, Value: attributeUID}
}

// ParseIdentifier parses "UID", "CODE", "NAME" or "ATTRIBUTE:<uid>"
// (case-insensitive scheme). An empty string parses as UID.
func ParseIdentifier(s string) (Identifier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return UID, nil
	}
	scheme, value, _ := strings.Cut(s, ":")
	switch Scheme(strings.ToUpper(scheme)) {
	case SchemeUID:
		return UID, nil
	case SchemeCode:
		return Code, nil
	case SchemeName:
		return Name, nil
	case SchemeAttribute:
		if value == "" {
			return Identifier{}, fmt.Errorf("idScheme ATTRIBUTE requires an attribute uid, e.g. ATTRIBUTE:abc123")
		}
		return AttributeIdentifier(value), nil
	}
	return Identifier{}, fmt.Errorf("unknown idScheme %q", s)
}

func (i Identifier) String() string {
	if i.Scheme == SchemeAttribute {
		return string(SchemeAttribute) + ":" + i.Value
	}
	return string(i.Scheme)
}

// ValueOf extracts the identifying value of obj under this identifier.
// It returns "" when obj is nil or carries no value for the scheme.
func (i Identifier) ValueOf(obj Object) string {
	if IsNil(obj) {
		return ""
	}
	o := obj.Identifiable()
	if o == nil {
		return ""
	}
	switch i.Scheme {
	case SchemeUID:
		return o.UID
	case SchemeCode:
		return o.Code
	case SchemeName:
		return i.Normalize(o.Name)
	case SchemeAttribute:
		return o.AttributeValue(i.Value)
	}
	return ""
}

// Normalize brings a value supplied in a payload into the form ValueOf
// produces. Names are compared in Unicode NFC so that composed and
// decomposed spellings match.
func (i Identifier) Normalize(value string) string {
	if i.Scheme == SchemeName {
		return norm.NFC.String(value)
	}
	return value
}

// IdentifierParams holds the identifier configured per object type for one
// import run. Types without an explicit registration use the general
// identifier; tracker rows always use UID.
type IdentifierParams struct {
	general Identifier
	byType  map[ObjectType]Identifier
}

// NewIdentifierParams returns params where every type is identified by UID.
func NewIdentifierParams() *IdentifierParams {
	return &IdentifierParams{general: UID, byType: make(map[ObjectType]Identifier)}
}

// SetGeneral sets the identifier used by types without a registration.
func (p *IdentifierParams) SetGeneral(id Identifier) *IdentifierParams {
	p.general = id
	return p
}

// Register sets the identifier for t. Registrations for tracker types are
// ignored.
func (p *IdentifierParams) Register(t ObjectType, id Identifier) *IdentifierParams {
	if t.IsTrackerType() {
		return p
	}
	p.byType[t] = id
	return p
}

// For returns the identifier configured for t.
func (p *IdentifierParams) For(t ObjectType) Identifier {
	if p == nil || t.IsTrackerType() {
		return UID
	}
	if id, ok := p.byType[t]; ok {
		return id
	}
	return p.general
}

// General returns the identifier used by types without a registration.
func (p *IdentifierParams) General() Identifier {
	if p == nil {
		return UID
	}
	return p.general
}
