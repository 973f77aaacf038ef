package metadata

import (
	"reflect"
	"time"

	"github.com/google/uuid"
)

// ObjectType is the explicit type tag under which objects are stored and
// looked up. Every identifiable object reports exactly one tag.
type ObjectType string

const (
	TypeProgram             ObjectType = "Program"
	TypeProgramStage        ObjectType = "ProgramStage"
	TypeOrganisationUnit    ObjectType = "OrganisationUnit"
	TypeTrackedEntityType   ObjectType = "TrackedEntityType"
	TypeDataElement         ObjectType = "DataElement"
	TypeCategoryOption      ObjectType = "CategoryOption"
	TypeCategoryCombo       ObjectType = "CategoryCombo"
	TypeCategoryOptionCombo ObjectType = "CategoryOptionCombo"
	TypeRelationshipType    ObjectType = "RelationshipType"

	// Persisted tracker rows. These are always identified by UID.
	TypeTrackedEntity ObjectType = "TrackedEntity"
	TypeEnrollment    ObjectType = "Enrollment"
	TypeEvent         ObjectType = "Event"
	TypeRelationship  ObjectType = "Relationship"
)

// MetadataTypes lists the object types that are configurable by identifier
// scheme, in the order the supplier loads them.
var MetadataTypes = []ObjectType{
	TypeTrackedEntityType,
	TypeOrganisationUnit,
	TypeProgram,
	TypeProgramStage,
	TypeDataElement,
	TypeRelationshipType,
	TypeCategoryCombo,
	TypeCategoryOption,
	TypeCategoryOptionCombo,
}

// IsTrackerType reports whether t tags a persisted tracker row.
func (t ObjectType) IsTrackerType() bool {
	switch t {
	case TypeTrackedEntity, TypeEnrollment, TypeEvent, TypeRelationship:
		return true
	}
	return false
}

// DefaultName is the name shared by the default category combo, category
// option and category option combo.
const DefaultName = "default"

// Object is anything that can be stored in the preheat.
type Object interface {
	ObjectType() ObjectType
	Identifiable() *IdentifiableObject
}

// IsNil reports whether obj is nil or a typed nil pointer such as
// (*DataElement)(nil).
func IsNil(obj Object) bool {
	if obj == nil {
		return true
	}
	v := reflect.ValueOf(obj)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

type AttributeValue struct {
	AttributeUID string `json:"attribute"`
	Value        string `json:"value"`
}

// IdentifiableObject carries the identifying fields common to every object.
// ID is the storage key; UID is the public surrogate identifier.
type IdentifiableObject struct {
	ID              uuid.UUID        `db:"id" json:"-"`
	UID             string           `db:"uid" json:"uid"`
	Code            string           `db:"code" json:"code,omitempty"`
	Name            string           `db:"name" json:"name,omitempty"`
	AttributeValues []AttributeValue `db:"attribute_values" json:"attributeValues,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created,omitempty"`
	UpdatedAt       time.Time        `db:"updated_at" json:"lastUpdated,omitempty"`
}

func (o *IdentifiableObject) Identifiable() *IdentifiableObject { return o }

// AttributeValue returns the value stored for attributeUID, or "" when the
// object has none.
func (o *IdentifiableObject) AttributeValue(attributeUID string) string {
	for _, av := range o.AttributeValues {
		if av.AttributeUID == attributeUID {
			return av.Value
		}
	}
	return ""
}

// ProgramType distinguishes tracker programs (enrollment required) from
// event programs.
type ProgramType string

const (
	ProgramWithRegistration    ProgramType = "WITH_REGISTRATION"
	ProgramWithoutRegistration ProgramType = "WITHOUT_REGISTRATION"
)

type Program struct {
	IdentifiableObject
	ProgramType            ProgramType `db:"program_type" json:"programType"`
	CategoryComboUID       string      `db:"category_combo_uid" json:"categoryCombo,omitempty"`
	TrackedEntityTypeUID   string      `db:"tracked_entity_type_uid" json:"trackedEntityType,omitempty"`
	OpenDaysAfterCoEndDate int         `db:"open_days_after_co_end_date" json:"openDaysAfterCoEndDate"`

	// CategoryCombo is linked by the supplier after loading.
	CategoryCombo *CategoryCombo `db:"-" json:"-"`
}

func (*Program) ObjectType() ObjectType { return TypeProgram }

// RegistrationRequired reports whether events of this program must belong to
// an enrollment.
func (p *Program) RegistrationRequired() bool {
	return p.ProgramType == ProgramWithRegistration
}

type ProgramStage struct {
	IdentifiableObject
	ProgramUID string `db:"program_uid" json:"program"`
	Repeatable bool   `db:"repeatable" json:"repeatable"`
}

func (*ProgramStage) ObjectType() ObjectType { return TypeProgramStage }

type OrganisationUnit struct {
	IdentifiableObject
	Path string `db:"path" json:"path,omitempty"`
}

func (*OrganisationUnit) ObjectType() ObjectType { return TypeOrganisationUnit }

type TrackedEntityType struct {
	IdentifiableObject
}

func (*TrackedEntityType) ObjectType() ObjectType { return TypeTrackedEntityType }

type DataElement struct {
	IdentifiableObject
	ValueType string `db:"value_type" json:"valueType,omitempty"`
}

func (*DataElement) ObjectType() ObjectType { return TypeDataElement }

type RelationshipType struct {
	IdentifiableObject
	Bidirectional bool `db:"bidirectional" json:"bidirectional"`
}

func (*RelationshipType) ObjectType() ObjectType { return TypeRelationshipType }

type CategoryOption struct {
	IdentifiableObject
	StartDate *time.Time `db:"start_date" json:"startDate,omitempty"`
	EndDate   *time.Time `db:"end_date" json:"endDate,omitempty"`
}

func (*CategoryOption) ObjectType() ObjectType { return TypeCategoryOption }

func (o *CategoryOption) IsDefault() bool { return o.Name == DefaultName }

// AdjustedEndDate returns the option end date extended by the number of days
// the program stays open after it. Returns nil when the option has no end date.
func (o *CategoryOption) AdjustedEndDate(p *Program) *time.Time {
	if o.EndDate == nil {
		return nil
	}
	end := *o.EndDate
	if p != nil && p.OpenDaysAfterCoEndDate > 0 {
		end = end.AddDate(0, 0, p.OpenDaysAfterCoEndDate)
	}
	return &end
}

type CategoryCombo struct {
	IdentifiableObject
	DataDimensionType string   `db:"data_dimension_type" json:"dataDimensionType,omitempty"`
	CategoryUIDs      []string `db:"category_uids" json:"categories,omitempty"`
}

func (*CategoryCombo) ObjectType() ObjectType { return TypeCategoryCombo }

func (c *CategoryCombo) IsDefault() bool { return c.Name == DefaultName }

// CategoryOptionCombo is one resolved tuple of category options of a
// category combo.
type CategoryOptionCombo struct {
	IdentifiableObject
	CategoryComboUID string   `db:"category_combo_uid" json:"categoryCombo"`
	OptionUIDs       []string `db:"category_option_uids" json:"categoryOptions"`

	// Options is linked by the supplier after loading.
	Options []*CategoryOption `db:"-" json:"-"`
}

func (*CategoryOptionCombo) ObjectType() ObjectType { return TypeCategoryOptionCombo }

func (c *CategoryOptionCombo) IsDefault() bool { return c.Name == DefaultName }
