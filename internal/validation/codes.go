package validation

// ErrorCode identifies one kind of validation failure.
type ErrorCode string

const (
	E1005 ErrorCode = "E1005"
	E1010 ErrorCode = "E1010"
	E1011 ErrorCode = "E1011"
	E1013 ErrorCode = "E1013"
	E1014 ErrorCode = "E1014"
	E1022 ErrorCode = "E1022"
	E1033 ErrorCode = "E1033"
	E1048 ErrorCode = "E1048"
	E1049 ErrorCode = "E1049"
	E1054 ErrorCode = "E1054"
	E1055 ErrorCode = "E1055"
	E1056 ErrorCode = "E1056"
	E1057 ErrorCode = "E1057"
	E1068 ErrorCode = "E1068"
	E1069 ErrorCode = "E1069"
	E1070 ErrorCode = "E1070"
	E1079 ErrorCode = "E1079"
	E1081 ErrorCode = "E1081"
	E1089 ErrorCode = "E1089"
	E1115 ErrorCode = "E1115"
	E1116 ErrorCode = "E1116"
	E1117 ErrorCode = "E1117"
	E1118 ErrorCode = "E1118"
	E1304 ErrorCode = "E1304"
	E4001 ErrorCode = "E4001"
	E4009 ErrorCode = "E4009"
	E4012 ErrorCode = "E4012"
	E5000 ErrorCode = "E5000"
)

var messages = map[ErrorCode]string{
	E1005: "Could not find TrackedEntityType: `%s`.",
	E1010: "Could not find Program: `%s`, linked to Event.",
	E1011: "Could not find OrganisationUnit: `%s`, linked to Event.",
	E1013: "Could not find ProgramStage: `%s`, linked to Event.",
	E1014: "Provided Program: `%s`, is a Program without registration. An Enrollment cannot be created into Program without registration.",
	E1022: "TrackedEntity: `%s`, must have same TrackedEntityType as Program `%s`.",
	E1033: "Event: `%s`, Enrollment value is NULL.",
	E1048: "Object: `%s`, uid: `%s`, has an invalid uid format.",
	E1049: "Could not find OrganisationUnit: `%s`, linked to Tracked Entity.",
	E1054: "AttributeOptionCombo `%s` is not in the event programs category combo `%s`.",
	E1055: "Default AttributeOptionCombo is not allowed since program has non-default CategoryCombo.",
	E1056: "Event date: `%s`, is before start date: `%s`, for AttributeOption: `%s`.",
	E1057: "Event date: `%s`, is after end date: `%s`, for AttributeOption: `%s` in program: `%s`.",
	E1068: "Could not find TrackedEntity: `%s`, linked to Enrollment.",
	E1069: "Could not find Program: `%s`, linked to Enrollment.",
	E1070: "Could not find OrganisationUnit: `%s`, linked to Enrollment.",
	E1079: "Event: `%s`, program: `%s` is different from program defined in enrollment `%s`.",
	E1081: "Could not find Enrollment: `%s`, linked to Event.",
	E1089: "Event: `%s`, references a Program Stage `%s` that does not belong to Program `%s`.",
	E1115: "Could not find CategoryOptionCombo: `%s`.",
	E1116: "Could not find CategoryOption: `%s`.",
	E1117: "CategoryOptionCombo does not exist for given category combo `%s` and category options `%s`.",
	E1118: "CategoryOptionCombo for category combo `%s` and category options `%s` was not loaded.",
	E1304: "Could not find DataElement: `%s`.",
	E4001: "Relationship Item `%s` for Relationship `%s` is invalid: an Item can link exactly one Tracker entity.",
	E4009: "Could not find RelationshipType: `%s`.",
	E4012: "Could not find `%s`: `%s`, linked to Relationship.",
	E5000: "`%s` cannot be persisted because `%s` referenced by it cannot be persisted.",
}

// Message returns the message template of c.
func (c ErrorCode) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return string(c)
}
