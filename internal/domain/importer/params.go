package importer

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ehr/tracker/internal/domain/metadata"
)

// AtomicMode decides what is persisted when some objects fail validation.
type AtomicMode string

const (
	// AtomicAll persists nothing if any object is invalid.
	AtomicAll AtomicMode = "ALL"
	// AtomicObject persists every valid object.
	AtomicObject AtomicMode = "OBJECT"
)

// ImportMode is COMMIT to persist or VALIDATE for a dry run.
type ImportMode string

const (
	ImportCommit   ImportMode = "COMMIT"
	ImportValidate ImportMode = "VALIDATE"
)

type Params struct {
	Identifiers *metadata.IdentifierParams
	AtomicMode  AtomicMode
	ImportMode  ImportMode
}

// DefaultParams identifies everything by general and commits atomically.
func DefaultParams(general metadata.Identifier) Params {
	return Params{
		Identifiers: metadata.NewIdentifierParams().SetGeneral(general),
		AtomicMode:  AtomicAll,
		ImportMode:  ImportCommit,
	}
}

// schemeParams maps query parameters to the type whose identifier they set.
var schemeParams = []struct {
	name string
	t    metadata.ObjectType
}{
	{"orgUnitIdScheme", metadata.TypeOrganisationUnit},
	{"programIdScheme", metadata.TypeProgram},
	{"programStageIdScheme", metadata.TypeProgramStage},
	{"dataElementIdScheme", metadata.TypeDataElement},
	{"categoryOptionComboIdScheme", metadata.TypeCategoryOptionCombo},
	{"categoryOptionIdScheme", metadata.TypeCategoryOption},
}

// ParseParams reads import parameters from query values. idScheme replaces
// general for every type without its own parameter.
func ParseParams(q url.Values, general metadata.Identifier) (Params, error) {
	p := DefaultParams(general)

	if v := q.Get("idScheme"); v != "" {
		id, err := metadata.ParseIdentifier(v)
		if err != nil {
			return Params{}, fmt.Errorf("idScheme: %w", err)
		}
		p.Identifiers.SetGeneral(id)
	}
	for _, sp := range schemeParams {
		v := q.Get(sp.name)
		if v == "" {
			continue
		}
		id, err := metadata.ParseIdentifier(v)
		if err != nil {
			return Params{}, fmt.Errorf("%s: %w", sp.name, err)
		}
		p.Identifiers.Register(sp.t, id)
	}

	switch m := AtomicMode(strings.ToUpper(q.Get("atomicMode"))); m {
	case "":
	case AtomicAll, AtomicObject:
		p.AtomicMode = m
	default:
		return Params{}, fmt.Errorf("unknown atomicMode %q", q.Get("atomicMode"))
	}
	switch m := ImportMode(strings.ToUpper(q.Get("importMode"))); m {
	case "":
	case ImportCommit, ImportValidate:
		p.ImportMode = m
	default:
		return Params{}, fmt.Errorf("unknown importMode %q", q.Get("importMode"))
	}
	return p, nil
}
