package metadata

import "context"

// Repository loads metadata referenced by an import batch.
type Repository interface {
	// FindByIdentifiers returns the objects of type t whose value under id is
	// one of values. Unknown values are simply absent from the result.
	FindByIdentifiers(ctx context.Context, t ObjectType, id Identifier, values []string) ([]Object, error)
	// FindCategoryOptionCombo returns the option combo of the given category
	// combo made of exactly optionUIDs, or nil when there is none.
	FindCategoryOptionCombo(ctx context.Context, categoryComboUID string, optionUIDs []string) (*CategoryOptionCombo, error)
}
