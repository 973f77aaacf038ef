package preheat

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/ehr/tracker/internal/domain/metadata"
)

// OptionSeparator joins the canonical option values of a category combo key.
const OptionSeparator = ";"

type comboKey struct {
	categoryCombo string
	options       string
}

// CategoryComboResolver caches which category option combo, if any, a
// category combo and a set of its options resolved to. A nil result is
// cached too, so a combination that does not exist is only looked up once.
type CategoryComboResolver struct {
	params  *metadata.IdentifierParams
	index   *IdentifierIndex
	results map[comboKey]*metadata.CategoryOptionCombo
}

func NewCategoryComboResolver(params *metadata.IdentifierParams, index *IdentifierIndex) *CategoryComboResolver {
	if params == nil {
		params = metadata.NewIdentifierParams()
	}
	return &CategoryComboResolver{
		params:  params,
		index:   index,
		results: make(map[comboKey]*metadata.CategoryOptionCombo),
	}
}

// CanonicalOptions builds the order independent key of options: their values
// under the category option identifier, sorted and joined with ";".
func (r *CategoryComboResolver) CanonicalOptions(options []*metadata.CategoryOption) string {
	id := r.params.For(metadata.TypeCategoryOption)
	values := lo.Map(options, func(o *metadata.CategoryOption, _ int) string {
		return id.ValueOf(o)
	})
	return canonicalValues(values)
}

// CanonicalOptionString canonicalizes an already joined option string, so
// "b;a" and "a;b" produce the same key.
func (r *CategoryComboResolver) CanonicalOptionString(s string) string {
	id := r.params.For(metadata.TypeCategoryOption)
	values := lo.Map(strings.Split(s, OptionSeparator), func(v string, _ int) string {
		return id.Normalize(strings.TrimSpace(v))
	})
	return canonicalValues(values)
}

func canonicalValues(values []string) string {
	values = lo.Compact(values)
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)
	return strings.Join(sorted, OptionSeparator)
}

func (r *CategoryComboResolver) key(combo *metadata.CategoryCombo, options string) comboKey {
	var uid string
	if combo != nil {
		uid = combo.UID
	}
	return comboKey{categoryCombo: uid, options: options}
}

// Put records the result for combo and options. coc may be nil to record that
// the combination does not exist. A non-nil coc is also indexed under the
// category option combo identifier.
func (r *CategoryComboResolver) Put(combo *metadata.CategoryCombo, options []*metadata.CategoryOption, coc *metadata.CategoryOptionCombo) {
	r.results[r.key(combo, r.CanonicalOptions(options))] = coc
	if coc != nil {
		r.index.Put(r.params.For(metadata.TypeCategoryOptionCombo), coc)
	}
}

// Contains reports whether a result, possibly nil, was recorded.
func (r *CategoryComboResolver) Contains(combo *metadata.CategoryCombo, options []*metadata.CategoryOption) bool {
	_, ok := r.results[r.key(combo, r.CanonicalOptions(options))]
	return ok
}

// ContainsOptionString is Contains for a joined option string.
func (r *CategoryComboResolver) ContainsOptionString(combo *metadata.CategoryCombo, options string) bool {
	_, ok := r.results[r.key(combo, r.CanonicalOptionString(options))]
	return ok
}

// Get returns the recorded combo, or nil when none was recorded or the
// recorded result is absent.
func (r *CategoryComboResolver) Get(combo *metadata.CategoryCombo, options []*metadata.CategoryOption) *metadata.CategoryOptionCombo {
	return r.results[r.key(combo, r.CanonicalOptions(options))]
}

// GetByOptionString is Get for a joined option string.
func (r *CategoryComboResolver) GetByOptionString(combo *metadata.CategoryCombo, options string) *metadata.CategoryOptionCombo {
	return r.results[r.key(combo, r.CanonicalOptionString(options))]
}

// GetByID returns the combo identified by value under the category option
// combo identifier.
func (r *CategoryComboResolver) GetByID(value string) *metadata.CategoryOptionCombo {
	coc, _ := r.index.Get(metadata.TypeCategoryOptionCombo, value).(*metadata.CategoryOptionCombo)
	return coc
}
