package metadata

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"

	"github.com/ehr/tracker/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const baseCols = `id, uid, COALESCE(code, ''), COALESCE(name, ''),
	COALESCE(attribute_values, '{}'::jsonb), created_at, updated_at`

type table struct {
	name  string
	extra string
	scan  func(row pgx.Row) (Object, error)
}

func (t table) columns() string {
	if t.extra == "" {
		return baseCols
	}
	return baseCols + ", " + t.extra
}

var tables = map[ObjectType]table{
	TypeProgram: {
		name:  "program",
		extra: `program_type, COALESCE(category_combo_uid, ''), COALESCE(tracked_entity_type_uid, ''), open_days_after_co_end_date`,
		scan:  scanProgram,
	},
	TypeProgramStage:        {name: "program_stage", extra: `program_uid, repeatable`, scan: scanProgramStage},
	TypeOrganisationUnit:    {name: "organisation_unit", extra: `COALESCE(path, '')`, scan: scanOrganisationUnit},
	TypeTrackedEntityType:   {name: "tracked_entity_type", scan: scanTrackedEntityType},
	TypeDataElement:         {name: "data_element", extra: `value_type`, scan: scanDataElement},
	TypeRelationshipType:    {name: "relationship_type", extra: `bidirectional`, scan: scanRelationshipType},
	TypeCategoryOption:      {name: "category_option", extra: `start_date, end_date`, scan: scanCategoryOption},
	TypeCategoryCombo:       {name: "category_combo", extra: `data_dimension_type, category_uids`, scan: scanCategoryCombo},
	TypeCategoryOptionCombo: {name: "category_option_combo", extra: `category_combo_uid, category_option_uids`, scan: scanCategoryOptionCombo},
}

// identifierClause returns the WHERE clause and arguments selecting rows whose
// value under id is one of values.
func identifierClause(id Identifier, values []string) (string, []interface{}) {
	switch id.Scheme {
	case SchemeCode:
		return `code = ANY($1)`, []interface{}{values}
	case SchemeName:
		return `name = ANY($1)`, []interface{}{values}
	case SchemeAttribute:
		return `attribute_values ->> $2 = ANY($1)`, []interface{}{values, id.Value}
	default:
		return `uid = ANY($1)`, []interface{}{values}
	}
}

// queryValues normalizes values the way ValueOf reports them and drops blanks
// and duplicates.
func queryValues(id Identifier, values []string) []string {
	return lo.Uniq(lo.Compact(lo.Map(values, func(v string, _ int) string {
		return id.Normalize(v)
	})))
}

func (r *repoPG) FindByIdentifiers(ctx context.Context, t ObjectType, id Identifier, values []string) ([]Object, error) {
	values = queryValues(id, values)
	if len(values) == 0 {
		return nil, nil
	}
	tbl, ok := tables[t]
	if !ok {
		return nil, fmt.Errorf("no table for object type %s", t)
	}

	where, args := identifierClause(id, values)
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+tbl.columns()+` FROM `+tbl.name+` WHERE `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s by %s: %w", tbl.name, id, err)
	}
	defer rows.Close()

	var items []Object
	for rows.Next() {
		obj, err := tbl.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", tbl.name, err)
		}
		items = append(items, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", tbl.name, err)
	}
	return items, nil
}

func (r *repoPG) FindCategoryOptionCombo(ctx context.Context, categoryComboUID string, optionUIDs []string) (*CategoryOptionCombo, error) {
	tbl := tables[TypeCategoryOptionCombo]
	optionUIDs = lo.Uniq(optionUIDs)
	row := r.conn(ctx).QueryRow(ctx, `SELECT `+tbl.columns()+` FROM `+tbl.name+`
		WHERE category_combo_uid = $1
		  AND category_option_uids @> $2::text[]
		  AND cardinality(category_option_uids) = cardinality($2::text[])
		LIMIT 1`, categoryComboUID, optionUIDs)

	obj, err := tbl.scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find category option combo of %s: %w", categoryComboUID, err)
	}
	return obj.(*CategoryOptionCombo), nil
}

func baseDest(o *IdentifiableObject, attrs *map[string]string, extra ...interface{}) []interface{} {
	return append([]interface{}{&o.ID, &o.UID, &o.Code, &o.Name, attrs, &o.CreatedAt, &o.UpdatedAt}, extra...)
}

func setAttributes(o *IdentifiableObject, attrs map[string]string) {
	o.AttributeValues = AttributeValuesFromMap(attrs)
}

// AttributeValuesFromMap converts an attribute_values JSON object into a
// slice ordered by attribute uid. Returns nil for an empty map.
func AttributeValuesFromMap(attrs map[string]string) []AttributeValue {
	if len(attrs) == 0 {
		return nil
	}
	keys := lo.Keys(attrs)
	sort.Strings(keys)
	out := make([]AttributeValue, 0, len(keys))
	for _, k := range keys {
		out = append(out, AttributeValue{AttributeUID: k, Value: attrs[k]})
	}
	return out
}

func scanProgram(row pgx.Row) (Object, error) {
	var p Program
	var attrs map[string]string
	if err := row.Scan(baseDest(&p.IdentifiableObject, &attrs,
		&p.ProgramType, &p.CategoryComboUID, &p.TrackedEntityTypeUID, &p.OpenDaysAfterCoEndDate)...); err != nil {
		return nil, err
	}
	setAttributes(&p.IdentifiableObject, attrs)
	return &p, nil
}

func scanProgramStage(row pgx.Row) (Object, error) {
	var s ProgramStage
	var attrs map[string]string
	if err := row.Scan(baseDest(&s.IdentifiableObject, &attrs, &s.ProgramUID, &s.Repeatable)...); err != nil {
		return nil, err
	}
	setAttributes(&s.IdentifiableObject, attrs)
	return &s, nil
}

func scanOrganisationUnit(row pgx.Row) (Object, error) {
	var ou OrganisationUnit
	var attrs map[string]string
	if err := row.Scan(baseDest(&ou.IdentifiableObject, &attrs, &ou.Path)...); err != nil {
		return nil, err
	}
	setAttributes(&ou.IdentifiableObject, attrs)
	return &ou, nil
}

func scanTrackedEntityType(row pgx.Row) (Object, error) {
	var tet TrackedEntityType
	var attrs map[string]string
	if err := row.Scan(baseDest(&tet.IdentifiableObject, &attrs)...); err != nil {
		return nil, err
	}
	setAttributes(&tet.IdentifiableObject, attrs)
	return &tet, nil
}

func scanDataElement(row pgx.Row) (Object, error) {
	var de DataElement
	var attrs map[string]string
	if err := row.Scan(baseDest(&de.IdentifiableObject, &attrs, &de.ValueType)...); err != nil {
		return nil, err
	}
	setAttributes(&de.IdentifiableObject, attrs)
	return &de, nil
}

func scanRelationshipType(row pgx.Row) (Object, error) {
	var rt RelationshipType
	var attrs map[string]string
	if err := row.Scan(baseDest(&rt.IdentifiableObject, &attrs, &rt.Bidirectional)...); err != nil {
		return nil, err
	}
	setAttributes(&rt.IdentifiableObject, attrs)
	return &rt, nil
}

func scanCategoryOption(row pgx.Row) (Object, error) {
	var co CategoryOption
	var attrs map[string]string
	if err := row.Scan(baseDest(&co.IdentifiableObject, &attrs, &co.StartDate, &co.EndDate)...); err != nil {
		return nil, err
	}
	setAttributes(&co.IdentifiableObject, attrs)
	return &co, nil
}

func scanCategoryCombo(row pgx.Row) (Object, error) {
	var cc CategoryCombo
	var attrs map[string]string
	if err := row.Scan(baseDest(&cc.IdentifiableObject, &attrs, &cc.DataDimensionType, &cc.CategoryUIDs)...); err != nil {
		return nil, err
	}
	setAttributes(&cc.IdentifiableObject, attrs)
	return &cc, nil
}

func scanCategoryOptionCombo(row pgx.Row) (Object, error) {
	var coc CategoryOptionCombo
	var attrs map[string]string
	if err := row.Scan(baseDest(&coc.IdentifiableObject, &attrs, &coc.CategoryComboUID, &coc.OptionUIDs)...); err != nil {
		return nil, err
	}
	setAttributes(&coc.IdentifiableObject, attrs)
	return &coc, nil
}
