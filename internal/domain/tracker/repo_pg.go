package tracker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"

	"github.com/ehr/tracker/internal/domain/metadata"
	"github.com/ehr/tracker/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const (
	teCols = `id, uid, COALESCE(attribute_values, '{}'::jsonb), tracked_entity_type_uid, org_unit_uid,
	created_at, updated_at`
	enCols = `id, uid, tracked_entity_uid, program_uid, org_unit_uid, status, enrolled_at, occurred_at,
	created_at, updated_at`
	evCols = `id, uid, COALESCE(enrollment_uid, ''), program_uid, program_stage_uid, org_unit_uid,
	COALESCE(attribute_option_combo_uid, ''), status, occurred_at, scheduled_at,
	COALESCE(data_values, '{}'::jsonb), created_at, updated_at`
	relCols = `id, uid, relationship_type_uid, from_uid, from_type, to_uid, to_type, created_at, updated_at`
)

// findByUID runs a uid = ANY query and scans every row with scan.
func findByUID[T any](ctx context.Context, q querier, table, cols string, uids []string, scan func(pgx.Row) (T, error)) ([]T, error) {
	uids = lo.Uniq(lo.Compact(uids))
	if len(uids) == 0 {
		return nil, nil
	}
	rows, err := q.Query(ctx, `SELECT `+cols+` FROM `+table+` WHERE uid = ANY($1) AND NOT deleted`, uids)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var items []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return items, nil
}

func (r *repoPG) FindTrackedEntities(ctx context.Context, uids []string) ([]*TrackedEntityInstance, error) {
	return findByUID(ctx, r.conn(ctx), "tracked_entity", teCols, uids, scanTrackedEntity)
}

func (r *repoPG) FindEnrollments(ctx context.Context, uids []string) ([]*ProgramInstance, error) {
	return findByUID(ctx, r.conn(ctx), "enrollment", enCols, uids, scanEnrollment)
}

func (r *repoPG) FindEvents(ctx context.Context, uids []string) ([]*ProgramStageInstance, error) {
	return findByUID(ctx, r.conn(ctx), "event", evCols, uids, scanEvent)
}

func (r *repoPG) FindRelationships(ctx context.Context, uids []string) ([]*RelationshipInstance, error) {
	return findByUID(ctx, r.conn(ctx), "relationship", relCols, uids, scanRelationship)
}

func attributeMap(values []metadata.AttributeValue) map[string]string {
	return lo.SliceToMap(values, func(av metadata.AttributeValue) (string, string) {
		return av.AttributeUID, av.Value
	})
}

func (r *repoPG) SaveTrackedEntity(ctx context.Context, te *TrackedEntityInstance) error {
	if te.ID == uuid.Nil {
		te.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO tracked_entity (id, uid, tracked_entity_type_uid, org_unit_uid, attribute_values)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (uid) DO UPDATE SET
			tracked_entity_type_uid = EXCLUDED.tracked_entity_type_uid,
			org_unit_uid = EXCLUDED.org_unit_uid,
			attribute_values = EXCLUDED.attribute_values,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		te.ID, te.UID, te.TrackedEntityTypeUID, te.OrgUnitUID, attributeMap(te.AttributeValues),
	).Scan(&te.ID, &te.CreatedAt, &te.UpdatedAt)
}

func (r *repoPG) SaveEnrollment(ctx context.Context, en *ProgramInstance) error {
	if en.ID == uuid.Nil {
		en.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO enrollment (id, uid, tracked_entity_uid, program_uid, org_unit_uid, status, enrolled_at, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (uid) DO UPDATE SET
			org_unit_uid = EXCLUDED.org_unit_uid,
			status = EXCLUDED.status,
			enrolled_at = EXCLUDED.enrolled_at,
			occurred_at = EXCLUDED.occurred_at,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		en.ID, en.UID, en.TrackedEntityUID, en.ProgramUID, en.OrgUnitUID, en.Status, en.EnrolledAt, en.OccurredAt,
	).Scan(&en.ID, &en.CreatedAt, &en.UpdatedAt)
}

func (r *repoPG) SaveEvent(ctx context.Context, ev *ProgramStageInstance) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO event (id, uid, enrollment_uid, program_uid, program_stage_uid, org_unit_uid,
			attribute_option_combo_uid, status, occurred_at, scheduled_at, data_values)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11)
		ON CONFLICT (uid) DO UPDATE SET
			org_unit_uid = EXCLUDED.org_unit_uid,
			attribute_option_combo_uid = EXCLUDED.attribute_option_combo_uid,
			status = EXCLUDED.status,
			occurred_at = EXCLUDED.occurred_at,
			scheduled_at = EXCLUDED.scheduled_at,
			data_values = EXCLUDED.data_values,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		ev.ID, ev.UID, ev.ProgramInstanceUID, ev.ProgramUID, ev.ProgramStageUID, ev.OrgUnitUID,
		ev.AttributeOptionComboUID, ev.Status, ev.OccurredAt, ev.ScheduledAt, ev.DataValues,
	).Scan(&ev.ID, &ev.CreatedAt, &ev.UpdatedAt)
}

func (r *repoPG) SaveRelationship(ctx context.Context, rel *RelationshipInstance) error {
	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO relationship (id, uid, relationship_type_uid, from_uid, from_type, to_uid, to_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (uid) DO UPDATE SET updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		rel.ID, rel.UID, rel.RelationshipTypeUID, rel.FromUID, string(rel.FromType), rel.ToUID, string(rel.ToType),
	).Scan(&rel.ID, &rel.CreatedAt, &rel.UpdatedAt)
}

func scanTrackedEntity(row pgx.Row) (*TrackedEntityInstance, error) {
	var te TrackedEntityInstance
	var attrs map[string]string
	if err := row.Scan(&te.ID, &te.UID, &attrs, &te.TrackedEntityTypeUID, &te.OrgUnitUID,
		&te.CreatedAt, &te.UpdatedAt); err != nil {
		return nil, err
	}
	te.AttributeValues = metadata.AttributeValuesFromMap(attrs)
	return &te, nil
}

func scanEnrollment(row pgx.Row) (*ProgramInstance, error) {
	var en ProgramInstance
	err := row.Scan(&en.ID, &en.UID, &en.TrackedEntityUID, &en.ProgramUID, &en.OrgUnitUID, &en.Status,
		&en.EnrolledAt, &en.OccurredAt, &en.CreatedAt, &en.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &en, nil
}

func scanEvent(row pgx.Row) (*ProgramStageInstance, error) {
	var ev ProgramStageInstance
	err := row.Scan(&ev.ID, &ev.UID, &ev.ProgramInstanceUID, &ev.ProgramUID, &ev.ProgramStageUID, &ev.OrgUnitUID,
		&ev.AttributeOptionComboUID, &ev.Status, &ev.OccurredAt, &ev.ScheduledAt,
		&ev.DataValues, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func scanRelationship(row pgx.Row) (*RelationshipInstance, error) {
	var rel RelationshipInstance
	var fromType, toType string
	err := row.Scan(&rel.ID, &rel.UID, &rel.RelationshipTypeUID, &rel.FromUID, &fromType, &rel.ToUID, &toType,
		&rel.CreatedAt, &rel.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rel.FromType = metadata.ObjectType(fromType)
	rel.ToType = metadata.ObjectType(toType)
	return &rel, nil
}
