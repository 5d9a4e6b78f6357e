package valueset

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fhirsync/fhirsync/internal/platform/db"
	"github.com/fhirsync/fhirsync/internal/platform/fhir"
)

type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// DefaultCodesTable is the table expanded codes are written to unless the
// caller overrides it.
const DefaultCodesTable = "valueset_codes"

type codesRepoPG struct {
	pool  *pgxpool.Pool
	table string
}

// NewCodesRepoPG creates a PostgreSQL codes repository writing to table.
// An empty table selects DefaultCodesTable.
func NewCodesRepoPG(pool *pgxpool.Pool, table string) CodesRepository {
	if table == "" {
		table = DefaultCodesTable
	}
	return &codesRepoPG{pool: pool, table: table}
}

func (r *codesRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *codesRepoPG) InsertNewCodes(ctx context.Context, vs *fhir.ValueSet) (int64, error) {
	stmt, err := BuildInsert(vs, r.table)
	if err != nil {
		return 0, err
	}
	tag, err := r.conn(ctx).Exec(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, fmt.Errorf("insert value set codes: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *codesRepoPG) CountCodes(ctx context.Context, valueSetURI string) (int64, error) {
	var count int64
	err := r.conn(ctx).QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE valueseturi = $1`, r.table),
		valueSetURI).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count value set codes: %w", err)
	}
	return count, nil
}
