package delta

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/whennemuth/deltasync/internal/model"
	deltaerrors "github.com/whennemuth/deltasync/pkg/errors"
)

// RelationalTables names the per-client current/previous tables a
// RelationalDiffEngine queries. Callers (the relational store backend)
// own table creation; this engine only issues SELECTs.
type RelationalTables struct {
	Current  string
	Previous string
}

// RelationalDiffEngine computes deltas with the three SQL queries of
// spec.md §4.4, for database-backed baselines.
type RelationalDiffEngine struct {
	db     *sql.DB
	tables RelationalTables
}

// NewRelationalDiffEngine constructs a RelationalDiffEngine against db,
// reading from the named current/previous tables.
func NewRelationalDiffEngine(db *sql.DB, tables RelationalTables) *RelationalDiffEngine {
	return &RelationalDiffEngine{db: db, tables: tables}
}

// ComputeDelta implements Engine. previous/current are accepted for
// interface parity with SetDiffEngine but ignored: the relational engine
// reads directly from the staged tables via storeCurrent (spec.md §4.5).
func (e *RelationalDiffEngine) ComputeDelta(ctx context.Context, _ []model.Record, _ []model.Record, pkFields []string) (Result, error) {
	if len(pkFields) == 0 {
		return Result{}, deltaerrors.Config("relational diff requires at least one primary key field", nil)
	}

	added, err := e.query(ctx, fmt.Sprintf(
		`SELECT c.pk, c.hash FROM %s c LEFT JOIN %s p ON c.pk = p.pk WHERE p.pk IS NULL`,
		e.tables.Current, e.tables.Previous), pkFields)
	if err != nil {
		return Result{}, deltaerrors.IO("fetch added", err)
	}

	updated, err := e.query(ctx, fmt.Sprintf(
		`SELECT c.pk, c.hash FROM %s c INNER JOIN %s p ON c.pk = p.pk WHERE c.hash <> p.hash`,
		e.tables.Current, e.tables.Previous), pkFields)
	if err != nil {
		return Result{}, deltaerrors.IO("fetch updated", err)
	}

	removed, err := e.query(ctx, fmt.Sprintf(
		`SELECT p.pk, p.hash FROM %s p LEFT JOIN %s c ON p.pk = c.pk WHERE c.pk IS NULL`,
		e.tables.Previous, e.tables.Current), pkFields)
	if err != nil {
		return Result{}, deltaerrors.IO("fetch removed", err)
	}

	return Result{Added: added, Updated: updated, Removed: removed}, nil
}

// query runs sqlText, which must select (pk, hash), and reconstructs each
// row into a reduced Record by splitting pk on "|" back into pkFields
// (spec.md §4.4; the ambiguity risk of "|" inside a key value is closed
// off when rows are inserted, see internal/store's insertRows).
func (e *RelationalDiffEngine) query(ctx context.Context, sqlText string, pkFields []string) ([]model.Record, error) {
	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		var pk, hash string
		if err := rows.Scan(&pk, &hash); err != nil {
			return nil, err
		}
		out = append(out, reconstructFromPK(pk, hash, pkFields))
	}
	return out, rows.Err()
}

func reconstructFromPK(pk, hash string, pkFields []string) model.Record {
	values := splitPipe(pk)
	rec := model.Record{Hash: hash}
	for i, name := range pkFields {
		var v string
		if i < len(values) {
			v = values[i]
		}
		rec.Fields = append(rec.Fields, model.Field{Name: name, Value: v})
	}
	return rec
}

func splitPipe(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '|' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

var _ Engine = (*RelationalDiffEngine)(nil)
