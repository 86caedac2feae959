package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/whennemuth/deltasync/internal/delta"
	"github.com/whennemuth/deltasync/internal/history"
	"github.com/whennemuth/deltasync/internal/model"
	"github.com/whennemuth/deltasync/pkg/clock"
	deltaerrors "github.com/whennemuth/deltasync/pkg/errors"
)

// RelationalConfig is the {type, host, port, username, password,
// database, filename, ssl, autoSync, logging} shape of spec.md §6,
// reduced to what the backend needs once a *sql.DB is already open — DSN
// assembly is the caller's concern (see cmd/deltasync).
type RelationalConfig struct {
	Dialect Dialect
}

// relationalTableSet pairs the sanitized current/previous table names for
// one client.
type relationalTableSet struct {
	current  string
	previous string
}

// RelationalStoreBackend materializes per-client tables
// client_{clientId}_current and client_{clientId}_previous plus a shared
// delta_history table (spec.md §4.5, §4.9).
type RelationalStoreBackend struct {
	db      *sql.DB
	dialect Dialect
	history *history.Store
	clock   clock.Clock
	log     zerolog.Logger

	mu           sync.RWMutex
	pkFieldsByID map[string][]string
}

// NewRelationalStoreBackend wraps an already-open db. Callers open the
// *sql.DB with the driver matching cfg.Dialect (modernc.org/sqlite,
// github.com/go-sql-driver/mysql, or github.com/jackc/pgx/v5/stdlib).
func NewRelationalStoreBackend(db *sql.DB, cfg RelationalConfig, clk clock.Clock, log zerolog.Logger) (*RelationalStoreBackend, error) {
	if _, ok := ParseDialect(string(cfg.Dialect)); !ok {
		return nil, deltaerrors.Config(fmt.Sprintf("unknown relational dialect %q", cfg.Dialect), nil)
	}
	return &RelationalStoreBackend{
		db:           db,
		dialect:      cfg.Dialect,
		history:      history.NewStore(db, "delta_history", cfg.Dialect, clk),
		clock:        clk,
		log:          log,
		pkFieldsByID: make(map[string][]string),
	}, nil
}

// EnsureHistoryTable creates the shared delta_history table if absent.
// Called once at application start, separate from per-client Initialize.
func (b *RelationalStoreBackend) EnsureHistoryTable(ctx context.Context) error {
	return b.history.EnsureTable(ctx)
}

func (b *RelationalStoreBackend) tables(clientID string) relationalTableSet {
	current, previous := TableNames(clientID)
	return relationalTableSet{current: current, previous: previous}
}

// Initialize creates the client's current/previous tables. Rejects an
// empty pkFields with ConfigError (spec.md §9 open question (a): an
// empty primary key would collapse every row onto the same "pk" string).
func (b *RelationalStoreBackend) Initialize(ctx context.Context, clientID string, pkFields []string) error {
	if len(pkFields) == 0 {
		return deltaerrors.Config("relational backend requires at least one primary key field", nil)
	}

	t := b.tables(clientID)
	for _, table := range []string{t.current, t.previous} {
		if _, err := b.db.ExecContext(ctx, b.dialect.CreateTableSQL(table)); err != nil {
			return deltaerrors.IO("create table "+table, err)
		}
	}

	b.mu.Lock()
	b.pkFieldsByID[clientID] = append([]string(nil), pkFields...)
	b.mu.Unlock()
	return nil
}

// pkFieldsFor returns the primary-key fields Initialize recorded for
// clientID, needed to reconstruct reduced records from the stored "pk"
// string (spec.md §9 open question (b)).
func (b *RelationalStoreBackend) pkFieldsFor(clientID string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pkFieldsByID[clientID]
}

// reconstructFromPK rebuilds a reduced Record from a stored pk string by
// splitting on "|" and zipping the values back onto pkFields, mirroring
// internal/delta's RelationalDiffEngine.
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

// FetchPrevious reads the client's previous table. limitTo, when
// non-empty, restricts the result to just those primary keys (the minimal
// set the orchestrator's repair step needs); the whole table is read and
// the filter is applied in memory, not in the SQL query.
func (b *RelationalStoreBackend) FetchPrevious(ctx context.Context, clientID string, limitTo []model.Record) ([]model.Record, error) {
	_, previous := TableNames(clientID)
	pkFields := b.pkFieldsFor(clientID)

	query := fmt.Sprintf("SELECT pk, hash FROM %s", b.dialect.QuoteIdent(previous))
	rows, err := b.db.QueryContext(ctx, query)
	if err != nil {
		return nil, deltaerrors.IO("fetch previous", err)
	}
	defer rows.Close()

	var all []model.Record
	for rows.Next() {
		var pk, hash string
		if err := rows.Scan(&pk, &hash); err != nil {
			return nil, deltaerrors.IO("scan previous row", err)
		}
		all = append(all, reconstructFromPK(pk, hash, pkFields))
	}
	if err := rows.Err(); err != nil {
		return nil, deltaerrors.IO("iterate previous rows", err)
	}

	if len(limitTo) == 0 {
		return all, nil
	}

	want := make(map[string]bool, len(limitTo))
	for _, r := range limitTo {
		want[model.PrimaryKeyTuple(r, pkFields)] = true
	}

	var filtered []model.Record
	for _, r := range all {
		if want[model.PrimaryKeyTuple(r, pkFields)] {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// UpdatePrevious implements the two modes of spec.md §4.5 rule 3,
// distinguished by failureCount.
func (b *RelationalStoreBackend) UpdatePrevious(ctx context.Context, clientID string, data []model.Record, pkFields []string, failureCount int) (int, error) {
	t := b.tables(clientID)

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, deltaerrors.IO("begin transaction", err)
	}
	defer tx.Rollback()

	if failureCount == 0 {
		if _, err := tx.ExecContext(ctx, b.dialect.TruncateSQL(t.previous)); err != nil {
			return 0, deltaerrors.IO("truncate previous", err)
		}
		if _, err := tx.ExecContext(ctx, b.dialect.CopyAllSQL(t.previous, t.current)); err != nil {
			return 0, deltaerrors.IO("promote current to previous", err)
		}
	} else {
		for _, table := range []string{t.previous, t.current} {
			if _, err := tx.ExecContext(ctx, b.dialect.TruncateSQL(table)); err != nil {
				return 0, deltaerrors.IO("truncate "+table, err)
			}
		}
		if err := insertRows(ctx, tx, b.dialect, t.previous, data, pkFields, b.clock.Now()); err != nil {
			return 0, err
		}
		if err := insertRows(ctx, tx, b.dialect, t.current, data, pkFields, b.clock.Now()); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, deltaerrors.IO("commit update previous", err)
	}

	b.log.Debug().Str("client_id", clientID).Int("count", len(data)).Int("failure_count", failureCount).Msg("baseline updated")
	return len(data), nil
}

// StoreCurrent implements spec.md §4.5 rule 1: promote old current to
// previous, truncate current, insert data's hashed rows as the new
// current.
func (b *RelationalStoreBackend) StoreCurrent(ctx context.Context, clientID string, data []model.Record, pkFields []string) (int, error) {
	t := b.tables(clientID)

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, deltaerrors.IO("begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, b.dialect.TruncateSQL(t.previous)); err != nil {
		return 0, deltaerrors.IO("truncate previous", err)
	}
	if _, err := tx.ExecContext(ctx, b.dialect.CopyAllSQL(t.previous, t.current)); err != nil {
		return 0, deltaerrors.IO("copy current into previous", err)
	}
	if _, err := tx.ExecContext(ctx, b.dialect.TruncateSQL(t.current)); err != nil {
		return 0, deltaerrors.IO("truncate current", err)
	}

	hashed := make([]model.Record, 0, len(data))
	for _, r := range data {
		if r.Hash != "" {
			hashed = append(hashed, r)
		}
	}
	if err := insertRows(ctx, tx, b.dialect, t.current, hashed, pkFields, b.clock.Now()); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, deltaerrors.IO("commit store current", err)
	}
	return len(hashed), nil
}

// FetchDelta runs the three join queries and records a history row.
func (b *RelationalStoreBackend) FetchDelta(ctx context.Context, clientID string, pkFields []string) (DeltaResult, error) {
	t := b.tables(clientID)
	start := b.clock.Now()

	engine := delta.NewRelationalDiffEngine(b.db, delta.RelationalTables{Current: t.current, Previous: t.previous})
	result, err := engine.ComputeDelta(ctx, nil, nil, pkFields)
	if err != nil {
		return DeltaResult{}, err
	}

	added, updated, removed := result.Stats()
	totalCurrent, totalPrevious, err := b.countRows(ctx, t)
	if err != nil {
		return DeltaResult{}, err
	}

	if err := b.history.Append(ctx, clientID, added, updated, removed, history.Metadata{
		ComputationTimeMs: clock.Elapsed(b.clock, start).Milliseconds(),
		TotalCurrent:      totalCurrent,
		TotalPrevious:     totalPrevious,
	}); err != nil {
		return DeltaResult{}, err
	}

	return DeltaResult{Added: result.Added, Updated: result.Updated, Removed: result.Removed}, nil
}

// GetHistory returns clientID's most recent delta_history rows, per
// spec.md §4.9.
func (b *RelationalStoreBackend) GetHistory(ctx context.Context, clientID string, limit int) ([]history.Entry, error) {
	return b.history.GetHistory(ctx, clientID, limit)
}

func (b *RelationalStoreBackend) countRows(ctx context.Context, t relationalTableSet) (current, previous int, err error) {
	if err = b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+b.dialect.QuoteIdent(t.current)).Scan(&current); err != nil {
		return 0, 0, deltaerrors.IO("count current", err)
	}
	if err = b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+b.dialect.QuoteIdent(t.previous)).Scan(&previous); err != nil {
		return 0, 0, deltaerrors.IO("count previous", err)
	}
	return current, previous, nil
}

func insertRows(ctx context.Context, tx *sql.Tx, d Dialect, table string, data []model.Record, pkFields []string, now time.Time) error {
	if len(data) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, d.InsertSQL(table))
	if err != nil {
		return deltaerrors.IO("prepare insert into "+table, err)
	}
	defer stmt.Close()

	for _, r := range data {
		if model.ContainsPipeValue(r, pkFields) {
			return deltaerrors.Config("primary key value contains the reserved '|' separator", nil)
		}
		pk := model.PrimaryKeyTuple(r, pkFields)
		if _, err := stmt.ExecContext(ctx, pk, r.Hash, now); err != nil {
			return deltaerrors.IO("insert into "+table, err)
		}
	}
	return nil
}

var _ RelationalBackend = (*RelationalStoreBackend)(nil)
