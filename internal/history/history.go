// Package history records delta_history rows for relational baseline
// stores (spec.md §4.9): one append per successful fetchDelta, plus a
// read path for observability.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/whennemuth/deltasync/pkg/clock"
	deltaerrors "github.com/whennemuth/deltasync/pkg/errors"
)

// SQLDialect is the subset of store.Dialect that Store needs to emit
// dialect-correct DDL/DML. Declared locally, rather than imported from
// internal/store, so the two packages don't form an import cycle —
// store.Dialect satisfies this interface structurally.
type SQLDialect interface {
	Placeholder(n int) string
	QuoteIdent(name string) string
	JSONColumnType() string
}

// Metadata is the {computationTimeMs, totalCurrent, totalPrevious, notes}
// payload of spec.md §4.9, marshaled into the deltaMetadata column.
type Metadata struct {
	ComputationTimeMs int64    `json:"computationTimeMs"`
	TotalCurrent      int      `json:"totalCurrent"`
	TotalPrevious     int      `json:"totalPrevious"`
	Notes             []string `json:"notes,omitempty"`
}

// Entry is one delta_history row, as returned by GetHistory.
type Entry struct {
	ID           string
	ClientID     string
	AddedCount   int
	UpdatedCount int
	RemovedCount int
	Metadata     Metadata
	CreatedAt    time.Time
}

// Store appends and reads the shared delta_history table.
type Store struct {
	db        *sql.DB
	tableName string
	dialect   SQLDialect
	clock     clock.Clock
}

// NewStore wraps db. tableName is the unquoted table name (Store quotes
// it itself via dialect); dialect supplies placeholder/quoting/JSON-type
// rules.
func NewStore(db *sql.DB, tableName string, dialect SQLDialect, clk clock.Clock) *Store {
	return &Store{db: db, tableName: tableName, dialect: dialect, clock: clk}
}

func (s *Store) quotedTable() string {
	return s.dialect.QuoteIdent(s.tableName)
}

// EnsureTable creates delta_history if absent, with an index on
// (clientId, createdAt) per spec.md §6.
func (s *Store) EnsureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s VARCHAR(36) PRIMARY KEY, %s VARCHAR(100) NOT NULL, %s INT, %s INT, %s INT, %s %s, %s TIMESTAMP)",
		s.quotedTable(),
		s.dialect.QuoteIdent("id"),
		s.dialect.QuoteIdent("clientId"),
		s.dialect.QuoteIdent("addedCount"),
		s.dialect.QuoteIdent("updatedCount"),
		s.dialect.QuoteIdent("removedCount"),
		s.dialect.QuoteIdent("deltaMetadata"), s.dialect.JSONColumnType(),
		s.dialect.QuoteIdent("createdAt"),
	)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return deltaerrors.IO("create history table", err)
	}

	idx := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS idx_%s_client_created ON %s (%s, %s)",
		s.tableName, s.quotedTable(), s.dialect.QuoteIdent("clientId"), s.dialect.QuoteIdent("createdAt"),
	)
	if _, err := s.db.ExecContext(ctx, idx); err != nil {
		return deltaerrors.IO("create history index", err)
	}
	return nil
}

// Append writes one history row. Called after every successful
// fetchDelta, including one that finds no changes.
func (s *Store) Append(ctx context.Context, clientID string, added, updated, removed int, meta Metadata) error {
	payload, err := json.Marshal(meta)
	if err != nil {
		return deltaerrors.IO("marshal history metadata", err)
	}

	insert := fmt.Sprintf(
		"INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s) VALUES (%s, %s, %s, %s, %s, %s, %s)",
		s.quotedTable(),
		s.dialect.QuoteIdent("id"), s.dialect.QuoteIdent("clientId"),
		s.dialect.QuoteIdent("addedCount"), s.dialect.QuoteIdent("updatedCount"), s.dialect.QuoteIdent("removedCount"),
		s.dialect.QuoteIdent("deltaMetadata"), s.dialect.QuoteIdent("createdAt"),
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3),
		s.dialect.Placeholder(4), s.dialect.Placeholder(5), s.dialect.Placeholder(6), s.dialect.Placeholder(7),
	)

	_, err = s.db.ExecContext(ctx, insert,
		uuid.NewString(), clientID, added, updated, removed, string(payload), s.clock.Now())
	if err != nil {
		return deltaerrors.IO("insert history row", err)
	}
	return nil
}

// GetHistory returns clientID's most recent rows, newest first, capped
// at limit.
func (s *Store) GetHistory(ctx context.Context, clientID string, limit int) ([]Entry, error) {
	query := fmt.Sprintf(
		"SELECT %s, %s, %s, %s, %s, %s, %s FROM %s WHERE %s = %s ORDER BY %s DESC LIMIT %d",
		s.dialect.QuoteIdent("id"), s.dialect.QuoteIdent("clientId"),
		s.dialect.QuoteIdent("addedCount"), s.dialect.QuoteIdent("updatedCount"), s.dialect.QuoteIdent("removedCount"),
		s.dialect.QuoteIdent("deltaMetadata"), s.dialect.QuoteIdent("createdAt"),
		s.quotedTable(),
		s.dialect.QuoteIdent("clientId"), s.dialect.Placeholder(1),
		s.dialect.QuoteIdent("createdAt"),
		limit,
	)

	rows, err := s.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, deltaerrors.IO("query history", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.ClientID, &e.AddedCount, &e.UpdatedCount, &e.RemovedCount, &payload, &e.CreatedAt); err != nil {
			return nil, deltaerrors.IO("scan history row", err)
		}
		if payload.Valid && payload.String != "" {
			if err := json.Unmarshal([]byte(payload.String), &e.Metadata); err != nil {
				return nil, deltaerrors.Parse("decode history metadata", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
