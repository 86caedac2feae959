// Package store implements the baseline store (C5): the pluggable
// per-clientId persistence layer behind one contract, with three
// backends — Filesystem, ObjectBucket, and Relational.
package store

import (
	"context"

	"github.com/whennemuth/deltasync/internal/model"
)

// Backend is the uniform contract every baseline store implementation
// satisfies, per spec.md §4.5.
type Backend interface {
	// Initialize prepares per-client storage (directories, tables,
	// buckets) so subsequent calls don't need to discover it lazily.
	Initialize(ctx context.Context, clientID string, pkFields []string) error

	// FetchPrevious returns the previous key+hash projection for
	// clientID. If limitTo is non-empty, the relational backend returns
	// only the rows whose primary keys appear in it; filesystem/object-bucket
	// backends ignore it and return the full projection (callers filter in
	// memory).
	FetchPrevious(ctx context.Context, clientID string, limitTo []model.Record) ([]model.Record, error)

	// UpdatePrevious atomically replaces the previous projection with
	// data. pkFields and failureCount are consulted by the relational
	// backend (see RelationalBackend); other backends ignore them.
	UpdatePrevious(ctx context.Context, clientID string, data []model.Record, pkFields []string, failureCount int) (int, error)
}

// RelationalBackend extends Backend with the two operations only a
// SQL-backed store can offer: staging the current projection and running
// the join-based delta query against it.
type RelationalBackend interface {
	Backend

	// StoreCurrent promotes the existing current table to previous, then
	// stages data as the new current (spec.md §4.5 rule 1).
	StoreCurrent(ctx context.Context, clientID string, data []model.Record, pkFields []string) (int, error)

	// FetchDelta runs the three SQL queries of spec.md §4.4 against the
	// staged current/previous tables and records a history row.
	FetchDelta(ctx context.Context, clientID string, pkFields []string) (DeltaResult, error)
}

// DeltaResult mirrors delta.Result without importing the delta package,
// keeping store free of a dependency on the engine layer; the
// orchestrator converts between the two.
type DeltaResult struct {
	Added   []model.Record
	Updated []model.Record
	Removed []model.Record
}

// AsRelational type-asserts b to RelationalBackend, the tagged-variant
// pattern spec.md §9 recommends over a deep interface hierarchy.
func AsRelational(b Backend) (RelationalBackend, bool) {
	rb, ok := b.(RelationalBackend)
	return rb, ok
}
