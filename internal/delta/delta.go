// Package delta implements the two interchangeable delta strategies (C4):
// SetDiff (in-memory) and RelationalDiff (SQL), both behind the Engine
// contract.
package delta

import (
	"context"

	"github.com/whennemuth/deltasync/internal/model"
)

// Result is the {added, updated, removed} triple one cycle's delta
// produces. Order within each group is unspecified.
type Result struct {
	Added   []model.Record
	Updated []model.Record
	Removed []model.Record
}

// Stats reduces a Result to counts, the shape History persists.
func (r Result) Stats() (added, updated, removed int) {
	return len(r.Added), len(r.Updated), len(r.Removed)
}

// Engine computes a Result given the previous and current key+hash
// projections and the schema's primary-key fields.
type Engine interface {
	ComputeDelta(ctx context.Context, previous, current []model.Record, pkFields []string) (Result, error)
}
