package delta

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/whennemuth/deltasync/internal/model"
)

// SetDiffEngine computes deltas in memory via hash-set membership,
// recommended for populations up to roughly 200,000 records per side
// (spec.md §4.4, §5).
type SetDiffEngine struct {
	log zerolog.Logger
}

// NewSetDiffEngine constructs a SetDiffEngine. log receives a Error-level
// entry if the input baseline contains duplicate primary keys, which
// should never happen (invariant 3) but is tolerated by breaking ties on
// insertion order.
func NewSetDiffEngine(log zerolog.Logger) *SetDiffEngine {
	return &SetDiffEngine{log: log}
}

// ComputeDelta implements Engine.
func (e SetDiffEngine) ComputeDelta(_ context.Context, previous, current []model.Record, pkFields []string) (Result, error) {
	previousHashes := hashSet(previous)
	currentHashes := hashSet(current)

	var addedOrUpdated []model.Record
	for _, r := range current {
		if r.Hash == "" {
			continue
		}
		if !previousHashes[r.Hash] {
			addedOrUpdated = append(addedOrUpdated, r)
		}
	}

	var removedOrUpdated []model.Record
	for _, r := range previous {
		if r.Hash == "" {
			continue
		}
		if !currentHashes[r.Hash] {
			removedOrUpdated = append(removedOrUpdated, r)
		}
	}

	if len(pkFields) == 0 {
		// No way to pair added/updated without a primary key.
		return Result{Added: addedOrUpdated, Removed: removedOrUpdated}, nil
	}

	removedByPK := make(map[string]int, len(removedOrUpdated))
	removedOrder := make([]string, 0, len(removedOrUpdated))
	for i, r := range removedOrUpdated {
		pk := model.PrimaryKeyTuple(r, pkFields)
		if _, exists := removedByPK[pk]; !exists {
			removedByPK[pk] = i
			removedOrder = append(removedOrder, pk)
		} else {
			e.log.Error().Str("pk", pk).Msg("duplicate primary key in baseline; breaking tie by insertion order")
		}
	}

	consumed := make(map[string]bool, len(removedOrUpdated))
	var added, updated []model.Record
	for _, a := range addedOrUpdated {
		pk := model.PrimaryKeyTuple(a, pkFields)
		if _, ok := removedByPK[pk]; ok && !consumed[pk] {
			consumed[pk] = true
			updated = append(updated, a)
			continue
		}
		added = append(added, a)
	}

	var removed []model.Record
	for _, pk := range removedOrder {
		if consumed[pk] {
			continue
		}
		removed = append(removed, removedOrUpdated[removedByPK[pk]])
	}

	return Result{Added: added, Updated: updated, Removed: removed}, nil
}

func hashSet(records []model.Record) map[string]bool {
	set := make(map[string]bool, len(records))
	for _, r := range records {
		if r.Hash != "" {
			set[r.Hash] = true
		}
	}
	return set
}

var _ Engine = SetDiffEngine{}
