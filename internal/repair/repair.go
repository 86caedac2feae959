// Package repair implements the post-push baseline repair step (C8):
// undoing fingerprint advances for records that failed to push, so they
// are retried rather than silently lost from the next cycle's delta.
package repair

import (
	"github.com/whennemuth/deltasync/internal/adapter"
	"github.com/whennemuth/deltasync/internal/model"
)

// Run mutates and filters current in place per spec.md §4.8: failed
// pushes revert their record's hash to the prior baseline (retried as
// "updated" next cycle) or, if the record had no prior baseline, are
// dropped (retried as "added" next cycle). Records still carrying
// validation messages with no hash are treated the same way. Returns the
// repaired projection and the count of records touched, which the caller
// passes to updatePrevious as failureCount.
func Run(current, previous []model.Record, pkFields []string, pushed adapter.BatchResult) ([]model.Record, int) {
	prevByPK := make(map[string]model.Record, len(previous))
	for _, r := range previous {
		prevByPK[model.PrimaryKeyTuple(r, pkFields)] = r
	}

	currentByPK := make(map[string]int, len(current))
	for i, r := range current {
		currentByPK[model.PrimaryKeyTuple(r, pkFields)] = i
	}

	drop := make(map[string]bool)
	restored := 0

	for _, f := range pushed.Failures {
		pk := model.PrimaryKeyTuple(model.Record{Fields: f.PrimaryKey}, pkFields)
		restored++
		prev, known := prevByPK[pk]
		if !known {
			drop[pk] = true
			continue
		}
		if idx, ok := currentByPK[pk]; ok {
			current[idx].Hash = prev.Hash
		}
	}

	for i, r := range current {
		pk := model.PrimaryKeyTuple(r, pkFields)
		if drop[pk] {
			continue
		}
		if r.Hash != "" || len(r.ValidationMessages) == 0 {
			continue
		}
		restored++
		if prev, known := prevByPK[pk]; known {
			current[i].Hash = prev.Hash
		} else {
			drop[pk] = true
		}
	}

	if len(drop) == 0 {
		return current, restored
	}

	repaired := make([]model.Record, 0, len(current))
	for _, r := range current {
		if drop[model.PrimaryKeyTuple(r, pkFields)] {
			continue
		}
		repaired = append(repaired, r)
	}
	return repaired, restored
}
