package repair

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whennemuth/deltasync/internal/adapter"
	"github.com/whennemuth/deltasync/internal/model"
)

func field(name, value string) model.Field { return model.Field{Name: name, Value: value} }

func TestRun_FailedPushWithPriorBaselineRevertsHash(t *testing.T) {
	current := []model.Record{
		{Fields: []model.Field{field("id", "1")}, Hash: "new-hash"},
	}
	previous := []model.Record{
		{Fields: []model.Field{field("id", "1")}, Hash: "old-hash"},
	}
	pushed := adapter.BatchResult{
		Failures: []adapter.Outcome{{PrimaryKey: []model.Field{field("id", "1")}, CRUD: adapter.Update}},
	}

	repaired, restorationCount := Run(current, previous, []string{"id"}, pushed)

	require.Len(t, repaired, 1)
	assert.Equal(t, "old-hash", repaired[0].Hash, "failed push reverts to the prior baseline hash")
	assert.Equal(t, 1, restorationCount)
}

func TestRun_FailedPushWithNoPriorBaselineIsDropped(t *testing.T) {
	current := []model.Record{
		{Fields: []model.Field{field("id", "1")}, Hash: "new-hash"},
	}
	pushed := adapter.BatchResult{
		Failures: []adapter.Outcome{{PrimaryKey: []model.Field{field("id", "1")}, CRUD: adapter.Create}},
	}

	repaired, restorationCount := Run(current, nil, []string{"id"}, pushed)

	assert.Empty(t, repaired, "a brand-new record with no prior baseline is dropped, not reverted")
	assert.Equal(t, 1, restorationCount)
}

func TestRun_ValidationFailureWithPriorBaselineRevertsHash(t *testing.T) {
	current := []model.Record{
		{Fields: []model.Field{field("id", "1")}, ValidationMessages: map[string]string{"name": "required"}},
	}
	previous := []model.Record{
		{Fields: []model.Field{field("id", "1")}, Hash: "old-hash"},
	}

	repaired, restorationCount := Run(current, previous, []string{"id"}, adapter.BatchResult{})

	require.Len(t, repaired, 1)
	assert.Equal(t, "old-hash", repaired[0].Hash)
	assert.Equal(t, 1, restorationCount)
}

func TestRun_ValidationFailureWithNoPriorBaselineIsDropped(t *testing.T) {
	current := []model.Record{
		{Fields: []model.Field{field("id", "1")}, ValidationMessages: map[string]string{"name": "required"}},
	}

	repaired, restorationCount := Run(current, nil, []string{"id"}, adapter.BatchResult{})

	assert.Empty(t, repaired)
	assert.Equal(t, 1, restorationCount)
}

func TestRun_SuccessfulRecordsUntouched(t *testing.T) {
	current := []model.Record{
		{Fields: []model.Field{field("id", "1")}, Hash: "h1"},
		{Fields: []model.Field{field("id", "2")}, Hash: "h2"},
	}
	pushed := adapter.BatchResult{
		Successes: []adapter.Outcome{
			{PrimaryKey: []model.Field{field("id", "1")}, CRUD: adapter.Create},
			{PrimaryKey: []model.Field{field("id", "2")}, CRUD: adapter.Create},
		},
	}

	repaired, restorationCount := Run(current, nil, []string{"id"}, pushed)

	assert.Equal(t, current, repaired)
	assert.Equal(t, 0, restorationCount)
}

func TestRun_IdempotentOnAlreadyRepairedOutput(t *testing.T) {
	current := []model.Record{
		{Fields: []model.Field{field("id", "1")}, Hash: "new-hash"},
	}
	previous := []model.Record{
		{Fields: []model.Field{field("id", "1")}, Hash: "old-hash"},
	}
	pushed := adapter.BatchResult{
		Failures: []adapter.Outcome{{PrimaryKey: []model.Field{field("id", "1")}, CRUD: adapter.Update}},
	}

	repaired, _ := Run(current, previous, []string{"id"}, pushed)
	repairedAgain, restorationCount := Run(repaired, previous, []string{"id"}, adapter.BatchResult{})

	assert.Equal(t, repaired, repairedAgain)
	assert.Equal(t, 0, restorationCount, "no validation messages and no push failures leaves nothing to restore")
}
