package delta

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whennemuth/deltasync/internal/model"
)

func rec(id, hash string) model.Record {
	return model.Record{Fields: []model.Field{{Name: "id", Value: id}}, Hash: hash}
}

func TestSetDiffEngine_AddedUpdatedRemoved(t *testing.T) {
	previous := []model.Record{rec("1", "h1"), rec("2", "h2"), rec("3", "h3")}
	current := []model.Record{rec("1", "h1"), rec("2", "h2-changed"), rec("4", "h4")}

	engine := NewSetDiffEngine(zerolog.Nop())
	result, err := engine.ComputeDelta(context.Background(), previous, current, []string{"id"})
	require.NoError(t, err)

	assert.Len(t, result.Added, 1)
	assert.Equal(t, "4", result.Added[0].Fields[0].Value)

	assert.Len(t, result.Updated, 1)
	assert.Equal(t, "2", result.Updated[0].Fields[0].Value)

	assert.Len(t, result.Removed, 1)
	assert.Equal(t, "3", result.Removed[0].Fields[0].Value)
}

func TestSetDiffEngine_NoChanges(t *testing.T) {
	data := []model.Record{rec("1", "h1"), rec("2", "h2")}

	engine := NewSetDiffEngine(zerolog.Nop())
	result, err := engine.ComputeDelta(context.Background(), data, data, []string{"id"})
	require.NoError(t, err)

	added, updated, removed := result.Stats()
	assert.Zero(t, added)
	assert.Zero(t, updated)
	assert.Zero(t, removed)
}

func TestSetDiffEngine_NoPrimaryKey(t *testing.T) {
	previous := []model.Record{rec("1", "h1")}
	current := []model.Record{rec("1", "h2")}

	engine := NewSetDiffEngine(zerolog.Nop())
	result, err := engine.ComputeDelta(context.Background(), previous, current, nil)
	require.NoError(t, err)

	// without a primary key there is no way to pair added/removed into
	// "updated", so both sides show up as added/removed.
	assert.Len(t, result.Added, 1)
	assert.Len(t, result.Removed, 1)
	assert.Empty(t, result.Updated)
}

func TestSetDiffEngine_IgnoresUnhashedRecords(t *testing.T) {
	current := []model.Record{{Fields: []model.Field{{Name: "id", Value: "1"}}}} // no hash: invalid row

	engine := NewSetDiffEngine(zerolog.Nop())
	result, err := engine.ComputeDelta(context.Background(), nil, current, []string{"id"})
	require.NoError(t, err)
	assert.Empty(t, result.Added)
}
