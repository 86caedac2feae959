package store

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whennemuth/deltasync/internal/model"
)

func TestFilesystemBackend_FetchPreviousBeforeWriteIsEmpty(t *testing.T) {
	backend, err := NewFilesystemBackend(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, backend.Initialize(context.Background(), "client1", []string{"id"}))

	records, err := backend.FetchPrevious(context.Background(), "client1", nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFilesystemBackend_UpdateThenFetchRoundTrip(t *testing.T) {
	backend, err := NewFilesystemBackend(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, backend.Initialize(ctx, "client1", []string{"id"}))

	data := []model.Record{
		{Fields: []model.Field{{Name: "id", Value: "1"}}, Hash: "h1"},
		{Fields: []model.Field{{Name: "id", Value: "2"}}, Hash: "h2"},
	}
	n, err := backend.UpdatePrevious(ctx, "client1", data, []string{"id"}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	fetched, err := backend.FetchPrevious(ctx, "client1", nil)
	require.NoError(t, err)
	require.Len(t, fetched, 2)
	assert.Equal(t, "h1", fetched[0].Hash)
}

func TestFilesystemBackend_UpdateWithEmptyDataRemovesFile(t *testing.T) {
	backend, err := NewFilesystemBackend(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, backend.Initialize(ctx, "client1", []string{"id"}))

	_, err = backend.UpdatePrevious(ctx, "client1", []model.Record{{Hash: "h1"}}, []string{"id"}, 0)
	require.NoError(t, err)

	_, err = backend.UpdatePrevious(ctx, "client1", nil, []string{"id"}, 0)
	require.NoError(t, err)

	fetched, err := backend.FetchPrevious(ctx, "client1", nil)
	require.NoError(t, err)
	assert.Empty(t, fetched)
}

func TestNewFilesystemBackend_RejectsEmptyPath(t *testing.T) {
	_, err := NewFilesystemBackend("", zerolog.Nop())
	require.Error(t, err)
}
