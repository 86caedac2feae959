package store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/whennemuth/deltasync/internal/codec"
	"github.com/whennemuth/deltasync/internal/model"
	deltaerrors "github.com/whennemuth/deltasync/pkg/errors"
)

// FilesystemBackend persists one NDJSON file per client at
// {Path}/{clientID}/previous-input.ndjson.
type FilesystemBackend struct {
	Path string
	log  zerolog.Logger
}

// NewFilesystemBackend constructs a FilesystemBackend rooted at path.
// Returns ConfigError if path is empty.
func NewFilesystemBackend(path string, log zerolog.Logger) (*FilesystemBackend, error) {
	if path == "" {
		return nil, deltaerrors.Config("filesystem backend requires a non-empty path", nil)
	}
	return &FilesystemBackend{Path: path, log: log}, nil
}

func (b *FilesystemBackend) clientFile(clientID string) string {
	return filepath.Join(b.Path, clientID, "previous-input.ndjson")
}

// Initialize creates the client's parent directory. Parent-directory
// creation is implicit elsewhere, but doing it up front here lets
// Initialize fail fast on permission errors rather than surfacing them
// from the first UpdatePrevious call.
func (b *FilesystemBackend) Initialize(_ context.Context, clientID string, _ []string) error {
	dir := filepath.Join(b.Path, clientID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return deltaerrors.IO("create client directory", err)
	}
	return nil
}

// FetchPrevious reads the client's file. limitTo applies no server-side
// filtering on filesystem backends; callers filter after read.
func (b *FilesystemBackend) FetchPrevious(_ context.Context, clientID string, _ []model.Record) ([]model.Record, error) {
	f, err := os.Open(b.clientFile(clientID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, deltaerrors.IO("open previous file", err)
	}
	defer f.Close()

	records, err := codec.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// UpdatePrevious rewrites the client's file with data (streamed), or
// deletes it when data is empty. failureCount and pkFields are ignored:
// the caller has already computed the repaired projection.
func (b *FilesystemBackend) UpdatePrevious(_ context.Context, clientID string, data []model.Record, _ []string, _ int) (int, error) {
	if len(data) == 0 {
		err := os.Remove(b.clientFile(clientID))
		if err != nil && !os.IsNotExist(err) {
			return 0, deltaerrors.IO("remove previous file", err)
		}
		return 0, nil
	}

	dir := filepath.Join(b.Path, clientID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, deltaerrors.IO("create client directory", err)
	}

	target := b.clientFile(clientID)
	tmp := target + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, deltaerrors.IO("create temp previous file", err)
	}
	if err := codec.WriteAll(f, nil, data); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, deltaerrors.IO("write temp previous file", err)
	}
	if err := moveResource(tmp, target); err != nil {
		return 0, deltaerrors.IO("rename previous file", err)
	}

	b.log.Debug().Str("client_id", clientID).Int("count", len(data)).Msg("baseline updated")
	return len(data), nil
}

// moveResource renames src to dst, the atomic-swap primitive spec.md §4.5
// calls out for filesystem backends.
func moveResource(src, dst string) error {
	return os.Rename(src, dst)
}

var _ Backend = (*FilesystemBackend)(nil)
