package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/whennemuth/deltasync/internal/adapter"
	"github.com/whennemuth/deltasync/internal/model"
)

// demoSource yields a small fixed in-memory payload, enough to exercise
// `run` without a real upstream system wired in.
type demoSource struct{}

func newDemoSource() *demoSource { return &demoSource{} }

func (s *demoSource) FetchRaw(_ context.Context) (any, error) {
	return []map[string]any{
		{"id": "1", "name": "Ada Lovelace", "email": "ada@example.com"},
		{"id": "2", "name": "Alan Turing", "email": "alan@example.com"},
		{"id": "3", "name": "Grace Hopper", "email": "grace@example.com"},
	}, nil
}

// demoMapper projects demoSource's raw rows onto a {id, name, email}
// schema, id as the primary key.
type demoMapper struct{}

func newDemoMapper() *demoMapper { return &demoMapper{} }

func (m *demoMapper) Map(_ context.Context, raw any) (model.Schema, []model.Record, error) {
	rows, ok := raw.([]map[string]any)
	if !ok {
		return model.Schema{}, nil, fmt.Errorf("demo mapper: unexpected raw payload type %T", raw)
	}

	schema := model.Schema{Fields: []model.FieldDefinition{
		{Name: "id", Type: model.FieldString, Required: true, PrimaryKey: true},
		{Name: "name", Type: model.FieldString, Required: true},
		{Name: "email", Type: model.FieldEmail, Required: true},
	}}

	records := make([]model.Record, len(rows))
	for i, row := range rows {
		records[i] = model.Record{Fields: []model.Field{
			{Name: "id", Value: row["id"]},
			{Name: "name", Value: row["name"]},
			{Name: "email", Value: row["email"]},
		}}
	}
	return schema, records, nil
}

// demoTarget logs every push and reports success unconditionally, so
// `run` exercises a full cycle end to end.
type demoTarget struct {
	log zerolog.Logger
}

func newDemoTarget(log zerolog.Logger) *demoTarget { return &demoTarget{log: log} }

func (t *demoTarget) PushOne(_ context.Context, record model.Record, crud adapter.CRUD) (adapter.SingleResult, error) {
	t.log.Info().Str("crud", string(crud)).Interface("fields", record.Fields).Msg("demo target: push")
	return adapter.SingleResult{Status: adapter.StatusSuccess, CRUD: crud, PrimaryKey: record.Fields}, nil
}
