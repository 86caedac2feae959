package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrimaryKeyTuple(t *testing.T) {
	r := Record{Fields: []Field{
		{Name: "org", Value: "acme"},
		{Name: "id", Value: "42"},
		{Name: "name", Value: "ignored"},
	}}
	assert.Equal(t, "acme|42", PrimaryKeyTuple(r, []string{"org", "id"}))
}

func TestPrimaryKeyTuple_MissingField(t *testing.T) {
	r := Record{Fields: []Field{{Name: "id", Value: "1"}}}
	assert.Equal(t, "1|", PrimaryKeyTuple(r, []string{"id", "missing"}))
}

func TestContainsPipeValue(t *testing.T) {
	clean := Record{Fields: []Field{{Name: "id", Value: "abc"}}}
	dirty := Record{Fields: []Field{{Name: "id", Value: "a|b"}}}

	assert.False(t, ContainsPipeValue(clean, []string{"id"}))
	assert.True(t, ContainsPipeValue(dirty, []string{"id"}))
}

func TestReduce(t *testing.T) {
	r := Record{
		Fields: []Field{
			{Name: "id", Value: "1"},
			{Name: "name", Value: "Ada"},
		},
		Hash:               "abc123",
		ValidationMessages: map[string]string{"name": "too short"},
	}

	reduced := Reduce(r, []string{"id"})
	assert.Equal(t, []Field{{Name: "id", Value: "1"}}, reduced.Fields)
	assert.Equal(t, "abc123", reduced.Hash)
	assert.Equal(t, "too short", reduced.ValidationMessages["name"])
}

func TestSchema_PrimaryKeyFields(t *testing.T) {
	s := Schema{Fields: []FieldDefinition{
		{Name: "org", PrimaryKey: true},
		{Name: "name"},
		{Name: "id", PrimaryKey: true},
	}}
	assert.Equal(t, []string{"org", "id"}, s.PrimaryKeyFields())
}

func TestSortedFields_DoesNotMutateOriginal(t *testing.T) {
	r := Record{Fields: []Field{{Name: "b", Value: 1}, {Name: "a", Value: 2}}}
	sorted := r.SortedFields()

	assert.Equal(t, "a", sorted[0].Name)
	assert.Equal(t, "b", r.Fields[0].Name, "original field order must be untouched")
}

func TestRecord_Clone_Independence(t *testing.T) {
	r := Record{
		Fields:             []Field{{Name: "id", Value: "1"}},
		ValidationMessages: map[string]string{"id": "bad"},
	}
	clone := r.Clone()
	clone.Fields[0].Value = "2"
	clone.ValidationMessages["id"] = "changed"

	assert.Equal(t, "1", r.Fields[0].Value)
	assert.Equal(t, "bad", r.ValidationMessages["id"])
}
