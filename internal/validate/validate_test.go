package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whennemuth/deltasync/internal/model"
)

func TestRow_RequiredFieldMissing(t *testing.T) {
	schema := model.Schema{Fields: []model.FieldDefinition{
		{Name: "email", Type: model.FieldEmail, Required: true},
	}}

	out := Row(schema, model.Record{})
	require.False(t, out.Valid())
	assert.Contains(t, out.ValidationMessages["email"], "required")
}

func TestRow_ValidRecordHasNoMessages(t *testing.T) {
	schema := model.Schema{Fields: []model.FieldDefinition{
		{Name: "email", Type: model.FieldEmail, Required: true},
		{Name: "age", Type: model.FieldNumber},
	}}
	rec := model.Record{Fields: []model.Field{
		{Name: "email", Value: "a@example.com"},
		{Name: "age", Value: 30.0},
	}}

	out := Row(schema, rec)
	assert.True(t, out.Valid())
	assert.Nil(t, out.ValidationMessages)
}

func TestRow_MissingFieldAppliesDefault(t *testing.T) {
	schema := model.Schema{Fields: []model.FieldDefinition{
		{Name: "status", Type: model.FieldString, Required: true, Default: "pending"},
	}}

	out := Row(schema, model.Record{})
	assert.True(t, out.Valid())
	value, present := out.Get("status")
	require.True(t, present)
	assert.Equal(t, "pending", value)
}

func TestRow_DefaultIsRejectedIfItFailsTypeChecks(t *testing.T) {
	schema := model.Schema{Fields: []model.FieldDefinition{
		{Name: "count", Type: model.FieldNumber, Required: true, Default: "not-a-number"},
	}}

	out := Row(schema, model.Record{})
	require.False(t, out.Valid())
	assert.Contains(t, out.ValidationMessages["count"], "must be a number")
}

func TestField_TypeMismatch(t *testing.T) {
	def := model.FieldDefinition{Name: "count", Type: model.FieldNumber}
	msg := Field(def, "not-a-number", true, model.Record{})
	assert.Contains(t, msg, "must be a number")
}

func TestField_EmailInvalid(t *testing.T) {
	def := model.FieldDefinition{Name: "email", Type: model.FieldEmail}
	msg := Field(def, "not-an-email", true, model.Record{})
	assert.Contains(t, msg, "valid email")
}

func TestField_URLInvalid(t *testing.T) {
	def := model.FieldDefinition{Name: "site", Type: model.FieldURL}
	msg := Field(def, "not a url", true, model.Record{})
	assert.Contains(t, msg, "valid URL")
}

func TestField_RestrictionLength(t *testing.T) {
	min, max := 2, 4
	def := model.FieldDefinition{
		Name: "code", Type: model.FieldString,
		Restrictions: []model.Restriction{{MinLength: &min, MaxLength: &max}},
	}
	assert.Contains(t, Field(def, "a", true, model.Record{}), "at least")
	assert.Contains(t, Field(def, "abcdef", true, model.Record{}), "at most")
	assert.Empty(t, Field(def, "abc", true, model.Record{}))
}

func TestField_RestrictionChoices(t *testing.T) {
	def := model.FieldDefinition{
		Name: "status", Type: model.FieldSingleChoice,
		Restrictions: []model.Restriction{{Choices: []string{"active", "inactive"}}},
	}
	assert.Empty(t, Field(def, "ACTIVE", true, model.Record{}), "choice match should be case-insensitive by default")
	assert.Contains(t, Field(def, "bogus", true, model.Record{}), "allowed choices")
}

func TestField_RestrictionPredicate(t *testing.T) {
	def := model.FieldDefinition{
		Name: "quantity", Type: model.FieldNumber,
		Restrictions: []model.Restriction{{
			Predicate: func(value any, row model.Record) error {
				if n, _ := value.(float64); n < 0 {
					return errors.New("quantity must be non-negative")
				}
				return nil
			},
		}},
	}
	assert.Contains(t, Field(def, -1.0, true, model.Record{}), "non-negative")
	assert.Empty(t, Field(def, 1.0, true, model.Record{}))
}

func TestField_RestrictionCEL(t *testing.T) {
	def := model.FieldDefinition{
		Name: "discount", Type: model.FieldNumber,
		Restrictions: []model.Restriction{{CELExpr: "value <= 100.0"}},
	}
	assert.Empty(t, Field(def, 50.0, true, model.Record{}))
	assert.Contains(t, Field(def, 150.0, true, model.Record{}), "failed custom predicate")
}

func TestField_CompoundDepth(t *testing.T) {
	def := model.FieldDefinition{Name: "tree", Type: model.FieldObject}

	var nest any = "leaf"
	for i := 0; i < MaxDepth+2; i++ {
		nest = map[string]any{"n": nest}
	}

	assert.Contains(t, Field(def, nest, true, model.Record{}), "maximum depth")
}
