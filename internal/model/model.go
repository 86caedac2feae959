// Package model defines the canonical record, schema, and field types
// that flow through the delta sync cycle: Mapper output, Validator input,
// Delta Engine input/output, and the key+hash projection the baseline
// store persists.
package model

import "strconv"

// FieldType enumerates the semantic types a schema field can declare.
type FieldType string

const (
	FieldString       FieldType = "string"
	FieldNumber       FieldType = "number"
	FieldBoolean      FieldType = "boolean"
	FieldDate         FieldType = "date"
	FieldEmail        FieldType = "email"
	FieldURL          FieldType = "url"
	FieldSingleChoice FieldType = "single-choice"
	FieldMultiChoice  FieldType = "multi-choice"
	FieldObject       FieldType = "object"
	FieldArray        FieldType = "array"
)

// Restriction constrains the values a field may take. Zero values mean
// "not set" for that restriction; validators should only apply the ones
// that are non-zero.
type Restriction struct {
	MinLength *int
	MaxLength *int
	MinValue  *float64
	MaxValue  *float64
	Pattern   string

	// Choices is the allowed set for single/multi-choice fields.
	Choices       []string
	CaseSensitive bool

	// Predicate receives the field value and the full row for cross-field
	// checks. Returning a non-nil error fails the field with that message.
	Predicate func(value any, row Record) error

	// CELExpr is an alternative, data-driven form of Predicate: a CEL
	// expression evaluated with `value` and `row` in scope. Schemas authored
	// from configuration (rather than Go code) use this instead of Predicate.
	CELExpr string
}

// FieldDefinition is one entry in a Schema.
type FieldDefinition struct {
	Name         string
	Type         FieldType
	Required     bool
	Default      any
	PrimaryKey   bool
	Restrictions []Restriction
}

// Schema is an ordered sequence of field definitions.
type Schema struct {
	Fields []FieldDefinition
}

// PrimaryKeyFields returns the names of fields flagged PrimaryKey, in
// schema order. The result may be empty (see spec §4.4 special case).
func (s Schema) PrimaryKeyFields() []string {
	var pk []string
	for _, f := range s.Fields {
		if f.PrimaryKey {
			pk = append(pk, f.Name)
		}
	}
	return pk
}

// Lookup returns the field definition named name, or false if absent.
func (s Schema) Lookup(name string) (FieldDefinition, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// Field is a single {name -> value} entry. Value is one of: string,
// number (float64/int), bool, nil, []any, or map[string]any (recursively).
type Field struct {
	Name  string
	Value any
}

// Record is an ordered sequence of fields plus optional validation
// messages and a fingerprint hash. Field order is semantically meaningful
// for fingerprinting unless sorting is explicitly requested.
type Record struct {
	Fields []Field

	// ValidationMessages maps field name to the validation error for that
	// field. A record with a non-empty map must not carry a Hash
	// (invariant 2 in spec.md §3).
	ValidationMessages map[string]string

	// Hash is the fingerprint computed over Fields, when present.
	Hash string
}

// Get returns the value of the named field and whether it was present.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Valid reports whether the record has no validation messages.
func (r Record) Valid() bool {
	return len(r.ValidationMessages) == 0
}

// Set writes value onto the named field, replacing it in place if present
// or appending it otherwise.
func (r *Record) Set(name string, value any) {
	for i, f := range r.Fields {
		if f.Name == name {
			r.Fields[i].Value = value
			return
		}
	}
	r.Fields = append(r.Fields, Field{Name: name, Value: value})
}

// Clone returns a deep-enough copy safe to mutate independently: the Fields
// slice and ValidationMessages map are copied; field Values are not deep
// copied (callers that mutate nested maps/slices in place must copy those
// themselves).
func (r Record) Clone() Record {
	out := Record{Hash: r.Hash}
	if r.Fields != nil {
		out.Fields = make([]Field, len(r.Fields))
		copy(out.Fields, r.Fields)
	}
	if len(r.ValidationMessages) > 0 {
		out.ValidationMessages = make(map[string]string, len(r.ValidationMessages))
		for k, v := range r.ValidationMessages {
			out.ValidationMessages[k] = v
		}
	}
	return out
}

// SortedFields returns a copy of Fields ordered ascending by name, for
// callers that need the sort=true fingerprint semantics without mutating
// the original record.
func (r Record) SortedFields() []Field {
	out := make([]Field, len(r.Fields))
	copy(out, r.Fields)
	sortFieldsByName(out)
	return out
}

func sortFieldsByName(fields []Field) {
	// Simple insertion sort: schemas and records are small (tens of
	// fields), and this keeps the dependency-free sort stable without
	// pulling in sort.Slice's reflection-based comparator overhead.
	for i := 1; i < len(fields); i++ {
		j := i
		for j > 0 && fields[j-1].Name > fields[j].Name {
			fields[j-1], fields[j] = fields[j], fields[j-1]
			j--
		}
	}
}

// Reduce projects record onto pkFields plus its Hash and ValidationMessages,
// preserving encountered order (C3, spec.md §4.3). This is the
// representation the baseline store sees; full field payloads never reach
// the store.
func Reduce(record Record, pkFields []string) Record {
	want := make(map[string]bool, len(pkFields))
	for _, f := range pkFields {
		want[f] = true
	}

	out := Record{Hash: record.Hash}
	for _, f := range record.Fields {
		if want[f.Name] {
			out.Fields = append(out.Fields, f)
		}
	}
	if len(record.ValidationMessages) > 0 {
		out.ValidationMessages = make(map[string]string, len(record.ValidationMessages))
		for k, v := range record.ValidationMessages {
			out.ValidationMessages[k] = v
		}
	}
	return out
}

// PrimaryKeyTuple returns the record's primary-key values in pkFields
// order, joined by "|". Callers must ensure no key value contains "|"
// (see spec.md §9 open question (b)); ContainsPipeValue below detects it.
func PrimaryKeyTuple(record Record, pkFields []string) string {
	var b []byte
	for i, name := range pkFields {
		if i > 0 {
			b = append(b, '|')
		}
		v, _ := record.Get(name)
		b = append(b, stringifyKeyValue(v)...)
	}
	return string(b)
}

func stringifyKeyValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return formatNumber(t)
	}
}

// ContainsPipeValue reports whether any primary-key field value in record
// contains the "|" tuple separator, which would make PrimaryKeyTuple
// ambiguous to reconstruct.
func ContainsPipeValue(record Record, pkFields []string) bool {
	for _, name := range pkFields {
		v, ok := record.Get(name)
		if !ok {
			continue
		}
		s, ok := v.(string)
		if ok && containsByte(s, '|') {
			return true
		}
	}
	return false
}

func formatNumber(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'g', -1, 32)
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	default:
		return ""
	}
}

func containsByte(s string, b byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return true
		}
	}
	return false
}
