// Package validate implements the field and row validators (C2).
package validate

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"

	"github.com/google/cel-go/cel"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/whennemuth/deltasync/internal/model"
)

// MaxDepth bounds recursion into nested compound values, matching the
// fingerprint package's bound so a value that would overflow one
// overflows the other consistently.
const MaxDepth = 10

// celCacheSize bounds how many distinct CELExpr strings stay compiled.
// Schemas reuse a handful of predicates across many fields/clients, so a
// small cache avoids recompiling the same expression on every row.
const celCacheSize = 256

var (
	celEnv, celEnvErr = cel.NewEnv(
		cel.Variable("value", cel.DynType),
		cel.Variable("row", cel.DynType),
	)
	celProgramCache, _ = lru.New[string, cel.Program](celCacheSize)
)

// compiledCELProgram returns expr's compiled program, compiling and
// caching it on first use.
func compiledCELProgram(expr string) (cel.Program, error) {
	if celEnvErr != nil {
		return nil, celEnvErr
	}
	if prg, ok := celProgramCache.Get(expr); ok {
		return prg, nil
	}

	ast, issues := celEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := celEnv.Program(ast)
	if err != nil {
		return nil, err
	}
	celProgramCache.Add(expr, prg)
	return prg, nil
}

// Row validates every field of record against schema, writing a
// messages-by-field-name map onto the returned record. A missing field
// with a declared Default has that default value written onto the
// returned record before validation runs against it. The row is valid
// iff the messages map is empty. This never returns an error: validation
// failure is communicated via the record's ValidationMessages, per
// spec.md §4.2.
func Row(schema model.Schema, record model.Record) model.Record {
	out := record.Clone()
	messages := make(map[string]string)

	for _, def := range schema.Fields {
		value, present := record.Get(def.Name)
		if !present && def.Default != nil {
			out.Set(def.Name, def.Default)
			value, present = def.Default, true
		}
		if msg := Field(def, value, present, record); msg != "" {
			messages[def.Name] = msg
		}
	}

	if len(messages) > 0 {
		out.ValidationMessages = messages
	} else {
		out.ValidationMessages = nil
	}
	return out
}

// Field validates a single field's value against its definition. value is
// the field's current value (ignored when present is false); row is the
// full record for custom predicates that inspect other fields. Returns
// an empty string when the field is valid, or an error message otherwise.
func Field(def model.FieldDefinition, value any, present bool, row model.Record) string {
	if !present || value == nil {
		if def.Required && def.Default == nil {
			return fmt.Sprintf("field %q is required", def.Name)
		}
		return ""
	}

	if msg := checkType(def, value, 0); msg != "" {
		return msg
	}

	for _, r := range def.Restrictions {
		if msg := checkRestriction(def, r, value, row); msg != "" {
			return msg
		}
	}

	return ""
}

func checkType(def model.FieldDefinition, value any, depth int) string {
	if depth > MaxDepth {
		return fmt.Sprintf("field %q exceeds maximum nesting depth of %d", def.Name, MaxDepth)
	}

	switch def.Type {
	case model.FieldObject, model.FieldArray:
		// Compound types: structural checks are skipped here; nested
		// values are still depth-bounded via the recursive descent below.
		return checkCompoundDepth(value, depth)
	case model.FieldString, model.FieldSingleChoice, model.FieldMultiChoice:
		if _, ok := value.(string); !ok {
			return fmt.Sprintf("field %q must be a string", def.Name)
		}
	case model.FieldNumber:
		switch value.(type) {
		case float64, float32, int, int64:
		default:
			return fmt.Sprintf("field %q must be a number", def.Name)
		}
	case model.FieldBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Sprintf("field %q must be a boolean", def.Name)
		}
	case model.FieldDate:
		if _, ok := value.(string); !ok {
			return fmt.Sprintf("field %q must be a date string", def.Name)
		}
	case model.FieldEmail:
		s, ok := value.(string)
		if !ok {
			return fmt.Sprintf("field %q must be a string", def.Name)
		}
		if _, err := mail.ParseAddress(s); err != nil {
			return fmt.Sprintf("field %q is not a valid email address", def.Name)
		}
	case model.FieldURL:
		s, ok := value.(string)
		if !ok {
			return fmt.Sprintf("field %q must be a string", def.Name)
		}
		u, err := url.Parse(s)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Sprintf("field %q is not a valid URL", def.Name)
		}
	}
	return ""
}

func checkCompoundDepth(value any, depth int) string {
	switch t := value.(type) {
	case []any:
		for _, elem := range t {
			if depth+1 > MaxDepth {
				return fmt.Sprintf("nested value exceeds maximum depth of %d", MaxDepth)
			}
			if msg := checkCompoundDepth(elem, depth+1); msg != "" {
				return msg
			}
		}
	case map[string]any:
		for _, v := range t {
			if depth+1 > MaxDepth {
				return fmt.Sprintf("nested value exceeds maximum depth of %d", MaxDepth)
			}
			if msg := checkCompoundDepth(v, depth+1); msg != "" {
				return msg
			}
		}
	}
	return ""
}

func checkRestriction(def model.FieldDefinition, r model.Restriction, value any, row model.Record) string {
	if s, ok := value.(string); ok {
		if r.MinLength != nil && len(s) < *r.MinLength {
			return fmt.Sprintf("field %q must be at least %d characters", def.Name, *r.MinLength)
		}
		if r.MaxLength != nil && len(s) > *r.MaxLength {
			return fmt.Sprintf("field %q must be at most %d characters", def.Name, *r.MaxLength)
		}
		if r.Pattern != "" {
			re, err := regexp.Compile(r.Pattern)
			if err != nil || !re.MatchString(s) {
				return fmt.Sprintf("field %q does not match the required pattern", def.Name)
			}
		}
		if len(r.Choices) > 0 && !choiceMember(s, r.Choices, r.CaseSensitive) {
			return fmt.Sprintf("field %q is not one of the allowed choices", def.Name)
		}
	}

	if n, ok := asFloat(value); ok {
		if r.MinValue != nil && n < *r.MinValue {
			return fmt.Sprintf("field %q must be >= %v", def.Name, *r.MinValue)
		}
		if r.MaxValue != nil && n > *r.MaxValue {
			return fmt.Sprintf("field %q must be <= %v", def.Name, *r.MaxValue)
		}
	}

	if r.Predicate != nil {
		if err := r.Predicate(value, row); err != nil {
			return err.Error()
		}
	}

	if r.CELExpr != "" {
		if msg := evalCEL(def, r.CELExpr, value, row); msg != "" {
			return msg
		}
	}

	return ""
}

func choiceMember(s string, choices []string, caseSensitive bool) bool {
	for _, c := range choices {
		if caseSensitive {
			if s == c {
				return true
			}
		} else if equalFold(s, c) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func asFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// evalCEL compiles and evaluates expr with `value` and `row` bound in its
// environment. A compile error, an evaluation error, or a false result is
// reported as a field-level validation message rather than a fatal error,
// matching the Predicate contract it complements. Any other result,
// including a non-bool value, passes.
func evalCEL(def model.FieldDefinition, expr string, value any, row model.Record) string {
	rowMap := make(map[string]any, len(row.Fields))
	for _, f := range row.Fields {
		rowMap[f.Name] = f.Value
	}

	prg, err := compiledCELProgram(expr)
	if err != nil {
		return fmt.Sprintf("field %q: predicate compile error: %v", def.Name, err)
	}

	out, _, err := prg.Eval(map[string]any{"value": value, "row": rowMap})
	if err != nil {
		return fmt.Sprintf("field %q: predicate evaluation error: %v", def.Name, err)
	}

	if ok, isBool := out.Value().(bool); isBool && !ok {
		return fmt.Sprintf("field %q failed custom predicate", def.Name)
	}
	return ""
}
