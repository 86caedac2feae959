// Package fingerprint computes a deterministic, order-stable SHA-256 hash
// over a record's field values (C1).
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"github.com/whennemuth/deltasync/internal/model"
	deltaerrors "github.com/whennemuth/deltasync/pkg/errors"
)

// MaxDepth is the maximum recursion depth serialize will follow into
// nested sequences and mappings before failing with DepthExceeded.
const MaxDepth = 10

// Options configures a Fingerprint call.
type Options struct {
	// Sort, when true, orders fields ascending by name before
	// serialization. When false, the record's natural order is used.
	Sort bool
}

// Fingerprint returns the hex-encoded SHA-256 digest of record's ordered
// field values. Field names do not contribute to the digest; ordering
// carries the identity. Returns a DepthExceeded error if any field nests
// more than MaxDepth levels deep.
func Fingerprint(record model.Record, opts Options) (string, error) {
	fields := record.Fields
	if opts.Sort {
		fields = record.SortedFields()
	}

	parts := make([]string, len(fields))
	for i, f := range fields {
		s, err := serialize(f.Value, 0)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}

	sum := sha256.Sum256([]byte(joinBy(parts, "|")))
	return hex.EncodeToString(sum[:]), nil
}

// serialize recursively renders v into its canonical textual form.
func serialize(v any, depth int) (string, error) {
	if depth > MaxDepth {
		return "", deltaerrors.Depth("record nesting exceeds maximum depth of " + strconv.Itoa(MaxDepth))
	}

	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		if t {
			return "true", nil
		}
		return "false", nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case []any:
		parts := make([]string, len(t))
		for i, elem := range t {
			s, err := serialize(elem, depth+1)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return joinBy(parts, ","), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, len(keys))
		for i, k := range keys {
			s, err := serialize(t[k], depth+1)
			if err != nil {
				return "", err
			}
			parts[i] = k + ":" + s
		}
		return joinBy(parts, ";"), nil
	default:
		// Unknown concrete type: best-effort stringification so a Mapper
		// bug degrades to a wrong hash rather than a panic. Callers
		// should never hit this path if they stick to the documented
		// value union.
		return fmt.Sprintf("%v", t), nil
	}
}

func joinBy(parts []string, sep string) string {
	if len(parts) == 0 {
		return ""
	}
	total := len(sep) * (len(parts) - 1)
	for _, p := range parts {
		total += len(p)
	}
	b := make([]byte, 0, total)
	for i, p := range parts {
		if i > 0 {
			b = append(b, sep...)
		}
		b = append(b, p...)
	}
	return string(b)
}
