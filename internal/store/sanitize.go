package store

import "strings"

// SanitizeIdentifier replaces every character outside [A-Za-z0-9] with an
// underscore, producing a SQL-safe identifier fragment from an arbitrary
// clientId (spec.md §4.5, §6).
func SanitizeIdentifier(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// TableNames returns the per-client current/previous table names for
// clientID, following the client_{sanitized}_{current|previous} template
// of spec.md §6.
func TableNames(clientID string) (current, previous string) {
	sanitized := SanitizeIdentifier(clientID)
	return "client_" + sanitized + "_current", "client_" + sanitized + "_previous"
}
