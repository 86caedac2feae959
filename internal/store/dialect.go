package store

import "fmt"

// Dialect is the SQL engine a Relational backend targets. The three
// dialects differ in placeholder style, identifier quoting, DDL column
// types, and the JSON column type, isolated here so the rest of the
// backend stays dialect-agnostic.
type Dialect string

const (
	DialectSQLite     Dialect = "sqlite"
	DialectMySQL      Dialect = "mysql"
	DialectPostgreSQL Dialect = "postgresql"
)

// Placeholder returns the positional-parameter marker for index n
// (1-based), e.g. "?" for sqlite/mysql or "$1" for postgresql.
func (d Dialect) Placeholder(n int) string {
	if d == DialectPostgreSQL {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// QuoteIdent quotes an identifier for safe inclusion in generated DDL.
// Identifiers here are already sanitized to [A-Za-z0-9_] (see
// SanitizeIdentifier), so this is a belt-and-suspenders wrap rather than
// an escaping routine.
func (d Dialect) QuoteIdent(name string) string {
	switch d {
	case DialectPostgreSQL, DialectSQLite:
		return `"` + name + `"`
	case DialectMySQL:
		return "`" + name + "`"
	default:
		return name
	}
}

// CreateTableSQL returns the DDL for a per-client current/previous table:
// (pk VARCHAR primary key, hash VARCHAR, createdAt timestamp).
func (d Dialect) CreateTableSQL(table string) string {
	switch d {
	case DialectPostgreSQL:
		return fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (pk VARCHAR(512) PRIMARY KEY, hash VARCHAR(128), "createdAt" TIMESTAMP)`,
			d.QuoteIdent(table))
	case DialectMySQL:
		return fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (pk VARCHAR(512) PRIMARY KEY, hash VARCHAR(128), createdAt TIMESTAMP)",
			d.QuoteIdent(table))
	default: // sqlite
		return fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (pk TEXT PRIMARY KEY, hash TEXT, createdAt TIMESTAMP)`,
			d.QuoteIdent(table))
	}
}

// TruncateSQL returns the statement to empty table. sqlite has no
// TRUNCATE statement, so DELETE FROM is used uniformly — cheap enough
// for per-client tables bounded by the populations spec.md §5 targets.
func (d Dialect) TruncateSQL(table string) string {
	return "DELETE FROM " + d.QuoteIdent(table)
}

// InsertSQL returns a parameterized 3-column insert statement.
func (d Dialect) InsertSQL(table string) string {
	return fmt.Sprintf("INSERT INTO %s (pk, hash, createdAt) VALUES (%s, %s, %s)",
		d.QuoteIdent(table), d.Placeholder(1), d.Placeholder(2), d.Placeholder(3))
}

// JSONColumnType returns the column type used for a JSON-capable metadata
// column: postgresql's native jsonb, TEXT elsewhere (sqlite and mysql both
// store and query JSON fine as text).
func (d Dialect) JSONColumnType() string {
	if d == DialectPostgreSQL {
		return "jsonb"
	}
	return "TEXT"
}

// CopyAllSQL returns the statement that copies every row of src into dst
// (used to promote current into previous).
func (d Dialect) CopyAllSQL(dst, src string) string {
	return fmt.Sprintf("INSERT INTO %s SELECT * FROM %s", d.QuoteIdent(dst), d.QuoteIdent(src))
}

// ParseDialect maps the {type: sqlite|postgresql|mysql} config string of
// spec.md §6 to a Dialect, rejecting anything else with ConfigError-shaped
// zero value; callers check the ok bool.
func ParseDialect(s string) (Dialect, bool) {
	switch Dialect(s) {
	case DialectSQLite, DialectMySQL, DialectPostgreSQL:
		return Dialect(s), true
	default:
		return "", false
	}
}
