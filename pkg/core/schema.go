package core

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultTable is the table records are stored in.
const DefaultTable = "model_outputs"

// rowIDColumn is internal to storage and never a FieldName.
const rowIDColumn = "id"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validTableName(name string) bool {
	return tableNamePattern.MatchString(name)
}

// columnType maps a field to its SQLite column declaration.
func columnType(f FieldName) string {
	switch f.Kind() {
	case KindBlob:
		return "BLOB NOT NULL"
	}
	return "TEXT NOT NULL"
}

// CreateTableSQL derives the table definition from the FieldName registry.
// Every statement is guarded with IF NOT EXISTS.
func CreateTableSQL(table string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", table)
	fmt.Fprintf(&b, "\t%s INTEGER PRIMARY KEY AUTOINCREMENT", rowIDColumn)
	for _, f := range AllFieldNames() {
		fmt.Fprintf(&b, ",\n\t%s %s", f, columnType(f))
	}
	b.WriteString("\n);\n")

	for _, f := range AllFieldNames() {
		if f.Kind() != KindText || f == FieldTimestamp {
			continue
		}
		fmt.Fprintf(&b, "CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s);\n", table, f, table, f)
	}
	return b.String()
}

// columnList returns the registry-ordered column names joined by commas.
func columnList() string {
	names := AllFieldNames()
	cols := make([]string, len(names))
	for i, f := range names {
		cols[i] = f.String()
	}
	return strings.Join(cols, ", ")
}

func insertSQL(table string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", fieldCount), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, columnList(), placeholders)
}

// selectByFieldSQL interpolates only the registry column name; the value is
// always bound as a parameter.
func selectByFieldSQL(table string, f FieldName) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? ORDER BY %s LIMIT 1",
		columnList(), table, f, rowIDColumn)
}

func selectAllSQL(table string) string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", columnList(), table, rowIDColumn)
}
