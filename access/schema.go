package access

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
)

// ColumnType is the canonical type a source column is migrated as.
type ColumnType string

const (
	Integer  ColumnType = "INTEGER"
	Double   ColumnType = "DOUBLE"
	Currency ColumnType = "CURRENCY"
	Text     ColumnType = "TEXT"
	Memo     ColumnType = "MEMO"
	Boolean  ColumnType = "BOOLEAN"
	DateTime ColumnType = "DATETIME"
	GUID     ColumnType = "GUID"
	Binary   ColumnType = "BINARY"
)

// Column describes one source column.
type Column struct {
	Name     string     `json:"name" yaml:"name"`
	Type     ColumnType `json:"type" yaml:"type"`
	Nullable bool       `json:"nullable" yaml:"nullable"`
}

// Table describes one source table.
type Table struct {
	Name        string   `json:"name" yaml:"name"`
	Columns     []Column `json:"columns" yaml:"columns"`
	PrimaryKeys []string `json:"primary_keys" yaml:"primary_keys"`
}

// Column looks a column up by name, ignoring case.
func (t Table) Column(name string) (Column, bool) {
	return lo.Find(t.Columns, func(c Column) bool { return strings.EqualFold(c.Name, name) })
}

// ColumnNames returns the column names in table order.
func (t Table) ColumnNames() []string {
	return lo.Map(t.Columns, func(c Column, _ int) string { return c.Name })
}

// Row is one source record keyed by column name.
type Row map[string]any

var typeSizeRe = regexp.MustCompile(`\s*\(.*\)\s*$`)

// NormalizeType maps a driver's declared type name (Access ODBC or SQLite) onto a ColumnType.
// Unknown and empty declarations fall back to Text.
func NormalizeType(declared string) ColumnType {
	t := strings.ToUpper(strings.TrimSpace(typeSizeRe.ReplaceAllString(declared, "")))

	switch t {
	case "LONG", "COUNTER", "AUTOINCREMENT", "BYTE", "SHORT":
		return Integer
	case "LONGCHAR", "MEMO", "LONGTEXT", "NTEXT", "HYPERLINK":
		return Memo
	case "BIT", "BOOL", "BOOLEAN", "YESNO", "LOGICAL":
		return Boolean
	case "GUID", "UNIQUEIDENTIFIER":
		return GUID
	}

	contains := func(parts ...string) bool {
		return lo.SomeBy(parts, func(p string) bool { return strings.Contains(t, p) })
	}

	switch {
	case contains("BINARY", "BLOB", "OLE", "IMAGE"):
		return Binary
	case contains("CURRENCY", "MONEY"):
		return Currency
	case contains("INT"):
		return Integer
	case contains("DOUBLE", "FLOAT", "REAL", "SINGLE", "DECIMAL", "NUMERIC", "NUMBER"):
		return Double
	case contains("DATE", "TIME"):
		return DateTime
	default:
		return Text
	}
}
