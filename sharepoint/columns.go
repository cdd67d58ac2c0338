package sharepoint

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/louiss0/access-sharepoint-migrator/access"
)

// builtInFields are SharePoint list fields a source column may not reuse.
var builtInFields = []string{
	"ID", "Title", "Created", "Modified", "Author", "Editor", "Attachments",
	"ContentType", "Version", "LinkTitle", "Edit", "DocIcon", "ItemChildCount",
}

var invalidNameChars = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// InternalName turns a source column name into a valid SharePoint internal field name.
func InternalName(column string) string {
	name := strings.Trim(invalidNameChars.ReplaceAllString(column, "_"), "_")
	if name == "" {
		name = "Column"
	}
	if unicode.IsDigit(rune(name[0])) {
		name = "F" + name
	}
	if lo.ContainsBy(builtInFields, func(f string) bool { return strings.EqualFold(f, name) }) {
		name = "Source" + name
	}
	return name
}

// ColumnMapping pairs each migrated source column with its internal name. Binary columns are
// left out. Names that sanitize to the same value get a numeric suffix.
func ColumnMapping(columns []access.Column) map[string]string {
	mapping := make(map[string]string, len(columns))
	used := map[string]bool{}

	for _, column := range columns {
		if column.Type == access.Binary {
			continue
		}

		base := InternalName(column.Name)
		name := base
		for i := 2; used[strings.ToLower(name)]; i++ {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		used[strings.ToLower(name)] = true
		mapping[column.Name] = name
	}

	return mapping
}

// columnDefinition is the Graph columnDefinition resource. Exactly one facet is set; an empty
// facet object still selects the column type.
type columnDefinition struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Text        any    `json:"text,omitempty"`
	Number      any    `json:"number,omitempty"`
	Currency    any    `json:"currency,omitempty"`
	Boolean     any    `json:"boolean,omitempty"`
	DateTime    any    `json:"dateTime,omitempty"`
}

func newColumnDefinition(column access.Column, internal string) columnDefinition {
	def := columnDefinition{Name: internal, DisplayName: column.Name, Required: !column.Nullable}

	switch column.Type {
	case access.Integer:
		def.Number = map[string]any{"decimalPlaces": "none"}
	case access.Double:
		def.Number = map[string]any{"decimalPlaces": "automatic"}
	case access.Currency:
		def.Currency = map[string]any{"locale": "en-us"}
	case access.Boolean:
		def.Boolean = map[string]any{}
	case access.DateTime:
		def.DateTime = map[string]any{"format": "dateTime"}
	case access.Memo:
		def.Text = map[string]any{"allowMultipleLines": true}
	default:
		def.Text = map[string]any{}
	}

	return def
}
