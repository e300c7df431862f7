package sync

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	"github.com/iancoleman/strcase"
)

// MappingDocRow represents a single row in the mapping documentation.
type MappingDocRow struct {
	FieldName   string // Display name derived from the target field
	TargetField string // Remote field the value is written to
	Table       string // "Reference" or "Event property"
	Expression  string // Source path without modifiers
	Notes       string // Modifier and flag notes
}

// MappingDocumentation contains the documentation for the configured
// mapping tables of one connector.
type MappingDocumentation struct {
	Object string
	Rows   []MappingDocRow
}

// GenerateMappingDocumentation builds documentation rows for both mapping
// tables, sorted for deterministic output: reference mappings first, then
// event-property mappings, alphabetically by field name within each table.
func GenerateMappingDocumentation(settings AppSettings) MappingDocumentation {
	doc := MappingDocumentation{
		Object: settings.Object,
		Rows:   []MappingDocRow{},
	}

	processMappingTable(&doc.Rows, settings.ReferencesOutgoing, "Reference")
	processMappingTable(&doc.Rows, settings.EventProperties, "Event property")

	sort.SliceStable(doc.Rows, func(i, j int) bool {
		if doc.Rows[i].Table != doc.Rows[j].Table {
			return doc.Rows[i].Table == "Reference"
		}
		return doc.Rows[i].FieldName < doc.Rows[j].FieldName
	})

	return doc
}

func processMappingTable(rows *[]MappingDocRow, mappings []AttributeMapping, table string) {
	for _, mapping := range mappings {
		if mapping.Source == "" || mapping.Target == "" {
			continue
		}
		expression, modifiers := splitExpression(mapping.Source)
		notes := make([]string, 0, len(modifiers)+2)
		for _, modifier := range modifiers {
			notes = append(notes, fmt.Sprintf("Uses @%s modifier", modifier))
		}
		if mapping.ReadOnly {
			notes = append(notes, "Read only")
		}
		if !mapping.Overwrite {
			notes = append(notes, "Never overwrites")
		}
		*rows = append(*rows, MappingDocRow{
			FieldName:   displayFieldName(mapping.Target),
			TargetField: mapping.Target,
			Table:       table,
			Expression:  expression,
			Notes:       strings.Join(notes, " | "),
		})
	}
}

// displayFieldName derives a readable name from a remote field.
// e.g. "Lead_id__c" -> "lead id"
func displayFieldName(target string) string {
	name := strings.TrimSuffix(target, "__c")
	return strcase.ToDelimited(name, ' ')
}

// splitExpression separates the source path from its modifier pipeline.
// e.g. "user.country|@countryName" -> ("user.country", ["countryName"])
func splitExpression(source string) (string, []string) {
	parts := strings.Split(source, "|")
	var modifiers []string
	for _, part := range parts[1:] {
		if strings.HasPrefix(part, "@") {
			name := strings.TrimPrefix(part, "@")
			if i := strings.Index(name, ":"); i >= 0 {
				name = name[:i]
			}
			modifiers = append(modifiers, name)
		}
	}
	return parts[0], modifiers
}

// FormatCSV formats the mapping documentation as CSV.
func (d MappingDocumentation) FormatCSV() (string, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{fmt.Sprintf("# Object: %s", d.Object)}); err != nil {
		return "", err
	}
	headers := []string{"Field Name", "Target Field", "Mapping Table", "Source Expression", "Notes"}
	if err := writer.Write(headers); err != nil {
		return "", err
	}

	for _, row := range d.Rows {
		record := []string{row.FieldName, row.TargetField, row.Table, row.Expression, row.Notes}
		if err := writer.Write(record); err != nil {
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}

	return buf.String(), nil
}
