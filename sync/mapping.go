package sync

import (
	"fmt"
	"strings"

	"github.com/tidwall/sjson"
)

// MappingEngine evaluates attribute mapping tables against a JSON context.
// Source expressions are gjson paths, optionally piped through modifiers
// (e.g. "user.country|@countryName"); values enclosed in backticks are
// static literals. Resolved null or missing values never produce a target
// field, so partial records carry no null placeholders.
type MappingEngine struct{}

// Apply evaluates each mapping against context and writes the resolved
// values into record, returning the updated record. Expression errors are
// fatal for the enclosing sync run since they indicate a misconfigured
// mapping that would corrupt every record.
func (e MappingEngine) Apply(mappings []AttributeMapping, context []byte, record []byte) ([]byte, error) {
	var err error
	for _, mapping := range mappings {
		if mapping.Source == "" || mapping.Target == "" {
			continue
		}
		value, exists, resolveErr := e.Resolve(mapping.Source, context)
		if resolveErr != nil {
			return nil, resolveErr
		}
		if !exists {
			continue
		}
		record, err = sjson.SetBytes(record, mapping.Target, value)
		if err != nil {
			return nil, fmt.Errorf("failed to set field %q %w", mapping.Target, err)
		}
	}
	return record, nil
}

// Resolve evaluates a single source expression against context. The second
// return value reports whether a non-null value was found.
func (e MappingEngine) Resolve(expression string, context []byte) (interface{}, bool, error) {
	// backtick-quoted expressions are static values, not paths
	if len(expression) >= 2 && expression[0] == '`' && expression[len(expression)-1] == '`' {
		return expression[1 : len(expression)-1], true, nil
	}
	if err := ValidateExpression(expression); err != nil {
		return nil, false, err
	}
	value, exists := ParseSource(context).ValueForPath(expression)
	return value, exists, nil
}

// ValidateExpression rejects empty expressions and unknown modifiers.
func ValidateExpression(expression string) error {
	if strings.TrimSpace(expression) == "" {
		return fmt.Errorf("mapping expression is empty")
	}
	for _, part := range strings.Split(expression, "|") {
		if !strings.HasPrefix(part, "@") {
			continue
		}
		name := strings.TrimPrefix(part, "@")
		if i := strings.Index(name, ":"); i >= 0 {
			name = name[:i]
		}
		if !knownModifiers[name] {
			return fmt.Errorf("unknown modifier %q in mapping expression %q", name, expression)
		}
	}
	return nil
}
