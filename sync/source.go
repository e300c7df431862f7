package sync

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Source wraps a parsed JSON document for path-based lookups.
type Source struct {
	data gjson.Result
}

// ParseSource parses the given JSON into a Source.
func ParseSource(data []byte) Source {
	return Source{data: gjson.ParseBytes(data)}
}

func (s Source) StringForPath(path string) (string, bool) {
	result := s.data.Get(path)
	return result.String(), result.Exists() && (result.Value() != nil)
}

func (s Source) IntForPath(path string) (int64, bool) {
	result := s.data.Get(path)
	return result.Int(), result.Exists() && (result.Value() != nil)
}

func (s Source) BoolForPath(path string) (bool, bool) {
	result := s.data.Get(path)
	return result.Bool(), result.Exists() && (result.Value() != nil)
}

func (s Source) ValueForPath(path string) (interface{}, bool) {
	result := s.data.Get(path)
	return result.Value(), result.Exists() && (result.Value() != nil)
}

// CombinedContext builds the evaluation context for event-property
// mappings: the event's own fields at the top level with the user and
// account attribute maps nested under "user" and "account".
func CombinedContext(event UserEvent, user, account map[string]interface{}) ([]byte, error) {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event %q %w", event.Event, err)
	}
	combined := make(map[string]interface{})
	if err := json.Unmarshal(eventJSON, &combined); err != nil {
		return nil, fmt.Errorf("failed to build combined context for event %q %w", event.Event, err)
	}
	combined["user"] = user
	combined["account"] = account
	result, err := json.Marshal(combined)
	if err != nil {
		return nil, fmt.Errorf("failed to encode combined context for event %q %w", event.Event, err)
	}
	return result, nil
}

// ReferenceContext builds the evaluation context for reference mappings:
// the user's attributes at the top level with the account nested under
// "account", so only account-prefixed paths reach the account sub-object.
func ReferenceContext(user, account map[string]interface{}) ([]byte, error) {
	combined := make(map[string]interface{}, len(user)+1)
	for k, v := range user {
		combined[k] = v
	}
	combined["account"] = account
	result, err := json.Marshal(combined)
	if err != nil {
		return nil, fmt.Errorf("failed to encode reference context %w", err)
	}
	return result, nil
}
