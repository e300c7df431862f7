package sync

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/tidwall/sjson"
)

// RecordMapper turns filtered envelopes into remote record candidates.
type RecordMapper struct {
	*SyncContext
	Engine MappingEngine
}

// MapEnvelopes populates each envelope's service objects and sets the
// operation to OperationInsert; the reconciler refines individual records
// to updates where a matching remote record exists. Mapping faults abort
// the run: a broken expression would otherwise corrupt every record.
func (m RecordMapper) MapEnvelopes(envelopes []*Envelope) ([]*Envelope, error) {
	for _, envelope := range envelopes {
		records, err := m.mapUserUpdate(envelope.Message)
		if err != nil {
			return nil, err
		}
		envelope.ServiceObjects = records
		envelope.Operation = OperationInsert
	}
	return envelopes, nil
}

// mapUserUpdate produces one candidate record per whitelisted event on the
// message. Each candidate carries the business key resolved from the
// event identifier path, the configured reference fields and the
// configured event-property fields. Missing optional values are omitted.
func (m RecordMapper) mapUserUpdate(message *MessageUserUpdate) ([]json.RawMessage, error) {
	referenceContext, err := ReferenceContext(message.User, message.Account)
	if err != nil {
		return nil, err
	}

	var result []json.RawMessage
	for _, event := range message.Events {
		if !slices.Contains(m.Settings.Events, event.Event) {
			continue
		}
		combined, err := CombinedContext(event, message.User, message.Account)
		if err != nil {
			return nil, err
		}

		record := []byte(`{}`)
		if identifier, exists := ParseSource(combined).ValueForPath(m.Settings.EventIDPath); exists {
			record, err = sjson.SetBytes(record, m.Settings.ObjectIDField, identifier)
			if err != nil {
				return nil, fmt.Errorf("failed to set business key %q %w", m.Settings.ObjectIDField, err)
			}
		}

		record, err = m.Engine.Apply(m.Settings.ReferencesOutgoing, referenceContext, record)
		if err != nil {
			return nil, err
		}
		record, err = m.Engine.Apply(m.Settings.EventProperties, combined, record)
		if err != nil {
			return nil, err
		}

		result = append(result, json.RawMessage(record))
	}
	return result, nil
}
