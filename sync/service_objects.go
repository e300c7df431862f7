package sync

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/sjson"
)

// serviceRecordIDField is the identifier field on remote records. Updates
// must carry it; the reconciler merges it into candidates matched against
// existing records.
const serviceRecordIDField = "Id"

// ServiceError is the error body returned by the remote record API.
type ServiceError struct {
	RequestID string `json:"request_id"`
	Code      int    `json:"code"`
	Message   string `json:"error"`
}

// Err returns the error as a Go error, or nil when no error is present.
func (e ServiceError) Err() error {
	if e.Code != 0 {
		return fmt.Errorf("%d: %s", e.Code, e.Message)
	}
	return nil
}

// QueryRecordsRequest asks the remote system for records matching a filter
// document (e.g. {"HandledEvent__c": {"$in": [...]}}).
type QueryRecordsRequest struct {
	Filter json.RawMessage `json:"filter"`
}

// QueryRecordsResponse is the remote system's answer to a record query.
type QueryRecordsResponse struct {
	Records []json.RawMessage `json:"records"`
	Error   ServiceError
}

// ModifyRecordsRequest carries records for a bulk insert or update. The
// remote system treats each call as all-or-nothing but may still report
// per-record failures inside an accepted batch.
type ModifyRecordsRequest struct {
	Records   []json.RawMessage `json:"records"`
	AllOrNone bool              `json:"all_or_none"`
}

// Validate checks that the request has at least one record.
func (r ModifyRecordsRequest) Validate() error {
	if len(r.Records) == 0 {
		return fmt.Errorf("no records to send")
	}
	return nil
}

// RecordResult is the remote system's per-record write outcome.
type RecordResult struct {
	Success bool     `json:"success"`
	ID      string   `json:"id,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// ModifyRecordsResponse is the remote system's answer to a bulk write.
type ModifyRecordsResponse struct {
	Results []RecordResult `json:"results"`
	Error   ServiceError
}

// BuildInFilter builds a {"field": {"$in": values}} query document. The
// field may be a dotted path into nested record structure.
func BuildInFilter(field string, values []string) ([]byte, error) {
	result, err := sjson.SetBytes([]byte(`{}`), field, map[string]interface{}{"$in": values})
	if err != nil {
		return nil, fmt.Errorf("failed to build query filter for field %q %w", field, err)
	}
	return result, nil
}
