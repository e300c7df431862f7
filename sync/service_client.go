package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/carlmjohnson/requests"
)

// RecordAPI is the remote record collaborator contract the reconciler
// depends on.
type RecordAPI interface {
	QueryRecords(objectType string, filter []byte, ctx context.Context) ([]json.RawMessage, error)
	InsertRecords(objectType string, records []json.RawMessage, ctx context.Context) ([]RecordResult, error)
	UpdateRecords(objectType string, records []json.RawMessage, ctx context.Context) ([]RecordResult, error)
}

// ServiceClient talks to the remote record API. Authentication beyond the
// API key, token refresh and transport retries are handled upstream.
type ServiceClient struct {
	*SyncContext
}

// ServiceAPIBuilder returns a new requests.Builder configured for the
// remote record API.
func (c ServiceClient) ServiceAPIBuilder() *requests.Builder {
	result := requests.
		URL(c.Settings.API.Endpoints.Service).
		Client(newAPIClient())
	if c.RecordRequests {
		result = result.Transport(requests.Record(nil, "testdata/.requests/service"))
	}
	return result
}

// QueryRecords returns the existing remote records matching the filter
// document for the given object type.
func (c ServiceClient) QueryRecords(objectType string, filter []byte, ctx context.Context) ([]json.RawMessage, error) {
	var response QueryRecordsResponse

	err := c.ServiceAPIBuilder().
		Pathf("/v1/objects/%s/query", objectType).
		Header("X-Api-Key", c.Settings.API.Keys.Service).
		BodyJSON(&QueryRecordsRequest{Filter: filter}).
		ToJSON(&response).
		ErrorJSON(&response.Error).
		Fetch(ctx)
	if err != nil {
		log.Printf("Service API error querying %s records (correlation %s): %+v", objectType, c.CorrelationKey, response.Error)
		return nil, err
	}
	if apiErr := response.Error.Err(); apiErr != nil {
		return nil, apiErr
	}
	return response.Records, nil
}

// InsertRecords creates the given records in one all-or-nothing call and
// returns the per-record results.
func (c ServiceClient) InsertRecords(objectType string, records []json.RawMessage, ctx context.Context) ([]RecordResult, error) {
	return c.modifyRecords(objectType, "insert", records, ctx)
}

// UpdateRecords updates the given records in one all-or-nothing call and
// returns the per-record results. Each record must carry the remote
// identifier field.
func (c ServiceClient) UpdateRecords(objectType string, records []json.RawMessage, ctx context.Context) ([]RecordResult, error) {
	return c.modifyRecords(objectType, "update", records, ctx)
}

func (c ServiceClient) modifyRecords(objectType string, operation string, records []json.RawMessage, ctx context.Context) ([]RecordResult, error) {
	request := ModifyRecordsRequest{Records: records, AllOrNone: true}
	if err := request.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s request for %s %w", operation, objectType, err)
	}

	var response ModifyRecordsResponse
	err := c.ServiceAPIBuilder().
		Pathf("/v1/objects/%s/%s", objectType, operation).
		Header("X-Api-Key", c.Settings.API.Keys.Service).
		BodyJSON(&request).
		ToJSON(&response).
		ErrorJSON(&response.Error).
		Fetch(ctx)
	if err != nil {
		log.Printf("Service API error on %s %s (correlation %s): %+v", objectType, operation, c.CorrelationKey, response.Error)
		return nil, err
	}
	if apiErr := response.Error.Err(); apiErr != nil && len(response.Results) == 0 {
		return nil, apiErr
	}
	return response.Results, nil
}
