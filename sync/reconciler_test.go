package sync

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/tidwall/gjson"
)

type fakeRecordAPI struct {
	queryRecords  []json.RawMessage
	queryErr      error
	insertResults []RecordResult
	insertErr     error
	updateResults []RecordResult
	updateErr     error

	queries  [][]byte
	inserted [][]json.RawMessage
	updated  [][]json.RawMessage
}

func (f *fakeRecordAPI) QueryRecords(objectType string, filter []byte, ctx context.Context) ([]json.RawMessage, error) {
	f.queries = append(f.queries, filter)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.queryRecords, nil
}

func (f *fakeRecordAPI) InsertRecords(objectType string, records []json.RawMessage, ctx context.Context) ([]RecordResult, error) {
	f.inserted = append(f.inserted, records)
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	return f.insertResults, nil
}

func (f *fakeRecordAPI) UpdateRecords(objectType string, records []json.RawMessage, ctx context.Context) ([]RecordResult, error) {
	f.updated = append(f.updated, records)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.updateResults, nil
}

type outcomeCall struct {
	Subject SubjectRef
	Result  Result
	Detail  OutcomeDetail
}

type memoryOutcomeSink struct {
	calls []outcomeCall
}

func (s *memoryOutcomeSink) LogOutcome(subject SubjectRef, result Result, detail OutcomeDetail) {
	s.calls = append(s.calls, outcomeCall{Subject: subject, Result: result, Detail: detail})
}

func mappedEnvelope(userID string, records ...string) *Envelope {
	envelope := userEnvelope(userID, "segment-1")
	envelope.Operation = OperationInsert
	for _, r := range records {
		envelope.ServiceObjects = append(envelope.ServiceObjects, json.RawMessage(r))
	}
	return envelope
}

func testReconciler(api *fakeRecordAPI, sink *memoryOutcomeSink) Reconciler {
	return Reconciler{
		SyncContext: NewSyncContext(testAppSettings, false),
		Service:     api,
		Outcomes:    sink,
	}
}

func TestReconcile_PartitionsByBusinessKey(t *testing.T) {
	api := &fakeRecordAPI{
		queryRecords: []json.RawMessage{
			json.RawMessage(`{"Id":"rec-2","EventId__c":"e2"}`),
		},
		insertResults: []RecordResult{
			{Success: true, ID: "new-1"},
			{Success: true, ID: "new-3"},
		},
		updateResults: []RecordResult{
			{Success: true, ID: "rec-2"},
		},
	}
	sink := &memoryOutcomeSink{}
	envelopes := []*Envelope{
		mappedEnvelope("u1", `{"EventId__c":"e1"}`, `{"EventId__c":"e2"}`),
		mappedEnvelope("u2", `{"EventId__c":"e3"}`),
	}

	testReconciler(api, sink).ReconcileAndSend(envelopes, context.Background())

	if len(api.queries) != 1 {
		t.Fatalf("Expected a single batched query but have: %d", len(api.queries))
	}
	keys := gjson.GetBytes(api.queries[0], "EventId__c.$in").Array()
	if len(keys) != 3 {
		t.Errorf("Expected all 3 business keys in the query but have: %s", api.queries[0])
	}
	if len(api.inserted) != 1 || len(api.inserted[0]) != 2 {
		t.Fatalf("Expected one insert call with 2 records but have: %+v", api.inserted)
	}
	if len(api.updated) != 1 || len(api.updated[0]) != 1 {
		t.Fatalf("Expected one update call with 1 record but have: %+v", api.updated)
	}
	updateRecord := api.updated[0][0]
	if have := gjson.GetBytes(updateRecord, "Id").String(); have != "rec-2" {
		t.Errorf("Expected the remote identifier merged into the update candidate but have: %s", updateRecord)
	}
	if len(sink.calls) != 3 {
		t.Fatalf("Expected 3 outcomes but have: %d", len(sink.calls))
	}
	for _, call := range sink.calls {
		if call.Result != ResultSuccess {
			t.Errorf("Expected success outcomes but have: %+v", call)
		}
	}
}

func TestReconcile_NoMatchesRoutesEverythingToInsert(t *testing.T) {
	api := &fakeRecordAPI{
		insertResults: []RecordResult{{Success: true, ID: "new-1"}},
	}
	sink := &memoryOutcomeSink{}
	envelopes := []*Envelope{mappedEnvelope("u1", `{"EventId__c":"e1"}`)}

	testReconciler(api, sink).ReconcileAndSend(envelopes, context.Background())

	if len(api.inserted) != 1 {
		t.Fatal("Expected an insert call when the query returns no matches")
	}
	if len(api.updated) != 0 {
		t.Error("Expected no update call when the query returns no matches")
	}
}

func TestReconcile_QueryFailureAborts(t *testing.T) {
	api := &fakeRecordAPI{queryErr: context.DeadlineExceeded}
	sink := &memoryOutcomeSink{}
	envelopes := []*Envelope{mappedEnvelope("u1", `{"EventId__c":"e1"}`)}

	testReconciler(api, sink).ReconcileAndSend(envelopes, context.Background())

	if len(api.inserted) != 0 || len(api.updated) != 0 {
		t.Error("Expected no writes after a query failure")
	}
	if len(sink.calls) != 0 {
		t.Errorf("Expected no outcomes after a query failure but have: %+v", sink.calls)
	}
}

func TestReconcile_PerRecordFailureOutcomes(t *testing.T) {
	api := &fakeRecordAPI{
		insertResults: []RecordResult{
			{Success: true, ID: "new-1"},
			{Success: false, Errors: []string{"REQUIRED_FIELD_MISSING"}},
		},
	}
	sink := &memoryOutcomeSink{}
	envelopes := []*Envelope{
		mappedEnvelope("u1", `{"EventId__c":"e1"}`),
		mappedEnvelope("u2", `{"EventId__c":"e2"}`),
	}

	testReconciler(api, sink).ReconcileAndSend(envelopes, context.Background())

	if len(sink.calls) != 2 {
		t.Fatalf("Expected 2 outcomes but have: %d", len(sink.calls))
	}
	if sink.calls[0].Result != ResultSuccess || sink.calls[0].Subject.ID != "u1" {
		t.Errorf("Expected a success outcome for u1 but have: %+v", sink.calls[0])
	}
	if sink.calls[0].Detail.RecordID != "new-1" {
		t.Errorf("Expected the remote record id on success but have: %+v", sink.calls[0].Detail)
	}
	if sink.calls[1].Result != ResultError || sink.calls[1].Subject.ID != "u2" {
		t.Errorf("Expected an error outcome for u2 but have: %+v", sink.calls[1])
	}
	if len(sink.calls[1].Detail.Errors) != 1 || sink.calls[1].Detail.Errors[0] != "REQUIRED_FIELD_MISSING" {
		t.Errorf("Expected the remote error detail but have: %+v", sink.calls[1].Detail)
	}
}

func TestReconcile_CallLevelFailureOutcomes(t *testing.T) {
	api := &fakeRecordAPI{insertErr: context.DeadlineExceeded}
	sink := &memoryOutcomeSink{}
	envelopes := []*Envelope{
		mappedEnvelope("u1", `{"EventId__c":"e1"}`),
		mappedEnvelope("u2", `{"EventId__c":"e2"}`),
	}

	testReconciler(api, sink).ReconcileAndSend(envelopes, context.Background())

	if len(sink.calls) != 2 {
		t.Fatalf("Expected one error outcome per envelope but have: %d", len(sink.calls))
	}
	for _, call := range sink.calls {
		if call.Result != ResultError {
			t.Errorf("Expected error outcomes but have: %+v", call)
		}
		if len(call.Detail.Errors) != 1 {
			t.Errorf("Expected the call-level error detail but have: %+v", call.Detail)
		}
	}
}

func TestReconcile_NoCandidatesIsANoOp(t *testing.T) {
	api := &fakeRecordAPI{}
	sink := &memoryOutcomeSink{}
	envelope := userEnvelope("u1", "segment-1")

	testReconciler(api, sink).ReconcileAndSend([]*Envelope{envelope}, context.Background())

	if len(api.queries) != 0 {
		t.Error("Expected no query without candidate records")
	}
}
