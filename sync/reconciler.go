package sync

import (
	"context"
	"encoding/json"
	"log"

	"github.com/tidwall/sjson"
)

// Reconciler turns mapped candidate records into remote writes without
// creating duplicates: it queries the remote system for records sharing
// the candidates' business keys, partitions candidates into insert and
// update sets and dispatches both as bulk calls, attributing every
// per-record result back to the originating envelope's subject.
type Reconciler struct {
	*SyncContext
	Service  RecordAPI
	Outcomes OutcomeSink
}

// candidateRef ties one candidate record to the envelope it came from so
// outcomes stay attributable regardless of batching.
type candidateRef struct {
	record   json.RawMessage
	envelope *Envelope
	key      string
}

// ReconcileAndSend processes all candidates of the given envelopes against
// the configured remote object type. A query failure aborts reconciliation
// for this object type: nothing is written, the failure is logged, the
// surrounding run continues.
func (r Reconciler) ReconcileAndSend(envelopes []*Envelope, ctx context.Context) {
	objectType := r.Settings.Object

	var candidates []candidateRef
	var keys []string
	for _, envelope := range envelopes {
		for _, record := range envelope.ServiceObjects {
			key, _ := ParseSource(record).StringForPath(r.Settings.ObjectIDField)
			candidates = append(candidates, candidateRef{record: record, envelope: envelope, key: key})
			if key != "" {
				keys = append(keys, key)
			}
		}
	}
	if len(candidates) == 0 {
		return
	}

	existingIDsByKey := make(map[string]string)
	if len(keys) > 0 {
		filter, err := BuildInFilter(r.Settings.ObjectIDField, keys)
		if err != nil {
			log.Printf("aborting reconciliation for %s (correlation %s): %v", objectType, r.CorrelationKey, err)
			return
		}
		existing, err := r.Service.QueryRecords(objectType, filter, ctx)
		if err != nil {
			log.Printf("record query for %s failed, aborting reconciliation (correlation %s): %v", objectType, r.CorrelationKey, err)
			return
		}
		for _, record := range existing {
			source := ParseSource(record)
			key, ok := source.StringForPath(r.Settings.ObjectIDField)
			if !ok || key == "" {
				continue
			}
			existingIDsByKey[key], _ = source.StringForPath(serviceRecordIDField)
		}
	}

	var toInsert, toUpdate []candidateRef
	for _, candidate := range candidates {
		remoteID, exists := existingIDsByKey[candidate.key]
		if candidate.key == "" || !exists {
			toInsert = append(toInsert, candidate)
			continue
		}
		merged, err := sjson.SetBytes(candidate.record, serviceRecordIDField, remoteID)
		if err != nil {
			log.Printf("failed to merge remote id into %s candidate (correlation %s): %v", objectType, r.CorrelationKey, err)
			toInsert = append(toInsert, candidate)
			continue
		}
		candidate.record = merged
		candidate.envelope.Operation = OperationUpdate
		toUpdate = append(toUpdate, candidate)
	}

	if len(toInsert) > 0 {
		r.dispatch(objectType, toInsert, OperationInsert, ctx)
	}
	if len(toUpdate) > 0 {
		r.dispatch(objectType, toUpdate, OperationUpdate, ctx)
	}
}

// dispatch sends one bulk call and emits an outcome per record. When the
// call fails wholesale there is no per-record data, so every envelope in
// the call gets a single error outcome carrying the call-level error.
func (r Reconciler) dispatch(objectType string, batch []candidateRef, operation Operation, ctx context.Context) {
	records := make([]json.RawMessage, 0, len(batch))
	for _, candidate := range batch {
		records = append(records, candidate.record)
	}

	var results []RecordResult
	var err error
	if operation == OperationUpdate {
		results, err = r.Service.UpdateRecords(objectType, records, ctx)
	} else {
		results, err = r.Service.InsertRecords(objectType, records, ctx)
	}
	if err != nil {
		for _, candidate := range batch {
			r.Outcomes.LogOutcome(SubjectForEnvelope(candidate.envelope), ResultError, OutcomeDetail{
				Operation: operation,
				Errors:    []string{err.Error()},
			})
		}
		return
	}

	for i, result := range results {
		if i >= len(batch) {
			break
		}
		candidate := batch[i]
		if result.Success {
			r.Outcomes.LogOutcome(SubjectForEnvelope(candidate.envelope), ResultSuccess, OutcomeDetail{
				Operation: operation,
				RecordID:  result.ID,
				Record:    candidate.record,
			})
		} else {
			r.Outcomes.LogOutcome(SubjectForEnvelope(candidate.envelope), ResultError, OutcomeDetail{
				Operation: operation,
				Errors:    result.Errors,
			})
		}
	}
}
