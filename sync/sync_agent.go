package sync

import (
	"context"
	"fmt"
	"log"
)

// SyncAgent sequences the outgoing pipeline: envelope building, segment
// and mandatory-data filtering, historical-event enrichment, mapping and
// reconciliation, with per-record outcome logging along the way.
type SyncAgent struct {
	*SyncContext
	Filter     FilterUtil
	Mapper     RecordMapper
	Events     EventHistoryAPI
	Reconciler Reconciler
	Outcomes   OutcomeSink
}

// NewSyncAgent wires an agent against the real collaborator APIs. Tests
// swap Events, Reconciler.Service and the outcome sink for fakes.
func NewSyncAgent(settings AppSettings, recordRequests bool) *SyncAgent {
	syncContext := NewSyncContext(settings, recordRequests)
	outcomes := LogOutcomeSink{CorrelationKey: syncContext.CorrelationKey}
	return &SyncAgent{
		SyncContext: syncContext,
		Filter:      FilterUtil{SyncContext: syncContext},
		Mapper:      RecordMapper{SyncContext: syncContext},
		Events:      EventsClient{SyncContext: syncContext},
		Reconciler: Reconciler{
			SyncContext: syncContext,
			Service:     ServiceClient{SyncContext: syncContext},
			Outcomes:    outcomes,
		},
		Outcomes: outcomes,
	}
}

// SendUserMessages processes one batch of user update notifications
// top-to-bottom. Only mapping faults produce an error return; eligibility
// skips, enrichment failures and remote write failures are absorbed and
// reported through the outcome sink.
func (a *SyncAgent) SendUserMessages(messages []MessageUserUpdate, isBatch bool, ctx context.Context) error {
	if a.Settings.DisableSync {
		log.Printf("sync disabled, dropping %d user messages (correlation %s)", len(messages), a.CorrelationKey)
		return nil
	}
	if isBatch {
		return a.sendBatch(messages, ctx)
	}
	return a.sendNonBatch(messages, ctx)
}

// sendNonBatch is the live lane. Live updates usually carry the triggering
// event inline, so the plain set skips the history fetch; reference-only
// changes still need it because the mapper requires at least one event to
// build a candidate.
func (a *SyncAgent) sendNonBatch(messages []MessageUserUpdate, ctx context.Context) error {
	log.Printf("processing %d user messages (correlation %s)", len(messages), a.CorrelationKey)

	envelopes, err := BuildEnvelopes(ChannelUserUpdate, messages)
	if err != nil {
		return err
	}
	envelopes = a.Filter.FilterSegments(envelopes, false)
	envelopes = a.logAndDropSkips(envelopes)
	if len(envelopes) == 0 {
		return nil
	}
	envelopes = a.Filter.FilterMandatoryData(envelopes)
	envelopes = a.logAndDropSkips(envelopes)
	if len(envelopes) == 0 {
		return nil
	}

	var plain, refsOnly []*Envelope
	for _, envelope := range envelopes {
		if envelope.Operation == OperationUpsertRefs {
			refsOnly = append(refsOnly, envelope)
		} else {
			plain = append(plain, envelope)
		}
	}

	if len(plain) > 0 {
		mapped, err := a.Mapper.MapEnvelopes(plain)
		if err != nil {
			return fmt.Errorf("mapping user messages failed %w", err)
		}
		a.Reconciler.ReconcileAndSend(mapped, ctx)
	}

	if len(refsOnly) > 0 {
		for _, envelope := range refsOnly {
			envelope.Message.Events = a.Events.FetchAllMatchingEvents(envelope.Message.UserID(), ctx)
		}
		refsOnly = a.Filter.FilterMandatoryData(refsOnly)
		refsOnly = a.logAndDropSkips(refsOnly)
		if len(refsOnly) > 0 {
			mapped, err := a.Mapper.MapEnvelopes(refsOnly)
			if err != nil {
				return fmt.Errorf("mapping enriched user messages failed %w", err)
			}
			a.Reconciler.ReconcileAndSend(mapped, ctx)
		}
	}

	log.Printf("processed user messages (correlation %s)", a.CorrelationKey)
	return nil
}

// sendBatch is the bulk resync lane: segment eligibility is bypassed and
// every envelope is enriched with its full matching event history, since
// batch notifications never carry events inline.
func (a *SyncAgent) sendBatch(messages []MessageUserUpdate, ctx context.Context) error {
	log.Printf("processing %d user messages as batch (correlation %s)", len(messages), a.CorrelationKey)

	envelopes, err := BuildEnvelopes(ChannelUserUpdate, messages)
	if err != nil {
		return err
	}
	envelopes = a.Filter.FilterSegments(envelopes, true)
	envelopes = a.logAndDropSkips(envelopes)
	if len(envelopes) == 0 {
		return nil
	}

	for _, envelope := range envelopes {
		envelope.Message.Events = a.Events.FetchAllMatchingEvents(envelope.Message.UserID(), ctx)
	}

	envelopes = a.Filter.FilterMandatoryData(envelopes)
	envelopes = a.logAndDropSkips(envelopes)
	if len(envelopes) == 0 {
		return nil
	}

	mapped, err := a.Mapper.MapEnvelopes(envelopes)
	if err != nil {
		return fmt.Errorf("mapping batch user messages failed %w", err)
	}
	a.Reconciler.ReconcileAndSend(mapped, ctx)

	log.Printf("processed batch user messages (correlation %s)", a.CorrelationKey)
	return nil
}

// logAndDropSkips reports every skipped envelope through the outcome sink
// and returns the remaining ones, preserving order. A skipped envelope
// never reaches the mapper or the reconciler.
func (a *SyncAgent) logAndDropSkips(envelopes []*Envelope) []*Envelope {
	kept := make([]*Envelope, 0, len(envelopes))
	for _, envelope := range envelopes {
		if envelope.Result == ResultSkip {
			a.Outcomes.LogOutcome(SubjectForEnvelope(envelope), ResultSkip, OutcomeDetail{Reasons: envelope.Notes})
			continue
		}
		kept = append(kept, envelope)
	}
	return kept
}
