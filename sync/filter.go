package sync

import (
	"encoding/json"
	"slices"
	"strings"
)

// accountPrefix marks mapping sources that resolve against the account
// sub-object rather than the user's own attributes.
const accountPrefix = "account."

// FilterUtil decides per-envelope eligibility. Filters preserve order and
// length; rejected envelopes are marked with ResultSkip and a note, never
// removed, so the caller controls when skips are logged and dropped.
type FilterUtil struct {
	*SyncContext
}

// FilterSegments skips envelopes whose subject is not a member of any
// synchronized segment. Batch operations bypass segment eligibility
// entirely: a bulk resync must not be gated by current membership, which
// may have changed since the batch was queued.
func (f FilterUtil) FilterSegments(envelopes []*Envelope, isBatch bool) []*Envelope {
	if isBatch {
		return envelopes
	}
	for _, envelope := range envelopes {
		var whitelist []string
		var segments []Segment
		if envelope.ObjectKind == ObjectKindUser {
			whitelist = f.Settings.SynchronizedSegments
			segments = envelope.Message.Segments
		} else {
			segments = envelope.Message.AccountSegments
		}
		if !isInAnySegment(segments, whitelist) {
			envelope.Skip(SkipNotInAnySegment(envelope.ObjectKind))
		}
	}
	return envelopes
}

// FilterMandatoryData skips user envelopes that carry neither a
// whitelisted event nor a changed reference attribute. Envelopes whose
// only qualifying data is a reference change are tagged
// OperationUpsertRefs; they carry no event payload yet and are enriched
// with historical events before mapping.
func (f FilterUtil) FilterMandatoryData(envelopes []*Envelope) []*Envelope {
	for _, envelope := range envelopes {
		hasChangedRef := f.hasReferenceChanged(envelope.Message)

		if len(envelope.Message.Events) == 0 && !hasChangedRef {
			envelope.Skip(SkipNoWhitelistedEvent)
			continue
		}

		matchingEvents := 0
		for _, e := range envelope.Message.Events {
			if slices.Contains(f.Settings.Events, e.Event) {
				matchingEvents++
			}
		}

		if matchingEvents == 0 && !hasChangedRef {
			envelope.Skip(SkipNoWhitelistedEvent)
			continue
		}
		if hasChangedRef {
			envelope.Operation = OperationUpsertRefs
		}
	}
	return envelopes
}

// hasReferenceChanged reports whether any configured outgoing reference
// mapping's source resolved to a non-null value in the message's change
// delta. Account-prefixed sources are looked up in the account delta with
// the prefix stripped, everything else in the user delta.
func (f FilterUtil) hasReferenceChanged(message *MessageUserUpdate) bool {
	if message.Changes == nil || len(f.Settings.ReferencesOutgoing) == 0 {
		return false
	}
	userChangesJSON, err := json.Marshal(message.Changes.User)
	if err != nil {
		return false
	}
	accountChangesJSON, err := json.Marshal(message.Changes.Account)
	if err != nil {
		return false
	}
	userChanges := ParseSource(userChangesJSON)
	accountChanges := ParseSource(accountChangesJSON)
	for _, mapping := range f.Settings.ReferencesOutgoing {
		if mapping.Source == "" {
			continue
		}
		var exists bool
		if strings.HasPrefix(mapping.Source, accountPrefix) {
			_, exists = accountChanges.ValueForPath(strings.TrimPrefix(mapping.Source, accountPrefix))
		} else {
			_, exists = userChanges.ValueForPath(mapping.Source)
		}
		if exists {
			return true
		}
	}
	return false
}

func isInAnySegment(actual []Segment, whitelisted []string) bool {
	for _, segment := range actual {
		if slices.Contains(whitelisted, segment.ID) {
			return true
		}
	}
	return false
}
