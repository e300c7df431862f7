package sync

import (
	"encoding/json"
	"log"
)

// SubjectRef identifies the platform object an outcome is attributed to.
type SubjectRef struct {
	Kind       ObjectKind `json:"kind"`
	ID         string     `json:"id,omitempty"`
	Email      string     `json:"email,omitempty"`
	ExternalID string     `json:"external_id,omitempty"`
}

// SubjectForEnvelope builds the attribution reference for an envelope's
// subject.
func SubjectForEnvelope(envelope *Envelope) SubjectRef {
	result := SubjectRef{Kind: envelope.ObjectKind}
	attributes := envelope.Message.User
	if envelope.ObjectKind == ObjectKindAccount {
		attributes = envelope.Message.Account
	}
	if attributes == nil {
		return result
	}
	if v, ok := attributes["id"].(string); ok {
		result.ID = v
	}
	if v, ok := attributes["email"].(string); ok {
		result.Email = v
	}
	if v, ok := attributes["external_id"].(string); ok {
		result.ExternalID = v
	}
	return result
}

// OutcomeDetail carries the context of one terminal outcome: the remote
// record identifier on success, the error detail on failure, the recorded
// reasons on a skip.
type OutcomeDetail struct {
	Operation Operation       `json:"operation,omitempty"`
	RecordID  string          `json:"record_id,omitempty"`
	Record    json.RawMessage `json:"record,omitempty"`
	Errors    []string        `json:"errors,omitempty"`
	Reasons   []string        `json:"reasons,omitempty"`
}

// OutcomeSink receives one call per terminal envelope or record outcome.
type OutcomeSink interface {
	LogOutcome(subject SubjectRef, result Result, detail OutcomeDetail)
}

// LogOutcomeSink writes outcomes to the standard logger.
type LogOutcomeSink struct {
	CorrelationKey string
}

func (s LogOutcomeSink) LogOutcome(subject SubjectRef, result Result, detail OutcomeDetail) {
	subjectJSON, _ := json.Marshal(subject)
	detailJSON, _ := json.Marshal(detail)
	log.Printf("outgoing.%s.%s (correlation %s) subject=%s detail=%s",
		subject.Kind, result, s.CorrelationKey, subjectJSON, detailJSON)
}
