package sync

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ObjectKind identifies which platform entity an envelope represents.
type ObjectKind string

const (
	ObjectKindUser    ObjectKind = "user"
	ObjectKindAccount ObjectKind = "account"
	ObjectKindEvent   ObjectKind = "event"
)

// Operation is the remote write operation an envelope is destined for.
// Envelopes start out as OperationUnspecified; the mandatory-data filter
// promotes reference-only changes to OperationUpsertRefs, the mapper sets
// OperationInsert and the reconciler refines individual records to
// OperationUpdate when a matching remote record already exists.
type Operation string

const (
	OperationUnspecified Operation = "UNSPECIFIED"
	OperationInsert      Operation = "INSERT"
	OperationUpdate      Operation = "UPDATE"
	OperationUpsertRefs  Operation = "UPSERTREFS"
)

// Result is the terminal outcome of processing an envelope or record.
type Result string

const (
	ResultSuccess Result = "success"
	ResultError   Result = "error"
	ResultSkip    Result = "skip"
)

// Segment is a platform segment the user or account is a member of.
type Segment struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// UserEvent is a single tracked event on a user profile.
type UserEvent struct {
	ID         string                 `json:"id,omitempty"`
	EventID    string                 `json:"event_id,omitempty"`
	Event      string                 `json:"event"`
	CreatedAt  string                 `json:"created_at"`
	EventType  string                 `json:"event_type,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// Changes is the change-delta view of an update notification. Each map
// entry holds the attribute's [old, new] value pair as sent by the platform.
type Changes struct {
	User     map[string]interface{} `json:"user,omitempty"`
	Account  map[string]interface{} `json:"account,omitempty"`
	IsNew    bool                   `json:"is_new,omitempty"`
	Segments map[string]interface{} `json:"segments,omitempty"`
}

// MessageUserUpdate is an inbound user update notification from the platform
// event bus. User and account attributes are kept as raw maps since their
// schema is tenant-defined.
type MessageUserUpdate struct {
	MessageID       string                 `json:"message_id"`
	User            map[string]interface{} `json:"user"`
	Account         map[string]interface{} `json:"account,omitempty"`
	Segments        []Segment              `json:"segments"`
	AccountSegments []Segment              `json:"account_segments,omitempty"`
	Changes         *Changes               `json:"changes,omitempty"`
	Events          []UserEvent            `json:"events"`
}

// UserID returns the platform identifier of the user the message belongs to.
func (m *MessageUserUpdate) UserID() string {
	if m == nil || m.User == nil {
		return ""
	}
	if id, ok := m.User["id"].(string); ok {
		return id
	}
	return ""
}

// Envelope wraps one inbound notification as it moves through the outgoing
// pipeline, carrying provenance and the sync outcome alongside the message.
type Envelope struct {
	Message        *MessageUserUpdate
	ObjectKind     ObjectKind
	ServiceObjects []json.RawMessage
	Operation      Operation
	Result         Result
	Notes          []string
}

// Skip marks the envelope as excluded from further processing, recording
// the reason. Notes are only ever appended to, never replaced.
func (e *Envelope) Skip(note string) {
	e.Result = ResultSkip
	e.Notes = append(e.Notes, note)
}

// Channel identifies the notification lane messages arrive on.
type Channel string

const ChannelUserUpdate Channel = "user:update"

var envelopeBuilders = map[Channel]func(messages []MessageUserUpdate) []*Envelope{
	ChannelUserUpdate: buildUserUpdateEnvelopes,
}

// BuildEnvelopes wraps each message of the given channel in a tracking
// envelope. Unregistered channels are a configuration error and the
// returned message names the channel along with the allowed set.
func BuildEnvelopes(channel Channel, messages []MessageUserUpdate) ([]*Envelope, error) {
	builder, ok := envelopeBuilders[channel]
	if !ok {
		return nil, fmt.Errorf("channel %q is not registered, allowed channels are %s",
			channel, strings.Join(registeredChannels(), ", "))
	}
	return builder(messages), nil
}

func buildUserUpdateEnvelopes(messages []MessageUserUpdate) []*Envelope {
	result := make([]*Envelope, 0, len(messages))
	for i := range messages {
		result = append(result, &Envelope{
			Message:    &messages[i],
			ObjectKind: ObjectKindUser,
			Operation:  OperationUnspecified,
		})
	}
	return result
}

func registeredChannels() []string {
	var result []string
	for c := range envelopeBuilders {
		result = append(result, string(c))
	}
	sort.Strings(result)
	return result
}
