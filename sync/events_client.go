package sync

import (
	"context"
	"log"

	"github.com/carlmjohnson/requests"
)

// eventsPageSize is the fixed page size for event-history fetches.
const eventsPageSize = 100

// EventHistoryAPI is the collaborator contract for historical-event
// enrichment.
type EventHistoryAPI interface {
	FetchAllMatchingEvents(userID string, ctx context.Context) []UserEvent
}

// EventsClient pages through the platform's event-history API.
type EventsClient struct {
	*SyncContext
}

type eventsQuery struct {
	Page       int               `json:"page"`
	PerPage    int               `json:"per_page"`
	Sort       map[string]string `json:"sort"`
	EntityIDs  []string          `json:"entity_ids"`
	EventNames []string          `json:"event_names"`
}

type eventsPage struct {
	Data       []UserEvent `json:"data"`
	Pagination struct {
		Total   int `json:"total"`
		Page    int `json:"page"`
		PerPage int `json:"per_page"`
	} `json:"pagination"`
}

// PlatformAPIBuilder returns a new requests.Builder configured for the
// platform API.
func (c EventsClient) PlatformAPIBuilder() *requests.Builder {
	result := requests.
		URL(c.Settings.API.Endpoints.Platform).
		Client(newAPIClient())
	if c.RecordRequests {
		result = result.Transport(requests.Record(nil, "testdata/.requests/platform"))
	}
	return result
}

// FetchAllMatchingEvents accumulates the user's whitelisted events in
// ascending occurrence order, paging until the reported total is
// exhausted. Any fetch error yields an empty history: a subject that
// cannot be enriched is treated as having no matching events, never as a
// fatal condition.
func (c EventsClient) FetchAllMatchingEvents(userID string, ctx context.Context) []UserEvent {
	var events []UserEvent
	page := 0
	total := eventsPageSize
	for page*eventsPageSize < total {
		var result eventsPage
		err := c.PlatformAPIBuilder().
			Path("/api/v1/entities-data/user/events").
			Header("X-App-Id", c.Settings.API.IDs.App).
			Header("X-Access-Token", c.Settings.API.Keys.Platform).
			BodyJSON(&eventsQuery{
				Page:       page,
				PerPage:    eventsPageSize,
				Sort:       map[string]string{"created_at": "asc"},
				EntityIDs:  []string{userID},
				EventNames: c.Settings.Events,
			}).
			ToJSON(&result).
			Fetch(ctx)
		if err != nil {
			log.Printf("Platform API error fetching events for user %s (correlation %s): %v", userID, c.CorrelationKey, err)
			return nil
		}
		total = result.Pagination.Total
		events = append(events, result.Data...)
		page++
	}
	return events
}
