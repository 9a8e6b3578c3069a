package analytics

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/searcher/filter"
)

type EventType string

const (
	EventSearch       EventType = "search"
	EventZeroResult   EventType = "zero_result"
	EventDocumentView EventType = "document_view"
)

// SearchEvent describes one executed search. A zero-result search is one
// that returned nothing after filtering (Returned == 0); those are the main
// KB curation signal.
type SearchEvent struct {
	Type        EventType       `json:"type"`
	Query       string          `json:"query"`
	ExactPhrase bool            `json:"exact_phrase"`
	Filters     filter.Criteria `json:"filters"`
	Terms       []string        `json:"terms"`
	TotalHits   int             `json:"total_hits"`
	Returned    int             `json:"returned"`
	LatencyMs   int64           `json:"latency_ms"`
	CacheHit    bool            `json:"cache_hit"`
	KBVersion   string          `json:"kb_version"`
	Timestamp   time.Time       `json:"timestamp"`
	RequestID   string          `json:"request_id"`
}

// DocumentViewEvent records a document opened from the results.
type DocumentViewEvent struct {
	Type       EventType `json:"type"`
	DocumentID string    `json:"document_id"`
	Expired    bool      `json:"expired"`
	KBVersion  string    `json:"kb_version"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
}

// DecodeEvent reads the type discriminator and decodes value into a
// SearchEvent or DocumentViewEvent.
func DecodeEvent(value []byte) (any, error) {
	var head struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(value, &head); err != nil {
		return nil, fmt.Errorf("decoding analytics event: %w", err)
	}
	switch head.Type {
	case EventSearch, EventZeroResult:
		var e SearchEvent
		if err := json.Unmarshal(value, &e); err != nil {
			return nil, fmt.Errorf("decoding search event: %w", err)
		}
		return e, nil
	case EventDocumentView:
		var e DocumentViewEvent
		if err := json.Unmarshal(value, &e); err != nil {
			return nil, fmt.Errorf("decoding document view event: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown analytics event type %q", head.Type)
	}
}
