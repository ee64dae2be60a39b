package search

import (
	"encoding/json"
	"maps"
	"strings"
	"time"
)

// SearchMode selects how the backend bounds a search.
type SearchMode string

// SearchModeMaxN returns at most maxMsgsToQuery matches.
const SearchModeMaxN SearchMode = "MaxN"

// Query defaults.
const (
	DefaultMaxMessages  = 100
	DefaultQueryTimeout = 60
	DefaultSearchMode   = SearchModeMaxN
)

// DateCriteria bounds a search either by an absolute window or by a relative
// interval ending now. Unset members are omitted, so the zero value encodes
// as an empty object.
type DateCriteria struct {
	DateMin           string `json:"dateMin,omitempty"`
	DateMax           string `json:"dateMax,omitempty"`
	LastIntervalValue int    `json:"lastIntervalValue,omitempty"`
	LastIntervalUnit  string `json:"lastIntervalUnit,omitempty"`
}

// Query is the search-task request body.
type Query struct {
	MaxMsgsToQuery    int            `json:"maxMsgsToQuery"`
	QueryTimeout      int            `json:"queryTimeout"`
	SearchMode        SearchMode     `json:"searchMode"`
	DateCriteria      DateCriteria   `json:"dateCriteria"`
	QueryLogSources   []int          `json:"queryLogSources"`
	LogSourceIDs      []int          `json:"logSourceIds"`
	QueryFilter       map[string]any `json:"queryFilter"`
	QueryEventManager bool           `json:"queryEventManager"`
}

// QueryOption customizes a Query built by NewQuery.
type QueryOption func(*Query)

// NewQuery returns a fully populated Query. Options that receive a
// non-positive or blank value leave the default in place.
func NewQuery(opts ...QueryOption) Query {
	q := Query{
		MaxMsgsToQuery:    DefaultMaxMessages,
		QueryTimeout:      DefaultQueryTimeout,
		SearchMode:        DefaultSearchMode,
		QueryLogSources:   []int{},
		LogSourceIDs:      []int{},
		QueryFilter:       map[string]any{},
		QueryEventManager: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&q)
		}
	}
	return q
}

// WithMaxMessages caps the number of returned records.
func WithMaxMessages(n int) QueryOption {
	return func(q *Query) {
		if n > 0 {
			q.MaxMsgsToQuery = n
		}
	}
}

// WithQueryTimeout sets the backend-side query timeout in seconds.
func WithQueryTimeout(seconds int) QueryOption {
	return func(q *Query) {
		if seconds > 0 {
			q.QueryTimeout = seconds
		}
	}
}

// WithSearchMode overrides the search mode.
func WithSearchMode(mode SearchMode) QueryOption {
	return func(q *Query) {
		if trimmed := SearchMode(strings.TrimSpace(string(mode))); trimmed != "" {
			q.SearchMode = trimmed
		}
	}
}

// WithDateRange sets an absolute window. Zero times leave that bound unset.
func WithDateRange(from, to time.Time) QueryOption {
	return func(q *Query) {
		if !from.IsZero() {
			q.DateCriteria.DateMin = from.UTC().Format(time.RFC3339)
		}
		if !to.IsZero() {
			q.DateCriteria.DateMax = to.UTC().Format(time.RFC3339)
		}
	}
}

// WithLastInterval sets a relative window handled by the backend.
func WithLastInterval(value int, unit string) QueryOption {
	return func(q *Query) {
		unit = strings.TrimSpace(unit)
		if value > 0 && unit != "" {
			q.DateCriteria.LastIntervalValue = value
			q.DateCriteria.LastIntervalUnit = unit
		}
	}
}

// WithLogSources restricts the search to log-source groups.
func WithLogSources(ids ...int) QueryOption {
	return func(q *Query) {
		q.QueryLogSources = append([]int{}, ids...)
	}
}

// WithLogSourceIDs restricts the search to concrete log sources.
func WithLogSourceIDs(ids ...int) QueryOption {
	return func(q *Query) {
		q.LogSourceIDs = append([]int{}, ids...)
	}
}

// WithFilter sets the predicate tree passed through to the backend.
func WithFilter(filter map[string]any) QueryOption {
	return func(q *Query) {
		if filter == nil {
			q.QueryFilter = map[string]any{}
			return
		}
		q.QueryFilter = maps.Clone(filter)
	}
}

// WithEventManager selects whether the event-manager tier is queried.
func WithEventManager(enabled bool) QueryOption {
	return func(q *Query) {
		q.QueryEventManager = enabled
	}
}

// MarshalJSON encodes the query with every collection present, even when the
// value was not produced by NewQuery.
func (q Query) MarshalJSON() ([]byte, error) {
	type wire Query
	out := wire(q)
	if out.QueryLogSources == nil {
		out.QueryLogSources = []int{}
	}
	if out.LogSourceIDs == nil {
		out.LogSourceIDs = []int{}
	}
	if out.QueryFilter == nil {
		out.QueryFilter = map[string]any{}
	}
	return json.Marshal(out)
}
