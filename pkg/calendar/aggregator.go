package calendar

import (
	"context"
	"sync"
)

// State is the aggregator's observable fetch state.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateError   State = "error"
)

// Aggregator caches the most recent upcoming-events fetch and indexes it
// by calendar date. It never retries on its own; the UI re-enters
// loading through an explicit Refresh. Safe for a caller to abandon an
// in-flight Refresh: the result is simply the cache the next reader sees.
type Aggregator struct {
	mu      sync.Mutex
	client  *Client
	state   State
	lastErr *Failure
	events  []Event
	byDate  map[string][]Event
}

// NewAggregator returns an idle aggregator over client.
func NewAggregator(client *Client) *Aggregator {
	return &Aggregator{
		client: client,
		state:  StateIdle,
		byDate: make(map[string][]Event),
	}
}

// State returns the current fetch state and, in StateError, the typed
// failure that caused it.
func (a *Aggregator) State() (State, *Failure) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state, a.lastErr
}

// Refresh fetches upcoming events and rebuilds the date index.
// Transitions idle→loading on entry, loading→idle on success and
// loading→error(kind) on failure. The previous cache survives a failed
// refresh so the UI keeps showing the last good data next to the error.
func (a *Aggregator) Refresh(ctx context.Context, maxResults int64) ([]Event, error) {
	a.mu.Lock()
	a.state = StateLoading
	a.lastErr = nil
	a.mu.Unlock()

	events, err := a.client.ListUpcoming(ctx, maxResults)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.state = StateError
		a.lastErr = Classify(err)
		return nil, a.lastErr
	}
	a.state = StateIdle
	a.events = events
	a.byDate = GroupByDate(events, a.client.Location())
	return append([]Event(nil), events...), nil
}

// EventsForDate returns the cached bucket for the given DateKey, in
// fetch (chronological) order. Nil when the date has no events.
func (a *Aggregator) EventsForDate(key string) []Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	bucket := a.byDate[key]
	return append([]Event(nil), bucket...)
}

// AllByDate returns every cached event ordered by ascending DateKey,
// preserving fetch order within a day.
func (a *Aggregator) AllByDate() []Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allByDateLocked()
}

func (a *Aggregator) allByDateLocked() []Event {
	var all []Event
	for _, key := range sortedKeys(a.byDate) {
		all = append(all, a.byDate[key]...)
	}
	return all
}

// DisplayEvents implements the selected-date display policy: the bucket
// for key, or — when that bucket is empty and the cache is not — the
// full list ordered by ascending date. The fallback is display behavior,
// not a store invariant, and is kept here so every surface reproduces it
// the same way.
func (a *Aggregator) DisplayEvents(key string) []Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	if bucket := a.byDate[key]; len(bucket) > 0 {
		return append([]Event(nil), bucket...)
	}
	if len(a.byDate) == 0 {
		return nil
	}
	return a.allByDateLocked()
}

// CreateEvent posts a new event through the underlying client. The
// cache is left as-is; the visible list converges on the next Refresh.
func (a *Aggregator) CreateEvent(ctx context.Context, in CreateEventInput) (Event, error) {
	return a.client.CreateEvent(ctx, in)
}
