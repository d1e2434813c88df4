package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	client, err := NewClientWithOptions(context.Background(),
		[]option.ClientOption{
			option.WithoutAuthentication(),
			option.WithEndpoint(ts.URL),
		},
		WithLocation(time.UTC),
		WithClock(func() time.Time {
			return time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)
		}),
	)
	require.NoError(t, err)
	return client
}

func eventsHandler(t *testing.T, items []map[string]any) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		q := r.URL.Query()
		assert.Equal(t, "true", q.Get("singleEvents"))
		assert.Equal(t, "startTime", q.Get("orderBy"))
		assert.NotEmpty(t, q.Get("timeMin"))
		json.NewEncoder(w).Encode(map[string]any{"items": items})
	})
}

func TestRefreshSuccess(t *testing.T) {
	client := newTestClient(t, eventsHandler(t, []map[string]any{
		{"id": "a", "summary": "Standup", "start": map[string]any{"dateTime": "2024-06-01T09:00:00Z"}, "end": map[string]any{"dateTime": "2024-06-01T09:30:00Z"}},
		{"id": "b", "start": map[string]any{"date": "2024-06-01"}, "end": map[string]any{"date": "2024-06-02"}},
	}))
	agg := NewAggregator(client)

	state, failure := agg.State()
	require.Equal(t, StateIdle, state)
	require.Nil(t, failure)

	events, err := agg.Refresh(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Standup", events[0].Summary)
	// Missing summaries get the placeholder, date-only starts pass through.
	assert.Equal(t, NoTitle, events[1].Summary)
	assert.Equal(t, "2024-06-01", events[1].Start)

	state, failure = agg.State()
	assert.Equal(t, StateIdle, state)
	assert.Nil(t, failure)
}

func TestRefreshPermissionFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"insufficient scope"}}`))
	}))
	agg := NewAggregator(client)

	_, err := agg.Refresh(context.Background(), 5)
	require.Error(t, err)

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, KindPermission, f.Kind)

	state, failure := agg.State()
	assert.Equal(t, StateError, state)
	require.NotNil(t, failure)
	assert.Equal(t, KindPermission, failure.Kind)
}

func TestRefreshAuthFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":401,"message":"invalid credentials"}}`))
	}))
	agg := NewAggregator(client)

	_, err := agg.Refresh(context.Background(), 5)
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, KindAuth, f.Kind)
}

func TestEventsForDateAndFallback(t *testing.T) {
	client := newTestClient(t, eventsHandler(t, []map[string]any{
		{"id": "a", "summary": "Only event", "start": map[string]any{"date": "2024-06-01"}, "end": map[string]any{"date": "2024-06-02"}},
	}))
	agg := NewAggregator(client)
	_, err := agg.Refresh(context.Background(), 5)
	require.NoError(t, err)

	// The bucket lookup itself is empty for an uncovered date.
	assert.Empty(t, agg.EventsForDate("2024-06-02"))

	// The display policy falls back to the full list, ascending by date.
	shown := agg.DisplayEvents("2024-06-02")
	require.Len(t, shown, 1)
	assert.Equal(t, "Only event", shown[0].Summary)

	// A covered date returns just its bucket.
	shown = agg.DisplayEvents("2024-06-01")
	require.Len(t, shown, 1)
}

func TestDisplayEventsEmptyCache(t *testing.T) {
	client := newTestClient(t, eventsHandler(t, nil))
	agg := NewAggregator(client)
	assert.Nil(t, agg.DisplayEvents("2024-06-01"))
}

func TestAllByDateOrdering(t *testing.T) {
	client := newTestClient(t, eventsHandler(t, []map[string]any{
		{"id": "later", "summary": "later", "start": map[string]any{"date": "2024-06-03"}, "end": map[string]any{"date": "2024-06-04"}},
		{"id": "earlier", "summary": "earlier", "start": map[string]any{"date": "2024-06-01"}, "end": map[string]any{"date": "2024-06-02"}},
	}))
	agg := NewAggregator(client)
	_, err := agg.Refresh(context.Background(), 5)
	require.NoError(t, err)

	all := agg.AllByDate()
	require.Len(t, all, 2)
	assert.Equal(t, "earlier", all[0].ID)
	assert.Equal(t, "later", all[1].ID)
}

func TestCreateEventValidation(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("validation failures must not reach the network")
	}))
	agg := NewAggregator(client)

	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	_, err := agg.CreateEvent(context.Background(), CreateEventInput{
		Summary: "backwards", Start: start, End: start.Add(-time.Hour),
	})
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, KindValidation, f.Kind)

	_, err = agg.CreateEvent(context.Background(), CreateEventInput{
		Summary: "", Start: start, End: start.Add(time.Hour),
	})
	require.ErrorAs(t, err, &f)
	assert.Equal(t, KindValidation, f.Kind)
}

func TestCreateEvent(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var body struct {
			Summary string `json:"summary"`
			Start   struct {
				DateTime string `json:"dateTime"`
				TimeZone string `json:"timeZone"`
			} `json:"start"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Design review", body.Summary)
		assert.Equal(t, "UTC", body.Start.TimeZone)

		json.NewEncoder(w).Encode(map[string]any{
			"id":      "created-1",
			"summary": "Design review",
			"start":   map[string]any{"dateTime": "2024-06-01T10:00:00Z"},
			"end":     map[string]any{"dateTime": "2024-06-01T11:00:00Z"},
		})
	}))
	agg := NewAggregator(client)

	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	created, err := agg.CreateEvent(context.Background(), CreateEventInput{
		Summary: "Design review",
		Start:   start,
		End:     start.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "created-1", created.ID)
	assert.Equal(t, "2024-06-01T10:00:00Z", created.Start)
}
