// Package calendar fetches and indexes upcoming remote events for
// display. It is a read-mostly cache over the Google Calendar API: it
// never mutates remote state except through CreateEvent, and it never
// persists anything locally.
package calendar

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Event is the read model for a remote event. Start and End are either a
// date-only string (YYYY-MM-DD, all-day events) or an RFC 3339 timestamp.
type Event struct {
	ID      string
	Summary string
	Start   string
	End     string
}

// NoTitle is substituted when the remote event has no summary.
const NoTitle = "(No title)"

// CreateEventInput carries the caller-supplied fields for a new event.
type CreateEventInput struct {
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
}

// Client wraps the Google Calendar service for a single calendar.
type Client struct {
	srv        *gcal.Service
	calendarID string
	loc        *time.Location
	now        func() time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCalendarID targets a calendar other than "primary".
func WithCalendarID(id string) ClientOption {
	return func(c *Client) { c.calendarID = id }
}

// WithLocation sets the timezone attached to created events and used
// for date bucketing.
func WithLocation(loc *time.Location) ClientOption {
	return func(c *Client) { c.loc = loc }
}

// WithClock overrides the time source used for the lower fetch bound.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// NewClient builds a client from a bearer access token obtained
// externally (the sign-in flow owns the credential).
func NewClient(ctx context.Context, accessToken string, opts ...ClientOption) (*Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	return newClient(ctx, []option.ClientOption{option.WithTokenSource(ts)}, opts...)
}

// NewClientWithOptions builds a client from raw service options. Tests
// use it to point the service at a local HTTP server.
func NewClientWithOptions(ctx context.Context, srvOpts []option.ClientOption, opts ...ClientOption) (*Client, error) {
	return newClient(ctx, srvOpts, opts...)
}

func newClient(ctx context.Context, srvOpts []option.ClientOption, opts ...ClientOption) (*Client, error) {
	srv, err := gcal.NewService(ctx, srvOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create calendar service: %w", err)
	}
	c := &Client{
		srv:        srv,
		calendarID: "primary",
		loc:        time.Local,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListUpcoming fetches events starting at or after now, expanded to
// single instances, chronological by start time, capped at maxResults.
func (c *Client) ListUpcoming(ctx context.Context, maxResults int64) ([]Event, error) {
	res, err := c.srv.Events.List(c.calendarID).
		TimeMin(c.now().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, Classify(err)
	}

	events := make([]Event, 0, len(res.Items))
	for _, item := range res.Items {
		events = append(events, fromAPI(item))
	}
	return events, nil
}

// CreateEvent validates and posts a new event. The created event is
// returned in the read-model shape; the cache is not updated, callers
// refresh to converge.
func (c *Client) CreateEvent(ctx context.Context, in CreateEventInput) (Event, error) {
	if in.Summary == "" {
		return Event{}, &Failure{Kind: KindValidation, Err: fmt.Errorf("event summary must not be empty")}
	}
	if !in.End.After(in.Start) {
		return Event{}, &Failure{Kind: KindValidation, Err: fmt.Errorf("event end must be after start")}
	}

	ev := &gcal.Event{
		Summary:     in.Summary,
		Description: in.Description,
		Location:    in.Location,
		Start: &gcal.EventDateTime{
			DateTime: in.Start.Format(time.RFC3339),
			TimeZone: c.loc.String(),
		},
		End: &gcal.EventDateTime{
			DateTime: in.End.Format(time.RFC3339),
			TimeZone: c.loc.String(),
		},
	}

	created, err := c.srv.Events.Insert(c.calendarID, ev).Context(ctx).Do()
	if err != nil {
		return Event{}, Classify(err)
	}
	return fromAPI(created), nil
}

// Location returns the client's display timezone.
func (c *Client) Location() *time.Location { return c.loc }

func fromAPI(item *gcal.Event) Event {
	ev := Event{ID: item.Id, Summary: item.Summary}
	if ev.Summary == "" {
		ev.Summary = NoTitle
	}
	if item.Start != nil {
		ev.Start = item.Start.DateTime
		if ev.Start == "" {
			ev.Start = item.Start.Date
		}
	}
	if item.End != nil {
		ev.End = item.End.DateTime
		if ev.End == "" {
			ev.End = item.End.Date
		}
	}
	return ev
}
