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
	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "t1"}),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_NilTokenSource(t *testing.T) {
	_, err := NewClient(context.Background(), nil)
	assert.Error(t, err)
}

func TestListEvents(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("singleEvents"))
		assert.Equal(t, "lunch", r.URL.Query().Get("q"))
		writeJSON(w, calendar.Events{Items: []*calendar.Event{
			{
				Id:      "ev1",
				Summary: "Lunch",
				Start:   &calendar.EventDateTime{DateTime: "2025-01-15T12:00:00Z"},
				End:     &calendar.EventDateTime{DateTime: "2025-01-15T13:00:00Z"},
			},
		}})
	})

	from := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	events, err := client.ListEvents(context.Background(), "", from, from.Add(24*time.Hour), "lunch")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ev1", events[0].ID)
	assert.Equal(t, "Lunch", events[0].Summary)
	assert.Equal(t, time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC), events[0].Start.UTC())
}

func TestCreateEvent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)

		var ev calendar.Event
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		assert.Equal(t, "Book lunch", ev.Summary)
		if assert.NotNil(t, ev.Start) {
			assert.Equal(t, "UTC", ev.Start.TimeZone)
		}
		assert.Len(t, ev.Attendees, 1)

		ev.Id = "created-1"
		writeJSON(w, ev)
	})

	start := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	created, err := client.CreateEvent(context.Background(), PrimaryCalendar, EventInput{
		Summary:   "Book lunch",
		Start:     start,
		End:       start.Add(time.Hour),
		Attendees: []string{"bob@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "created-1", created.ID)
}

func TestCreateEvent_AllDay(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var ev calendar.Event
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		if assert.NotNil(t, ev.Start) {
			assert.Equal(t, "2025-01-15", ev.Start.Date)
			assert.Empty(t, ev.Start.DateTime)
		}
		ev.Id = "allday"
		writeJSON(w, ev)
	})

	day := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	created, err := client.CreateEvent(context.Background(), "", EventInput{
		Summary: "Offsite",
		Start:   day,
		End:     day.AddDate(0, 0, 1),
		AllDay:  true,
	})
	require.NoError(t, err)
	assert.True(t, created.AllDay)
}

func TestDeleteEvent_Error(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		http.Error(w, `{"error":{"code":404,"message":"Not Found"}}`, http.StatusNotFound)
	})

	err := client.DeleteEvent(context.Background(), "primary", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to delete event")
}

func TestQueryFreeBusy_SortedByCalendar(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/freeBusy", r.URL.Path)
		writeJSON(w, calendar.FreeBusyResponse{Calendars: map[string]calendar.FreeBusyCalendar{
			"z@example.com": {Busy: []*calendar.TimePeriod{{Start: "2025-01-15T10:00:00Z", End: "2025-01-15T11:00:00Z"}}},
			"a@example.com": {},
		}})
	})

	from := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	infos, err := client.QueryFreeBusy(context.Background(), from, from.Add(8*time.Hour), []string{"a@example.com", "z@example.com"})
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "a@example.com", infos[0].Calendar)
	assert.Empty(t, infos[0].Busy)
	assert.Len(t, infos[1].Busy, 1)
}

func TestFreeSlots(t *testing.T) {
	base := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	busy := []TimeRange{
		{Start: base.Add(30 * time.Minute), End: base.Add(90 * time.Minute)},
		{Start: base.Add(60 * time.Minute), End: base.Add(2 * time.Hour)},
	}

	slots := FreeSlots(busy, 30*time.Minute, base, base.Add(3*time.Hour), 0)
	require.NotEmpty(t, slots)
	assert.Equal(t, base, slots[0].Start)
	assert.Equal(t, base.Add(2*time.Hour), slots[1].Start)

	for _, s := range slots {
		for _, b := range busy {
			overlaps := s.Start.Before(b.End) && s.End.After(b.Start)
			assert.False(t, overlaps, "slot %v overlaps busy range %v", s, b)
		}
	}
}

func TestFreeSlots_MaxResults(t *testing.T) {
	base := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	slots := FreeSlots(nil, time.Hour, base, base.Add(8*time.Hour), 3)
	assert.Len(t, slots, 3)
}

func TestFreeSlots_ZeroDuration(t *testing.T) {
	base := time.Now()
	assert.Nil(t, FreeSlots(nil, 0, base, base.Add(time.Hour), 0))
}

func TestToEventSummary_Nil(t *testing.T) {
	assert.Equal(t, EventSummary{}, toEventSummary(nil))
	assert.Equal(t, CalendarInfo{}, toCalendarInfo(nil))
}

func TestToEventSummary_MeetLink(t *testing.T) {
	summary := toEventSummary(&calendar.Event{
		Id: "ev",
		ConferenceData: &calendar.ConferenceData{EntryPoints: []*calendar.EntryPoint{
			{EntryPointType: "phone", Uri: "tel:123"},
			{EntryPointType: "video", Uri: "https://meet.google.com/abc"},
		}},
	})
	assert.Equal(t, "https://meet.google.com/abc", summary.MeetLink)
}
