package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calendarchat/internal/calendar"
)

func TestExecute_CreateAndList(t *testing.T) {
	ctx := context.Background()
	cal := calendar.NewMemory("a@b.com")

	out, err := Execute(ctx, cal, CreateEvent, map[string]any{
		"summary":   "Book lunch",
		"start":     "2025-01-15T12:00:00Z",
		"end":       "2025-01-15T13:00:00Z",
		"attendees": "bob@example.com, carol@example.com",
	})
	require.NoError(t, err)

	var created calendar.EventSummary
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "Book lunch", created.Summary)
	assert.Len(t, created.Attendees, 2)

	out, err = Execute(ctx, cal, ListEvents, map[string]any{
		"timeMin": "2025-01-15T00:00:00Z",
		"timeMax": "2025-01-16T00:00:00Z",
	})
	require.NoError(t, err)

	var events []calendar.EventSummary
	require.NoError(t, json.Unmarshal([]byte(out), &events))
	require.Len(t, events, 1)
	assert.Equal(t, created.ID, events[0].ID)
}

func TestExecute_AttendeesAsArray(t *testing.T) {
	out, err := Execute(context.Background(), calendar.NewMemory("a@b.com"), CreateEvent, map[string]any{
		"summary":   "Sync",
		"start":     "2025-01-15T12:00:00Z",
		"end":       "2025-01-15T12:30:00Z",
		"attendees": []any{"x@example.com", " ", "y@example.com"},
	})
	require.NoError(t, err)

	var created calendar.EventSummary
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Len(t, created.Attendees, 2)
}

func TestExecute_ArgumentErrors(t *testing.T) {
	cal := calendar.NewMemory("a@b.com")
	tests := []struct {
		name string
		tool string
		args map[string]any
		arg  string
	}{
		{name: "missing summary", tool: CreateEvent, args: map[string]any{"start": "2025-01-15T12:00:00Z", "end": "2025-01-15T13:00:00Z"}, arg: "summary"},
		{name: "bad start", tool: CreateEvent, args: map[string]any{"summary": "x", "start": "tomorrow", "end": "2025-01-15T13:00:00Z"}, arg: "start"},
		{name: "end before start", tool: CreateEvent, args: map[string]any{"summary": "x", "start": "2025-01-15T13:00:00Z", "end": "2025-01-15T12:00:00Z"}, arg: "end"},
		{name: "missing event id", tool: DeleteEvent, args: nil, arg: "eventId"},
		{name: "missing calendars", tool: QueryFreeBusy, args: map[string]any{"timeMin": "2025-01-15T00:00:00Z", "timeMax": "2025-01-16T00:00:00Z"}, arg: "calendars"},
		{name: "zero duration", tool: FindAvailableTime, args: map[string]any{"attendees": "a@b.com", "durationMinutes": float64(0)}, arg: "durationMinutes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Execute(context.Background(), cal, tt.tool, tt.args)
			var argErr *ArgumentError
			require.ErrorAs(t, err, &argErr)
			assert.Equal(t, tt.arg, argErr.Name)
		})
	}
}

func TestExecute_UnknownTool(t *testing.T) {
	_, err := Execute(context.Background(), calendar.NewMemory("a@b.com"), "gmail_send", nil)
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestExecute_DeleteMissingEvent(t *testing.T) {
	_, err := Execute(context.Background(), calendar.NewMemory("a@b.com"), DeleteEvent, map[string]any{"eventId": "nope"})
	assert.ErrorIs(t, err, calendar.ErrEventNotFound)
}

func TestExecute_FindAvailableTime(t *testing.T) {
	ctx := context.Background()
	cal := calendar.NewMemory("a@b.com")
	day := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	_, err := cal.CreateEvent(ctx, "", calendar.EventInput{Summary: "busy", Start: day, End: day.Add(time.Hour)})
	require.NoError(t, err)

	out, err := Execute(ctx, cal, FindAvailableTime, map[string]any{
		"attendees":       "a@b.com",
		"durationMinutes": float64(30),
		"timeMin":         day.Format(time.RFC3339),
		"timeMax":         day.Add(3 * time.Hour).Format(time.RFC3339),
		"maxResults":      float64(2),
	})
	require.NoError(t, err)

	var slots []calendar.AvailableSlot
	require.NoError(t, json.Unmarshal([]byte(out), &slots))
	require.Len(t, slots, 2)
	assert.True(t, slots[0].Start.Equal(day.Add(time.Hour)))
}

func TestListArg(t *testing.T) {
	assert.Nil(t, listArg(map[string]any{}, "x"))
	assert.Equal(t, []string{"a", "b"}, listArg(map[string]any{"x": "a, ,b"}, "x"))
	assert.Equal(t, []string{"a"}, listArg(map[string]any{"x": []string{" a "}}, "x"))
}
