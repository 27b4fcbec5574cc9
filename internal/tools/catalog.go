package tools

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/calendarchat/internal/llm"
)

// Tool names.
const (
	ListEvents        = "calendar_list_events"
	GetEvent          = "calendar_get_event"
	CreateEvent       = "calendar_create_event"
	UpdateEvent       = "calendar_update_event"
	DeleteEvent       = "calendar_delete_event"
	ListCalendars     = "calendar_list_calendars"
	QueryFreeBusy     = "calendar_query_freebusy"
	FindAvailableTime = "calendar_find_available_time"
)

func calendarIDParam() mcp.ToolOption {
	return mcp.WithString("calendarId",
		mcp.Description("Calendar ID (use 'primary' for primary calendar)"),
	)
}

// Catalog returns the calendar tool declarations in a stable order.
func Catalog() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool(ListEvents,
			mcp.WithDescription("List/search calendar events within a time range"),
			calendarIDParam(),
			mcp.WithString("timeMin",
				mcp.Required(),
				mcp.Description("Start time for the range (RFC3339 format, e.g., '2025-01-01T00:00:00Z')"),
			),
			mcp.WithString("timeMax",
				mcp.Required(),
				mcp.Description("End time for the range (RFC3339 format, e.g., '2025-01-31T23:59:59Z')"),
			),
			mcp.WithString("query",
				mcp.Description("Optional search query to filter events"),
			),
		),
		mcp.NewTool(GetEvent,
			mcp.WithDescription("Get details of a specific calendar event"),
			calendarIDParam(),
			mcp.WithString("eventId",
				mcp.Required(),
				mcp.Description("The ID of the event to retrieve"),
			),
		),
		mcp.NewTool(CreateEvent,
			mcp.WithDescription("Create a new calendar event (supports recurring events, all-day events and Google Meet)"),
			calendarIDParam(),
			mcp.WithString("summary",
				mcp.Required(),
				mcp.Description("Event title/summary"),
			),
			mcp.WithString("description",
				mcp.Description("Event description"),
			),
			mcp.WithString("location",
				mcp.Description("Event location"),
			),
			mcp.WithString("start",
				mcp.Required(),
				mcp.Description("Start time (RFC3339 format, e.g., '2025-01-15T14:00:00Z')"),
			),
			mcp.WithString("end",
				mcp.Required(),
				mcp.Description("End time (RFC3339 format, e.g., '2025-01-15T15:00:00Z')"),
			),
			mcp.WithString("timeZone",
				mcp.Description("Time zone (e.g., 'America/New_York'). Defaults to UTC."),
			),
			mcp.WithString("attendees",
				mcp.Description("Comma-separated list of attendee email addresses"),
			),
			mcp.WithString("recurrence",
				mcp.Description("Recurrence rule (e.g., 'RRULE:FREQ=WEEKLY;BYDAY=MO,WE,FR')"),
			),
			mcp.WithBoolean("allDay",
				mcp.Description("Create as all-day event (ignores time portion of start/end)"),
			),
			mcp.WithBoolean("addGoogleMeet",
				mcp.Description("Automatically add a Google Meet link to the event"),
			),
		),
		mcp.NewTool(UpdateEvent,
			mcp.WithDescription("Update an existing calendar event"),
			calendarIDParam(),
			mcp.WithString("eventId",
				mcp.Required(),
				mcp.Description("The ID of the event to update"),
			),
			mcp.WithString("summary",
				mcp.Description("New event title/summary"),
			),
			mcp.WithString("description",
				mcp.Description("New event description"),
			),
			mcp.WithString("location",
				mcp.Description("New event location"),
			),
			mcp.WithString("start",
				mcp.Description("New start time (RFC3339 format)"),
			),
			mcp.WithString("end",
				mcp.Description("New end time (RFC3339 format)"),
			),
			mcp.WithString("timeZone",
				mcp.Description("Time zone (e.g., 'America/New_York')"),
			),
			mcp.WithString("attendees",
				mcp.Description("New comma-separated list of attendee email addresses"),
			),
			mcp.WithBoolean("allDay",
				mcp.Description("Update to be an all-day event"),
			),
		),
		mcp.NewTool(DeleteEvent,
			mcp.WithDescription("Delete a calendar event"),
			calendarIDParam(),
			mcp.WithString("eventId",
				mcp.Required(),
				mcp.Description("The ID of the event to delete"),
			),
		),
		mcp.NewTool(ListCalendars,
			mcp.WithDescription("List all calendars accessible to the user"),
		),
		mcp.NewTool(QueryFreeBusy,
			mcp.WithDescription("Check availability for one or more calendars/attendees in a time range"),
			mcp.WithString("timeMin",
				mcp.Required(),
				mcp.Description("Start time for the range (RFC3339 format)"),
			),
			mcp.WithString("timeMax",
				mcp.Required(),
				mcp.Description("End time for the range (RFC3339 format)"),
			),
			mcp.WithString("calendars",
				mcp.Required(),
				mcp.Description("Comma-separated list of calendar IDs or email addresses to check"),
			),
		),
		mcp.NewTool(FindAvailableTime,
			mcp.WithDescription("Find available time slots for scheduling a meeting with one or more attendees"),
			mcp.WithString("attendees",
				mcp.Required(),
				mcp.Description("Comma-separated list of attendee email addresses"),
			),
			mcp.WithNumber("durationMinutes",
				mcp.Required(),
				mcp.Description("Meeting duration in minutes"),
			),
			mcp.WithString("timeMin",
				mcp.Required(),
				mcp.Description("Start time for search range (RFC3339 format)"),
			),
			mcp.WithString("timeMax",
				mcp.Required(),
				mcp.Description("End time for search range (RFC3339 format)"),
			),
			mcp.WithNumber("maxResults",
				mcp.Description("Maximum number of available slots to return (default: 10)"),
			),
		),
	}
}

// Names returns the names of the catalog tools.
func Names() []string {
	catalog := Catalog()
	names := make([]string, len(catalog))
	for i, t := range catalog {
		names[i] = t.Name
	}
	return names
}

// Functions converts MCP tool declarations into LLM function definitions.
func Functions(tools []mcp.Tool) []llm.Function {
	functions := make([]llm.Function, 0, len(tools))
	for _, t := range tools {
		functions = append(functions, llm.Function{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schemaMap(t),
		})
	}
	return functions
}

func schemaMap(t mcp.Tool) map[string]any {
	schema := map[string]any{"type": "object", "properties": map[string]any{}}

	raw, err := json.Marshal(t.InputSchema)
	if err != nil {
		return schema
	}
	decoded := map[string]any{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return schema
	}
	if _, ok := decoded["properties"]; !ok {
		decoded["properties"] = map[string]any{}
	}
	return decoded
}
