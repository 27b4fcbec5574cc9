package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teemow/calendarchat/internal/calendar"
)

// DefaultMaxSlots caps calendar_find_available_time results.
const DefaultMaxSlots = 10

// ErrUnknownTool is returned for names outside the catalog.
var ErrUnknownTool = errors.New("unknown tool")

// ArgumentError reports an invalid or missing tool argument.
type ArgumentError struct {
	Name   string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s %s", e.Name, e.Reason)
}

// Calendar is the set of calendar operations the tools need.
// *calendar.Client implements it.
type Calendar interface {
	ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time, query string) ([]calendar.EventSummary, error)
	GetEvent(ctx context.Context, calendarID, eventID string) (*calendar.EventSummary, error)
	CreateEvent(ctx context.Context, calendarID string, input calendar.EventInput) (*calendar.EventSummary, error)
	UpdateEvent(ctx context.Context, calendarID, eventID string, input calendar.EventInput) (*calendar.EventSummary, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
	ListCalendars(ctx context.Context) ([]calendar.CalendarInfo, error)
	QueryFreeBusy(ctx context.Context, timeMin, timeMax time.Time, calendarIDs []string) ([]calendar.FreeBusyInfo, error)
	FindAvailableSlots(ctx context.Context, attendees []string, duration time.Duration, timeMin, timeMax time.Time, maxResults int) ([]calendar.AvailableSlot, error)
}

var _ Calendar = (*calendar.Client)(nil)

// Execute runs the named tool against cal and returns its JSON-encoded result.
func Execute(ctx context.Context, cal Calendar, name string, args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}

	var (
		result any
		err    error
	)

	switch name {
	case ListEvents:
		result, err = listEvents(ctx, cal, args)
	case GetEvent:
		result, err = getEvent(ctx, cal, args)
	case CreateEvent:
		result, err = createEvent(ctx, cal, args)
	case UpdateEvent:
		result, err = updateEvent(ctx, cal, args)
	case DeleteEvent:
		result, err = deleteEvent(ctx, cal, args)
	case ListCalendars:
		result, err = cal.ListCalendars(ctx)
	case QueryFreeBusy:
		result, err = queryFreeBusy(ctx, cal, args)
	case FindAvailableTime:
		result, err = findAvailableTime(ctx, cal, args)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s result: %w", name, err)
	}
	return string(out), nil
}

func listEvents(ctx context.Context, cal Calendar, args map[string]any) (any, error) {
	timeMin, err := requiredTime(args, "timeMin")
	if err != nil {
		return nil, err
	}
	timeMax, err := requiredTime(args, "timeMax")
	if err != nil {
		return nil, err
	}
	return cal.ListEvents(ctx, stringArg(args, "calendarId"), timeMin, timeMax, stringArg(args, "query"))
}

func getEvent(ctx context.Context, cal Calendar, args map[string]any) (any, error) {
	eventID, err := requiredString(args, "eventId")
	if err != nil {
		return nil, err
	}
	return cal.GetEvent(ctx, stringArg(args, "calendarId"), eventID)
}

func createEvent(ctx context.Context, cal Calendar, args map[string]any) (any, error) {
	summary, err := requiredString(args, "summary")
	if err != nil {
		return nil, err
	}
	start, err := requiredTime(args, "start")
	if err != nil {
		return nil, err
	}
	end, err := requiredTime(args, "end")
	if err != nil {
		return nil, err
	}
	if !end.After(start) && !boolArg(args, "allDay") {
		return nil, &ArgumentError{Name: "end", Reason: "must be after start"}
	}

	input := calendar.EventInput{
		Summary:     summary,
		Description: stringArg(args, "description"),
		Location:    stringArg(args, "location"),
		Start:       start,
		End:         end,
		AllDay:      boolArg(args, "allDay"),
		TimeZone:    stringArg(args, "timeZone"),
		Attendees:   listArg(args, "attendees"),
		AddMeet:     boolArg(args, "addGoogleMeet"),
	}
	if rule := stringArg(args, "recurrence"); rule != "" {
		input.Recurrence = []string{rule}
	}
	return cal.CreateEvent(ctx, stringArg(args, "calendarId"), input)
}

func updateEvent(ctx context.Context, cal Calendar, args map[string]any) (any, error) {
	eventID, err := requiredString(args, "eventId")
	if err != nil {
		return nil, err
	}
	start, err := optionalTime(args, "start")
	if err != nil {
		return nil, err
	}
	end, err := optionalTime(args, "end")
	if err != nil {
		return nil, err
	}

	input := calendar.EventInput{
		Summary:     stringArg(args, "summary"),
		Description: stringArg(args, "description"),
		Location:    stringArg(args, "location"),
		Start:       start,
		End:         end,
		AllDay:      boolArg(args, "allDay"),
		TimeZone:    stringArg(args, "timeZone"),
		Attendees:   listArg(args, "attendees"),
	}
	return cal.UpdateEvent(ctx, stringArg(args, "calendarId"), eventID, input)
}

func deleteEvent(ctx context.Context, cal Calendar, args map[string]any) (any, error) {
	eventID, err := requiredString(args, "eventId")
	if err != nil {
		return nil, err
	}
	if err := cal.DeleteEvent(ctx, stringArg(args, "calendarId"), eventID); err != nil {
		return nil, err
	}
	return map[string]any{"deleted": true, "eventId": eventID}, nil
}

func queryFreeBusy(ctx context.Context, cal Calendar, args map[string]any) (any, error) {
	timeMin, err := requiredTime(args, "timeMin")
	if err != nil {
		return nil, err
	}
	timeMax, err := requiredTime(args, "timeMax")
	if err != nil {
		return nil, err
	}
	calendars := listArg(args, "calendars")
	if len(calendars) == 0 {
		return nil, &ArgumentError{Name: "calendars", Reason: "is required"}
	}
	return cal.QueryFreeBusy(ctx, timeMin, timeMax, calendars)
}

func findAvailableTime(ctx context.Context, cal Calendar, args map[string]any) (any, error) {
	attendees := listArg(args, "attendees")
	if len(attendees) == 0 {
		return nil, &ArgumentError{Name: "attendees", Reason: "is required"}
	}
	minutes, ok := numberArg(args, "durationMinutes")
	if !ok || minutes <= 0 {
		return nil, &ArgumentError{Name: "durationMinutes", Reason: "must be a positive number"}
	}
	timeMin, err := requiredTime(args, "timeMin")
	if err != nil {
		return nil, err
	}
	timeMax, err := requiredTime(args, "timeMax")
	if err != nil {
		return nil, err
	}

	maxResults := DefaultMaxSlots
	if n, ok := numberArg(args, "maxResults"); ok && n > 0 {
		maxResults = int(n)
	}

	duration := time.Duration(minutes * float64(time.Minute))
	return cal.FindAvailableSlots(ctx, attendees, duration, timeMin, timeMax, maxResults)
}

func stringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return strings.TrimSpace(s)
}

func requiredString(args map[string]any, name string) (string, error) {
	s := stringArg(args, name)
	if s == "" {
		return "", &ArgumentError{Name: name, Reason: "is required"}
	}
	return s, nil
}

func requiredTime(args map[string]any, name string) (time.Time, error) {
	s, err := requiredString(args, name)
	if err != nil {
		return time.Time{}, err
	}
	return parseTime(name, s)
}

func optionalTime(args map[string]any, name string) (time.Time, error) {
	s := stringArg(args, name)
	if s == "" {
		return time.Time{}, nil
	}
	return parseTime(name, s)
}

func parseTime(name, s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, &ArgumentError{Name: name, Reason: fmt.Sprintf("has invalid time format %q (want RFC3339)", s)}
}

func boolArg(args map[string]any, name string) bool {
	switch v := args[name].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}

func numberArg(args map[string]any, name string) (float64, bool) {
	switch v := args[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// listArg accepts either a comma-separated string or a JSON array of strings.
func listArg(args map[string]any, name string) []string {
	var raw []string
	switch v := args[name].(type) {
	case string:
		raw = strings.Split(v, ",")
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case []string:
		raw = v
	}

	var out []string
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
