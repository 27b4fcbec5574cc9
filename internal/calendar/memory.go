package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrEventNotFound is returned by Memory for unknown event ids.
var ErrEventNotFound = errors.New("event not found")

// Memory is an in-process calendar used by the simulated connector backend.
// Identifiers it returns are fabricated and never reach Google.
type Memory struct {
	mu     sync.RWMutex
	owner  string
	events map[string]EventSummary
}

// NewMemory creates an empty calendar owned by owner.
func NewMemory(owner string) *Memory {
	return &Memory{owner: owner, events: make(map[string]EventSummary)}
}

func (m *Memory) ListEvents(_ context.Context, _ string, timeMin, timeMax time.Time, query string) ([]EventSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	query = strings.ToLower(query)
	var out []EventSummary
	for _, ev := range m.events {
		if ev.End.Before(timeMin) || !ev.Start.Before(timeMax) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(ev.Summary+" "+ev.Description), query) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *Memory) GetEvent(_ context.Context, _ string, eventID string) (*EventSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ev, ok := m.events[eventID]
	if !ok {
		return nil, fmt.Errorf("failed to get event %s: %w", eventID, ErrEventNotFound)
	}
	return &ev, nil
}

func (m *Memory) CreateEvent(_ context.Context, _ string, input EventInput) (*EventSummary, error) {
	ev := EventSummary{
		ID:          "sim_evt_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Summary:     input.Summary,
		Description: input.Description,
		Location:    input.Location,
		Start:       input.Start,
		End:         input.End,
		AllDay:      input.AllDay,
		Organizer:   m.owner,
		Status:      "confirmed",
	}
	for _, email := range input.Attendees {
		ev.Attendees = append(ev.Attendees, AttendeeInfo{Email: email, ResponseStatus: "needsAction"})
	}
	if input.AddMeet {
		ev.MeetLink = "https://meet.google.com/sim-" + ev.ID[len(ev.ID)-8:]
	}

	m.mu.Lock()
	m.events[ev.ID] = ev
	m.mu.Unlock()
	return &ev, nil
}

func (m *Memory) UpdateEvent(_ context.Context, _ string, eventID string, input EventInput) (*EventSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.events[eventID]
	if !ok {
		return nil, fmt.Errorf("failed to get existing event %s: %w", eventID, ErrEventNotFound)
	}
	if input.Summary != "" {
		ev.Summary = input.Summary
	}
	if input.Description != "" {
		ev.Description = input.Description
	}
	if input.Location != "" {
		ev.Location = input.Location
	}
	if !input.Start.IsZero() {
		ev.Start = input.Start
	}
	if !input.End.IsZero() {
		ev.End = input.End
	}
	if len(input.Attendees) > 0 {
		ev.Attendees = nil
		for _, email := range input.Attendees {
			ev.Attendees = append(ev.Attendees, AttendeeInfo{Email: email, ResponseStatus: "needsAction"})
		}
	}
	m.events[eventID] = ev
	return &ev, nil
}

func (m *Memory) DeleteEvent(_ context.Context, _ string, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[eventID]; !ok {
		return fmt.Errorf("failed to delete event %s: %w", eventID, ErrEventNotFound)
	}
	delete(m.events, eventID)
	return nil
}

func (m *Memory) ListCalendars(context.Context) ([]CalendarInfo, error) {
	return []CalendarInfo{{
		ID:         m.owner,
		Summary:    m.owner,
		TimeZone:   "UTC",
		Primary:    true,
		AccessRole: "owner",
	}}, nil
}

// QueryFreeBusy reports the owner's events as busy; other calendars are free.
func (m *Memory) QueryFreeBusy(ctx context.Context, timeMin, timeMax time.Time, calendarIDs []string) ([]FreeBusyInfo, error) {
	events, err := m.ListEvents(ctx, PrimaryCalendar, timeMin, timeMax, "")
	if err != nil {
		return nil, err
	}

	infos := make([]FreeBusyInfo, 0, len(calendarIDs))
	for _, id := range calendarIDs {
		info := FreeBusyInfo{Calendar: id}
		if id == PrimaryCalendar || strings.EqualFold(id, m.owner) {
			for _, ev := range events {
				info.Busy = append(info.Busy, TimeRange{Start: ev.Start, End: ev.End})
			}
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Calendar < infos[j].Calendar })
	return infos, nil
}

func (m *Memory) FindAvailableSlots(ctx context.Context, attendees []string, duration time.Duration, timeMin, timeMax time.Time, maxResults int) ([]AvailableSlot, error) {
	infos, err := m.QueryFreeBusy(ctx, timeMin, timeMax, attendees)
	if err != nil {
		return nil, err
	}
	var busy []TimeRange
	for _, info := range infos {
		busy = append(busy, info.Busy...)
	}
	return FreeSlots(busy, duration, timeMin, timeMax, maxResults), nil
}

// Len returns the number of stored events.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}
