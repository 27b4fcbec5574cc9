// Package chat holds the per-user notification feed surfaced in the chat UI.
//
// The OAuth callback posts a message here when a connection succeeds or fails
// so the client can show it on its next poll of /notifications.
package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/calendarchat/internal/registry"
)

// DefaultCapacity is the number of notifications kept per user.
const DefaultCapacity = 50

// AnonymousUser is the feed key used when the user email is unknown.
const AnonymousUser = "anonymous"

// Level classifies a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a single chat message produced by the service.
type Notification struct {
	ID        string    `json:"id"`
	UserEmail string    `json:"userEmail"`
	Level     Level     `json:"level"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Feed is an in-memory, bounded notification store keyed by user email.
type Feed struct {
	mu       sync.RWMutex
	capacity int
	now      func() time.Time
	byUser   map[string][]Notification
}

// NewFeed creates a feed keeping at most capacity entries per user.
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed{
		capacity: capacity,
		now:      time.Now,
		byUser:   make(map[string][]Notification),
	}
}

func feedKey(email string) string {
	if key := registry.NormalizeEmail(email); key != "" {
		return key
	}
	return AnonymousUser
}

// Post appends a notification for email and returns it. Oldest entries are
// dropped once the per-user capacity is reached.
func (f *Feed) Post(email string, level Level, text string) Notification {
	key := feedKey(email)
	n := Notification{
		ID:        uuid.NewString(),
		UserEmail: key,
		Level:     level,
		Text:      text,
		CreatedAt: f.now(),
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	list := append(f.byUser[key], n)
	if len(list) > f.capacity {
		list = list[len(list)-f.capacity:]
	}
	f.byUser[key] = list
	return n
}

// List returns the notifications for email, oldest first.
func (f *Feed) List(email string) []Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()

	list := f.byUser[feedKey(email)]
	out := make([]Notification, len(list))
	copy(out, list)
	return out
}

// Since returns notifications for email created strictly after t.
func (f *Feed) Since(email string, t time.Time) []Notification {
	all := f.List(email)
	i := sort.Search(len(all), func(i int) bool { return all[i].CreatedAt.After(t) })
	return all[i:]
}

// Total returns the number of notifications held across all users.
func (f *Feed) Total() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	total := 0
	for _, list := range f.byUser {
		total += len(list)
	}
	return total
}
