package connector

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/calendarchat/internal/calendar"
	"github.com/teemow/calendarchat/internal/registry"
	"github.com/teemow/calendarchat/internal/tools"
)

// Simulated is a fake platform. Connections become active as soon as they
// are initiated and tools run against an in-memory calendar per entity.
type Simulated struct {
	mu          sync.Mutex
	now         func() time.Time
	connections map[string]*Connection
	calendars   map[string]*calendar.Memory
}

// NewSimulated creates an empty simulated platform.
func NewSimulated() *Simulated {
	return &Simulated{
		now:         time.Now,
		connections: make(map[string]*Connection),
		calendars:   make(map[string]*calendar.Memory),
	}
}

// Backend implements Platform.
func (s *Simulated) Backend() string { return BackendSimulated }

// GetConnection returns a copy of the entity's connection, or nil.
func (s *Simulated) GetConnection(_ context.Context, entityID string) (*Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.connections[entityID]
	if !ok {
		return nil, nil
	}
	c := *conn
	return &c, nil
}

// InitiateConnection fabricates an active connection for the entity.
func (s *Simulated) InitiateConnection(_ context.Context, entityID, userEmail string) (*Connection, error) {
	if userEmail == "" {
		return nil, registry.ErrInvalidEmail
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email := registry.NormalizeEmail(userEmail)
	conn := &Connection{
		ID:        "sim_conn_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		EntityID:  entityID,
		UserEmail: email,
		Status:    ConnectionActive,
		CreatedAt: s.now(),
	}
	s.connections[entityID] = conn
	if _, ok := s.calendars[entityID]; !ok {
		s.calendars[entityID] = calendar.NewMemory(email)
	}

	c := *conn
	return &c, nil
}

// Disconnect marks the entity's connection revoked.
func (s *Simulated) Disconnect(entityID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.connections[entityID]
	if !ok {
		return false
	}
	conn.Status = ConnectionRevoked
	return true
}

// Tools returns the full calendar catalog.
func (s *Simulated) Tools(context.Context, string) ([]mcp.Tool, error) {
	return tools.Catalog(), nil
}

// Execute runs the tool against the entity's in-memory calendar. Entities
// without an active connection get ErrNoConnection.
func (s *Simulated) Execute(ctx context.Context, entityID, tool string, args map[string]any) (string, error) {
	s.mu.Lock()
	conn := s.connections[entityID]
	cal := s.calendars[entityID]
	s.mu.Unlock()

	if !conn.Active() || cal == nil {
		return "", ErrNoConnection
	}
	return tools.Execute(ctx, cal, tool, args)
}
