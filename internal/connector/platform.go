package connector

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// Backend names.
const (
	BackendGoogle    = "google"
	BackendSimulated = "simulated"
)

// ErrNoConnection is returned when a tool is executed for an entity without
// an active connection.
var ErrNoConnection = errors.New("no active calendar connection")

// ConnectionStatus is the platform-side state of a connection.
type ConnectionStatus string

const (
	ConnectionActive  ConnectionStatus = "active"
	ConnectionPending ConnectionStatus = "pending"
	ConnectionExpired ConnectionStatus = "expired"
	ConnectionRevoked ConnectionStatus = "revoked"
)

// Connection is a user's calendar connection on the platform.
type Connection struct {
	ID          string           `json:"connectionId,omitempty"`
	EntityID    string           `json:"entityId"`
	UserEmail   string           `json:"userEmail"`
	Status      ConnectionStatus `json:"status"`
	RedirectURL string           `json:"redirectUrl,omitempty"`
	CreatedAt   time.Time        `json:"createdAt,omitempty"`
}

// Active reports whether tools can run on this connection.
func (c *Connection) Active() bool {
	return c != nil && c.Status == ConnectionActive
}

// Platform is the tool-connector platform.
type Platform interface {
	// Backend names the implementation, e.g. "google".
	Backend() string

	// GetConnection returns the entity's connection, or nil when there is none.
	GetConnection(ctx context.Context, entityID string) (*Connection, error)

	// InitiateConnection starts connecting entityID for userEmail. When the
	// user has to authorize, the result carries a RedirectURL.
	InitiateConnection(ctx context.Context, entityID, userEmail string) (*Connection, error)

	// Tools returns the tool bindings available to the entity.
	Tools(ctx context.Context, entityID string) ([]mcp.Tool, error)

	// Execute runs one tool for the entity and returns its JSON output.
	Execute(ctx context.Context, entityID, tool string, args map[string]any) (string, error)
}

// EntityID derives the platform entity id for an email: lower-cased with
// every non-alphanumeric character removed.
func EntityID(email string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(email) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
