package tools

import (
	"context"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// ErrNoUser is returned when an MCP tool call carries no user identity.
var ErrNoUser = errors.New("no user identity: set the X-User-Email header or the userEmail argument")

// UserHeader is the HTTP header MCP clients use to identify the user.
const UserHeader = "X-User-Email"

type userKey struct{}

// WithUser stores the calling user's email in ctx.
func WithUser(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, userKey{}, email)
}

// UserFromContext returns the email stored by WithUser.
func UserFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(userKey{}).(string)
	return email, ok && email != ""
}

// userForCall resolves the acting user, preferring the context identity over
// an explicit userEmail argument.
func userForCall(ctx context.Context, args map[string]any) (string, error) {
	if email, ok := UserFromContext(ctx); ok {
		return email, nil
	}
	if email, ok := args["userEmail"].(string); ok && strings.TrimSpace(email) != "" {
		return strings.TrimSpace(email), nil
	}
	return "", ErrNoUser
}

// Runner executes a catalog tool on behalf of a user.
type Runner func(ctx context.Context, userEmail, name string, args map[string]any) (string, error)

// Register adds every catalog tool to s, dispatching calls through run.
// Failures are returned as tool error results rather than protocol errors.
func Register(s *mcpserver.MCPServer, run Runner) {
	for _, tool := range Catalog() {
		name := tool.Name
		s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := request.GetArguments()
			user, err := userForCall(ctx, args)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}

			out, err := run(ctx, user, name, args)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText(out), nil
		})
	}
}
