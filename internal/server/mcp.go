package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calendarchat/internal/connector"
	"github.com/teemow/calendarchat/internal/registry"
	"github.com/teemow/calendarchat/internal/tools"
)

// MCPServerName is announced to MCP clients during initialization.
const MCPServerName = "calendarchat"

// NewMCPServer creates an MCP server exposing the calendar tools. Calls are
// executed on the user's connector entity through platform.
func NewMCPServer(version string, platform connector.Platform) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(MCPServerName, version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)
	tools.Register(s, func(ctx context.Context, userEmail, name string, args map[string]any) (string, error) {
		return platform.Execute(tools.WithUser(ctx, userEmail), connector.EntityID(userEmail), name, args)
	})
	return s
}

// mcpHandler serves the streamable HTTP transport on /mcp. The caller's
// identity is taken from the X-User-Email header and is not authenticated;
// with MCPToken set only holders of that token reach the tools.
func (s *Server) mcpHandler() http.Handler {
	if s.opts.MCP == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeUnavailable(w, "MCP endpoint is not enabled")
		})
	}

	streamable := mcpserver.NewStreamableHTTPServer(s.opts.MCP,
		mcpserver.WithEndpointPath("/mcp"),
	)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.mcpAuthorized(r) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="calendarchat", error="invalid_token"`)
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error:   "Unauthorized",
				Message: "a valid bearer token is required for /mcp",
			})
			return
		}
		if email := registry.NormalizeEmail(r.Header.Get(tools.UserHeader)); email != "" {
			r = r.WithContext(tools.WithUser(r.Context(), email))
		}
		streamable.ServeHTTP(w, r)
	})
}

func (s *Server) mcpAuthorized(r *http.Request) bool {
	if s.opts.MCPToken == "" {
		return true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.opts.MCPToken)) == 1
}
