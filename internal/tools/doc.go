// Package tools defines the fixed catalog of calendar tools offered to the
// LLM and to MCP clients.
//
// Tools are declared once with mcp-go (see Catalog). The same declarations
// are exported to the LLM as function definitions (Functions) and registered
// on an MCP server (Register). Execute runs a tool call against any Calendar
// implementation, so the Google backend and the simulated backend share the
// argument handling.
package tools
