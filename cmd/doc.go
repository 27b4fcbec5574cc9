// Package cmd implements the command-line interface for calendarchat.
//
// This package provides the following commands:
//   - serve: Start the HTTP API (OAuth callback, chat dispatch, MCP endpoint)
//   - config: Print the effective configuration with secrets masked
//   - generate-docs: Generate markdown documentation for the calendar tools
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
