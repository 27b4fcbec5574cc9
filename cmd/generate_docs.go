package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/teemow/calendarchat/internal/tools"
)

func newGenerateDocsCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate calendar tool documentation",
		Long: `Generate markdown documentation for the calendar tools offered to the LLM
and served on the /mcp endpoint. The output is built from the tool
definitions, so it always matches what clients see.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			markdown := generateToolsMarkdown(tools.Catalog())
			if outputFile == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), markdown)
				return err
			}
			if err := os.WriteFile(outputFile, []byte(markdown), 0o644); err != nil {
				return fmt.Errorf("failed to write output file: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Documentation written to: %s\n", outputFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func generateToolsMarkdown(catalog []mcp.Tool) string {
	var sb strings.Builder

	sb.WriteString("# Calendar Tools Reference\n\n")
	sb.WriteString("These tools are attached to every chat completion and exposed on the `/mcp` endpoint.\n\n")
	sb.WriteString("**Note:** This documentation is automatically generated from the tool definitions.\n\n")

	sorted := make([]mcp.Tool, len(catalog))
	copy(sorted, catalog)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	sb.WriteString("## Table of Contents\n\n")
	for _, tool := range sorted {
		fmt.Fprintf(&sb, "- [%s](#%s)\n", tool.Name, tool.Name)
	}
	sb.WriteString("\n")

	sb.WriteString("## Identifying the User\n\n")
	sb.WriteString("MCP clients identify the calendar owner with the `X-User-Email` header. ")
	sb.WriteString("Clients that cannot set headers may pass a `userEmail` argument instead; the header wins when both are present.\n\n")
	sb.WriteString("When the server runs with `MCP_AUTH_TOKEN`, every request must also carry `Authorization: Bearer <token>`.\n\n")

	for _, tool := range sorted {
		sb.WriteString(generateToolMarkdown(tool))
		sb.WriteString("\n")
	}
	return sb.String()
}

func generateToolMarkdown(tool mcp.Tool) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "### %s\n\n", tool.Name)
	if tool.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", tool.Description)
	}

	props := tool.InputSchema.Properties
	if len(props) == 0 {
		sb.WriteString("_No parameters._\n")
		return sb.String()
	}

	required := make(map[string]bool, len(tool.InputSchema.Required))
	for _, name := range tool.InputSchema.Required {
		required[name] = true
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if required[names[i]] != required[names[j]] {
			return required[names[i]]
		}
		return names[i] < names[j]
	})

	sb.WriteString("| Parameter | Type | Required | Description |\n")
	sb.WriteString("|-----------|------|----------|-------------|\n")
	for _, name := range names {
		typ, desc := "", ""
		if schema, ok := props[name].(map[string]any); ok {
			typ, _ = schema["type"].(string)
			desc, _ = schema["description"].(string)
		}
		req := "No"
		if required[name] {
			req = "Yes"
		}
		fmt.Fprintf(&sb, "| `%s` | %s | %s | %s |\n", name, typ, req, strings.ReplaceAll(desc, "|", "\\|"))
	}
	return sb.String()
}
