package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a completion prompt.
type Message struct {
	Role    Role
	Content string
}

// Function describes a callable tool offered to the model. Parameters is a
// JSON schema object.
type Function struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Args decodes the call's JSON arguments. Empty arguments decode to an empty map.
func (c ToolCall) Args() (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(c.Arguments) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(c.Arguments), &args); err != nil {
		return nil, fmt.Errorf("invalid arguments for %s: %w", c.Name, err)
	}
	return args, nil
}

// ToolResult is the outcome of executing one ToolCall.
type ToolResult struct {
	CallID  string `json:"callId"`
	Name    string `json:"name"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Failed reports whether the tool returned an error.
func (r ToolResult) Failed() bool {
	return r.Error != ""
}

// Request is a single completion request.
type Request struct {
	Messages []Message
	Tools    []Function
}

// Response is the model's reply.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// Client performs chat completions.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Transcript is the record of tool calls made during the act stage, handed to
// the summarize stage.
type Transcript struct {
	Calls   []ToolCall
	Results []ToolResult
}

// Record appends a call and its result.
func (t *Transcript) Record(call ToolCall, result ToolResult) {
	t.Calls = append(t.Calls, call)
	t.Results = append(t.Results, result)
}

// Empty reports whether no tools were called.
func (t *Transcript) Empty() bool {
	return t == nil || len(t.Calls) == 0
}

// Render formats the transcript as plain text for a follow-up prompt.
func (t *Transcript) Render() string {
	if t.Empty() {
		return ""
	}
	var b strings.Builder
	for i, call := range t.Calls {
		fmt.Fprintf(&b, "Tool %s called with %s\n", call.Name, orEmptyObject(call.Arguments))
		if i < len(t.Results) {
			res := t.Results[i]
			if res.Failed() {
				fmt.Fprintf(&b, "Error: %s\n", res.Error)
			} else {
				fmt.Fprintf(&b, "Result: %s\n", res.Content)
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func orEmptyObject(s string) string {
	if strings.TrimSpace(s) == "" {
		return "{}"
	}
	return s
}
