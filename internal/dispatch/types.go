package dispatch

import (
	"github.com/teemow/calendarchat/internal/bridge"
	"github.com/teemow/calendarchat/internal/llm"
)

// Context carries optional facts from the client about the user's day.
type Context struct {
	CurrentDate string   `json:"currentDate,omitempty"`
	TodayEvents []string `json:"todayEvents,omitempty" validate:"omitempty,max=50"`
	FocusAreas  []string `json:"focusAreas,omitempty" validate:"omitempty,max=20"`
	Timezone    string   `json:"timezone,omitempty"`
}

// Request is a chat message to dispatch.
type Request struct {
	Message   string   `json:"message" validate:"required,max=4000"`
	UserEmail string   `json:"userEmail" validate:"required,email"`
	Context   *Context `json:"context,omitempty"`
}

// Response is the reply returned to the chat client.
type Response struct {
	Message          string           `json:"message"`
	ToolCalls        []llm.ToolCall   `json:"toolCalls,omitempty"`
	ToolResults      []llm.ToolResult `json:"toolResults,omitempty"`
	NeedsConnection  bool             `json:"needsConnection,omitempty"`
	ConnectionStatus bridge.Status    `json:"connectionStatus,omitempty"`
}
