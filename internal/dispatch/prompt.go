package dispatch

import (
	"fmt"
	"strings"

	"github.com/teemow/calendarchat/internal/bridge"
	"github.com/teemow/calendarchat/internal/llm"
)

const actSystemPrompt = `You are a calendar assistant with access to the user's Google Calendar through tools.
Use the tools to look up, create, update or delete events when the user asks for it.
Use RFC3339 timestamps in tool arguments. When the user gives no year or timezone, use the current date and timezone from the context.
If the request does not need calendar access, answer directly.`

const summarizeSystemPrompt = `You are a calendar assistant. Calendar tools were just called on the user's behalf.
Reply to the user in a short, friendly, conversational way summarizing what was done or found.
Mention failures plainly and suggest what to try next. Do not show raw JSON or internal identifiers unless the user asked for them.`

// composePrompt builds the single user prompt: identity, context facts, then
// the raw message.
func composePrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User: %s\n", req.UserEmail)

	if c := req.Context; c != nil {
		if c.CurrentDate != "" {
			fmt.Fprintf(&b, "Current date: %s\n", c.CurrentDate)
		}
		if c.Timezone != "" {
			fmt.Fprintf(&b, "Timezone: %s\n", c.Timezone)
		}
		if len(c.TodayEvents) > 0 {
			b.WriteString("Today's events:\n")
			for _, ev := range c.TodayEvents {
				fmt.Fprintf(&b, "- %s\n", ev)
			}
		}
		if len(c.FocusAreas) > 0 {
			fmt.Fprintf(&b, "Focus areas: %s\n", strings.Join(c.FocusAreas, ", "))
		}
	}

	fmt.Fprintf(&b, "\nMessage: %s", req.Message)
	return b.String()
}

func actMessages(req Request) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: actSystemPrompt},
		{Role: llm.RoleUser, Content: composePrompt(req)},
	}
}

func summarizeMessages(req Request, draft string, transcript *llm.Transcript) []llm.Message {
	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: summarizeSystemPrompt},
		{Role: llm.RoleUser, Content: composePrompt(req)},
	}
	if draft != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: draft})
	}
	msgs = append(msgs, llm.Message{
		Role:    llm.RoleUser,
		Content: "Tool calls and results:\n\n" + transcript.Render() + "\n\nSummarize this for me.",
	})
	return msgs
}

func connectMessage(status bridge.Status, detail string) string {
	switch status {
	case bridge.StatusPending:
		return "Your Google Calendar connection isn't finished yet. Please complete the authorization, then send your message again."
	case bridge.StatusError:
		msg := "I couldn't reach your Google Calendar connection. Please reconnect your calendar and try again."
		if detail != "" {
			msg += " (" + detail + ")"
		}
		return msg
	default:
		return "I don't have access to your Google Calendar yet. Please connect your calendar first so I can help with that."
	}
}
