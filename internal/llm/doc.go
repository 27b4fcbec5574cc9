// Package llm defines the chat-completion client used by the dispatcher.
//
// Client is the seam the dispatch pipeline depends on. OpenAIClient talks to
// the OpenAI chat completions API; DisabledClient stands in when no API key is
// configured and fails every call with ErrDisabled.
//
// A Transcript carries the tool calls of the first (act) completion and their
// results into the second (summarize) completion.
package llm
