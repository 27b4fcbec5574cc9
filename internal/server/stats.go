package server

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/teemow/calendarchat/internal/registry"
)

// Stats holds process-level counters reported by /stats. It implements
// dispatch.Stats.
type Stats struct {
	started time.Time

	requests           atomic.Int64
	messagesSent       atomic.Int64
	llmCalls           atomic.Int64
	toolExecutions     atomic.Int64
	callbacksSucceeded atomic.Int64
	callbacksFailed    atomic.Int64
}

// NewStats starts the uptime clock.
func NewStats() *Stats {
	return &Stats{started: time.Now()}
}

func (s *Stats) RequestServed()     { s.requests.Add(1) }
func (s *Stats) MessageDispatched() { s.messagesSent.Add(1) }
func (s *Stats) LLMCalled()         { s.llmCalls.Add(1) }
func (s *Stats) ToolExecuted()      { s.toolExecutions.Add(1) }

// CallbackHandled counts an OAuth callback by outcome.
func (s *Stats) CallbackHandled(ok bool) {
	if ok {
		s.callbacksSucceeded.Add(1)
		return
	}
	s.callbacksFailed.Add(1)
}

// StatsSnapshot is the /stats response body.
type StatsSnapshot struct {
	Uptime             string           `json:"uptime"`
	UptimeSeconds      int64            `json:"uptimeSeconds"`
	Requests           int64            `json:"requests"`
	MessagesSent       int64            `json:"messagesSent"`
	LLMCalls           int64            `json:"llmCalls"`
	ToolExecutions     int64            `json:"toolExecutions"`
	CallbacksSucceeded int64            `json:"callbacksSucceeded"`
	CallbacksFailed    int64            `json:"callbacksFailed"`
	PendingFlows       int              `json:"pendingFlows"`
	Notifications      int              `json:"notifications"`
	Connections        registry.Summary `json:"connections"`
	Goroutines         int              `json:"goroutines"`
}

// Snapshot reads the counters. The caller fills in the registry summary and
// the flow and feed sizes.
func (s *Stats) Snapshot() StatsSnapshot {
	uptime := time.Since(s.started)
	return StatsSnapshot{
		Uptime:             uptime.Truncate(time.Second).String(),
		UptimeSeconds:      int64(uptime / time.Second),
		Requests:           s.requests.Load(),
		MessagesSent:       s.messagesSent.Load(),
		LLMCalls:           s.llmCalls.Load(),
		ToolExecutions:     s.toolExecutions.Load(),
		CallbacksSucceeded: s.callbacksSucceeded.Load(),
		CallbacksFailed:    s.callbacksFailed.Load(),
		Goroutines:         runtime.NumGoroutine(),
	}
}
