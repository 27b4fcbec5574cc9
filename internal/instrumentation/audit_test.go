package instrumentation

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestToolExecution_Complete(t *testing.T) {
	te := NewToolExecution(context.Background(), "calendar_list_events", "google", "a@example.com", "aexamplecom")
	te.Complete(nil)
	if !te.Success || te.Status() != StatusSuccess {
		t.Errorf("expected success, got %+v", te)
	}

	te = NewToolExecution(context.Background(), "calendar_create_event", "google", "a@example.com", "aexamplecom")
	te.Complete(errors.New("quota exceeded"))
	if te.Success || te.Status() != StatusError || te.Error != "quota exceeded" {
		t.Errorf("expected failure, got %+v", te)
	}
}

func TestAuditLogger_Anonymized(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	al := NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true})

	te := NewToolExecution(context.Background(), "calendar_list_events", "google", "jane@example.com", "janeexamplecom").Complete(nil)
	al.LogToolExecution(te)

	out := buf.String()
	if !strings.Contains(out, "tool_executed") {
		t.Errorf("expected tool_executed message, got %q", out)
	}
	if strings.Contains(out, "jane@example.com") {
		t.Errorf("email leaked without IncludePII: %q", out)
	}
	if !strings.Contains(out, "user_domain=example.com") {
		t.Errorf("expected domain, got %q", out)
	}
}

func TestAuditLogger_IncludePII(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	al := NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true, IncludePII: true})

	te := NewToolExecution(context.Background(), "calendar_delete_event", "google", "jane@example.com", "janeexamplecom").
		Complete(errors.New("not found"))
	al.LogToolExecution(te)

	out := buf.String()
	if !strings.Contains(out, "tool_failed") || !strings.Contains(out, "user=jane@example.com") {
		t.Errorf("unexpected audit output %q", out)
	}
}

func TestAuditLogger_DisabledAndNil(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLoggerWithConfig(slog.New(slog.NewTextHandler(&buf, nil)), AuditLoggingConfig{Enabled: false})
	al.LogToolExecution(NewToolExecution(context.Background(), "x", "y", "", "").Complete(nil))
	if buf.Len() != 0 {
		t.Errorf("disabled audit logger wrote %q", buf.String())
	}

	var nilLogger *AuditLogger
	nilLogger.LogToolExecution(&ToolExecution{})
}

func TestExtractUserDomain(t *testing.T) {
	tests := map[string]string{
		"jane@Example.com": "example.com",
		"":                 "unknown",
		"invalid":          "unknown",
		"user@":            "unknown",
	}
	for in, want := range tests {
		if got := ExtractUserDomain(in); got != want {
			t.Errorf("ExtractUserDomain(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	known := []string{"/stats", "/send-message"}
	if got := NormalizePath("/stats", known); got != "/stats" {
		t.Errorf("got %q", got)
	}
	if got := NormalizePath("/wp-admin", known); got != "other" {
		t.Errorf("got %q", got)
	}
}
