package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"legal-ease-backend/internal/extract/extracttest"
)

func TestAnalyzeCommandWithDemoProvider(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("RATE_LIMIT_POLICY_FILE", "")
	path := filepath.Join(t.TempDir(), "lease.pdf")
	pdf := extracttest.PDF("The monthly rent is $1,200, due on the first day of each month.")
	if err := os.WriteFile(path, pdf, 0o600); err != nil {
		t.Fatalf("write pdf: %v", err)
	}

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"analyze", path, "--provider", "mock", "--ask", "What is the monthly rent?"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "Document: lease.pdf (1 pages") {
		t.Fatalf("missing document header:\n%s", got)
	}
	if !strings.Contains(got, "A: The document says: The monthly rent is $1,200") {
		t.Fatalf("missing answer:\n%s", got)
	}
}

func TestAnalyzeCommandRejectsNonPDF(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("RATE_LIMIT_POLICY_FILE", "")
	path := filepath.Join(t.TempDir(), "notes.pdf")
	if err := os.WriteFile(path, []byte("just text"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"analyze", path, "--provider", "mock"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error for non-PDF input")
	}
	if !strings.Contains(out.String(), "invalid input (invalid_file)") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestPolicyCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.yaml")
	if err := os.WriteFile(path, []byte("limits:\n  upload: {limit: 5, window: 300s}\n  whatsapp: {limit: 50, window: 5m}\n"), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"policy", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "channel:whatsapp") || !strings.Contains(got, "5 per 5m0s") {
		t.Fatalf("unexpected policy output:\n%s", got)
	}
}
