package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"autocoder/internal/logging"
	"autocoder/internal/services"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("coding run finished", logging.Int("total_responses", 3))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"coding run finished"`) {
		t.Fatalf("missing message in output: %s", out)
	}
	if !strings.Contains(out, `"total_responses":3`) {
		t.Fatalf("missing attr in output: %s", out)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	base, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := services.WithWorkspaceID(context.Background(), 4)
	ctx = services.WithStage(ctx, "resolve persons")
	logging.WithContext(ctx, base).Info("checkpoint")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"workspace_id":4`) || !strings.Contains(out, `"stage":"resolve persons"`) {
		t.Fatalf("context fields missing: %s", out)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	logger.Error("should not panic", logging.Error(nil))
	if logger.Enabled(context.Background(), 0) {
		t.Fatal("nop logger should be disabled")
	}
}
