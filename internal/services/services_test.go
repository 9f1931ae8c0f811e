package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"autocoder/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithWorkspaceID(ctx, 7)
	ctx = services.WithJobID(ctx, "job-123")
	ctx = services.WithStage(ctx, "persist")

	if id, ok := services.WorkspaceIDFromContext(ctx); !ok || id != 7 {
		t.Fatalf("unexpected workspace id: %v %v", id, ok)
	}
	if id, ok := services.JobIDFromContext(ctx); !ok || id != "job-123" {
		t.Fatalf("unexpected job id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "persist" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
}

func TestBlankStagePreservesContext(t *testing.T) {
	ctx := services.WithStage(context.Background(), "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
}

func TestWrapTagsMarker(t *testing.T) {
	err := services.Wrap(services.ErrParse, "coding", "load scheme", "scheme payload unreadable", errors.New("unexpected end of JSON input"))
	if !errors.Is(err, services.ErrParse) {
		t.Fatalf("expected ErrParse marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "coding: load scheme") {
		t.Fatalf("missing stage detail: %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected generic detail: %v", err)
	}
}
