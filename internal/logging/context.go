package logging

import (
	"context"
	"log/slog"

	"autocoder/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldWorkspaceID is the standardized structured logging key for workspace identifiers.
	FieldWorkspaceID = "workspace_id"
	// FieldJobID is the standardized structured logging key for coding-job identifiers.
	FieldJobID = "job_id"
	// FieldStage is the standardized structured logging key for batch stage names.
	FieldStage = "stage"
	// FieldEventType is the standardized structured logging key for machine-parseable event tags.
	FieldEventType = "event_type"
	// FieldErrorHint gives operators a next step when something fails.
	FieldErrorHint = "error_hint"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.WorkspaceIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldWorkspaceID, id))
	}
	if id, ok := services.JobIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldJobID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}

// WithStage stamps the stage name onto the context for downstream log enrichment.
func WithStage(ctx context.Context, stage string) context.Context {
	return services.WithStage(ctx, stage)
}
