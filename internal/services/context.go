package services

import "context"

type contextKey string

const (
	workspaceIDKey contextKey = "workspace_id"
	jobIDKey       contextKey = "job_id"
	stageKey       contextKey = "stage"
)

// WithWorkspaceID annotates context with the workspace identifier.
func WithWorkspaceID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, workspaceIDKey, id)
}

// WorkspaceIDFromContext extracts the workspace identifier if present.
func WorkspaceIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(workspaceIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithJobID annotates context with the coding-job identifier.
func WithJobID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext returns the coding-job identifier if present.
func JobIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(jobIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the batch stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
