package types

import "context"

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keyTraceID contextKey = "trace_id"
	keyRunID   contextKey = "run_id"
	keyStoryID contextKey = "story_id"
	keyStage   contextKey = "stage"
)

// WithTraceID adds trace ID to context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, keyTraceID, traceID)
}

// TraceID extracts trace ID from context.
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyTraceID).(string)
	return v, ok && v != ""
}

// WithRunID adds the pipeline run ID to context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, keyRunID, runID)
}

// RunID extracts the pipeline run ID from context.
func RunID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRunID).(string)
	return v, ok && v != ""
}

// WithStoryID adds the story ID to context.
func WithStoryID(ctx context.Context, storyID string) context.Context {
	return context.WithValue(ctx, keyStoryID, storyID)
}

// StoryID extracts the story ID from context.
func StoryID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyStoryID).(string)
	return v, ok && v != ""
}

// WithStage adds the current stage name to context.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, keyStage, stage)
}

// Stage extracts the current stage name from context.
func Stage(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyStage).(string)
	return v, ok && v != ""
}
