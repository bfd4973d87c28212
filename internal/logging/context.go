package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldArtifactID is the standardized structured logging key for artifact identifiers.
	FieldArtifactID = "artifact_id"
	// FieldProfileID is the standardized structured logging key for identity profile identifiers.
	FieldProfileID = "profile_id"
	// FieldLinkID is the standardized structured logging key for entity link identifiers.
	FieldLinkID = "link_id"
	// FieldSource is the standardized structured logging key for producer source systems.
	FieldSource = "source"
	// FieldEventType is the standardized structured logging key for event classifications.
	FieldEventType = "event_type"
	// FieldDecisionType is the standardized structured logging key for engine decision records.
	FieldDecisionType = "decision_type"
)

type contextKey int

const (
	artifactIDKey contextKey = iota
	sourceKey
)

// WithArtifactID stores an artifact identifier on the context for log enrichment.
func WithArtifactID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, artifactIDKey, id)
}

// WithSource stores a producer source system on the context for log enrichment.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey, source)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if id, ok := ctx.Value(artifactIDKey).(int64); ok {
		fields = append(fields, slog.Int64(FieldArtifactID, id))
	}
	if source, ok := ctx.Value(sourceKey).(string); ok && source != "" {
		fields = append(fields, slog.String(FieldSource, source))
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
