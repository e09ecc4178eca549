package audit

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"eastviewpta.org/internal/auth"
	"eastviewpta.org/internal/obs"
	"eastviewpta.org/internal/pta"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the audit request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit log entry enriched with request and user context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	attrs := []slog.Attr{
		slog.String("type", "audit"),
		slog.String("event", event),
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		attrs = append(attrs, slog.String("request_id", rid))
	}
	if userID, ok := auth.UserIDFromContext(ctx); ok {
		attrs = append(attrs, slog.String("user_id", userID))
	}
	group := make([]any, 0, len(fields))
	for k, v := range fields {
		group = append(group, slog.Any(k, v))
	}
	attrs = append(attrs, slog.Group("fields", group...))
	obs.Logger().LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
	return nil
}

// Observer records every workflow transition as an audit event.
type Observer struct{}

func (Observer) Observe(ctx context.Context, c pta.Change) {
	fields := map[string]any{
		"entity_id": c.EntityID,
		"to":        c.To,
	}
	if c.From != "" {
		fields["from"] = c.From
	}
	if c.ActorID != "" {
		fields["actor_id"] = c.ActorID
	}
	if c.SubjectID != "" {
		fields["subject_id"] = c.SubjectID
	}
	_ = LogEvent(ctx, c.Entity+"."+string(c.Transition), fields)
}

var _ pta.Observer = Observer{}
