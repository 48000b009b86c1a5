package common

import (
	"context"
	"time"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyUserID    contextKey = "user_id"
	ContextKeyMessageID contextKey = "message_id"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithUserID tags the context with the user whose mailbox is being synced.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

func UserIDFromContext(ctx context.Context) string {
	if userID, ok := ctx.Value(ContextKeyUserID).(string); ok {
		return userID
	}
	return ""
}

// WithMessageID tags the context with the email being processed.
func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, ContextKeyMessageID, messageID)
}

func MessageIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyMessageID).(string); ok {
		return id
	}
	return ""
}

// WithTimeout creates a context with the specified timeout
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

// LogAttrs returns the request, user and message ids carried by ctx as slog
// key/value pairs. Missing ids are left out.
func LogAttrs(ctx context.Context) []any {
	var attrs []any
	if id := RequestIDFromContext(ctx); id != "" {
		attrs = append(attrs, "request_id", id)
	}
	if id := UserIDFromContext(ctx); id != "" {
		attrs = append(attrs, "user_id", id)
	}
	if id := MessageIDFromContext(ctx); id != "" {
		attrs = append(attrs, "email_id", id)
	}
	return attrs
}
