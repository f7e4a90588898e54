package logger

import "context"

type contextKey string

const (
	loggerKey    contextKey = "wsmesh.logger"
	requestIDKey contextKey = "wsmesh.request_id"
	connIDKey    contextKey = "wsmesh.conn_id"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns the default logger if none is set.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithRequestID adds an HTTP request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithConnID adds a connection id to the context.
func WithConnID(ctx context.Context, connID string) context.Context {
	return context.WithValue(ctx, connIDKey, connID)
}

// ConnIDFromContext extracts the connection id from context.
func ConnIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(connIDKey).(string)
	return id
}

// L returns the context logger enriched with the request and connection
// ids found in ctx.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)
	if reqID := RequestIDFromContext(ctx); reqID != "" {
		l = l.With("request_id", reqID)
	}
	if connID := ConnIDFromContext(ctx); connID != "" {
		l = l.With("conn_id", connID)
	}
	return l
}
