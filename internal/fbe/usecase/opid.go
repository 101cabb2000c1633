package usecase

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type opIDKey struct{}

// WithOpID attaches a fresh correlation ID to ctx for the duration of one
// KeyManager/UserManager call, so every log line it produces — and every
// log line produced by the BaseKey instances it drives — can be traced
// back to the same external request without threading an explicit
// parameter through every signature.
func WithOpID(ctx context.Context) context.Context {
	return context.WithValue(ctx, opIDKey{}, uuid.Must(uuid.NewV7()).String())
}

// OpID returns the correlation ID attached to ctx, or "" if none was set.
func OpID(ctx context.Context) string {
	id, _ := ctx.Value(opIDKey{}).(string)
	return id
}

// LoggerWithOpID returns logger with ctx's correlation ID attached as a
// structured field, or logger unchanged if ctx carries none.
func LoggerWithOpID(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return nil
	}
	if id := OpID(ctx); id != "" {
		return logger.With(slog.String("op_id", id))
	}
	return logger
}
