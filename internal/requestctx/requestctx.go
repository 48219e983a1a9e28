// Package requestctx carries per-request correlation values below the HTTP
// layer, so domain code can tag its logs without importing transport.
package requestctx

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	clientIPKey
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

func GetClientIP(ctx context.Context) string {
	value, _ := ctx.Value(clientIPKey).(string)
	return value
}

// LogAttr groups whatever correlation values ctx holds.
func LogAttr(ctx context.Context) slog.Attr {
	var attrs []any
	if id := GetRequestID(ctx); id != "" {
		attrs = append(attrs, slog.String("id", id))
	}
	if ip := GetClientIP(ctx); ip != "" {
		attrs = append(attrs, slog.String("ip", ip))
	}
	return slog.Group("request", attrs...)
}
