package meowauth

import (
	"context"
	"time"
)

type clientIPContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. Register uses it for
// its per-IP budget and audit events record it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

// readCtx bounds a storage read by the operation timeout. The caller's
// cancellation still applies.
func (e *Engine) readCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.Storage.OperationTimeout)
}

// writeCtx detaches a storage write from caller cancellation so an aborted
// request cannot leave partial state. The operation timeout still applies.
func (e *Engine) writeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), e.config.Storage.OperationTimeout)
}

func (e *Engine) now() time.Time {
	return e.clock()
}
