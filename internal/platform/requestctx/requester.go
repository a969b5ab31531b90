// Package requestctx carries per-request identity through a context.
package requestctx

import "context"

// requesterContextKey is the context key for the authenticated requester.
type requesterContextKey struct{}

// WithRequester stores the authenticated requester in context.
func WithRequester(ctx context.Context, requester string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requesterContextKey{}, requester)
}

// RequesterFromContext returns the requester stored in context.
func RequesterFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requesterContextKey{}).(string)
	return value
}
