package secrets

import "context"

type contextKey string

const (
	// RegistryKey is the context key for the process secrets registry.
	RegistryKey contextKey = "goclaw_secrets_registry"
	// TransportKey is the context key for the masking transport.
	TransportKey contextKey = "goclaw_secrets_transport"
)

// WithRegistry returns a new context carrying r.
func WithRegistry(ctx context.Context, r *Registry) context.Context {
	return context.WithValue(ctx, RegistryKey, r)
}

// RegistryFromContext extracts the registry from context. Returns nil if not set.
func RegistryFromContext(ctx context.Context) *Registry {
	if v, ok := ctx.Value(RegistryKey).(*Registry); ok {
		return v
	}
	return nil
}

// WithTransport returns a new context carrying t.
func WithTransport(ctx context.Context, t *Transport) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}

// TransportFromContext extracts the transport from context. Falls back to a
// value-only transport over the context registry, or nil if neither is set.
func TransportFromContext(ctx context.Context) *Transport {
	if v, ok := ctx.Value(TransportKey).(*Transport); ok {
		return v
	}
	if r := RegistryFromContext(ctx); r != nil {
		return NewTransport(r, nil)
	}
	return nil
}
