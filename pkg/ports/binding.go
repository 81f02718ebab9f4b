package ports

import "context"

// ClientBinding is a client bound to one identity of the target service.
// Implementations must support concurrent Invoke calls.
type ClientBinding interface {
	// Identity returns the configured identity name.
	Identity() string

	// SupportedOperations lists the operation names the service advertises.
	SupportedOperations() []string

	// Properties returns the identity's merged properties.
	Properties() map[string]any

	// Invoke calls an operation. A structured failure reported by the service
	// is returned as *domain.ServiceError.
	Invoke(ctx context.Context, operation string, params map[string]any) (map[string]any, error)

	// Close releases the binding.
	Close() error
}

// BindingProvider opens a binding for a service and identity.
type BindingProvider interface {
	Open(ctx context.Context, service, identity string, props map[string]any) (ClientBinding, error)
}
