package hostfuncs

import (
	"fmt"
	"sort"
)

// HandlerRegistry is an immutable collection of named capabilities.
// Once created via NewRegistry, capabilities cannot be added or removed.
// This keeps lookups lock-free while many renders link against it.
type HandlerRegistry struct {
	capabilities map[string]Capability
	moduleName   string
	names        []string // sorted for consistent iteration
}

// registryBuilder accumulates configuration during registry construction.
type registryBuilder struct {
	capabilities map[string]Capability
	moduleName   string
	middleware   []Middleware
	errors       []error
}

// RegistryOption is a functional option for configuring a HandlerRegistry.
type RegistryOption func(*registryBuilder)

// NewRegistry creates an immutable HandlerRegistry with the given options.
// Returns an error if any capability name is registered twice.
//
// Example usage:
//
//	registry, err := NewRegistry(
//	    WithMiddleware(LoggingMiddleware(slog.Default())),
//	    WithCapability(UnixTime(SystemClock{})),
//	)
func NewRegistry(opts ...RegistryOption) (*HandlerRegistry, error) {
	b := &registryBuilder{
		capabilities: make(map[string]Capability),
		moduleName:   DefaultModuleName,
	}

	for _, opt := range opts {
		opt(b)
	}

	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}

	names := make([]string, 0, len(b.capabilities))
	for name := range b.capabilities {
		names = append(names, name)
	}
	sort.Strings(names)

	wrapped := make(map[string]Capability, len(b.capabilities))
	for name, c := range b.capabilities {
		fn := c.Func
		// Apply middleware in reverse order so first middleware wraps outermost
		for i := len(b.middleware) - 1; i >= 0; i-- {
			fn = b.middleware[i](name, fn)
		}
		c.Func = fn
		wrapped[name] = c
	}

	return &HandlerRegistry{
		capabilities: wrapped,
		moduleName:   b.moduleName,
		names:        names,
	}, nil
}

// ModuleName returns the import module the capabilities are exported under.
func (r *HandlerRegistry) ModuleName() string {
	return r.moduleName
}

// Lookup returns the capability registered under name.
func (r *HandlerRegistry) Lookup(name string) (Capability, bool) {
	c, ok := r.capabilities[name]
	return c, ok
}

// Has returns true if a capability with the given name is registered.
func (r *HandlerRegistry) Has(name string) bool {
	_, ok := r.capabilities[name]
	return ok
}

// Names returns a sorted list of all registered capability names.
func (r *HandlerRegistry) Names() []string {
	result := make([]string, len(r.names))
	copy(result, r.names)
	return result
}

func (b *registryBuilder) addCapability(c Capability) error {
	if c.Name == "" {
		return fmt.Errorf("capability name cannot be empty")
	}
	if c.Func == nil {
		return fmt.Errorf("capability %q has no implementation", c.Name)
	}
	if _, exists := b.capabilities[c.Name]; exists {
		return fmt.Errorf("duplicate capability name: %q", c.Name)
	}
	b.capabilities[c.Name] = c
	return nil
}

// WithCapability registers a capability.
func WithCapability(c Capability) RegistryOption {
	return func(b *registryBuilder) {
		if err := b.addCapability(c); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}

// WithModuleName sets the import module name (default "env").
func WithModuleName(name string) RegistryOption {
	return func(b *registryBuilder) {
		if name == "" {
			b.errors = append(b.errors, fmt.Errorf("module name cannot be empty"))
			return
		}
		b.moduleName = name
	}
}

// WithMiddleware adds middleware to the registry.
// Middleware executes in FIFO order (first added wraps first).
func WithMiddleware(mw ...Middleware) RegistryOption {
	return func(b *registryBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}

// DefaultRegistry returns a registry holding the unixtime capability backed
// by clock.
func DefaultRegistry(clock Clock, opts ...RegistryOption) (*HandlerRegistry, error) {
	all := append([]RegistryOption{WithCapability(UnixTime(clock))}, opts...)
	return NewRegistry(all...)
}
