package tool

import "github.com/8agana/polychat/core"

// Registry holds the registered tools and enforces the execution policy.
// Registration happens once at startup; lookups afterwards are read-only,
// so no locking is needed.
//
// Policy layering: mode filtering runs first (planning admits only
// read-only tools), then the optional allow-list restricts further. Tools
// filtered out by either layer are neither advertised by List nor
// executable through Resolve.
type Registry struct {
	tools map[string]Tool
	order []string
	allow map[string]struct{}
}

// Option configures a Registry.
type Option func(*Registry)

// WithAllowList restricts the registry to the named tools. An empty list
// means no restriction.
func WithAllowList(names []string) Option {
	return func(r *Registry) {
		if len(names) == 0 {
			return
		}
		r.allow = make(map[string]struct{}, len(names))
		for _, n := range names {
			r.allow[n] = struct{}{}
		}
	}
}

// NewRegistry constructs an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewDefaultRegistry constructs a registry holding the built-in tools.
func NewDefaultRegistry(opts ...Option) *Registry {
	r := NewRegistry(opts...)
	// Built-ins cannot collide on a fresh registry.
	_ = r.Register(NewReadFileTool())
	_ = r.Register(NewEchoTool())
	return r
}

// Register adds a tool. It fails with DuplicateError if the name exists.
func (r *Registry) Register(t Tool) error {
	name := t.Spec().Name
	if _, exists := r.tools[name]; exists {
		return &DuplicateError{Name: name}
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Resolve returns the named tool if it is callable under mode and the
// allow-list. It fails with UnknownError for unregistered names and
// PolicyError for registered but disallowed ones.
func (r *Registry) Resolve(name string, mode core.Mode) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, &UnknownError{Name: name}
	}
	if mode == core.ModePlanning && !t.Spec().ReadOnly {
		return nil, &PolicyError{Tool: name, Mode: mode}
	}
	if !r.allowed(name) {
		return nil, &PolicyError{Tool: name, Mode: mode, Reason: "not in allow-list"}
	}
	return t, nil
}

// List returns the specs callable under mode, in registration order, for
// advertisement to the provider. Tools the model may not call are not
// listed at all.
func (r *Registry) List(mode core.Mode) []Spec {
	var out []Spec
	for _, name := range r.order {
		spec := r.tools[name].Spec()
		if mode == core.ModePlanning && !spec.ReadOnly {
			continue
		}
		if !r.allowed(name) {
			continue
		}
		out = append(out, spec)
	}
	return out
}

func (r *Registry) allowed(name string) bool {
	if r.allow == nil {
		return true
	}
	_, ok := r.allow[name]
	return ok
}
