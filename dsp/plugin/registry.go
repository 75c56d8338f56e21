package plugin

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cwbudde/algo-daw/dsp/graph"
)

// ErrUnknownKind is returned for descriptors whose kind is not registered.
var ErrUnknownKind = errors.New("plugin: unknown kind")

var errDuplicateKind = errors.New("plugin: kind already registered")

// Factory constructs a plugin node in ctx.
type Factory func(ctx *graph.Context) (Node, error)

// Registry maps plugin kinds to factories.
type Registry struct {
	factories map[Kind]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[Kind]Factory)}
}

// Register adds a factory for kind. It returns an error if kind is empty,
// factory is nil, or kind is already registered.
func (r *Registry) Register(kind Kind, factory Factory) error {
	if kind == "" {
		return errors.New("plugin: kind must not be empty")
	}

	if factory == nil {
		return errors.New("plugin: factory must not be nil")
	}

	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("%w: %q", errDuplicateKind, kind)
	}

	r.factories[kind] = factory

	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(kind Kind, factory Factory) {
	if err := r.Register(kind, factory); err != nil {
		panic("plugin registry: " + err.Error())
	}
}

// Lookup returns the factory for kind.
func (r *Registry) Lookup(kind Kind) (Factory, bool) {
	f, ok := r.factories[kind.Normalize()]
	return f, ok
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}

	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	return kinds
}

// Create builds the node for d and immediately pushes the descriptor's
// params, including its enabled flag, into it.
func (r *Registry) Create(ctx *graph.Context, d Descriptor) (Node, error) {
	factory, ok := r.Lookup(d.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, d.Kind)
	}

	n, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("plugin: create %s: %w", d.Kind, err)
	}

	n.UpdateParams(d.EffectiveParams())

	return n, nil
}
