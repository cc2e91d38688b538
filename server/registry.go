// Package server implements the server-side half of the payment
// mediation core: the Handler Registry, the Payment Orchestrator, and
// the Handler Wrapper that glues them to registered handlers (spec
// §4.1-§4.3).
package server

import (
	"context"

	"github.com/nrdlngr/x402mcp"
)

// Invocation carries the arguments a handler body receives, per kind.
// Only the fields relevant to the descriptor's kind are populated.
type Invocation struct {
	Args      map[string]any
	URI       string
	Variables map[string]any
}

// Callable is a handler body. Handler business logic is out of scope
// for this core (spec §1); this is the seam the core calls through.
type Callable func(ctx context.Context, inv Invocation) (any, error)

// HandlerDescriptor is the server-side registration record for one
// protected or unprotected operation (spec §3).
type HandlerDescriptor struct {
	Name           string
	Kind           x402mcp.HandlerKind
	PaymentOptions *x402mcp.PaymentOptions
	Callable       Callable

	order int
}

// Protected reports whether the descriptor carries payment options.
func (d HandlerDescriptor) Protected() bool {
	return d.PaymentOptions != nil
}

// Registry enumerates protected and unprotected handlers, partitioned
// by kind, in deterministic registration order (spec §4.1).
type Registry struct {
	byKind map[x402mcp.HandlerKind][]HandlerDescriptor
	byName map[string]struct{}
	next   int
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byKind: make(map[x402mcp.HandlerKind][]HandlerDescriptor),
		byName: make(map[string]struct{}),
	}
}

// Register adds one handler. paymentOptions may be nil for an
// unprotected handler. Registration fails with CodeConfigInvalid if
// the name is already registered or paymentOptions.Amount <= 0.
func (r *Registry) Register(name string, kind x402mcp.HandlerKind, paymentOptions *x402mcp.PaymentOptions, callable Callable) error {
	if _, exists := r.byName[name]; exists {
		return x402mcp.NewErrorf(x402mcp.CodeConfigInvalid, "handler %q already registered", name)
	}
	if callable == nil {
		return x402mcp.NewErrorf(x402mcp.CodeConfigInvalid, "handler %q has no callable", name)
	}
	if paymentOptions != nil && paymentOptions.Amount <= 0 {
		return x402mcp.NewErrorf(x402mcp.CodeConfigInvalid, "handler %q: paymentOptions.Amount must be positive, got %v", name, paymentOptions.Amount)
	}

	descriptor := HandlerDescriptor{
		Name:           name,
		Kind:           kind,
		PaymentOptions: paymentOptions,
		Callable:       callable,
		order:          r.next,
	}
	r.next++
	r.byName[name] = struct{}{}
	r.byKind[kind] = append(r.byKind[kind], descriptor)
	return nil
}

// Lookup returns the descriptor for name, if registered.
func (r *Registry) Lookup(name string) (HandlerDescriptor, bool) {
	for _, descriptors := range r.byKind {
		for _, d := range descriptors {
			if d.Name == name {
				return d, true
			}
		}
	}
	return HandlerDescriptor{}, false
}

// Tools, Prompts, Resources, and ResourceTemplates return the
// descriptors of the given kind in registration order.
func (r *Registry) Tools() []HandlerDescriptor             { return r.byKind[x402mcp.KindTool] }
func (r *Registry) Prompts() []HandlerDescriptor            { return r.byKind[x402mcp.KindPrompt] }
func (r *Registry) Resources() []HandlerDescriptor          { return r.byKind[x402mcp.KindResource] }
func (r *Registry) ResourceTemplates() []HandlerDescriptor { return r.byKind[x402mcp.KindResourceTemplate] }

// All returns every descriptor, ordered by kind (tool, prompt,
// resource, resourceTemplate) then by registration order within the
// kind, matching spec §4.1's "deterministic ordering" guarantee.
func (r *Registry) All() []HandlerDescriptor {
	kinds := []x402mcp.HandlerKind{
		x402mcp.KindTool,
		x402mcp.KindPrompt,
		x402mcp.KindResource,
		x402mcp.KindResourceTemplate,
	}
	var all []HandlerDescriptor
	for _, k := range kinds {
		all = append(all, r.byKind[k]...)
	}
	return all
}
