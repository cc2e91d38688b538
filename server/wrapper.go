package server

import (
	"context"

	"github.com/nrdlngr/x402mcp"
)

// Wrapper composes the Orchestrator around a Registry's descriptors
// (spec §4.2). It produces, for each descriptor, a callback compatible
// with the base protocol's calling convention for that kind.
type Wrapper struct {
	Orchestrator *Orchestrator
}

// NewWrapper builds a Wrapper around the given orchestrator.
func NewWrapper(orchestrator *Orchestrator) *Wrapper {
	return &Wrapper{Orchestrator: orchestrator}
}

// Invoke runs one dispatched invocation of descriptor, mediating
// payment if the descriptor is protected. It strips payment state
// from ic on every exit path, per spec §4.2's invariant.
func (w *Wrapper) Invoke(ctx context.Context, descriptor HandlerDescriptor, inv Invocation, ic *InvocationContext) (any, error) {
	defer ic.Strip()

	if !descriptor.Protected() {
		return descriptor.Callable(ctx, inv)
	}

	if err := w.Orchestrator.Verify(ctx, descriptor.Name, descriptor.PaymentOptions, ic); err != nil {
		return nil, err
	}

	result, err := descriptor.Callable(ctx, inv)
	if err != nil {
		// Handler failed: no settlement is attempted (spec §4.3's
		// READY -> END transition on handler throw).
		return nil, x402mcp.NewErrorf(x402mcp.CodeInternalError, "handler execution failed: %v", err)
	}

	if err := w.Orchestrator.Settle(ctx, ic); err != nil {
		return nil, err
	}
	return result, nil
}
