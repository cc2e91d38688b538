package server

import (
	"context"

	"github.com/nrdlngr/x402mcp"
	"github.com/nrdlngr/x402mcp/session"
)

// InvocationContext is the per-RPC mutable scratchpad scoped to one
// handler execution (spec §3). It is created by the wrapper for every
// dispatched invocation and released once the invocation completes.
type InvocationContext struct {
	RequestID  string
	Session    session.ServerSession
	Cancelled  func() bool

	PaymentProof        *x402mcp.PaymentPayload
	PaymentRequirements *x402mcp.PaymentRequirement
}

// NewInvocationContext builds a context for one dispatched invocation.
func NewInvocationContext(requestID string, sess session.ServerSession, cancelled func() bool) *InvocationContext {
	if cancelled == nil {
		cancelled = func() bool { return false }
	}
	return &InvocationContext{RequestID: requestID, Session: sess, Cancelled: cancelled}
}

// Strip removes the payment fields. The wrapper calls this on every
// exit path so handler bodies never observe payment state (spec
// §4.2's invariant).
func (ic *InvocationContext) Strip() {
	ic.PaymentProof = nil
	ic.PaymentRequirements = nil
}

func (ic *InvocationContext) sendRequest(ctx context.Context, id, method string, params map[string]any) (map[string]any, error) {
	return ic.Session.SendRequest(ctx, id, method, params)
}

func (ic *InvocationContext) sendNotification(ctx context.Context, method string, params map[string]any) error {
	return ic.Session.SendNotification(ctx, method, params)
}
