package server

import (
	"context"

	"github.com/nrdlngr/x402mcp"
	"github.com/nrdlngr/x402mcp/session"
)

// Server binds a Registry and a Wrapper to one session, dispatching
// inbound "tools/call" requests to the matching descriptor. It is the
// thinnest possible base-protocol binding; a real MCP binding would
// translate the host SDK's own call convention into an Invocation
// instead.
type Server struct {
	Registry *Registry
	Wrapper  *Wrapper
}

// NewServer builds a Server around registry, mediating payment via
// orchestrator.
func NewServer(registry *Registry, orchestrator *Orchestrator) *Server {
	return &Server{Registry: registry, Wrapper: NewWrapper(orchestrator)}
}

// Dispatch implements session.HandlerFunc: it resolves req.Params's
// "name" to a registered descriptor and invokes it through the
// wrapper, binding sess as the invocation's server session so the
// orchestrator can originate the in-band sub-RPC on req.ID.
func (s *Server) Dispatch(sess session.ServerSession) session.HandlerFunc {
	return func(ctx context.Context, req session.Request) (map[string]any, error) {
		name, _ := req.Params["name"].(string)
		descriptor, ok := s.Registry.Lookup(name)
		if !ok {
			return nil, x402mcp.NewErrorf(x402mcp.CodeMethodNotFound, "no handler registered for %q", name)
		}

		args, _ := req.Params["arguments"].(map[string]any)
		ic := NewInvocationContext(req.ID, sess, nil)

		result, err := s.Wrapper.Invoke(ctx, descriptor, Invocation{Args: args}, ic)
		if err != nil {
			return nil, err
		}
		return map[string]any{"result": result}, nil
	}
}
