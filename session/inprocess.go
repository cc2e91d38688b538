package session

import "context"

// inProcessCore holds the shared state of one in-process server/client
// pair. It is split into two typed views below so the same state can
// satisfy both ServerSession and ClientSession with role-appropriate
// behavior.
type inProcessCore struct {
	serverDispatch            HandlerFunc
	clientRequestHandler      HandlerFunc
	clientNotificationHandler NotificationFunc
	interceptor               SendInterceptor
}

// InProcessPair wires one server to one client via direct,
// synchronous calls rather than a wire protocol. It exists so the
// orchestrator and responder can be exercised together without a
// network transport; cmd/demo and the package tests build their
// sessions this way.
//
// Because calls are synchronous Go function calls, the server's
// sub-RPC back to the client (spec §9's "dynamic coupling" design
// note) is simply a reentrant call on the same goroutine stack — no
// wire-level id demultiplexing is needed, but the id is still threaded
// through so a future network transport swap is mechanical.
type InProcessPair struct {
	core *inProcessCore
}

// NewInProcessPair builds an unbound pair. Call BindServer before any
// traffic flows, and register the client's request/notification
// handlers via Client().OnRequest / OnNotification.
func NewInProcessPair() *InProcessPair {
	return &InProcessPair{core: &inProcessCore{}}
}

// BindServer registers the server's top-level dispatcher, invoked for
// every client->server request.
func (p *InProcessPair) BindServer(dispatch HandlerFunc) {
	p.core.serverDispatch = dispatch
}

// UseInterceptor installs the client-side outbound-send interceptor
// (spec §4.4's ledger hook).
func (p *InProcessPair) UseInterceptor(interceptor SendInterceptor) {
	p.core.interceptor = interceptor
}

// Server returns the server's view of this session.
func (p *InProcessPair) Server() ServerSession {
	return (*inProcessServer)(p.core)
}

// Client returns the client's view of this session.
func (p *InProcessPair) Client() ClientSession {
	return (*inProcessClient)(p.core)
}

type inProcessServer inProcessCore

func (s *inProcessServer) SendRequest(ctx context.Context, id, method string, params map[string]any) (map[string]any, error) {
	if s.clientRequestHandler == nil {
		return nil, &CodedError{Code: -32601, Message: "client has no handler for " + method}
	}
	return s.clientRequestHandler(ctx, Request{ID: id, Method: method, Params: params})
}

func (s *inProcessServer) SendNotification(ctx context.Context, method string, params map[string]any) error {
	if s.clientNotificationHandler != nil {
		s.clientNotificationHandler(ctx, Notification{Method: method, Params: params})
	}
	return nil
}

type inProcessClient inProcessCore

func (c *inProcessClient) SendRequest(ctx context.Context, id, method string, params map[string]any) (map[string]any, error) {
	req := Request{ID: id, Method: method, Params: params}
	if c.interceptor != nil {
		c.interceptor.BeforeSend(req)
	}
	if c.serverDispatch == nil {
		err := &CodedError{Code: -32601, Message: "server has no handler for " + method}
		if c.interceptor != nil {
			c.interceptor.AfterSend(req, Response{Err: err})
		}
		return nil, err
	}
	result, err := c.serverDispatch(ctx, req)
	if c.interceptor != nil {
		c.interceptor.AfterSend(req, Response{Result: result, Err: err})
	}
	return result, err
}

func (c *inProcessClient) OnRequest(handler HandlerFunc) {
	c.clientRequestHandler = handler
}

func (c *inProcessClient) OnNotification(handler NotificationFunc) {
	c.clientNotificationHandler = handler
}
