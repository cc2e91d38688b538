package client

import (
	"context"

	"github.com/nrdlngr/x402mcp/session"
)

// Client binds a Responder and a Reconciler to one session, and
// exposes the outgoing call surface a caller uses to invoke a
// protected or unprotected server-side handler.
type Client struct {
	Session    session.ClientSession
	Ledger     *Ledger
	Responder  *Responder
	Reconciler *Reconciler
}

// NewClient wires responder and reconciler onto sess's inbound
// request/notification handlers and installs a LedgerInterceptor on
// sess's outbound sends, then returns the assembled Client.
//
// sess must be the ClientSession half of a pair whose outbound sends
// already route through interceptor (e.g. session.InProcessPair,
// where UseInterceptor must be called before NewClient).
func NewClient(sess session.ClientSession, ledger *Ledger, responder *Responder, reconciler *Reconciler) *Client {
	sess.OnRequest(responder.HandleRequest)
	sess.OnNotification(reconciler.HandleNotification)
	return &Client{Session: sess, Ledger: ledger, Responder: responder, Reconciler: reconciler}
}

// CallTool invokes name on the server with the given arguments,
// generating a fresh request id so the server's in-band payment
// sub-RPC (if the handler is protected) has an id to reuse. The
// generated id is returned alongside the result so callers can look
// the invocation up in the ledger afterward.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (result map[string]any, requestID string, err error) {
	id := NewRequestID()
	result, err = c.Session.SendRequest(ctx, id, "tools/call", map[string]any{
		"name":      name,
		"arguments": arguments,
	})
	return result, id, err
}
