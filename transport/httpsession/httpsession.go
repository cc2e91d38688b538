// Package httpsession is a second, network-capable binding of
// session.Session: client->server requests travel as plain HTTP
// POSTs, server->client requests and notifications travel down a
// Server-Sent Events stream, and the client answers a server-
// originated sub-RPC with a POST carrying the same id back. It shows
// the in-band sub-RPC pattern working across a real network boundary
// rather than only across an in-process call stack.
//
// One Server handles exactly one connected client, matching the
// single-tenant scope of this core (spec.md designates the base
// transport's session-establishment semantics out of scope).
package httpsession

import "github.com/nrdlngr/x402mcp/session"

// event is the envelope pushed down the SSE stream for a
// server-originated request or notification.
type event struct {
	Type   string         `json:"type"`
	ID     string         `json:"id,omitempty"`
	Method string         `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

type rpcRequestBody struct {
	ID     string         `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

type rpcResponseBody struct {
	ID     string         `json:"id"`
	Result map[string]any `json:"result,omitempty"`
	Error  *rpcErrorBody  `json:"error,omitempty"`
}

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func errorBody(err error) rpcErrorBody {
	if coded, ok := err.(*session.CodedError); ok {
		return rpcErrorBody{Code: coded.Code, Message: coded.Message}
	}
	return rpcErrorBody{Code: -32603, Message: err.Error()}
}

func errorBodyPtr(err error) *rpcErrorBody {
	b := errorBody(err)
	return &b
}
