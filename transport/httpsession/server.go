package httpsession

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/nrdlngr/x402mcp/session"
)

// Server binds one in-flight session to a gin engine: POST /rpc
// carries client->server requests into Dispatch's handler, GET
// /events streams server->client requests and notifications over
// SSE, and POST /rpc/response carries the client's answer to a
// server-originated sub-RPC back in.
type Server struct {
	dispatch session.HandlerFunc

	mu      sync.Mutex
	stream  chan event
	pending map[string]chan rpcResponseBody
}

// NewServer builds an unbound HTTP/SSE server binding. Call Dispatch
// to register the handler invoked for inbound client requests, then
// RegisterRoutes to attach it to a gin engine.
func NewServer() *Server {
	return &Server{pending: make(map[string]chan rpcResponseBody)}
}

// Dispatch sets the handler invoked for every client->server request
// arriving on POST /rpc.
func (s *Server) Dispatch(handler session.HandlerFunc) {
	s.dispatch = handler
}

// RegisterRoutes attaches this binding's three routes to r.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.POST("/rpc", s.handleRPC)
	r.GET("/events", s.handleEvents)
	r.POST("/rpc/response", s.handleRPCResponse)
}

func (s *Server) handleRPC(c *gin.Context) {
	var body rpcRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": -32700, "message": err.Error()}})
		return
	}
	if s.dispatch == nil {
		c.JSON(http.StatusOK, gin.H{"error": gin.H{"code": -32601, "message": "server has no dispatcher"}})
		return
	}
	result, err := s.dispatch(c.Request.Context(), session.Request{ID: body.ID, Method: body.Method, Params: body.Params})
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"error": errorBody(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (s *Server) handleEvents(c *gin.Context) {
	ch := make(chan event, 16)
	s.mu.Lock()
	s.stream = ch
	s.mu.Unlock()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("message", ev)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (s *Server) handleRPCResponse(c *gin.Context) {
	var body rpcResponseBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.mu.Lock()
	waiter, ok := s.pending[body.ID]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no pending request for id"})
		return
	}
	waiter <- body
	c.Status(http.StatusAccepted)
}

// SendRequest implements session.ServerSession: it pushes a
// server-originated request down the SSE stream, keyed by id so a
// concurrent in-band sub-RPC can be answered on whichever POST
// /rpc/response carries that id back.
func (s *Server) SendRequest(ctx context.Context, id, method string, params map[string]any) (map[string]any, error) {
	s.mu.Lock()
	stream := s.stream
	if stream == nil {
		s.mu.Unlock()
		return nil, &session.CodedError{Code: -32601, Message: "no connected client"}
	}
	waiter := make(chan rpcResponseBody, 1)
	s.pending[id] = waiter
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	select {
	case stream <- event{Type: "request", ID: id, Method: method, Params: params}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case resp := <-waiter:
		if resp.Error != nil {
			return nil, &session.CodedError{Code: resp.Error.Code, Message: resp.Error.Message}
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SendNotification implements session.ServerSession: fire-and-forget
// push down the SSE stream.
func (s *Server) SendNotification(ctx context.Context, method string, params map[string]any) error {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream == nil {
		return nil
	}
	select {
	case stream <- event{Type: "notification", Method: method, Params: params}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
