package httpsession

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nrdlngr/x402mcp/session"
)

func TestClientServerRequestRoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	srv := NewServer()
	srv.Dispatch(func(ctx context.Context, req session.Request) (map[string]any, error) {
		return map[string]any{"echo": req.Method}, nil
	})
	srv.RegisterRoutes(r)

	ts := httptest.NewServer(r)
	defer ts.Close()

	cl := NewClient(ts.URL)
	result, err := cl.SendRequest(context.Background(), "req-1", "ping", nil)
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if result["echo"] != "ping" {
		t.Fatalf("unexpected result: %v", result)
	}
}

func TestClientServerRequestErrorPropagation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	srv := NewServer()
	srv.Dispatch(func(ctx context.Context, req session.Request) (map[string]any, error) {
		return nil, &session.CodedError{Code: -32601, Message: "method not found"}
	})
	srv.RegisterRoutes(r)

	ts := httptest.NewServer(r)
	defer ts.Close()

	cl := NewClient(ts.URL)
	_, err := cl.SendRequest(context.Background(), "req-2", "missing", nil)
	if err == nil {
		t.Fatalf("expected an error")
	}
	coded, ok := err.(*session.CodedError)
	if !ok || coded.Code != -32601 {
		t.Fatalf("expected CodedError{-32601}, got %v", err)
	}
}

// TestServerOriginatedSubRPC drives the in-band sub-RPC pattern
// across the HTTP/SSE boundary: the server pushes a request down the
// event stream while the client's SendRequest call that triggered it
// is still blocked, and the client answers it by id over
// POST /rpc/response.
func TestServerOriginatedSubRPC(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	srv := NewServer()
	srv.RegisterRoutes(r)

	ts := httptest.NewServer(r)
	defer ts.Close()

	cl := NewClient(ts.URL)
	cl.OnRequest(func(ctx context.Context, req session.Request) (map[string]any, error) {
		return map[string]any{"signature": "0xsig"}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cl.Listen(ctx)

	waitForSubscriber(t, srv)

	result, err := srv.SendRequest(context.Background(), "sub-1", "x402/payment_required", map[string]any{"amount": "0.001"})
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if result["signature"] != "0xsig" {
		t.Fatalf("unexpected result: %v", result)
	}
}

func waitForSubscriber(t *testing.T, srv *Server) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		srv.mu.Lock()
		ready := srv.stream != nil
		srv.mu.Unlock()
		if ready {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for SSE subscriber to register")
}
