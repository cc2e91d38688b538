package httpsession

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/nrdlngr/x402mcp/session"
)

// Client implements session.ClientSession over HTTP POST (outbound
// client->server requests) and a long-lived SSE subscription
// (inbound server->client requests and notifications).
type Client struct {
	baseURL string
	http    *http.Client

	mu               sync.Mutex
	requestHandler   session.HandlerFunc
	notificationFunc session.NotificationFunc
}

// NewClient builds a Client pointed at baseURL (e.g.
// "http://localhost:8080"). Run Listen in its own goroutine before
// issuing any call that could trigger a server-originated sub-RPC.
func NewClient(baseURL string) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: http.DefaultClient}
}

func (c *Client) OnRequest(handler session.HandlerFunc) {
	c.mu.Lock()
	c.requestHandler = handler
	c.mu.Unlock()
}

func (c *Client) OnNotification(handler session.NotificationFunc) {
	c.mu.Lock()
	c.notificationFunc = handler
	c.mu.Unlock()
}

// SendRequest posts a client->server request and blocks for the
// synchronous HTTP response.
func (c *Client) SendRequest(ctx context.Context, id, method string, params map[string]any) (map[string]any, error) {
	body, err := json.Marshal(rpcRequestBody{ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("httpsession: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("httpsession: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpsession: send request: %w", err)
	}
	defer resp.Body.Close()

	var out rpcResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("httpsession: decode response: %w", err)
	}
	if out.Error != nil {
		return nil, &session.CodedError{Code: out.Error.Code, Message: out.Error.Message}
	}
	return out.Result, nil
}

// Listen opens the SSE subscription and dispatches every
// server-originated request or notification to the registered
// handlers until ctx is cancelled or the connection drops.
func (c *Client) Listen(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events", nil)
	if err != nil {
		return fmt.Errorf("httpsession: build events request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("httpsession: open event stream: %w", err)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	var dataLine string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "data:"):
			dataLine = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "" && dataLine != "":
			var ev event
			if err := json.Unmarshal([]byte(dataLine), &ev); err == nil {
				c.handle(ctx, ev)
			}
			dataLine = ""
		}
	}
	return scanner.Err()
}

func (c *Client) handle(ctx context.Context, ev event) {
	switch ev.Type {
	case "request":
		c.mu.Lock()
		handler := c.requestHandler
		c.mu.Unlock()
		if handler == nil {
			return
		}
		result, err := handler(ctx, session.Request{ID: ev.ID, Method: ev.Method, Params: ev.Params})
		c.reply(ctx, ev.ID, result, err)
	case "notification":
		c.mu.Lock()
		fn := c.notificationFunc
		c.mu.Unlock()
		if fn != nil {
			fn(ctx, session.Notification{Method: ev.Method, Params: ev.Params})
		}
	}
}

func (c *Client) reply(ctx context.Context, id string, result map[string]any, err error) {
	body := rpcResponseBody{ID: id, Result: result}
	if err != nil {
		body.Error = errorBodyPtr(err)
	}
	payload, merr := json.Marshal(body)
	if merr != nil {
		return
	}
	req, rerr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc/response", bytes.NewReader(payload))
	if rerr != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, derr := c.http.Do(req)
	if derr == nil {
		resp.Body.Close()
	}
}
