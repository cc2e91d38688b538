package server

import (
	"context"
	"strings"
	"testing"

	"github.com/nrdlngr/x402mcp"
	"github.com/nrdlngr/x402mcp/facilitator"
	"github.com/nrdlngr/x402mcp/pricing"
	"github.com/nrdlngr/x402mcp/session"
)

const demoNetwork = "base-sepolia"

type stubSession struct {
	respond       func(id, method string, params map[string]any) (map[string]any, error)
	notifications []session.Notification
}

func (s *stubSession) SendRequest(ctx context.Context, id, method string, params map[string]any) (map[string]any, error) {
	return s.respond(id, method, params)
}

func (s *stubSession) SendNotification(ctx context.Context, method string, params map[string]any) error {
	s.notifications = append(s.notifications, session.Notification{Method: method, Params: params})
	return nil
}

func testPricer() *pricing.StaticPricer {
	return pricing.NewStaticPricer(pricing.Asset{
		Network:  demoNetwork,
		Address:  "0xasset",
		Decimals: 6,
		Domain:   map[string]any{"name": "USDC", "version": "2", "chainId": 84532, "verifyingContract": "0xasset"},
	})
}

func validPaymentResult(network string) map[string]any {
	return map[string]any{
		"payment": map[string]any{
			"x402Version": 1,
			"scheme":      "exact",
			"network":     network,
			"payload": map[string]any{
				"signature": "0xdeadbeef",
				"authorization": map[string]any{
					"from":        "0xpayer",
					"to":          "0xmerchant",
					"value":       "1000",
					"validAfter":  0,
					"validBefore": 1000,
					"nonce":       "0x01",
				},
			},
		},
	}
}

// S1 — happy path.
func TestOrchestratorHappyPath(t *testing.T) {
	t.Parallel()

	stub := &stubSession{respond: func(id, method string, params map[string]any) (map[string]any, error) {
		return validPaymentResult(demoNetwork), nil
	}}

	mem := facilitator.NewMemory("0xabc", demoNetwork)
	orch := NewOrchestrator(testPricer(), mem, "0xmerchant")
	ic := NewInvocationContext("req-1", stub, nil)
	options := &x402mcp.PaymentOptions{Amount: 0.001, Network: demoNetwork}

	if err := orch.Verify(context.Background(), "add-numbers", options, ic); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := orch.Settle(context.Background(), ic); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	if len(stub.notifications) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(stub.notifications))
	}
	n := stub.notifications[0]
	if n.Method != x402mcp.MethodPaymentResult {
		t.Fatalf("notification method = %q", n.Method)
	}
	if n.Params["success"] != true || n.Params["transaction"] != "0xabc" || n.Params["requestId"] != "req-1" {
		t.Fatalf("unexpected notification params: %+v", n.Params)
	}
}

// S3 — client lacks extension.
func TestOrchestratorClientLacksExtension(t *testing.T) {
	t.Parallel()

	stub := &stubSession{respond: func(id, method string, params map[string]any) (map[string]any, error) {
		return nil, &session.CodedError{Code: x402mcp.CodeMethodNotFound, Message: "method not found"}
	}}

	mem := facilitator.NewMemory("0xabc", demoNetwork)
	orch := NewOrchestrator(testPricer(), mem, "0xmerchant")
	ic := NewInvocationContext("req-2", stub, nil)
	options := &x402mcp.PaymentOptions{Amount: 0.001, Network: demoNetwork}

	err := orch.Verify(context.Background(), "add-numbers", options, ic)
	if x402mcp.CodeOf(err) != x402mcp.CodePaymentRequired {
		t.Fatalf("expected PAYMENT_REQUIRED, got %v", err)
	}
}

// Facilitator rejection surfaces PAYMENT_INVALID.
func TestOrchestratorFacilitatorRejects(t *testing.T) {
	t.Parallel()

	stub := &stubSession{respond: func(id, method string, params map[string]any) (map[string]any, error) {
		return validPaymentResult(demoNetwork), nil
	}}

	mem := facilitator.NewMemory("0xabc", demoNetwork)
	mem.AlwaysInvalid = true
	mem.InvalidReason = "replay detected"
	orch := NewOrchestrator(testPricer(), mem, "0xmerchant")
	ic := NewInvocationContext("req-3", stub, nil)
	options := &x402mcp.PaymentOptions{Amount: 0.001, Network: demoNetwork}

	err := orch.Verify(context.Background(), "add-numbers", options, ic)
	if x402mcp.CodeOf(err) != x402mcp.CodePaymentInvalid {
		t.Fatalf("expected PAYMENT_INVALID, got %v", err)
	}
	if ic.PaymentProof != nil {
		t.Fatalf("expected no proof stored on rejection")
	}
}

func TestOrchestratorNetworkMismatch(t *testing.T) {
	t.Parallel()

	stub := &stubSession{respond: func(id, method string, params map[string]any) (map[string]any, error) {
		return validPaymentResult("wrong-network"), nil
	}}

	mem := facilitator.NewMemory("0xabc", demoNetwork)
	orch := NewOrchestrator(testPricer(), mem, "0xmerchant")
	ic := NewInvocationContext("req-4", stub, nil)
	options := &x402mcp.PaymentOptions{Amount: 0.001, Network: demoNetwork}

	err := orch.Verify(context.Background(), "add-numbers", options, ic)
	if x402mcp.CodeOf(err) != x402mcp.CodePaymentInvalid {
		t.Fatalf("expected PAYMENT_INVALID for network mismatch, got %v", err)
	}
	if mem.VerifyCalls != 0 {
		t.Fatalf("facilitator should not be consulted on structural validation failure")
	}
}

// S5 — settlement failure.
func TestOrchestratorSettlementFailure(t *testing.T) {
	t.Parallel()

	stub := &stubSession{respond: func(id, method string, params map[string]any) (map[string]any, error) {
		return validPaymentResult(demoNetwork), nil
	}}

	mem := facilitator.NewMemory("", demoNetwork)
	mem.ShouldExecute = false
	mem.ExecuteError = "on-chain revert"
	orch := NewOrchestrator(testPricer(), mem, "0xmerchant")
	ic := NewInvocationContext("req-5", stub, nil)
	options := &x402mcp.PaymentOptions{Amount: 0.001, Network: demoNetwork}

	if err := orch.Verify(context.Background(), "add-numbers", options, ic); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	err := orch.Settle(context.Background(), ic)
	if x402mcp.CodeOf(err) != x402mcp.CodeExecutionFailed {
		t.Fatalf("expected PAYMENT_EXECUTION_FAILED, got %v", err)
	}
	if len(stub.notifications) != 1 || stub.notifications[0].Params["success"] != false {
		t.Fatalf("expected one failure notification, got %+v", stub.notifications)
	}
	if !strings.Contains(stub.notifications[0].Params["errorReason"].(string), "on-chain revert") {
		t.Fatalf("expected errorReason to mention facilitator reason, got %+v", stub.notifications[0].Params)
	}
}
