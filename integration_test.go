package x402mcp_test

import (
	"context"
	"strings"
	"testing"

	"github.com/nrdlngr/x402mcp"
	"github.com/nrdlngr/x402mcp/client"
	"github.com/nrdlngr/x402mcp/facilitator"
	"github.com/nrdlngr/x402mcp/pricing"
	"github.com/nrdlngr/x402mcp/server"
	"github.com/nrdlngr/x402mcp/session"
	"github.com/nrdlngr/x402mcp/wallet"
)

const testNetwork = "base-sepolia"
const testAsset = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
const testPayTo = "0x8D170Db9aB247E7013d024566093E13dc7b0f181"
const testPrivateKey = "0x1a2b3c4d1a2b3c4d1a2b3c4d1a2b3c4d1a2b3c4d1a2b3c4d1a2b3c4d1a2b3c4d"

func testPricer() *pricing.StaticPricer {
	return pricing.NewStaticPricer(pricing.Asset{
		Network:  testNetwork,
		Address:  testAsset,
		Decimals: 6,
		Domain: map[string]any{
			"name": "USDC", "version": "2", "chainId": 84532, "verifyingContract": testAsset,
		},
	})
}

type fixture struct {
	client    *client.Client
	ledger    *client.Ledger
	store     *client.MemoryStore
	mem       *facilitator.Memory
	registry  *server.Registry
	guardrail *client.Guardrails
}

func newFixture(t *testing.T, maxPaymentPerCall float64) *fixture {
	t.Helper()

	store := client.NewMemoryStore()
	t.Cleanup(store.Close)
	ledger := client.NewLedger(store)

	pair := session.NewInProcessPair()
	interceptor := client.NewLedgerInterceptor(ledger, "test-server")
	pair.UseInterceptor(interceptor)

	w, err := wallet.NewECDSAWalletFromHex(testPrivateKey)
	if err != nil {
		t.Fatalf("build wallet: %v", err)
	}

	guardrails := &client.Guardrails{MaxPaymentPerCall: maxPaymentPerCall}
	pricer := testPricer()
	responder := client.NewResponder(ledger, guardrails, w, pricer)
	reconciler := client.NewReconciler(ledger)
	cl := client.NewClient(pair.Client(), ledger, responder, reconciler)

	registry := server.NewRegistry()
	if err := registry.Register("add-numbers", x402mcp.KindTool, &x402mcp.PaymentOptions{
		Amount:  0.001,
		Network: testNetwork,
	}, func(ctx context.Context, inv server.Invocation) (any, error) {
		a, _ := inv.Args["a"].(float64)
		b, _ := inv.Args["b"].(float64)
		return a + b, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	mem := facilitator.NewMemory("0xabc", testNetwork)
	orchestrator := server.NewOrchestrator(pricer, mem, testPayTo)
	srv := server.NewServer(registry, orchestrator)
	pair.BindServer(srv.Dispatch(pair.Server()))

	return &fixture{client: cl, ledger: ledger, store: store, mem: mem, registry: registry, guardrail: guardrails}
}

// S1 — happy path, end to end.
func TestEndToEndHappyPath(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0.01)
	result, requestID, err := f.client.CallTool(context.Background(), "add-numbers", map[string]any{"a": 10.0, "b": 20.0})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result["result"] != float64(30) {
		t.Fatalf("result = %v, want 30", result["result"])
	}

	record, ok := f.ledger.Get(requestID)
	if !ok {
		t.Fatalf("expected a terminal ledger record")
	}
	if _, stillPending := f.ledger.GetPending(requestID); stillPending {
		t.Fatalf("expected pending:<id> to be deleted after terminal state")
	}
	if record.RequestStatus != client.StatusCompleted || record.PaymentStatus != client.PaymentCompleted {
		t.Fatalf("unexpected record state: %+v", record)
	}
	if record.TxHash != "0xabc" {
		t.Fatalf("txHash = %q, want 0xabc", record.TxHash)
	}
}

// S2 — client refuses on the per-call cap.
func TestEndToEndGuardrailViolation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0.0005)
	_, requestID, err := f.client.CallTool(context.Background(), "add-numbers", map[string]any{"a": 1.0, "b": 2.0})
	if err == nil {
		t.Fatalf("expected an error")
	}
	if x402mcp.CodeOf(err) != x402mcp.CodePaymentInvalid {
		t.Fatalf("expected server-wrapped PAYMENT_INVALID, got %v", err)
	}
	if f.mem.SettleCalls != 0 {
		t.Fatalf("expected no settlement attempt")
	}

	record, ok := f.ledger.Get(requestID)
	if !ok {
		t.Fatalf("expected a terminal ledger record even on guardrail failure")
	}
	if record.PaymentStatus != client.PaymentFailed {
		t.Fatalf("paymentStatus = %q, want failed", record.PaymentStatus)
	}
	if !strings.Contains(record.ErrorReason, "maxPaymentPerCall") {
		t.Fatalf("errorReason = %q, want mention of the cap", record.ErrorReason)
	}
}
