// Command demo wires the server and client halves of the payment
// mediation core together over an in-process session and runs the
// "add-numbers" happy path end to end.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/nrdlngr/x402mcp"
	"github.com/nrdlngr/x402mcp/client"
	"github.com/nrdlngr/x402mcp/facilitator"
	"github.com/nrdlngr/x402mcp/pricing"
	"github.com/nrdlngr/x402mcp/server"
	"github.com/nrdlngr/x402mcp/session"
	"github.com/nrdlngr/x402mcp/wallet"
)

const (
	demoNetwork    = "base-sepolia"
	demoAsset      = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
	demoPayTo      = "0x8D170Db9aB247E7013d024566093E13dc7b0f181"
	demoPrivateKey = "0x1a2b3c4d1a2b3c4d1a2b3c4d1a2b3c4d1a2b3c4d1a2b3c4d1a2b3c4d1a2b3c4d" // demo-only, never use in production
)

func main() {
	ctx := context.Background()

	pricer := pricing.NewStaticPricer(pricing.Asset{
		Network:  demoNetwork,
		Address:  demoAsset,
		Decimals: 6,
		Domain: map[string]any{
			"name":              "USDC",
			"version":           "2",
			"chainId":           84532,
			"verifyingContract": demoAsset,
		},
	})

	store := client.NewMemoryStore()
	defer store.Close()
	ledger := client.NewLedger(store)

	pair := session.NewInProcessPair()
	pair.UseInterceptor(client.NewLedgerInterceptor(ledger, "demo-server"))

	w, err := wallet.NewECDSAWalletFromHex(demoPrivateKey)
	if err != nil {
		log.Fatalf("demo: build wallet: %v", err)
	}

	guardrails := &client.Guardrails{MaxPaymentPerCall: 0.01}
	responder := client.NewResponder(ledger, guardrails, w, pricer)
	reconciler := client.NewReconciler(ledger)
	cl := client.NewClient(pair.Client(), ledger, responder, reconciler)

	registry := server.NewRegistry()
	err = registry.Register("add-numbers", x402mcp.KindTool, &x402mcp.PaymentOptions{
		Amount:      0.001,
		Network:     demoNetwork,
		Description: "Add two numbers",
	}, addNumbers)
	if err != nil {
		log.Fatalf("demo: register add-numbers: %v", err)
	}

	fakeFacilitator := facilitator.NewMemory("0xabc", demoNetwork)
	orchestrator := server.NewOrchestrator(pricer, fakeFacilitator, demoPayTo)
	orchestrator.BaseURL = "mcp://demo"

	srv := server.NewServer(registry, orchestrator)
	pair.BindServer(srv.Dispatch(pair.Server()))

	result, requestID, err := cl.CallTool(ctx, "add-numbers", map[string]any{"a": 10.0, "b": 20.0})
	if err != nil {
		log.Fatalf("demo: add-numbers failed: %v", err)
	}

	fmt.Printf("add-numbers result: %v\n", result["result"])
	fmt.Printf("facilitator verify/settle calls: %d/%d\n", fakeFacilitator.VerifyCalls, fakeFacilitator.SettleCalls)

	if record, ok := ledger.Get(requestID); ok {
		fmt.Printf("ledger record %s: requestStatus=%s paymentStatus=%s txHash=%s\n",
			requestID, record.RequestStatus, record.PaymentStatus, record.TxHash)
	}
}

func addNumbers(ctx context.Context, inv server.Invocation) (any, error) {
	a, _ := inv.Args["a"].(float64)
	b, _ := inv.Args["b"].(float64)
	return fmt.Sprintf("Result: %v", a+b), nil
}
