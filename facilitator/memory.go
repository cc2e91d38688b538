package facilitator

import "github.com/nrdlngr/x402mcp"

// Memory is a scriptable Facilitator double for tests and the demo.
// It always verifies unless AlwaysInvalid is set, and settles
// successfully with Transaction unless ShouldExecute is false.
type Memory struct {
	Transaction   string
	Network       string
	AlwaysInvalid bool
	InvalidReason string
	ShouldExecute bool
	ExecuteError  string
	Payer         string

	VerifyCalls   int
	SettleCalls   int
}

// NewMemory builds a Memory facilitator that verifies and settles
// successfully by default, mirroring spec §8 scenario S1's fixture.
func NewMemory(transaction, network string) *Memory {
	return &Memory{
		Transaction:   transaction,
		Network:       network,
		ShouldExecute: true,
		Payer:         "0x0000000000000000000000000000000000000001",
	}
}

func (m *Memory) VerifyProof(payload x402mcp.PaymentPayload, requirement x402mcp.PaymentRequirement) (x402mcp.VerifyResult, error) {
	m.VerifyCalls++
	if m.AlwaysInvalid {
		reason := m.InvalidReason
		if reason == "" {
			reason = "verification refused"
		}
		return x402mcp.VerifyResult{Valid: false, InvalidReason: reason}, nil
	}
	return x402mcp.VerifyResult{Valid: true, Payer: m.Payer}, nil
}

func (m *Memory) ExecuteSettlement(payload x402mcp.PaymentPayload, requirement x402mcp.PaymentRequirement) (x402mcp.SettleResult, error) {
	m.SettleCalls++
	if !m.ShouldExecute {
		reason := m.ExecuteError
		if reason == "" {
			reason = "settlement refused"
		}
		return x402mcp.SettleResult{Success: false, Network: requirement.Network, ErrorReason: reason}, nil
	}
	return x402mcp.SettleResult{
		Success:     true,
		Transaction: m.Transaction,
		Payer:       m.Payer,
		Network:     requirement.Network,
	}, nil
}
