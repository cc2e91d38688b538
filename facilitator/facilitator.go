// Package facilitator supplies the Facilitator external collaborator
// (spec §1, §6): the verifier/settler that cryptographically validates
// a signed authorization and executes the on-chain transfer.
package facilitator

import "github.com/nrdlngr/x402mcp"

// Facilitator is consumed by the server-side orchestrator. Neither
// method is defined by this core; it only depends on the contract.
type Facilitator interface {
	VerifyProof(payload x402mcp.PaymentPayload, requirement x402mcp.PaymentRequirement) (x402mcp.VerifyResult, error)
	ExecuteSettlement(payload x402mcp.PaymentPayload, requirement x402mcp.PaymentRequirement) (x402mcp.SettleResult, error)
}
