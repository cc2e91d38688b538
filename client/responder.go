package client

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nrdlngr/x402mcp"
	"github.com/nrdlngr/x402mcp/pricing"
	"github.com/nrdlngr/x402mcp/session"
	"github.com/nrdlngr/x402mcp/wallet"
)

// Responder handles the server-originated "x402/payment_required"
// sub-RPC (spec §4.5).
type Responder struct {
	Ledger     *Ledger
	Guardrails *Guardrails
	Wallet     wallet.Wallet
	Pricer     pricing.Pricer
}

// NewResponder builds a Responder.
func NewResponder(ledger *Ledger, guardrails *Guardrails, w wallet.Wallet, pricer pricing.Pricer) *Responder {
	return &Responder{Ledger: ledger, Guardrails: guardrails, Wallet: w, Pricer: pricer}
}

// HandleRequest implements session.HandlerFunc for the
// "x402/payment_required" method.
func (r *Responder) HandleRequest(ctx context.Context, req session.Request) (map[string]any, error) {
	requirement, err := r.parseRequirement(req.Params)
	if err != nil {
		return nil, err
	}

	if _, ok := r.Ledger.GetPending(requirement.RequestID); !ok {
		return nil, x402mcp.NewError(x402mcp.CodePaymentInvalid, "unknown payment")
	}

	r.Ledger.UpdatePaymentStatus(requirement.RequestID, PaymentPending, UpdatePaymentStatusInput{})

	amount, err := r.Pricer.ToPricedUnits(requirement.Network, requirement.MaxAmountRequired)
	if err != nil {
		return nil, x402mcp.NewErrorf(x402mcp.CodePaymentInvalid, "convert amount: %v", err).WithCause(err)
	}

	if err := r.Guardrails.Enforce(amount, requirement.PayTo); err != nil {
		r.Ledger.UpdatePaymentStatus(requirement.RequestID, PaymentFailed, UpdatePaymentStatusInput{ErrorReason: err.Error()})
		return nil, err
	}

	account, err := r.Wallet.GetAccount()
	if err != nil {
		return nil, x402mcp.NewErrorf(x402mcp.CodeInternalError, "obtain signing account: %v", err).WithCause(err)
	}

	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return nil, x402mcp.NewErrorf(x402mcp.CodeInternalError, "generate nonce: %v", err).WithCause(err)
	}

	authorization := x402mcp.Authorization{
		From:        account.Address(),
		To:          requirement.PayTo,
		Value:       requirement.MaxAmountRequired,
		ValidAfter:  0,
		ValidBefore: time.Now().Add(time.Duration(requirement.MaxTimeoutSeconds) * time.Second).Unix(),
		Nonce:       "0x" + hex.EncodeToString(nonce),
	}

	signature, err := account.SignTypedData(requirement.Extra, authorization)
	if err != nil {
		return nil, x402mcp.NewErrorf(x402mcp.CodePaymentInvalid, "sign authorization: %v", err).WithCause(err)
	}

	payload := x402mcp.PaymentPayload{
		X402Version: x402mcp.X402Version,
		Scheme:      x402mcp.SchemeExact,
		Network:     requirement.Network,
		Payload: x402mcp.PaymentPayloadInner{
			Signature:     signature,
			Authorization: authorization,
		},
	}

	return map[string]any{
		"payment": payload,
	}, nil
}

func (r *Responder) parseRequirement(params map[string]any) (x402mcp.PaymentRequirement, error) {
	payTo, _ := params["payTo"].(string)
	maxAmount, _ := params["maxAmountRequired"].(string)
	network, _ := params["network"].(string)
	requestID, _ := params["requestId"].(string)
	scheme, _ := params["scheme"].(string)

	if payTo == "" || maxAmount == "" || network == "" || requestID == "" {
		return x402mcp.PaymentRequirement{}, x402mcp.NewError(x402mcp.CodePaymentInvalid, "payment requirement missing required fields")
	}
	if scheme != x402mcp.SchemeExact {
		return x402mcp.PaymentRequirement{}, x402mcp.NewErrorf(x402mcp.CodePaymentInvalid, "unsupported scheme %q", scheme)
	}
	version, err := asInt(params["x402Version"])
	if err != nil || version != x402mcp.X402Version {
		return x402mcp.PaymentRequirement{}, x402mcp.NewErrorf(x402mcp.CodePaymentInvalid, "unsupported x402Version")
	}

	maxTimeoutSeconds, _ := asInt(params["maxTimeoutSeconds"])
	extra, _ := params["extra"].(map[string]any)
	asset, _ := params["asset"].(string)
	description, _ := params["description"].(string)
	resource, _ := params["resource"].(string)

	return x402mcp.PaymentRequirement{
		Scheme:            scheme,
		Network:           network,
		MaxAmountRequired: maxAmount,
		Resource:          resource,
		Description:       description,
		PayTo:             payTo,
		MaxTimeoutSeconds: maxTimeoutSeconds,
		Asset:             asset,
		Extra:             extra,
		X402Version:       version,
		RequestID:         requestID,
	}, nil
}

func asInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}

// NewRequestID generates a collision-resistant id for an outgoing RPC
// (spec §9's "dynamic coupling" design note relies on ids the server
// can safely reuse for its sub-RPC).
func NewRequestID() string {
	return uuid.NewString()
}
