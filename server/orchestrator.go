package server

import (
	"context"
	"encoding/json"
	"log"

	"github.com/nrdlngr/x402mcp"
	"github.com/nrdlngr/x402mcp/facilitator"
	"github.com/nrdlngr/x402mcp/pricing"
	"github.com/nrdlngr/x402mcp/session"
)

// Orchestrator mediates a single protected invocation (spec §4.3). It
// is stateless across invocations: all per-invocation state lives in
// the caller's *InvocationContext.
type Orchestrator struct {
	Pricer       pricing.Pricer
	Facilitator  facilitator.Facilitator
	BaseURL      string
	PayTo        string
	MaxTimeoutSeconds int
	Logger       *log.Logger
}

// NewOrchestrator builds an Orchestrator with the given pricer,
// facilitator, and payout address. MaxTimeoutSeconds defaults to 60
// per spec §6's example wire message.
func NewOrchestrator(pricer pricing.Pricer, f facilitator.Facilitator, payTo string) *Orchestrator {
	return &Orchestrator{
		Pricer:            pricer,
		Facilitator:       f,
		PayTo:             payTo,
		MaxTimeoutSeconds: 60,
		Logger:            log.Default(),
	}
}

func (o *Orchestrator) logf(format string, args ...any) {
	if o.Logger != nil {
		o.Logger.Printf(format, args...)
	}
}

// assembleRequirement implements spec §4.3's "Payment Requirement
// Assembly": converts the handler's priced amount into atomic units
// via the pricer and builds the full requirement.
func (o *Orchestrator) assembleRequirement(handlerName string, options *x402mcp.PaymentOptions, requestID string) (x402mcp.PaymentRequirement, error) {
	atomicAmount, asset, err := o.Pricer.ToAtomicUnits(options.Network, options.Amount)
	if err != nil {
		return x402mcp.PaymentRequirement{}, x402mcp.NewErrorf(x402mcp.CodeConfigInvalid, "assemble payment requirement: %v", err).WithCause(err)
	}
	return x402mcp.PaymentRequirement{
		Scheme:            x402mcp.SchemeExact,
		Network:           options.Network,
		MaxAmountRequired: atomicAmount,
		Resource:          x402mcp.ResourceURL(o.BaseURL, handlerName),
		Description:       options.Description,
		MimeType:          "application/json",
		PayTo:             o.PayTo,
		MaxTimeoutSeconds: o.MaxTimeoutSeconds,
		Asset:             asset.Address,
		Extra:             asset.Domain,
		X402Version:       x402mcp.X402Version,
		RequestID:         requestID,
	}, nil
}

// Verify runs AWAIT_VERIFY through FACILITATOR_VERIFY for one
// invocation. On success it stores the proof and requirements on ic
// and returns nil; the wrapper may then invoke the handler. On
// failure it returns a *x402mcp.Error from the taxonomy and ic is
// left untouched.
func (o *Orchestrator) Verify(ctx context.Context, handlerName string, options *x402mcp.PaymentOptions, ic *InvocationContext) error {
	requirement, err := o.assembleRequirement(handlerName, options, ic.RequestID)
	if err != nil {
		return err
	}

	params, err := requirementToParams(requirement)
	if err != nil {
		return x402mcp.NewErrorf(x402mcp.CodeInternalError, "encode payment requirement: %v", err).WithCause(err)
	}

	result, err := ic.sendRequest(ctx, ic.RequestID, x402mcp.MethodPaymentRequired, params)
	if err != nil {
		var coded *session.CodedError
		if asCodedError(err, &coded) && coded.Code == x402mcp.CodeMethodNotFound {
			return x402mcp.NewError(x402mcp.CodePaymentRequired, "payment required").WithDetails(map[string]any{
				"amount":         requirement.MaxAmountRequired,
				"asset":          requirement.Asset,
				"paymentAddress": requirement.PayTo,
				"network":        requirement.Network,
			})
		}
		return x402mcp.NewErrorf(x402mcp.CodePaymentInvalid, "payment challenge failed: %v", err).WithCause(err)
	}

	payload, verr := paramsToPaymentPayload(result)
	if verr != nil {
		return verr
	}
	if err := validatePaymentPayload(payload, requirement); err != nil {
		return err
	}

	verifyResult, err := o.Facilitator.VerifyProof(payload, requirement)
	if err != nil {
		return x402mcp.NewErrorf(x402mcp.CodePaymentInvalid, "facilitator verify failed: %v", err).WithCause(err)
	}
	if !verifyResult.Valid {
		reason := verifyResult.InvalidReason
		if reason == "" {
			reason = "payment rejected by facilitator"
		}
		return x402mcp.NewErrorf(x402mcp.CodePaymentInvalid, "%s", reason)
	}

	ic.PaymentProof = &payload
	ic.PaymentRequirements = &requirement
	return nil
}

// Settle runs EXECUTE through NOTIFY_OK/NOTIFY_FAIL for an invocation
// whose handler already returned normally. The wrapper must not call
// Settle if the handler threw.
func (o *Orchestrator) Settle(ctx context.Context, ic *InvocationContext) error {
	if ic.PaymentProof == nil || ic.PaymentRequirements == nil {
		return x402mcp.NewError(x402mcp.CodeInternalError, "settle called without a verified payment")
	}

	settleResult, err := o.Facilitator.ExecuteSettlement(*ic.PaymentProof, *ic.PaymentRequirements)
	if err != nil {
		settleResult = x402mcp.SettleResult{
			Success:     false,
			Network:     ic.PaymentRequirements.Network,
			ErrorReason: err.Error(),
		}
	}

	notifyParams := map[string]any{
		"success":   settleResult.Success,
		"network":   settleResult.Network,
		"requestId": ic.RequestID,
	}
	if settleResult.Success {
		notifyParams["transaction"] = settleResult.Transaction
		notifyParams["payer"] = settleResult.Payer
	} else {
		notifyParams["errorReason"] = settleResult.ErrorReason
	}

	if sendErr := ic.sendNotification(ctx, x402mcp.MethodPaymentResult, notifyParams); sendErr != nil {
		o.logf("x402mcp: failed to deliver payment_result notification for %s: %v", ic.RequestID, sendErr)
	}

	if !settleResult.Success {
		return x402mcp.NewErrorf(x402mcp.CodeExecutionFailed, "settlement failed: %s", settleResult.ErrorReason)
	}
	return nil
}

func requirementToParams(requirement x402mcp.PaymentRequirement) (map[string]any, error) {
	encoded, err := json.Marshal(requirement)
	if err != nil {
		return nil, err
	}
	var params map[string]any
	if err := json.Unmarshal(encoded, &params); err != nil {
		return nil, err
	}
	return params, nil
}

func paramsToPaymentPayload(result map[string]any) (x402mcp.PaymentPayload, error) {
	raw, ok := result["payment"]
	if !ok {
		return x402mcp.PaymentPayload{}, x402mcp.NewError(x402mcp.CodePaymentInvalid, "response missing payment")
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return x402mcp.PaymentPayload{}, x402mcp.NewErrorf(x402mcp.CodePaymentInvalid, "malformed payment payload: %v", err)
	}
	var payload x402mcp.PaymentPayload
	if err := json.Unmarshal(encoded, &payload); err != nil {
		return x402mcp.PaymentPayload{}, x402mcp.NewErrorf(x402mcp.CodePaymentInvalid, "malformed payment payload: %v", err)
	}
	return payload, nil
}

func validatePaymentPayload(payload x402mcp.PaymentPayload, requirement x402mcp.PaymentRequirement) error {
	if payload.Payload.Signature == "" {
		return x402mcp.NewError(x402mcp.CodePaymentInvalid, "payment payload missing signature")
	}
	if payload.X402Version != x402mcp.X402Version {
		return x402mcp.NewErrorf(x402mcp.CodeInvalidRequest, "unsupported x402Version %d", payload.X402Version)
	}
	if payload.Scheme != x402mcp.SchemeExact {
		return x402mcp.NewErrorf(x402mcp.CodePaymentInvalid, "unsupported scheme %q", payload.Scheme)
	}
	if payload.Network != requirement.Network {
		return x402mcp.NewErrorf(x402mcp.CodePaymentInvalid, "network mismatch: payload=%q requirement=%q", payload.Network, requirement.Network)
	}
	return nil
}

func asCodedError(err error, target **session.CodedError) bool {
	for err != nil {
		if coded, ok := err.(*session.CodedError); ok {
			*target = coded
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
