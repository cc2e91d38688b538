package facilitator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nrdlngr/x402mcp"
)

// DefaultFacilitatorURL mirrors the public x402 facilitator used
// across the ecosystem as a sane out-of-the-box default.
const DefaultFacilitatorURL = "https://x402.org/facilitator"

// AuthHeaderFunc produces the auth header to attach to a verify or
// settle request. Coinbase-hosted facilitators want a CDP JWT here;
// the public facilitator wants no header at all, so the zero value is
// a valid, no-op AuthHeaderFunc.
type AuthHeaderFunc func(method, path string) (string, error)

// HTTPFacilitator implements Facilitator by POSTing to a
// Coinbase-compatible /verify and /settle route.
type HTTPFacilitator struct {
	BaseURL    string
	Client     *http.Client
	AuthHeader AuthHeaderFunc
}

// NewHTTPFacilitator builds an HTTPFacilitator against baseURL. If
// baseURL is empty, DefaultFacilitatorURL is used.
func NewHTTPFacilitator(baseURL string) *HTTPFacilitator {
	if baseURL == "" {
		baseURL = DefaultFacilitatorURL
	}
	return &HTTPFacilitator{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type verifyRequest struct {
	X402Version         int                        `json:"x402Version"`
	PaymentPayload       x402mcp.PaymentPayload     `json:"paymentPayload"`
	PaymentRequirements   x402mcp.PaymentRequirement `json:"paymentRequirements"`
}

type verifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

type settleResponse struct {
	Success     bool   `json:"success"`
	Transaction string `json:"transaction,omitempty"`
	Payer       string `json:"payer,omitempty"`
	Network     string `json:"network,omitempty"`
	ErrorReason string `json:"errorReason,omitempty"`
}

func (f *HTTPFacilitator) VerifyProof(payload x402mcp.PaymentPayload, requirement x402mcp.PaymentRequirement) (x402mcp.VerifyResult, error) {
	var resp verifyResponse
	if err := f.post("/verify", verifyRequest{
		X402Version:        x402mcp.X402Version,
		PaymentPayload:     payload,
		PaymentRequirements: requirement,
	}, &resp); err != nil {
		return x402mcp.VerifyResult{}, err
	}
	return x402mcp.VerifyResult{
		Valid:         resp.IsValid,
		InvalidReason: resp.InvalidReason,
		Payer:         resp.Payer,
	}, nil
}

func (f *HTTPFacilitator) ExecuteSettlement(payload x402mcp.PaymentPayload, requirement x402mcp.PaymentRequirement) (x402mcp.SettleResult, error) {
	var resp settleResponse
	if err := f.post("/settle", verifyRequest{
		X402Version:        x402mcp.X402Version,
		PaymentPayload:     payload,
		PaymentRequirements: requirement,
	}, &resp); err != nil {
		return x402mcp.SettleResult{}, err
	}
	return x402mcp.SettleResult{
		Success:     resp.Success,
		Transaction: resp.Transaction,
		Payer:       resp.Payer,
		Network:     resp.Network,
		ErrorReason: resp.ErrorReason,
	}, nil
}

func (f *HTTPFacilitator) post(path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode facilitator request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, f.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build facilitator request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.AuthHeader != nil {
		header, err := f.AuthHeader(http.MethodPost, path)
		if err != nil {
			return fmt.Errorf("build facilitator auth header: %w", err)
		}
		req.Header.Set("Authorization", header)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("call facilitator %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("facilitator %s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode facilitator %s response: %w", path, err)
	}
	return nil
}
